// Package credentials loads the two files the cookie-capture collaborator
// and the operator maintain under the configuration directory:
// credentials.json (token and cookie-capture inputs) and
// barchart_cookies.json (the captured session, produced atomically by an
// external process this package never invokes).
package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// staleAfter is how old a captured cookie session can be before it is
// considered a fallback candidate rather than the preferred provider
// under AUTO selection (spec: 24 hours is a warning threshold, not a
// veto, so this constant gates only the AUTO preference, not validity).
const staleAfter = 24 * time.Hour

// File holds the operator-maintained credentials.json contents.
type File struct {
	TiingoAPIKey        string `json:"tiingo_api_key"`
	BarchartUsername    string `json:"barchart_username"`
	BarchartPasswordEnv string `json:"barchart_password_env"`
}

// CookieSession holds the cookie-capture collaborator's output.
type CookieSession struct {
	CookieString string    `json:"cookie_string"`
	XSRFToken    string    `json:"xsrf_token"`
	UserAgent    string    `json:"user_agent"`
	CapturedAt   time.Time `json:"captured_at"`
}

// Bundle is the immutable, per-request snapshot the retrieval engine reads
// credentials from. It is re-read on every top-level call rather than
// cached across requests, so a refreshed cookie file takes effect on the
// next call without restarting the process.
type Bundle struct {
	TiingoAPIKey string
	Cookies      *CookieSession // nil if barchart_cookies.json is absent
}

// HasTiingo reports whether the bundle carries a tiingo API key.
func (b Bundle) HasTiingo() bool {
	return b.TiingoAPIKey != ""
}

// HasFreshCookies reports whether a cookie session is present and was
// captured within the last 24 hours. A present-but-stale session still
// has HasCookies true; only the AUTO preference consults freshness.
func (b Bundle) HasFreshCookies() bool {
	return b.Cookies != nil && time.Since(b.Cookies.CapturedAt) < staleAfter
}

// HasCookies reports whether a cookie session is present at all,
// regardless of age.
func (b Bundle) HasCookies() bool {
	return b.Cookies != nil
}

// Load reads credentials.json and barchart_cookies.json from dir. Neither
// file is required to exist: a missing credentials.json yields a bundle
// with an empty TiingoAPIKey, and a missing barchart_cookies.json yields a
// nil Cookies field. Presence is validated lazily, by the provider adapter
// that actually needs the field, per spec: credential-missing is raised
// only when the corresponding provider is invoked.
func Load(dir string) (Bundle, error) {
	var bundle Bundle

	credPath := filepath.Join(dir, "credentials.json")
	raw, err := os.ReadFile(credPath)
	switch {
	case err == nil:
		var f File
		if jsonErr := json.Unmarshal(raw, &f); jsonErr != nil {
			return Bundle{}, fmt.Errorf("parsing %s: %w", credPath, jsonErr)
		}
		bundle.TiingoAPIKey = f.TiingoAPIKey
	case os.IsNotExist(err):
		// no credentials.json: leave TiingoAPIKey empty
	default:
		return Bundle{}, fmt.Errorf("reading %s: %w", credPath, err)
	}

	cookiePath := filepath.Join(dir, "barchart_cookies.json")
	raw, err = os.ReadFile(cookiePath)
	switch {
	case err == nil:
		var c CookieSession
		if jsonErr := json.Unmarshal(raw, &c); jsonErr != nil {
			return Bundle{}, fmt.Errorf("parsing %s: %w", cookiePath, jsonErr)
		}
		bundle.Cookies = &c
	case os.IsNotExist(err):
		// no cookie session yet: Cookies stays nil
	default:
		return Bundle{}, fmt.Errorf("reading %s: %w", cookiePath, err)
	}

	return bundle, nil
}
