package domain

import "fmt"

// InvalidInputError signals a malformed request: bad symbol, reversed date
// range, future date, or unsupported frequency. Never retried.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string { return "invalid input: " + e.Reason }

// CredentialMissingError signals that the chosen provider needs a
// credential absent from the credential bundle. Never retried.
type CredentialMissingError struct {
	Provider ProviderID
	Field    string
	Path     string
}

func (e *CredentialMissingError) Error() string {
	return fmt.Sprintf("credential missing for provider %s: field %q expected in %s", e.Provider, e.Field, e.Path)
}

// CredentialStaleError signals that cookie-session auth was rejected
// upstream (401/403). Under AUTO selection this triggers fallback; under
// explicit selection it is surfaced with remediation.
type CredentialStaleError struct {
	Provider ProviderID
}

func (e *CredentialStaleError) Error() string {
	return fmt.Sprintf("credentials for provider %s are stale: run cookie capture", e.Provider)
}

// ProviderFailureError signals a non-transient upstream error after
// exhausted retries. The body is expected to already be redacted by the
// caller before it is attached here.
type ProviderFailureError struct {
	Provider   ProviderID
	StatusCode int
	Body       string
}

func (e *ProviderFailureError) Error() string {
	return fmt.Sprintf("provider %s failed: status=%d body=%s", e.Provider, e.StatusCode, e.Body)
}

// ParseFailureError signals that an upstream response could not be decoded
// into the expected shape.
type ParseFailureError struct {
	Provider   ProviderID
	Diagnostic string
}

func (e *ParseFailureError) Error() string {
	return fmt.Sprintf("provider %s response parse failure: %s", e.Provider, e.Diagnostic)
}

// StoreCorruptionError signals that the bar store failed an integrity
// check at open time or during a range operation.
type StoreCorruptionError struct {
	Path string
	Hint string
}

func (e *StoreCorruptionError) Error() string {
	return fmt.Sprintf("store corrupted at %s: %s", e.Path, e.Hint)
}
