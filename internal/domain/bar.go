// Package domain defines the core value types shared across the retrieval
// engine, the bar store, the rate limiter, and the provider adapters.
package domain

import (
	"strings"
	"time"
)

// Frequency enumerates the supported bar frequencies. Only Daily is
// implemented; the type exists so the surface is ready for future
// frequencies without changing call signatures.
type Frequency string

// Daily is the only supported Frequency.
const Daily Frequency = "daily"

// ProviderID identifies a concrete upstream provider.
type ProviderID string

const (
	// ProviderBarchart is the cookie-authenticated, dual-call provider (B).
	ProviderBarchart ProviderID = "barchart"
	// ProviderTiingo is the token-authenticated, single-call provider (T).
	ProviderTiingo ProviderID = "tiingo"
)

// Selection is the caller's provider preference for a GetPrices call.
type Selection string

const (
	SelectBarchart Selection = "B"
	SelectTiingo   Selection = "T"
	SelectAuto     Selection = "AUTO"
)

// Bar is a single trading-day OHLCV record for one symbol from one
// provider. Identity is the (Symbol, Date, Frequency, Provider) tuple.
// Each numeric field is a pointer so that a field the provider does not
// supply can be represented as null rather than zero.
type Bar struct {
	Symbol    string
	Date      time.Time // calendar date, UTC midnight, no time-of-day meaning
	Frequency Frequency
	Provider  ProviderID

	Open      *float64
	High      *float64
	Low       *float64
	Close     *float64
	Volume    *float64
	AdjOpen   *float64
	AdjHigh   *float64
	AdjLow    *float64
	AdjClose  *float64
	AdjVolume *float64

	FetchedAt time.Time
}

// Key returns the 4-tuple that uniquely identifies this bar.
func (b Bar) Key() BarKey {
	return BarKey{
		Symbol:    b.Symbol,
		Date:      NormalizeDate(b.Date),
		Frequency: b.Frequency,
		Provider:  b.Provider,
	}
}

// BarKey is the identity tuple for a Bar.
type BarKey struct {
	Symbol    string
	Date      time.Time
	Frequency Frequency
	Provider  ProviderID
}

// NormalizeDate strips time-of-day and location, returning a UTC
// midnight-anchored date so two timestamps on the same calendar day always
// compare equal regardless of how they were constructed.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeSymbol upper-cases a symbol the way every provider and the
// store expect it to be stored and compared.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(symbol)
}
