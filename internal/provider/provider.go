// Package provider implements the upstream adapters: Provider B
// (cookie-authenticated, dual-call) and Provider T (token-authenticated,
// single-call). Both satisfy the Provider interface the retrieval engine
// dispatches against, reifying what the original relied on duck typing
// for into an explicit capability with a tagged enumeration of concrete
// implementations.
package provider

import (
	"context"
	"regexp"
	"time"

	"pricebars/internal/credentials"
	"pricebars/internal/domain"
)

// symbolPattern matches the adapter-level symbol constraint shared by
// every provider.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,10}$`)

// ValidateSymbol reports an *domain.InvalidInputError if symbol does not
// match the shared adapter pattern.
func ValidateSymbol(symbol string) error {
	if !symbolPattern.MatchString(symbol) {
		return &domain.InvalidInputError{Reason: "symbol \"" + symbol + "\" does not match [A-Z0-9.-]{1,10}"}
	}
	return nil
}

// Provider is the capability every upstream adapter implements. It is
// purely an I/O concern: pacing and fallback-on-credential-stale are the
// retrieval engine's responsibility, since the engine is the only layer
// that knows when a symbol transition happens across sub-intervals and
// across fallback providers. Fetch returns either a populated bar slice
// or a typed failure; a *domain.CredentialStaleError specifically signals
// to the engine that AUTO selection should fall back to another provider.
type Provider interface {
	// ID identifies the provider in Bar.Provider and Result.Provider.
	ID() domain.ProviderID

	// ProbeCredentials reports whether bundle carries what this provider
	// needs, without making a network call. It returns
	// *domain.CredentialMissingError when the required field is absent.
	ProbeCredentials(bundle credentials.Bundle) error

	// Fetch retrieves bars for symbol over [start, end] at freq.
	Fetch(ctx context.Context, symbol string, freq domain.Frequency, start, end time.Time, bundle credentials.Bundle) ([]domain.Bar, error)
}
