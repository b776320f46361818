// Package retrieval implements the cache-first retrieval engine: the
// orchestrator that validates a request, consults the bar store, asks the
// interval algebra for gaps, drives the rate limiter around provider
// calls (with fallback under AUTO selection), writes results back
// atomically, and assembles the final provenance-tagged result.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"pricebars/internal/assembler"
	"pricebars/internal/credentials"
	"pricebars/internal/domain"
	"pricebars/internal/interval"
	"pricebars/internal/provider"
	"pricebars/internal/ratelimit"
	"pricebars/internal/store"
)

var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

var validate = validator.New()

// Request is one GetPrices call.
type Request struct {
	Symbol    string           `validate:"required"`
	Start     time.Time        `validate:"required"`
	End       time.Time        `validate:"required"`
	Frequency domain.Frequency `validate:"required,oneof=daily"`
	Selection domain.Selection `validate:"required,oneof=B T AUTO"`
	Refresh   bool
}

// CredentialLoader supplies the immutable per-request credential snapshot.
// It is invoked once per GetPrices call so a freshly captured cookie file
// takes effect on the next call without restarting the process.
type CredentialLoader func() (credentials.Bundle, error)

// Engine drives one GetPrices request end to end against a bar store, a
// set of provider adapters, and their per-provider pacers.
type Engine struct {
	store       store.BarStore
	providers   map[domain.ProviderID]provider.Provider
	pacers      map[domain.ProviderID]ratelimit.Pacer
	credentials CredentialLoader
	logger      *slog.Logger
	now         func() time.Time
}

// NewEngine creates an Engine. providers and pacers must share the same
// key set of domain.ProviderID values the engine is expected to dispatch
// against.
func NewEngine(
	st store.BarStore,
	providers map[domain.ProviderID]provider.Provider,
	pacers map[domain.ProviderID]ratelimit.Pacer,
	loader CredentialLoader,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:       st,
		providers:   providers,
		pacers:      pacers,
		credentials: loader,
		logger:      logger,
		now:         time.Now,
	}
}

// GetPrices resolves req against the cache, fetches whatever is missing,
// and returns the assembled, provenance-tagged result.
func (e *Engine) GetPrices(ctx context.Context, req Request) (domain.Result, error) {
	req.Symbol = domain.NormalizeSymbol(req.Symbol)
	if req.Selection == "" {
		req.Selection = domain.SelectAuto
	}
	if req.Frequency == "" {
		req.Frequency = domain.Daily
	}

	if err := e.validateRequest(req); err != nil {
		return domain.Result{}, err
	}

	bundle, err := e.credentials()
	if err != nil {
		return domain.Result{}, err
	}

	candidates, err := e.candidateProviders(req.Selection, bundle)
	if err != nil {
		return domain.Result{}, err
	}

	requestStart := e.now()
	active := candidates[0]
	remaining := candidates[1:]

	var covered []time.Time
	if !req.Refresh {
		covered, err = e.store.CoveredDates(ctx, req.Symbol, req.Frequency, active, req.Start, req.End)
		if err != nil {
			return domain.Result{}, err
		}
	}
	missing := interval.Missing(interval.Range{Start: req.Start, End: req.End}, covered)

	seenProvider := make(map[domain.ProviderID]bool)
	apiCounts := make(map[domain.ProviderID]int)
	participants := []domain.ProviderID{active}

	for i := 0; i < len(missing); i++ {
		sub := missing[i]
		if err := ctx.Err(); err != nil {
			return domain.Result{}, err
		}

		bars, fetchErr := e.fetchSubInterval(ctx, active, req, sub, bundle, seenProvider)
		if fetchErr != nil {
			if isCredentialStale(fetchErr) && req.Selection == domain.SelectAuto && len(remaining) > 0 {
				e.logger.Warn("provider credentials stale, falling back under AUTO selection",
					"provider", active, "symbol", req.Symbol)
				active = remaining[0]
				remaining = remaining[1:]
				participants = append(participants, active)
				i-- // retry this sub-interval against the new provider
				continue
			}
			return domain.Result{}, fetchErr
		}

		if err := e.store.WriteRange(ctx, bars); err != nil {
			return domain.Result{}, err
		}
		apiCounts[active] += len(bars)
	}

	batches := make(map[domain.ProviderID][]domain.Bar, len(participants))
	for _, p := range participants {
		bars, err := e.store.ReadRange(ctx, req.Symbol, req.Frequency, p, req.Start, req.End)
		if err != nil {
			return domain.Result{}, err
		}
		batches[p] = bars
	}

	merged := assembler.Merge(batches)
	fromCache, fromAPI := assembler.CountByFetchTime(merged, requestStart)

	return domain.Result{
		Bars:      merged,
		Symbol:    req.Symbol,
		Provider:  majorityProvider(apiCounts, active),
		FromCache: fromCache,
		FromAPI:   fromAPI,
		Start:     req.Start,
		End:       req.End,
	}, nil
}

// fetchSubInterval calls the named provider for one gap sub-interval,
// pacing the call first. The first call the engine makes to a provider
// within this request is a new-symbol call; every later call to the same
// provider in the same request (additional gap sub-intervals for the same
// symbol) is a same-symbol call.
func (e *Engine) fetchSubInterval(
	ctx context.Context,
	providerID domain.ProviderID,
	req Request,
	sub interval.Range,
	bundle credentials.Bundle,
	seenProvider map[domain.ProviderID]bool,
) ([]domain.Bar, error) {
	p, ok := e.providers[providerID]
	if !ok {
		return nil, &domain.InvalidInputError{Reason: "no provider adapter registered for " + string(providerID)}
	}
	pacer, ok := e.pacers[providerID]
	if !ok {
		return nil, &domain.InvalidInputError{Reason: "no rate limiter registered for " + string(providerID)}
	}

	var paceErr error
	if seenProvider[providerID] {
		paceErr = pacer.NoteSameSymbolCall(ctx)
	} else {
		paceErr = pacer.NoteNewSymbolCall(ctx)
		seenProvider[providerID] = true
	}
	if paceErr != nil {
		return nil, paceErr
	}

	return p.Fetch(ctx, req.Symbol, req.Frequency, sub.Start, sub.End, bundle)
}

// candidateProviders resolves provider_selection into an ordered list of
// providers to try: one entry for an explicit selection, or barchart then
// tiingo (or just tiingo) for AUTO depending on whether a cookie session
// is present at all. A cookie session older than 24 hours is still tried
// first; staleness only downgrades to a warning, not a veto (the upstream
// 401/403 path is what actually triggers fallback).
func (e *Engine) candidateProviders(selection domain.Selection, bundle credentials.Bundle) ([]domain.ProviderID, error) {
	switch selection {
	case domain.SelectBarchart:
		return []domain.ProviderID{domain.ProviderBarchart}, nil
	case domain.SelectTiingo:
		return []domain.ProviderID{domain.ProviderTiingo}, nil
	case domain.SelectAuto:
		if bundle.HasCookies() {
			if !bundle.HasFreshCookies() {
				e.logger.Warn("barchart cookie session older than 24h, trying it before falling back",
					"provider", domain.ProviderBarchart)
			}
			return []domain.ProviderID{domain.ProviderBarchart, domain.ProviderTiingo}, nil
		}
		return []domain.ProviderID{domain.ProviderTiingo}, nil
	default:
		return nil, &domain.InvalidInputError{Reason: "unsupported provider selection " + string(selection)}
	}
}

// majorityProvider returns the provider that served the most freshly
// fetched bars this request, ties breaking toward tiingo. If no bars were
// fetched this request (full cache hit), it returns fallback.
func majorityProvider(apiCounts map[domain.ProviderID]int, fallback domain.ProviderID) domain.ProviderID {
	best := fallback
	bestCount := -1
	// Iterate tiingo before barchart so an equal count lands on tiingo,
	// the tie-break the spec names explicitly.
	for _, p := range []domain.ProviderID{domain.ProviderTiingo, domain.ProviderBarchart} {
		if count, ok := apiCounts[p]; ok && count > bestCount {
			bestCount = count
			best = p
		}
	}
	return best
}

func isCredentialStale(err error) bool {
	_, ok := err.(*domain.CredentialStaleError)
	return ok
}

// validateRequest checks req against the adapter symbol pattern, the
// date-range bounds, and the closed set of supported frequencies,
// collecting every violation into a single *domain.InvalidInputError so a
// caller like "aapl$" with a reversed range sees both problems named at
// once.
func (e *Engine) validateRequest(req Request) error {
	var reasons []string

	if err := validate.Struct(req); err != nil {
		reasons = append(reasons, err.Error())
	}
	if err := provider.ValidateSymbol(req.Symbol); err != nil {
		reasons = append(reasons, err.Error())
	}
	if req.End.Before(req.Start) {
		reasons = append(reasons, fmt.Sprintf("end %s is before start %s",
			req.End.Format("2006-01-02"), req.Start.Format("2006-01-02")))
	}

	today := domain.NormalizeDate(e.now())
	if domain.NormalizeDate(req.Start).After(today) || domain.NormalizeDate(req.End).After(today) {
		reasons = append(reasons, "date range extends beyond today")
	}
	if domain.NormalizeDate(req.Start).Before(epoch) {
		reasons = append(reasons, "start precedes 1970-01-01")
	}

	if len(reasons) == 0 {
		return nil
	}
	return &domain.InvalidInputError{Reason: strings.Join(reasons, "; ")}
}
