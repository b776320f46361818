// Package ratelimit implements the per-provider call pacing the retrieval
// engine applies before each outbound request, so a burst of gap-fill
// fetches never exceeds what a provider's unwritten rate policy tolerates.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Pacer is consulted by the retrieval engine before every provider call.
// The engine calls NoteNewSymbolCall before its first call to a provider
// within a request, and NoteSameSymbolCall before each later call to that
// provider in the same request (further gap sub-intervals of the same
// symbol). The barchart adapter issues its adjusted/unadjusted pair inside
// one Fetch, and that pair does not pass through a Pacer.
type Pacer interface {
	NoteSameSymbolCall(ctx context.Context) error
	NoteNewSymbolCall(ctx context.Context) error
}

// sleeper is swapped out in tests so pacing logic can be verified without
// burning wall-clock time.
type sleeper func(ctx context.Context, d time.Duration) error

func realSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BarchartPacer implements barchart's observed pacing tolerance: calls that
// repeat the previous symbol cost nothing,
// a new symbol costs a fixed inter-symbol delay, and every N new-symbol
// calls also pay a long pause. With interSymbolDelay=2s, longPauseEvery=10
// and longPause=30s, the cumulative wait before the Nth new-symbol call is
// 2*(N-1) + 30*floor((N-1)/10) seconds.
type BarchartPacer struct {
	interSymbolDelay time.Duration
	longPauseEvery   int
	longPause        time.Duration
	sleep            sleeper

	mu    sync.Mutex
	count int
}

// NewBarchartPacer creates a BarchartPacer with the given delays.
func NewBarchartPacer(interSymbolDelay, longPause time.Duration, longPauseEvery int) *BarchartPacer {
	return &BarchartPacer{
		interSymbolDelay: interSymbolDelay,
		longPauseEvery:   longPauseEvery,
		longPause:        longPause,
		sleep:            realSleep,
	}
}

// NoteSameSymbolCall is a no-op: barchart tolerates back-to-back calls for
// the same symbol with zero delay.
func (p *BarchartPacer) NoteSameSymbolCall(ctx context.Context) error {
	return nil
}

// NoteNewSymbolCall blocks for the inter-symbol delay, and additionally for
// the long pause every longPauseEvery new-symbol calls.
func (p *BarchartPacer) NoteNewSymbolCall(ctx context.Context) error {
	p.mu.Lock()
	count := p.count
	p.count++
	p.mu.Unlock()

	if count == 0 {
		return nil
	}
	if err := p.sleep(ctx, p.interSymbolDelay); err != nil {
		return err
	}
	if p.longPauseEvery > 0 && count%p.longPauseEvery == 0 {
		if err := p.sleep(ctx, p.longPause); err != nil {
			return err
		}
	}
	return nil
}

// TiingoPacer implements tiingo's simpler per-call spacing: every call,
// same symbol or not, is spaced by a fixed delay. A logger is notified
// once the number of calls in the current process crosses warnThreshold,
// since tiingo's daily quota is enforced server-side and the engine has
// no way to query remaining quota directly.
type TiingoPacer struct {
	callDelay     time.Duration
	warnThreshold int
	logger        *slog.Logger
	sleep         sleeper

	mu      sync.Mutex
	count   int
	warned  bool
	started bool
}

// NewTiingoPacer creates a TiingoPacer. warnThreshold of 0 disables the
// quota warning.
func NewTiingoPacer(callDelay time.Duration, warnThreshold int, logger *slog.Logger) *TiingoPacer {
	if logger == nil {
		logger = slog.Default()
	}
	return &TiingoPacer{
		callDelay:     callDelay,
		warnThreshold: warnThreshold,
		logger:        logger,
		sleep:         realSleep,
	}
}

// NoteSameSymbolCall applies the same fixed spacing as NoteNewSymbolCall:
// tiingo has no symbol-aware discount.
func (p *TiingoPacer) NoteSameSymbolCall(ctx context.Context) error {
	return p.wait(ctx)
}

// NoteNewSymbolCall applies the fixed per-call spacing.
func (p *TiingoPacer) NoteNewSymbolCall(ctx context.Context) error {
	return p.wait(ctx)
}

func (p *TiingoPacer) wait(ctx context.Context) error {
	p.mu.Lock()
	first := !p.started
	p.started = true
	p.count++
	count := p.count
	warn := p.warnThreshold > 0 && count == p.warnThreshold && !p.warned
	if warn {
		p.warned = true
	}
	p.mu.Unlock()

	if warn {
		p.logger.Warn("tiingo call count approaching soft quota threshold", "calls", count, "threshold", p.warnThreshold)
	}
	if first {
		return nil
	}
	return p.sleep(ctx, p.callDelay)
}
