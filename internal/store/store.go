// Package store implements the persistent bar store: a durable,
// key/value-ish table keyed by (symbol, date, frequency, provider) that
// the retrieval engine reads before deciding what to fetch, and writes
// atomically after a successful fetch.
package store

import (
	"context"
	"time"

	"pricebars/internal/domain"
)

// ClearFilter selects which rows Clear removes. A zero-value field means
// "don't filter on this dimension".
type ClearFilter struct {
	Symbol   string
	Provider domain.ProviderID
}

// BarStore is the durable, queryable home for fetched bars.
type BarStore interface {
	// ReadRange returns bars for (symbol, freq, provider) with Date in
	// [start, end], ascending by date.
	ReadRange(ctx context.Context, symbol string, freq domain.Frequency, provider domain.ProviderID, start, end time.Time) ([]domain.Bar, error)

	// CoveredDates returns the sorted set of dates already stored for
	// (symbol, freq, provider) within [start, end]. It is a lighter-weight
	// query than ReadRange, used by the engine before deciding what to
	// fetch.
	CoveredDates(ctx context.Context, symbol string, freq domain.Frequency, provider domain.ProviderID, start, end time.Time) ([]time.Time, error)

	// WriteRange inserts or replaces the given bars in a single atomic
	// transaction. If the transaction fails partway, the store is left
	// unchanged.
	WriteRange(ctx context.Context, bars []domain.Bar) error

	// Clear deletes rows matching the given (optional) filters.
	Clear(ctx context.Context, filter ClearFilter) error

	// Close releases the underlying database handle.
	Close() error
}
