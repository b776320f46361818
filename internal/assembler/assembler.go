// Package assembler merges the bar batches a retrieval request reads back
// from one or more providers into the single ordered, de-duplicated table
// the engine returns to callers.
package assembler

import (
	"sort"
	"time"

	"pricebars/internal/domain"
)

// Merge combines per-provider bar batches into one ascending, de-duplicated
// list. batches need not be sorted or disjoint: when two batches supply a
// bar for the same date under the same provider, the one with the later
// FetchedAt wins; when they supply it under different providers (only
// possible when AUTO selection fell back mid-request), Provider B's bar
// wins, since it is considered the richer source for equities.
func Merge(batches map[domain.ProviderID][]domain.Bar) []domain.Bar {
	byDate := make(map[int64]domain.Bar)

	for _, bars := range batches {
		for _, bar := range bars {
			key := domain.NormalizeDate(bar.Date).Unix()
			existing, ok := byDate[key]
			if !ok {
				byDate[key] = bar
				continue
			}
			byDate[key] = resolveConflict(existing, bar)
		}
	}

	out := make([]domain.Bar, 0, len(byDate))
	for _, bar := range byDate {
		out = append(out, bar)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// resolveConflict picks between two bars for the same date. Same provider:
// later fetched_at wins. Different providers: barchart wins over tiingo.
func resolveConflict(existing, candidate domain.Bar) domain.Bar {
	if existing.Provider == candidate.Provider {
		if candidate.FetchedAt.After(existing.FetchedAt) {
			return candidate
		}
		return existing
	}
	if candidate.Provider == domain.ProviderBarchart {
		return candidate
	}
	if existing.Provider == domain.ProviderBarchart {
		return existing
	}
	return candidate
}

// CountByFetchTime splits an already-merged, date-sorted bar list into
// from-cache and from-api counts relative to requestStart: a bar whose
// FetchedAt predates requestStart was served from the store prior to this
// call, otherwise it was written during it.
func CountByFetchTime(bars []domain.Bar, requestStart time.Time) (fromCache, fromAPI int) {
	for _, bar := range bars {
		if bar.FetchedAt.Before(requestStart) {
			fromCache++
		} else {
			fromAPI++
		}
	}
	return fromCache, fromAPI
}
