package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pricebars/internal/domain"
)

func ptr(f float64) *float64 { return &f }

func TestOpenCreatesSchema(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "prices.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
}

func TestWriteRangeThenReadRange(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "prices.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	fetchedAt := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	bars := []domain.Bar{
		{
			Symbol: "spy", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Frequency: domain.Daily, Provider: domain.ProviderTiingo,
			Open: ptr(470), High: ptr(471), Low: ptr(469), Close: ptr(470.5), Volume: ptr(1_000_000),
			FetchedAt: fetchedAt,
		},
		{
			Symbol: "SPY", Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			Frequency: domain.Daily, Provider: domain.ProviderTiingo,
			Close: ptr(472), FetchedAt: fetchedAt,
		},
	}

	if err := s.WriteRange(ctx, bars); err != nil {
		t.Fatalf("WriteRange: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	got, err := s.ReadRange(ctx, "SPY", domain.Daily, domain.ProviderTiingo, start, end)
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadRange returned %d bars, want 2", len(got))
	}
	if got[0].Date.After(got[1].Date) {
		t.Errorf("ReadRange not ascending: %v then %v", got[0].Date, got[1].Date)
	}
	if got[0].Symbol != "SPY" {
		t.Errorf("Symbol not normalized to uppercase: %q", got[0].Symbol)
	}
	if got[0].Open == nil || *got[0].Open != 470 {
		t.Errorf("Open = %v, want 470", got[0].Open)
	}
	if got[1].High != nil {
		t.Errorf("High = %v, want nil (never set)", got[1].High)
	}
}

func TestWriteRangeReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "prices.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	date := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	t0 := time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	first := []domain.Bar{{Symbol: "AAPL", Date: date, Frequency: domain.Daily, Provider: domain.ProviderTiingo, Close: ptr(190), FetchedAt: t0}}
	if err := s.WriteRange(ctx, first); err != nil {
		t.Fatalf("WriteRange(first): %v", err)
	}

	second := []domain.Bar{{Symbol: "AAPL", Date: date, Frequency: domain.Daily, Provider: domain.ProviderTiingo, Close: ptr(191), FetchedAt: t1}}
	if err := s.WriteRange(ctx, second); err != nil {
		t.Fatalf("WriteRange(second): %v", err)
	}

	got, err := s.ReadRange(ctx, "AAPL", domain.Daily, domain.ProviderTiingo, date, date)
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ReadRange returned %d rows, want exactly 1 (replace not append)", len(got))
	}
	if *got[0].Close != 191 {
		t.Errorf("Close = %v, want 191 (latest write should win)", *got[0].Close)
	}
	if !got[0].FetchedAt.Equal(t1) {
		t.Errorf("FetchedAt = %v, want %v", got[0].FetchedAt, t1)
	}
}

func TestCoveredDates(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "prices.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "SPY", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Frequency: domain.Daily, Provider: domain.ProviderTiingo, Close: ptr(1), FetchedAt: time.Now()},
		{Symbol: "SPY", Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), Frequency: domain.Daily, Provider: domain.ProviderTiingo, Close: ptr(1), FetchedAt: time.Now()},
	}
	if err := s.WriteRange(ctx, bars); err != nil {
		t.Fatalf("WriteRange: %v", err)
	}

	got, err := s.CoveredDates(ctx, "SPY", domain.Daily, domain.ProviderTiingo, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CoveredDates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("CoveredDates returned %d dates, want 2", len(got))
	}
}

func TestClearWithSymbolFilter(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "prices.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "SPY", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Frequency: domain.Daily, Provider: domain.ProviderTiingo, Close: ptr(1), FetchedAt: time.Now()},
		{Symbol: "QQQ", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Frequency: domain.Daily, Provider: domain.ProviderTiingo, Close: ptr(1), FetchedAt: time.Now()},
	}
	if err := s.WriteRange(ctx, bars); err != nil {
		t.Fatalf("WriteRange: %v", err)
	}

	if err := s.Clear(ctx, ClearFilter{Symbol: "SPY"}); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	spyBars, _ := s.ReadRange(ctx, "SPY", domain.Daily, domain.ProviderTiingo, start, end)
	if len(spyBars) != 0 {
		t.Errorf("SPY bars still present after Clear: %d", len(spyBars))
	}
	qqqBars, _ := s.ReadRange(ctx, "QQQ", domain.Daily, domain.ProviderTiingo, start, end)
	if len(qqqBars) != 1 {
		t.Errorf("QQQ bars affected by Clear(Symbol=SPY): %d", len(qqqBars))
	}
}

func TestWriteRangeAtomicOnFailure(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "prices.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	good := []domain.Bar{{Symbol: "SPY", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Frequency: domain.Daily, Provider: domain.ProviderTiingo, Close: ptr(1), FetchedAt: time.Now()}}
	if err := s.WriteRange(ctx, good); err != nil {
		t.Fatalf("WriteRange(good): %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	bad := []domain.Bar{{Symbol: "SPY", Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Frequency: domain.Daily, Provider: domain.ProviderTiingo, Close: ptr(2), FetchedAt: time.Now()}}
	_ = s.WriteRange(cancelled, bad) // expected to fail because the context is already cancelled

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	got, err := s.ReadRange(ctx, "SPY", domain.Daily, domain.ProviderTiingo, start, end)
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("store mutated by failed WriteRange: got %d bars, want 1", len(got))
	}
}
