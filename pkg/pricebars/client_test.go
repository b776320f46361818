package pricebars

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pricebars/internal/config"
	"pricebars/internal/domain"
	"pricebars/internal/store"
)

func TestNewOpensStoreAndGetPricesRoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DBPath = filepath.Join(dir, "prices.db")
	cfg.Storage.ConfigDir = dir // no credentials.json/barchart_cookies.json present

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	// No tiingo key and no cookies means AUTO falls through to tiingo, and
	// both explicit selections fail credential-missing before any network
	// call is attempted; this exercises wiring without a live upstream.
	_, err = client.GetPrices(context.Background(), "SPY",
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		domain.SelectTiingo, false)
	if _, ok := err.(*domain.CredentialMissingError); !ok {
		t.Errorf("GetPrices error = %v (%T), want *domain.CredentialMissingError", err, err)
	}
}

func TestExportSnapshotWritesParquetFromCachedBars(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "prices.db")

	seed, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	bar := domain.Bar{
		Symbol: "SPY", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Frequency: domain.Daily, Provider: domain.ProviderBarchart,
		Close:     func() *float64 { v := 470.5; return &v }(),
		FetchedAt: time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC),
	}
	if err := seed.WriteRange(context.Background(), []domain.Bar{bar}); err != nil {
		t.Fatalf("seeding WriteRange: %v", err)
	}
	if err := seed.Close(); err != nil {
		t.Fatalf("closing seed store: %v", err)
	}

	cfg := config.Default()
	cfg.Storage.DBPath = dbPath
	cfg.Storage.ConfigDir = dir

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	exportDir := t.TempDir()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	if err := client.ExportSnapshot(context.Background(), "SPY", domain.ProviderBarchart, start, end, exportDir); err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}

	expected := filepath.Join(exportDir, "barchart", "daily", "SPY", "2024.parquet")
	if _, statErr := os.Stat(expected); statErr != nil {
		t.Errorf("expected export file at %s: %v", expected, statErr)
	}
}

func TestNewRejectsUnwritableStoreDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("not a directory"), 0o600); err != nil {
		t.Fatalf("writing blocker file: %v", err)
	}

	cfg := config.Default()
	cfg.Storage.DBPath = filepath.Join(blocker, "sub", "prices.db") // blocker is a file, not a dir

	if _, err := New(cfg); err == nil {
		t.Error("New with a store path under a non-directory returned no error")
	}
}
