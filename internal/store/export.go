package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"pricebars/internal/domain"
)

// BarRecord is the Parquet schema used by SnapshotExporter. It mirrors the
// ten canonical bar columns plus the identity and provenance fields, using
// pointer fields so nullable prices round-trip as Parquet nulls.
type BarRecord struct {
	Symbol    string   `parquet:"symbol"`
	Date      string   `parquet:"date"`
	Frequency string   `parquet:"frequency"`
	Provider  string   `parquet:"provider"`
	Open      *float64 `parquet:"open,optional"`
	High      *float64 `parquet:"high,optional"`
	Low       *float64 `parquet:"low,optional"`
	Close     *float64 `parquet:"close,optional"`
	Volume    *float64 `parquet:"volume,optional"`
	AdjOpen   *float64 `parquet:"adj_open,optional"`
	AdjHigh   *float64 `parquet:"adj_high,optional"`
	AdjLow    *float64 `parquet:"adj_low,optional"`
	AdjClose  *float64 `parquet:"adj_close,optional"`
	AdjVolume *float64 `parquet:"adj_volume,optional"`
	FetchedAt int64    `parquet:"fetched_at,timestamp(millisecond)"`
}

// SnapshotExporter writes a read-only, analytics-friendly copy of cached
// bars to Parquet files on disk, one file per (symbol, year). It is not
// part of the retrieval path: the bar store itself never reads these
// files back. It exists so downstream analytics tooling can consume the
// cache without opening the SQLite file directly.
type SnapshotExporter struct {
	store   BarStore
	dataDir string
}

// NewSnapshotExporter creates an exporter that reads from store and writes
// Parquet files rooted at dataDir.
func NewSnapshotExporter(store BarStore, dataDir string) *SnapshotExporter {
	return &SnapshotExporter{store: store, dataDir: dataDir}
}

// ExportSymbol reads every cached bar for (symbol, freq, provider) in
// [start, end] and writes one Parquet file per calendar year at
// <dataDir>/<provider>/<frequency>/<SYMBOL>/<YYYY>.parquet.
func (e *SnapshotExporter) ExportSymbol(ctx context.Context, symbol string, freq domain.Frequency, provider domain.ProviderID, start, end time.Time) error {
	bars, err := e.store.ReadRange(ctx, symbol, freq, provider, start, end)
	if err != nil {
		return fmt.Errorf("reading bars to export: %w", err)
	}
	if len(bars) == 0 {
		return nil
	}

	byYear := make(map[int][]BarRecord)
	for _, b := range bars {
		byYear[b.Date.Year()] = append(byYear[b.Date.Year()], toRecord(b))
	}

	for year, records := range byYear {
		sort.Slice(records, func(i, j int) bool { return records[i].Date < records[j].Date })
		path := e.path(symbol, freq, provider, year)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating export directory: %w", err)
		}
		if err := parquet.WriteFile(path, records); err != nil {
			return fmt.Errorf("writing export file %s: %w", path, err)
		}
	}
	return nil
}

func (e *SnapshotExporter) path(symbol string, freq domain.Frequency, provider domain.ProviderID, year int) string {
	return filepath.Join(e.dataDir, string(provider), string(freq), strings.ToUpper(symbol), fmt.Sprintf("%d.parquet", year))
}

func toRecord(b domain.Bar) BarRecord {
	return BarRecord{
		Symbol:    b.Symbol,
		Date:      b.Date.Format("2006-01-02"),
		Frequency: string(b.Frequency),
		Provider:  string(b.Provider),
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
		AdjOpen:   b.AdjOpen,
		AdjHigh:   b.AdjHigh,
		AdjLow:    b.AdjLow,
		AdjClose:  b.AdjClose,
		AdjVolume: b.AdjVolume,
		FetchedAt: b.FetchedAt.UnixMilli(),
	}
}
