// Package pricebars is the programmatic entry point: an in-process client
// that wires together the bar store, provider adapters, and rate limiters
// behind the single GetPrices call the rest of the system is built around.
package pricebars

import (
	"context"
	"log/slog"
	"time"

	"pricebars/internal/config"
	"pricebars/internal/credentials"
	"pricebars/internal/domain"
	"pricebars/internal/provider"
	"pricebars/internal/ratelimit"
	"pricebars/internal/retrieval"
	"pricebars/internal/store"
	"pricebars/internal/util"
)

// Request is the caller-facing mirror of retrieval.Request; re-exported
// here so callers of this package never need to import internal/retrieval
// directly.
type Request = retrieval.Request

// Result is the caller-facing mirror of domain.Result.
type Result = domain.Result

// Client is the SDK surface: New wires an Engine from a Config, and
// GetPrices, ExportSnapshot and Close are the operations it exposes.
type Client struct {
	engine *retrieval.Engine
	store  store.BarStore
	logger *slog.Logger
}

// New builds a Client from cfg: opens (or creates) the bar store at
// cfg.Storage.DBPath, constructs the barchart and tiingo provider adapters
// and their pacers, and wires a credential loader that re-reads
// cfg.Storage.ConfigDir on every call.
func New(cfg *config.Config) (*Client, error) {
	logger := util.NewLogger(cfg.Logging.Level)
	logger = slog.New(util.NewRedactingHandler(logger.Handler()))

	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	retry := provider.RetryPolicy{
		Attempts:  cfg.HTTP.RetryAttempts,
		BaseDelay: cfg.HTTP.RetryBackoffBase,
		CapDelay:  cfg.HTTP.RetryBackoffCap,
	}
	providers := map[domain.ProviderID]provider.Provider{
		domain.ProviderBarchart: provider.NewBarchartProvider("https://www.barchart.com", cfg.HTTP.Timeout, retry),
		domain.ProviderTiingo:   provider.NewTiingoProvider("https://api.tiingo.com", cfg.HTTP.Timeout, retry),
	}
	pacers := map[domain.ProviderID]ratelimit.Pacer{
		domain.ProviderBarchart: ratelimit.NewBarchartPacer(
			cfg.RateLimit.InterRequestDelay,
			cfg.RateLimit.LongPauseSeconds,
			cfg.RateLimit.LongPauseEveryNCalls,
		),
		domain.ProviderTiingo: ratelimit.NewTiingoPacer(
			cfg.RateLimit.InterRequestDelay,
			cfg.RateLimit.TiingoRPMWarnThreshold,
			logger,
		),
	}

	configDir := cfg.Storage.ConfigDir
	loader := func() (credentials.Bundle, error) {
		return credentials.Load(configDir)
	}

	engine := retrieval.NewEngine(st, providers, pacers, loader, logger)

	return &Client{engine: engine, store: st, logger: logger}, nil
}

// GetPrices retrieves bars for symbol over [start, end], consulting the
// cache first and fetching only the gaps from the chosen provider.
func (c *Client) GetPrices(ctx context.Context, symbol string, start, end time.Time, selection domain.Selection, refresh bool) (Result, error) {
	return c.engine.GetPrices(ctx, Request{
		Symbol:    symbol,
		Start:     start,
		End:       end,
		Frequency: domain.Daily,
		Selection: selection,
		Refresh:   refresh,
	})
}

// ExportSnapshot writes the cached bars for symbol over [start, end] to
// year-partitioned Parquet files under dataDir, for downstream analytics
// tooling that would rather not open the SQLite file directly.
func (c *Client) ExportSnapshot(ctx context.Context, symbol string, provider domain.ProviderID, start, end time.Time, dataDir string) error {
	exporter := store.NewSnapshotExporter(c.store, dataDir)
	return exporter.ExportSymbol(ctx, symbol, domain.Daily, provider, start, end)
}

// Close releases the underlying bar store handle.
func (c *Client) Close() error {
	return c.store.Close()
}
