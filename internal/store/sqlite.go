package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"pricebars/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ BarStore = (*SQLiteStore)(nil)

const schemaVersion = 1

// SQLiteStore implements BarStore backed by an embedded SQLite database,
// following the schema in spec §4.2: one table keyed by
// (symbol, date, frequency, provider), ten nullable numeric columns, and a
// fetched_at instant.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Open creates the database file and schema if absent, or opens an
// existing one. An existing file that fails its integrity check is
// reported as a StoreCorruptionError naming the file and a recovery hint.
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	db.SetMaxOpenConns(1) // cross-process/concurrent-writer safety is out of scope; serialize in-process too.

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.checkIntegrity(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_meta (
		version INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bars (
		symbol      TEXT NOT NULL,
		date        TEXT NOT NULL,
		frequency   TEXT NOT NULL,
		provider    TEXT NOT NULL,
		open        REAL,
		high        REAL,
		low         REAL,
		close       REAL,
		volume      REAL,
		adj_open    REAL,
		adj_high    REAL,
		adj_low     REAL,
		adj_close   REAL,
		adj_volume  REAL,
		fetched_at  TEXT NOT NULL,
		PRIMARY KEY (symbol, date, frequency, provider)
	);

	CREATE INDEX IF NOT EXISTS idx_bars_symbol_date ON bars(symbol, date);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_meta").Scan(&count); err != nil {
		return fmt.Errorf("reading schema_meta: %w", err)
	}
	if count == 0 {
		if _, err := s.db.Exec("INSERT INTO schema_meta (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("seeding schema_meta: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) checkIntegrity() error {
	var result string
	if err := s.db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return &domain.StoreCorruptionError{Path: s.path, Hint: fmt.Sprintf("integrity_check failed to run: %v; delete the file and retry", err)}
	}
	if result != "ok" {
		return &domain.StoreCorruptionError{Path: s.path, Hint: fmt.Sprintf("integrity_check reported %q; delete the file and retry", result)}
	}

	var version int
	if err := s.db.QueryRow("SELECT version FROM schema_meta LIMIT 1").Scan(&version); err != nil {
		return &domain.StoreCorruptionError{Path: s.path, Hint: "schema_meta missing or unreadable; delete the file and retry"}
	}
	if version != schemaVersion {
		return &domain.StoreCorruptionError{Path: s.path, Hint: fmt.Sprintf("unsupported schema version %d; delete the file and retry", version)}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReadRange returns bars for (symbol, freq, provider) with Date in
// [start, end], ascending by date.
func (s *SQLiteStore) ReadRange(ctx context.Context, symbol string, freq domain.Frequency, provider domain.ProviderID, start, end time.Time) ([]domain.Bar, error) {
	symbol = domain.NormalizeSymbol(symbol)
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume, adj_open, adj_high, adj_low, adj_close, adj_volume, fetched_at
		FROM bars
		WHERE symbol = ? AND frequency = ? AND provider = ? AND date BETWEEN ? AND ?
		ORDER BY date ASC
	`, symbol, string(freq), string(provider), dateKey(start), dateKey(end))
	if err != nil {
		return nil, s.wrapQueryErr(err)
	}
	defer rows.Close()

	var out []domain.Bar
	for rows.Next() {
		var dateStr, fetchedAtStr string
		var open, high, low, close, volume, adjOpen, adjHigh, adjLow, adjClose, adjVolume sql.NullFloat64
		if err := rows.Scan(&dateStr, &open, &high, &low, &close, &volume, &adjOpen, &adjHigh, &adjLow, &adjClose, &adjVolume, &fetchedAtStr); err != nil {
			return nil, s.wrapQueryErr(err)
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, &domain.StoreCorruptionError{Path: s.path, Hint: fmt.Sprintf("unparsable date %q; delete the file and retry", dateStr)}
		}
		fetchedAt, err := time.Parse(time.RFC3339Nano, fetchedAtStr)
		if err != nil {
			return nil, &domain.StoreCorruptionError{Path: s.path, Hint: fmt.Sprintf("unparsable fetched_at %q; delete the file and retry", fetchedAtStr)}
		}
		out = append(out, domain.Bar{
			Symbol:    symbol,
			Date:      date,
			Frequency: freq,
			Provider:  provider,
			Open:      nullableToPtr(open),
			High:      nullableToPtr(high),
			Low:       nullableToPtr(low),
			Close:     nullableToPtr(close),
			Volume:    nullableToPtr(volume),
			AdjOpen:   nullableToPtr(adjOpen),
			AdjHigh:   nullableToPtr(adjHigh),
			AdjLow:    nullableToPtr(adjLow),
			AdjClose:  nullableToPtr(adjClose),
			AdjVolume: nullableToPtr(adjVolume),
			FetchedAt: fetchedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrapQueryErr(err)
	}
	return out, nil
}

// CoveredDates returns the sorted set of dates already stored for
// (symbol, freq, provider) within [start, end].
func (s *SQLiteStore) CoveredDates(ctx context.Context, symbol string, freq domain.Frequency, provider domain.ProviderID, start, end time.Time) ([]time.Time, error) {
	symbol = domain.NormalizeSymbol(symbol)
	rows, err := s.db.QueryContext(ctx, `
		SELECT date FROM bars
		WHERE symbol = ? AND frequency = ? AND provider = ? AND date BETWEEN ? AND ?
		ORDER BY date ASC
	`, symbol, string(freq), string(provider), dateKey(start), dateKey(end))
	if err != nil {
		return nil, s.wrapQueryErr(err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var dateStr string
		if err := rows.Scan(&dateStr); err != nil {
			return nil, s.wrapQueryErr(err)
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, &domain.StoreCorruptionError{Path: s.path, Hint: fmt.Sprintf("unparsable date %q; delete the file and retry", dateStr)}
		}
		out = append(out, date)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, rows.Err()
}

// WriteRange inserts or replaces the given bars in a single atomic
// transaction. An error leaves the store unchanged.
func (s *SQLiteStore) WriteRange(ctx context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning write transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (symbol, date, frequency, provider, open, high, low, close, volume, adj_open, adj_high, adj_low, adj_close, adj_volume, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, date, frequency, provider) DO UPDATE SET
			open=excluded.open, high=excluded.high, low=excluded.low, close=excluded.close, volume=excluded.volume,
			adj_open=excluded.adj_open, adj_high=excluded.adj_high, adj_low=excluded.adj_low, adj_close=excluded.adj_close, adj_volume=excluded.adj_volume,
			fetched_at=excluded.fetched_at
	`)
	if err != nil {
		return fmt.Errorf("preparing write statement: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx,
			domain.NormalizeSymbol(b.Symbol), dateKey(b.Date), string(b.Frequency), string(b.Provider),
			ptrToNullable(b.Open), ptrToNullable(b.High), ptrToNullable(b.Low), ptrToNullable(b.Close), ptrToNullable(b.Volume),
			ptrToNullable(b.AdjOpen), ptrToNullable(b.AdjHigh), ptrToNullable(b.AdjLow), ptrToNullable(b.AdjClose), ptrToNullable(b.AdjVolume),
			b.FetchedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("writing bar %s/%s: %w", b.Symbol, dateKey(b.Date), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing write transaction: %w", err)
	}
	return nil
}

// Clear deletes rows matching the given (optional) filters.
func (s *SQLiteStore) Clear(ctx context.Context, filter ClearFilter) error {
	query := "DELETE FROM bars WHERE 1=1"
	var args []any
	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, domain.NormalizeSymbol(filter.Symbol))
	}
	if filter.Provider != "" {
		query += " AND provider = ?"
		args = append(args, string(filter.Provider))
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing bars: %w", err)
	}
	return nil
}

func (s *SQLiteStore) wrapQueryErr(err error) error {
	return fmt.Errorf("store query on %s: %w", s.path, err)
}

func dateKey(t time.Time) string {
	return domain.NormalizeDate(t).Format("2006-01-02")
}

func nullableToPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func ptrToNullable(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}
