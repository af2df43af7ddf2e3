// Package sqlite keeps the last good snapshot on local disk so a cold start
// can serve data before the first load finishes.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/ledger-analytics/internal/ledger"
	"github.com/dvloznov/ledger-analytics/internal/store"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// ErrEmpty is returned by Load when nothing has been saved yet.
var ErrEmpty = errors.New("snapshot cache is empty")

const schema = `
CREATE TABLE IF NOT EXISTS cached_records (
	entity_id     TEXT NOT NULL,
	entity_name   TEXT NOT NULL,
	period        TEXT NOT NULL,
	account_code  TEXT NOT NULL,
	account_label TEXT NOT NULL,
	debit         TEXT NOT NULL,
	credit        TEXT NOT NULL,
	PRIMARY KEY (entity_id, period, account_code)
);

CREATE TABLE IF NOT EXISTS cached_meta (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	load_id       TEXT NOT NULL,
	built_at      TEXT NOT NULL,
	table_version TEXT NOT NULL,
	sources_json  TEXT NOT NULL
);
`

// Cache stores one snapshot at a time.
// Use ":memory:" for an in-memory database.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache at path.
func Open(path string) (*Cache, error) {
	dsn := path
	if !strings.HasPrefix(path, ":memory:") {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.Open: migrating: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Name identifies the sink in coverage reports.
func (c *Cache) Name() string { return "sqlite-cache" }

// Publish saves snap, replacing whatever was cached.
func (c *Cache) Publish(ctx context.Context, snap *store.Snapshot) error {
	return c.Save(ctx, snap.All(), snap.Meta())
}

// Save replaces the cached snapshot with records and meta.
func (c *Cache) Save(ctx context.Context, records []ledger.Record, meta store.Meta) error {
	sources, err := json.Marshal(meta.Sources)
	if err != nil {
		return fmt.Errorf("Cache.Save: encoding sources: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Cache.Save: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM cached_records`); err != nil {
		return fmt.Errorf("Cache.Save: clearing records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO cached_records
			(entity_id, entity_name, period, account_code, account_label, debit, credit)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("Cache.Save: preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.EntityID, r.EntityName, r.Period.Key(), r.AccountCode, r.AccountLabel,
			r.Debit.String(), r.Credit.String())
		if err != nil {
			return fmt.Errorf("Cache.Save: inserting %s/%s/%s: %w", r.EntityID, r.Period, r.AccountCode, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO cached_meta (id, load_id, built_at, table_version, sources_json)
		VALUES (1, ?, ?, ?, ?)`,
		meta.LoadID, meta.BuiltAt.UTC().Format(time.RFC3339Nano), meta.TableVersion, string(sources))
	if err != nil {
		return fmt.Errorf("Cache.Save: writing meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Cache.Save: commit: %w", err)
	}
	return nil
}

// Load returns the cached records and meta, or ErrEmpty.
func (c *Cache) Load(ctx context.Context) ([]ledger.Record, store.Meta, error) {
	var (
		meta    store.Meta
		builtAt string
		sources string
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT load_id, built_at, table_version, sources_json FROM cached_meta WHERE id = 1`).
		Scan(&meta.LoadID, &builtAt, &meta.TableVersion, &sources)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.Meta{}, ErrEmpty
	}
	if err != nil {
		return nil, store.Meta{}, fmt.Errorf("Cache.Load: reading meta: %w", err)
	}
	if meta.BuiltAt, err = time.Parse(time.RFC3339Nano, builtAt); err != nil {
		return nil, store.Meta{}, fmt.Errorf("Cache.Load: parsing built_at: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &meta.Sources); err != nil {
		return nil, store.Meta{}, fmt.Errorf("Cache.Load: decoding sources: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT entity_id, entity_name, period, account_code, account_label, debit, credit
		FROM cached_records
		ORDER BY period, entity_id, account_code`)
	if err != nil {
		return nil, store.Meta{}, fmt.Errorf("Cache.Load: querying records: %w", err)
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		var (
			r                     ledger.Record
			period, debit, credit string
		)
		if err := rows.Scan(&r.EntityID, &r.EntityName, &period, &r.AccountCode, &r.AccountLabel, &debit, &credit); err != nil {
			return nil, store.Meta{}, fmt.Errorf("Cache.Load: scanning record: %w", err)
		}
		if r.Period, err = ledger.ParsePeriod(period); err != nil {
			return nil, store.Meta{}, fmt.Errorf("Cache.Load: %w", err)
		}
		if r.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, store.Meta{}, fmt.Errorf("Cache.Load: debit: %w", err)
		}
		if r.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, store.Meta{}, fmt.Errorf("Cache.Load: credit: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Meta{}, fmt.Errorf("Cache.Load: %w", err)
	}
	if len(records) == 0 {
		return nil, store.Meta{}, ErrEmpty
	}

	return records, meta, nil
}
