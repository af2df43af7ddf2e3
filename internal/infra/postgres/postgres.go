// Package postgres mirrors the latest snapshot into a Postgres table so
// analysts can query it with plain SQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/ledger-analytics/internal/logger"
	"github.com/dvloznov/ledger-analytics/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_records (
	entity_id     TEXT NOT NULL,
	entity_name   TEXT NOT NULL,
	period        TEXT NOT NULL,
	period_end    DATE NOT NULL,
	account_code  TEXT NOT NULL,
	account_label TEXT NOT NULL DEFAULT '',
	debit         NUMERIC NOT NULL,
	credit        NUMERIC NOT NULL,
	category      TEXT NOT NULL,
	view_tag      TEXT NOT NULL,
	PRIMARY KEY (entity_id, period, account_code)
);

CREATE INDEX IF NOT EXISTS idx_ledger_records_period ON ledger_records(period);

CREATE TABLE IF NOT EXISTS ledger_loads (
	load_id       TEXT PRIMARY KEY,
	built_at      TIMESTAMPTZ NOT NULL,
	table_version TEXT NOT NULL,
	records       INTEGER NOT NULL,
	published_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

var columns = []string{
	"entity_id", "entity_name", "period", "period_end", "account_code",
	"account_label", "debit", "credit", "category", "view_tag",
}

// Store replaces the contents of ledger_records with each published snapshot.
type Store struct {
	Pool *pgxpool.Pool
}

// Open connects to databaseURL and ensures the schema exists.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres.Open: parsing config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("postgres.Open: connecting: %w", err)
	}

	s := &Store{Pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.Pool == nil {
		return errors.New("postgres.EnsureSchema: missing pool")
	}
	if _, err := s.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres.EnsureSchema: %w", err)
	}
	return nil
}

// Name identifies the sink in coverage reports.
func (s *Store) Name() string { return "postgres" }

// Publish swaps the table contents for snap in one transaction, so readers
// see either the previous load or the new one.
func (s *Store) Publish(ctx context.Context, snap *store.Snapshot) error {
	if s.Pool == nil {
		return errors.New("postgres.Publish: missing pool")
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres.Publish: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM ledger_records`); err != nil {
		return fmt.Errorf("postgres.Publish: clearing records: %w", err)
	}

	rows := copyRows(snap)
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"ledger_records"}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("postgres.Publish: copying records: %w", err)
	}

	meta := snap.Meta()
	builtAt := meta.BuiltAt
	if builtAt.IsZero() {
		builtAt = time.Now()
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO ledger_loads (load_id, built_at, table_version, records)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (load_id) DO UPDATE
		SET built_at = EXCLUDED.built_at,
		    table_version = EXCLUDED.table_version,
		    records = EXCLUDED.records,
		    published_at = now()`,
		meta.LoadID, builtAt, meta.TableVersion, n)
	if err != nil {
		return fmt.Errorf("postgres.Publish: recording load: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres.Publish: commit: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Debug().Str("load_id", meta.LoadID).Int64("records", n).Msg("Published snapshot to postgres")
	return nil
}

func copyRows(snap *store.Snapshot) [][]any {
	records := snap.All()
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		tags, _ := snap.Tags(r.AccountCode)
		end := r.Period.EndDate()
		rows = append(rows, []any{
			r.EntityID,
			r.EntityName,
			r.Period.Key(),
			pgtype.Date{Time: time.Date(end.Year, end.Month, end.Day, 0, 0, 0, 0, time.UTC), Valid: true},
			r.AccountCode,
			r.AccountLabel,
			numeric(r.Debit),
			numeric(r.Credit),
			tags.Category,
			string(tags.ViewTag),
		})
	}
	return rows
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}
