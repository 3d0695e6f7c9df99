package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/mastersync/internal/master"
)

// Postgres is the pgx-backed store.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres parses dsn, applies pool sizing and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string, opts PoolOptions) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) EnsureSchema(ctx context.Context, models []string) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + FreshnessTable + ` (
			category     TEXT PRIMARY KEY,
			last_updated TIMESTAMPTZ NOT NULL,
			record_count BIGINT NOT NULL DEFAULT 0
		)`,
	}
	for _, model := range models {
		if err := checkModel(model); err != nil {
			return err
		}
		table := pgx.Identifier{model}.Sanitize()
		stmts = append(stmts,
			`CREATE TABLE IF NOT EXISTS `+table+` (
				id         BIGSERIAL PRIMARY KEY,
				master_id  TEXT NOT NULL,
				name       TEXT NOT NULL,
				code       TEXT NOT NULL,
				market     TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS `+pgx.Identifier{model + "_code_idx"}.Sanitize()+` ON `+table+` (code)`,
			`CREATE INDEX IF NOT EXISTS `+pgx.Identifier{model + "_name_idx"}.Sanitize()+` ON `+table+` (name)`,
		)
	}

	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Count(ctx context.Context, model string) (int64, error) {
	if err := checkModel(model); err != nil {
		return 0, err
	}
	var n int64
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+pgx.Identifier{model}.Sanitize()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", model, err)
	}
	return n, nil
}

func (p *Postgres) CountMaster(ctx context.Context, model, masterID string) (int64, error) {
	if err := checkModel(model); err != nil {
		return 0, err
	}
	var n int64
	query := `SELECT COUNT(*) FROM ` + pgx.Identifier{model}.Sanitize() + ` WHERE master_id = $1`
	if err := p.pool.QueryRow(ctx, query, masterID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s/%s: %w", model, masterID, err)
	}
	return n, nil
}

func (p *Postgres) DeleteAll(ctx context.Context, model string) (int64, error) {
	if err := checkModel(model); err != nil {
		return 0, err
	}
	tag, err := p.pool.Exec(ctx, `DELETE FROM `+pgx.Identifier{model}.Sanitize())
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", model, err)
	}
	return tag.RowsAffected(), nil
}

// BulkInsert streams records through COPY.
func (p *Postgres) BulkInsert(ctx context.Context, model string, records []master.Record) (int64, error) {
	if err := checkModel(model); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	n, err := p.pool.CopyFrom(ctx,
		pgx.Identifier{model},
		[]string{"master_id", "name", "code", "market"},
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			return []any{r.MasterID, r.Name, r.Code, r.Market}, nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", model, err)
	}
	return n, nil
}

func (p *Postgres) Freshness(ctx context.Context, category string) (master.Freshness, bool, error) {
	fr := master.Freshness{Category: category}
	err := p.pool.QueryRow(ctx,
		`SELECT last_updated, record_count FROM `+FreshnessTable+` WHERE category = $1`,
		category,
	).Scan(&fr.LastUpdated, &fr.RecordCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return master.Freshness{}, false, nil
	}
	if err != nil {
		return master.Freshness{}, false, fmt.Errorf("get freshness %s: %w", category, err)
	}
	return fr, true, nil
}

func (p *Postgres) SetFreshness(ctx context.Context, category string, count int64, at time.Time) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO `+FreshnessTable+` (category, last_updated, record_count)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (category) DO UPDATE
		 SET last_updated = EXCLUDED.last_updated, record_count = EXCLUDED.record_count`,
		category, at, count,
	)
	if err != nil {
		return fmt.Errorf("set freshness %s: %w", category, err)
	}
	return nil
}

func (p *Postgres) ClearFreshness(ctx context.Context, category string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM `+FreshnessTable+` WHERE category = $1`, category); err != nil {
		return fmt.Errorf("clear freshness %s: %w", category, err)
	}
	return nil
}

func (p *Postgres) FindFirst(ctx context.Context, model string, m Match, term string) (master.Record, bool, error) {
	if err := checkModel(model); err != nil {
		return master.Record{}, false, err
	}

	var where string
	arg := term
	switch m {
	case MatchCodeExact:
		where = `code = $1`
	case MatchNameExact:
		where = `name = $1`
	case MatchNamePrefix, MatchNameContains:
		where = `name LIKE $1 ESCAPE '\'`
		arg = likePattern(m, term)
	default:
		return master.Record{}, false, fmt.Errorf("unsupported match %s", m)
	}

	query := `SELECT master_id, name, code, market FROM ` + pgx.Identifier{model}.Sanitize() +
		` WHERE ` + where + ` ORDER BY id LIMIT 1`

	var r master.Record
	err := p.pool.QueryRow(ctx, query, arg).Scan(&r.MasterID, &r.Name, &r.Code, &r.Market)
	if errors.Is(err, pgx.ErrNoRows) {
		return master.Record{}, false, nil
	}
	if err != nil {
		return master.Record{}, false, fmt.Errorf("find in %s (%s): %w", model, m, err)
	}
	return r, true, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
