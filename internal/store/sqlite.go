package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver

	"github.com/JonMunkholm/mastersync/internal/master"
)

// SQLite is the embedded store. It holds a single connection so that an
// in-memory database is shared by every caller.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens path, which may be ":memory:".
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) EnsureSchema(ctx context.Context, models []string) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + FreshnessTable + ` (
			category     TEXT PRIMARY KEY,
			last_updated TEXT NOT NULL,
			record_count INTEGER NOT NULL DEFAULT 0
		)`,
	}
	for _, model := range models {
		if err := checkModel(model); err != nil {
			return err
		}
		table := quoteIdentifier(model)
		stmts = append(stmts,
			`CREATE TABLE IF NOT EXISTS `+table+` (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				master_id  TEXT NOT NULL,
				name       TEXT NOT NULL,
				code       TEXT NOT NULL,
				market     TEXT NOT NULL,
				created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS `+quoteIdentifier(model+"_code_idx")+` ON `+table+` (code)`,
		)
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Count(ctx context.Context, model string) (int64, error) {
	if err := checkModel(model); err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quoteIdentifier(model)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", model, err)
	}
	return n, nil
}

func (s *SQLite) CountMaster(ctx context.Context, model, masterID string) (int64, error) {
	if err := checkModel(model); err != nil {
		return 0, err
	}
	var n int64
	query := `SELECT COUNT(*) FROM ` + quoteIdentifier(model) + ` WHERE master_id = ?`
	if err := s.db.QueryRowContext(ctx, query, masterID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s/%s: %w", model, masterID, err)
	}
	return n, nil
}

func (s *SQLite) DeleteAll(ctx context.Context, model string) (int64, error) {
	if err := checkModel(model); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+quoteIdentifier(model))
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", model, err)
	}
	return res.RowsAffected()
}

// BulkInsert writes records in one transaction.
func (s *SQLite) BulkInsert(ctx context.Context, model string, records []master.Record) (int64, error) {
	if err := checkModel(model); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert %s: %w", model, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO `+quoteIdentifier(model)+` (master_id, name, code, market) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert %s: %w", model, err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.MasterID, r.Name, r.Code, r.Market); err != nil {
			return 0, fmt.Errorf("insert into %s: %w", model, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert %s: %w", model, err)
	}
	return int64(len(records)), nil
}

func (s *SQLite) Freshness(ctx context.Context, category string) (master.Freshness, bool, error) {
	var (
		raw string
		fr  = master.Freshness{Category: category}
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT last_updated, record_count FROM `+FreshnessTable+` WHERE category = ?`,
		category,
	).Scan(&raw, &fr.RecordCount)
	if errors.Is(err, sql.ErrNoRows) {
		return master.Freshness{}, false, nil
	}
	if err != nil {
		return master.Freshness{}, false, fmt.Errorf("get freshness %s: %w", category, err)
	}

	fr.LastUpdated, err = time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return master.Freshness{}, false, fmt.Errorf("parse freshness %s: %w", category, err)
	}
	return fr, true, nil
}

func (s *SQLite) SetFreshness(ctx context.Context, category string, count int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+FreshnessTable+` (category, last_updated, record_count)
		 VALUES (?, ?, ?)
		 ON CONFLICT (category) DO UPDATE
		 SET last_updated = excluded.last_updated, record_count = excluded.record_count`,
		category, at.Format(time.RFC3339Nano), count,
	)
	if err != nil {
		return fmt.Errorf("set freshness %s: %w", category, err)
	}
	return nil
}

// GLOB is case-sensitive like Postgres LIKE; SQLite's LIKE is not.
var globEscaper = strings.NewReplacer("[", "[[]", "*", "[*]", "?", "[?]")

func (s *SQLite) ClearFreshness(ctx context.Context, category string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+FreshnessTable+` WHERE category = ?`, category); err != nil {
		return fmt.Errorf("clear freshness %s: %w", category, err)
	}
	return nil
}

func (s *SQLite) FindFirst(ctx context.Context, model string, m Match, term string) (master.Record, bool, error) {
	if err := checkModel(model); err != nil {
		return master.Record{}, false, err
	}

	var where string
	arg := term
	switch m {
	case MatchCodeExact:
		where = `code = ?`
	case MatchNameExact:
		where = `name = ?`
	case MatchNamePrefix:
		where = `name GLOB ?`
		arg = globEscaper.Replace(term) + "*"
	case MatchNameContains:
		where = `name GLOB ?`
		arg = "*" + globEscaper.Replace(term) + "*"
	default:
		return master.Record{}, false, fmt.Errorf("unsupported match %s", m)
	}

	query := `SELECT master_id, name, code, market FROM ` + quoteIdentifier(model) +
		` WHERE ` + where + ` ORDER BY id LIMIT 1`

	var r master.Record
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&r.MasterID, &r.Name, &r.Code, &r.Market)
	if errors.Is(err, sql.ErrNoRows) {
		return master.Record{}, false, nil
	}
	if err != nil {
		return master.Record{}, false, fmt.Errorf("find in %s (%s): %w", model, m, err)
	}
	return r, true, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
