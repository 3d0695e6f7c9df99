// Package store persists normalized instruments and freshness records.
//
// Two implementations share one contract: Postgres (pgx) for deployments and
// SQLite for local runs and tests. Every table name is a catalogue model that
// has already been validated as a plain identifier; it is still quoted.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/JonMunkholm/mastersync/internal/master"
)

// FreshnessTable holds one freshness record per tool.
const FreshnessTable = "master_freshness"

// ErrInvalidModel is returned for a model name that is not a plain identifier.
var ErrInvalidModel = errors.New("invalid model name")

// Match selects a lookup tier.
type Match int

const (
	MatchCodeExact Match = iota
	MatchNameExact
	MatchNamePrefix
	MatchNameContains
)

// Tiers lists the lookup tiers in priority order.
var Tiers = []Match{MatchCodeExact, MatchNameExact, MatchNamePrefix, MatchNameContains}

func (m Match) String() string {
	switch m {
	case MatchCodeExact:
		return "code_exact"
	case MatchNameExact:
		return "name_exact"
	case MatchNamePrefix:
		return "name_prefix"
	case MatchNameContains:
		return "name_contains"
	default:
		return fmt.Sprintf("match(%d)", int(m))
	}
}

// Store is the persisted instrument store.
type Store interface {
	// EnsureSchema creates the instrument tables and the freshness table.
	EnsureSchema(ctx context.Context, models []string) error

	Count(ctx context.Context, model string) (int64, error)
	CountMaster(ctx context.Context, model, masterID string) (int64, error)

	// DeleteAll removes every row of model and returns how many were removed.
	DeleteAll(ctx context.Context, model string) (int64, error)

	// BulkInsert appends records to model and returns how many were written.
	BulkInsert(ctx context.Context, model string, records []master.Record) (int64, error)

	// Freshness returns the record for category; ok is false when none exists.
	Freshness(ctx context.Context, category string) (fr master.Freshness, ok bool, err error)
	SetFreshness(ctx context.Context, category string, count int64, at time.Time) error
	// ClearFreshness removes the record for category, making it stale.
	ClearFreshness(ctx context.Context, category string) error

	// FindFirst returns the first row of model, in insertion order, matching
	// term under m.
	FindFirst(ctx context.Context, model string, m Match, term string) (master.Record, bool, error)

	Ping(ctx context.Context) error
	Close() error
}

// Drivers accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to the store selected by driver.
func Open(ctx context.Context, driver, dsn string, opts PoolOptions) (Store, error) {
	switch driver {
	case DriverPostgres:
		pg, err := OpenPostgres(ctx, dsn, opts)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case DriverSQLite:
		lite, err := OpenSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return lite, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// PoolOptions sizes the Postgres connection pool.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

var modelRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func checkModel(model string) error {
	if !modelRe.MatchString(model) {
		return fmt.Errorf("%w: %q", ErrInvalidModel, model)
	}
	return nil
}

// quoteIdentifier quotes a SQL identifier, doubling embedded quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a LIKE pattern (escape character '\') for m.
func likePattern(m Match, term string) string {
	esc := likeEscaper.Replace(term)
	switch m {
	case MatchNamePrefix:
		return esc + "%"
	case MatchNameContains:
		return "%" + esc + "%"
	default:
		return esc
	}
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*SQLite)(nil)
)
