// Package lake defines the data-lake repository interface used by ingestion
// and profiling, plus the backend registry.
//
// A Lake is a thin, backend-agnostic view of a relational store:
//   - tables are created from a logical TableSpec (text/integer/float/...);
//     each backend maps logical types to its native column types
//   - every table carries an implicit "row_seq" BIGINT key assigned by the
//     loader in source order; reads are always ordered by row_seq so that
//     sampling and full scans are deterministic for a stable source
//   - table replacement is atomic (SwapTable), so readers either see the old
//     table or the finished new one, never a partially written table
//
// Backends register themselves from an init() in their own package (see the
// sqlite, postgres, mssql and mysql subpackages, and the "all" umbrella).
package lake

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to open a Lake.
//
// Kind must match a registered backend kind; DSN is passed through to the
// backend factory and its validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Lake is the backend-agnostic repository interface.
//
// IMPORTANT: This interface is intentionally minimal and focused on what the
// loader and the profiler need. Each backend implements the semantics in its
// own idiomatic way (pgx pool, database/sql, etc).
type Lake interface {
	// Close releases backend resources. Treat as "call once".
	Close()

	// EnsureTable creates a table from spec if it does not already exist.
	// The implicit row_seq key column is added by the backend.
	EnsureTable(ctx context.Context, spec TableSpec) error

	// DropTable removes a table if it exists. Dropping a missing table is
	// not an error.
	DropTable(ctx context.Context, table string) error

	// TableExists reports whether the named table exists.
	TableExists(ctx context.Context, table string) (bool, error)

	// SwapTable atomically replaces target with staging: after it returns,
	// target has staging's contents and staging no longer exists. A reader
	// of target never observes an intermediate state. If target did not
	// exist, staging is simply renamed.
	SwapTable(ctx context.Context, staging, target string) error

	// InsertRows bulk-inserts rows into table. columns must include
	// "row_seq"; each row is aligned with columns. Empty batches are a
	// no-op. Returns the number of rows inserted.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// RowCount returns the number of rows in table.
	RowCount(ctx context.Context, table string) (int64, error)

	// ColumnValuesAt returns the textual values of one column at the given
	// row_seq positions, in ascending row_seq order. SQL NULL is returned
	// as the empty string. len(result) == number of matching rows.
	ColumnValuesAt(ctx context.Context, table, column string, rowSeqs []int64) ([]string, error)

	// ScanRows iterates every row of table in ascending row_seq order,
	// passing the row_seq and the textual values of the requested columns
	// (NULL as ""). The scan stops early if fn returns an error, which is
	// then returned verbatim. Intended for text columns; the raw ingest
	// tables it is used on are all-text by construction.
	ScanRows(ctx context.Context, table string, columns []string, fn func(rowSeq int64, values []string) error) error
}

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Lake, error)

var (
	regMu     sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "sqlite", "postgres").
//
// Call Register from an init() function in a backend package. Registering an
// empty kind, a nil factory, or the same kind twice panics; this is
// intentional to fail fast and avoid ambiguous backend selection.
func Register(kind string, f factory) {
	regMu.Lock()
	defer regMu.Unlock()

	if kind == "" {
		panic("lake: Register called with empty kind")
	}
	if f == nil {
		panic("lake: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("lake: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Lake using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Lake, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("lake: missing Kind")
	}

	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("lake: unsupported kind %q", cfg.Kind)
	}
	return f(ctx, cfg)
}
