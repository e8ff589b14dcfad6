// Package profiler implements adaptive dataset sampling, column type
// inference, and inferred-table materialization.
//
// The profiler package is responsible for:
//   - Planning a bounded, deterministic row sample for a dataset
//   - Classifying each column into a canonical data type from the sample
//   - Building a typed derived table from the full dataset, casting every
//     value best-effort and swapping the result into place atomically
//
// Design constraints:
//   - Inference reads only the sampled rows; the build pass reads every row.
//   - A profile is immutable once produced; the build pass never mutates it.
//   - Per-value cast failures degrade to NULL and are counted, never fatal.
package profiler

import "context"

// DataType is a canonical column type. Precedence during classification is
// BOOLEAN, INTEGER, FLOAT, DATE, TIME, DATETIME, with TEXT as the fallback.
type DataType string

const (
	TypeText     DataType = "TEXT"
	TypeInteger  DataType = "INTEGER"
	TypeFloat    DataType = "FLOAT"
	TypeBoolean  DataType = "BOOLEAN"
	TypeDate     DataType = "DATE"
	TypeTime     DataType = "TIME"
	TypeDateTime DataType = "DATETIME"
)

// RowSource is the read surface the profiler needs over a stored dataset.
// Missing values appear as the empty string. Row sequence numbers start at 1
// and follow source order.
//
// lake.TableSource satisfies this interface.
type RowSource interface {
	// Table returns the source table name.
	Table() string
	// Columns returns the source column names in table order.
	Columns() []string
	// RowCount returns the total number of rows.
	RowCount(ctx context.Context) (int64, error)
	// ColumnValuesAt returns the values of one column at the given row
	// sequence numbers, in ascending row order.
	ColumnValuesAt(ctx context.Context, column string, rowSeqs []int64) ([]string, error)
	// ScanRows streams every row in row-sequence order.
	ScanRows(ctx context.Context, columns []string, fn func(rowSeq int64, values []string) error) error
}

// Dataset names what to profile. Columns may restrict profiling to a subset
// of the source's columns; empty means all of them.
type Dataset struct {
	Name    string
	Source  RowSource
	Columns []string
}

// ColumnProfile is the inference result for one column.
type ColumnProfile struct {
	Name string
	Type DataType
	// Sampled is the number of rows examined for this column.
	Sampled int64
}

// DatasetProfile is the immutable output of a profiling run. The build pass
// consumes it read-only.
type DatasetProfile struct {
	Table     string
	TotalRows int64
	Plan      SamplingPlan
	Columns   []ColumnProfile
}

// TypeOf returns the inferred type for a column, or TEXT with ok=false when
// the column was not profiled.
func (p DatasetProfile) TypeOf(column string) (DataType, bool) {
	for _, c := range p.Columns {
		if c.Name == column {
			return c.Type, true
		}
	}
	return TypeText, false
}

// InferredTable describes the materialized derived table.
type InferredTable struct {
	Name string
	// Columns holds the cast column names aligned with the profiled source
	// columns.
	Columns []string
	Stats   BuildStats
}

// BuildStats summarizes one build pass.
type BuildStats struct {
	Rows int64
	// CastFailures counts values per source column that failed to cast and
	// were written as NULL.
	CastFailures map[string]int64
}

// Total returns the sum of cast failures across all columns.
func (s BuildStats) Total() int64 {
	var n int64
	for _, c := range s.CastFailures {
		n += c
	}
	return n
}
