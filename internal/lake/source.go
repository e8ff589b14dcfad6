package lake

import "context"

// TableSource adapts one lake table to the row-source shape the profiler
// consumes (see profiler.RowSource). It carries the ordered column list so
// repeated metadata lookups are avoided during a run.
type TableSource struct {
	lake    Lake
	table   string
	columns []string
}

// NewTableSource wraps table as a row source over the given ordered columns.
// The caller is responsible for the column list matching the table schema;
// profiling validates requested column names against Columns().
func NewTableSource(l Lake, table string, columns []string) *TableSource {
	return &TableSource{
		lake:    l,
		table:   table,
		columns: append([]string(nil), columns...),
	}
}

// Table returns the underlying table name.
func (s *TableSource) Table() string { return s.table }

// Columns returns the ordered column names. The returned slice is shared;
// callers must not mutate it.
func (s *TableSource) Columns() []string { return s.columns }

func (s *TableSource) RowCount(ctx context.Context) (int64, error) {
	return s.lake.RowCount(ctx, s.table)
}

func (s *TableSource) ColumnValuesAt(ctx context.Context, column string, rowSeqs []int64) ([]string, error) {
	return s.lake.ColumnValuesAt(ctx, s.table, column, rowSeqs)
}

// ScanRows streams the requested columns for every row in order. An empty
// column list means all of the source's columns.
func (s *TableSource) ScanRows(ctx context.Context, columns []string, fn func(rowSeq int64, values []string) error) error {
	if len(columns) == 0 {
		columns = s.columns
	}
	return s.lake.ScanRows(ctx, s.table, columns, fn)
}
