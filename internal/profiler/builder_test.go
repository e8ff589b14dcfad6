package profiler

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"dataprof/internal/lake"
)

// memLake is an in-memory lake.Lake capturing writes. failOn simulates a
// storage failure at a chosen operation.
type memLake struct {
	mu     sync.Mutex
	tables map[string]*memTable
	failOn string
}

type memTable struct {
	spec lake.TableSpec
	cols []string
	rows [][]any
}

func newMemLake() *memLake {
	return &memLake{tables: make(map[string]*memTable)}
}

func (m *memLake) fail(op string) error {
	if m.failOn == op {
		return fmt.Errorf("simulated %s failure", op)
	}
	return nil
}

func (m *memLake) Close() {}

func (m *memLake) EnsureTable(ctx context.Context, spec lake.TableSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("create"); err != nil {
		return err
	}
	if _, ok := m.tables[spec.Name]; !ok {
		m.tables[spec.Name] = &memTable{spec: spec}
	}
	return nil
}

func (m *memLake) DropTable(ctx context.Context, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, table)
	return nil
}

func (m *memLake) TableExists(ctx context.Context, table string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tables[table]
	return ok, nil
}

func (m *memLake) SwapTable(ctx context.Context, staging, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("swap"); err != nil {
		return err
	}
	t, ok := m.tables[staging]
	if !ok {
		return fmt.Errorf("no staging table %s", staging)
	}
	delete(m.tables, staging)
	m.tables[target] = t
	return nil
}

func (m *memLake) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("insert"); err != nil {
		return 0, err
	}
	t, ok := m.tables[table]
	if !ok {
		return 0, fmt.Errorf("no table %s", table)
	}
	t.cols = columns
	for _, r := range rows {
		t.rows = append(t.rows, append([]any(nil), r...))
	}
	return int64(len(rows)), nil
}

func (m *memLake) RowCount(ctx context.Context, table string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		return 0, fmt.Errorf("no table %s", table)
	}
	return int64(len(t.rows)), nil
}

func (m *memLake) ColumnValuesAt(ctx context.Context, table, column string, rowSeqs []int64) ([]string, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *memLake) ScanRows(ctx context.Context, table string, columns []string, fn func(rowSeq int64, values []string) error) error {
	return fmt.Errorf("not implemented")
}

var _ lake.Lake = (*memLake)(nil)

func (m *memLake) stagingTables() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for name := range m.tables {
		if strings.Contains(name, "__stg_") {
			out = append(out, name)
		}
	}
	return out
}

func fixedProfile(table string, cols []string, types []DataType) DatasetProfile {
	p := DatasetProfile{Table: table}
	for i, c := range cols {
		p.Columns = append(p.Columns, ColumnProfile{Name: c, Type: types[i]})
	}
	return p
}

//
// Build
//

// TestBuildRowParity verifies every source row lands in the derived table
// with its original text, cast value, and row sequence intact.
func TestBuildRowParity(t *testing.T) {
	t.Parallel()

	src := newMemSource("orders", []string{"id", "note"}, [][]string{
		{"1", "alpha"},
		{"2", ""},
		{"3", "gamma"},
	})
	lk := newMemLake()
	b := &Builder{Lake: lk, RunID: "test", BatchSize: 2}

	profile := fixedProfile("orders", []string{"id", "note"}, []DataType{TypeInteger, TypeText})
	profile.TotalRows = 3

	got, err := b.Build(context.Background(), Dataset{Source: src}, profile)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	if got.Name != "orders_inferred" {
		t.Fatalf("table name = %q, want orders_inferred", got.Name)
	}
	if !reflect.DeepEqual(got.Columns, []string{"id_cast", "note_cast"}) {
		t.Fatalf("cast columns = %v", got.Columns)
	}
	if got.Stats.Rows != 3 || got.Stats.Total() != 0 {
		t.Fatalf("stats = %+v", got.Stats)
	}

	tbl, ok := lk.tables["orders_inferred"]
	if !ok {
		t.Fatalf("derived table missing; tables = %v", lk.tables)
	}
	wantCols := []string{"row_seq", "id", "id_cast", "note", "note_cast"}
	if !reflect.DeepEqual(tbl.cols, wantCols) {
		t.Fatalf("insert columns = %v, want %v", tbl.cols, wantCols)
	}
	wantRows := [][]any{
		{int64(1), "1", int64(1), "alpha", "alpha"},
		{int64(2), "2", int64(2), nil, nil},
		{int64(3), "3", int64(3), "gamma", "gamma"},
	}
	if !reflect.DeepEqual(tbl.rows, wantRows) {
		t.Fatalf("rows = %v, want %v", tbl.rows, wantRows)
	}

	if left := lk.stagingTables(); len(left) != 0 {
		t.Fatalf("staging tables left behind: %v", left)
	}
}

// TestBuildBestEffortCast verifies a full-pass outlier the sample missed
// becomes NULL without failing the build or dropping the row.
func TestBuildBestEffortCast(t *testing.T) {
	t.Parallel()

	src := newMemSource("t", []string{"n"}, [][]string{
		{"1"},
		{"oops"},
		{"3"},
	})

	var observed []string
	lk := newMemLake()
	b := &Builder{
		Lake:  lk,
		RunID: "test",
		Observer: func(column string, rowSeq int64, raw string) {
			observed = append(observed, fmt.Sprintf("%s:%d:%s", column, rowSeq, raw))
		},
	}

	profile := fixedProfile("t", []string{"n"}, []DataType{TypeInteger})
	profile.TotalRows = 3

	got, err := b.Build(context.Background(), Dataset{Source: src}, profile)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	if got.Stats.Rows != 3 {
		t.Fatalf("Rows = %d, want 3", got.Stats.Rows)
	}
	if got.Stats.CastFailures["n"] != 1 {
		t.Fatalf("CastFailures = %v, want n:1", got.Stats.CastFailures)
	}
	if !reflect.DeepEqual(observed, []string{"n:2:oops"}) {
		t.Fatalf("observed = %v", observed)
	}

	tbl := lk.tables["t_inferred"]
	want := [][]any{
		{int64(1), "1", int64(1)},
		{int64(2), "oops", nil},
		{int64(3), "3", int64(3)},
	}
	if !reflect.DeepEqual(tbl.rows, want) {
		t.Fatalf("rows = %v, want %v", tbl.rows, want)
	}
}

// TestBuildAtomicOnFailure verifies a mid-build storage failure leaves the
// previous derived table untouched and no staging table behind.
func TestBuildAtomicOnFailure(t *testing.T) {
	t.Parallel()

	for _, failOn := range []string{"create", "insert", "swap"} {
		failOn := failOn
		t.Run(failOn, func(t *testing.T) {
			t.Parallel()

			src := newMemSource("t", []string{"n"}, [][]string{{"1"}, {"2"}})

			lk := newMemLake()
			prev := &memTable{rows: [][]any{{int64(1), "old", int64(1)}}}
			lk.tables["t_inferred"] = prev
			lk.failOn = failOn

			profile := fixedProfile("t", []string{"n"}, []DataType{TypeInteger})
			profile.TotalRows = 2

			b := &Builder{Lake: lk, RunID: "test"}
			_, err := b.Build(context.Background(), Dataset{Source: src}, profile)

			var se *StorageError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want StorageError", err)
			}

			if got := lk.tables["t_inferred"]; got != prev {
				t.Fatalf("previous derived table was replaced")
			}
			if left := lk.stagingTables(); len(left) != 0 {
				t.Fatalf("staging tables left behind: %v", left)
			}
		})
	}
}

// TestBuildReplacesPrevious verifies a re-run swaps the old derived table
// out for the new one.
func TestBuildReplacesPrevious(t *testing.T) {
	t.Parallel()

	src := newMemSource("t", []string{"n"}, [][]string{{"5"}})

	lk := newMemLake()
	lk.tables["t_inferred"] = &memTable{rows: [][]any{{int64(1), "old", nil}}}

	profile := fixedProfile("t", []string{"n"}, []DataType{TypeInteger})
	profile.TotalRows = 1

	b := &Builder{Lake: lk, RunID: "test"}
	if _, err := b.Build(context.Background(), Dataset{Source: src}, profile); err != nil {
		t.Fatalf("Build error: %v", err)
	}

	want := [][]any{{int64(1), "5", int64(5)}}
	if !reflect.DeepEqual(lk.tables["t_inferred"].rows, want) {
		t.Fatalf("rows = %v, want %v", lk.tables["t_inferred"].rows, want)
	}
}
