package profiler

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"dataprof/internal/lake"
	"dataprof/internal/metrics"
)

// InferredSuffix is appended to a source table name to form its derived
// table.
const InferredSuffix = "_inferred"

// Builder materializes a typed derived table from a dataset and its profile.
//
// The derived table holds, per profiled column, the original textual value
// and a typed cast column, plus the row sequence key. It is written into a
// staging table and swapped into place, so readers see either the previous
// table or the finished new one.
type Builder struct {
	Lake lake.Lake

	// RunID tags the staging table name. Empty means a random ID per build.
	RunID string

	// BatchSize bounds rows per insert statement. Defaults to 512.
	BatchSize int

	// Progress, when set, is called after every flushed batch with rows
	// written so far and the dataset total.
	Progress func(done, total int64)

	// Observer, when set, is called for every value that failed to cast and
	// was written as NULL.
	Observer func(column string, rowSeq int64, raw string)
}

// Build runs the full forward pass. Every source row produces exactly one
// derived row; values that fail to cast under their column's inferred type
// become NULL in the cast column while the original text is preserved.
//
// Storage failures surface as *StorageError. The staging table is dropped on
// failure and a previously existing derived table is left untouched.
func (b *Builder) Build(ctx context.Context, ds Dataset, profile DatasetProfile) (InferredTable, error) {
	start := time.Now()

	srcCols := make([]string, len(profile.Columns))
	for i, c := range profile.Columns {
		srcCols[i] = c.Name
	}

	target := profile.Table + InferredSuffix
	staging := target + "__stg_" + b.runID()

	spec := lake.TableSpec{Name: staging}
	castCols := make([]string, len(profile.Columns))
	for i, c := range profile.Columns {
		castCols[i] = CastColumnName(c.Name, srcCols)
		spec.Columns = append(spec.Columns,
			lake.ColumnSpec{Name: c.Name, Type: lake.TypeText, Nullable: true},
			lake.ColumnSpec{Name: castCols[i], Type: lakeType(c.Type), Nullable: true},
		)
	}

	if err := b.Lake.DropTable(ctx, staging); err != nil {
		return InferredTable{}, &StorageError{Op: "drop staging", Table: staging, Err: err}
	}
	if err := b.Lake.EnsureTable(ctx, spec); err != nil {
		return InferredTable{}, &StorageError{Op: "create", Table: staging, Err: err}
	}

	stats, err := b.writeRows(ctx, ds, profile, staging, srcCols, castCols)
	if err != nil {
		_ = b.Lake.DropTable(ctx, staging)
		return InferredTable{}, err
	}

	if err := b.Lake.SwapTable(ctx, staging, target); err != nil {
		_ = b.Lake.DropTable(ctx, staging)
		return InferredTable{}, &StorageError{Op: "swap", Table: target, Err: err}
	}

	for col, n := range stats.CastFailures {
		if n > 0 {
			metrics.IncCounter(metrics.MetricCastFailuresTotal, float64(n),
				metrics.Labels{"table": target, "column": col})
		}
	}
	metrics.IncCounter(metrics.MetricRowsTotal, float64(stats.Rows),
		metrics.Labels{"table": target})
	metrics.ObserveHistogram(metrics.MetricStageDuration, time.Since(start).Seconds(),
		metrics.Labels{"stage": "build"})

	return InferredTable{Name: target, Columns: castCols, Stats: stats}, nil
}

func (b *Builder) writeRows(ctx context.Context, ds Dataset, profile DatasetProfile, staging string, srcCols, castCols []string) (BuildStats, error) {
	stats := BuildStats{CastFailures: make(map[string]int64, len(srcCols))}

	batchSize := b.BatchSize
	if batchSize <= 0 {
		batchSize = 512
	}

	insertCols := make([]string, 0, 1+2*len(srcCols))
	insertCols = append(insertCols, lake.RowSeqColumn)
	for i := range srcCols {
		insertCols = append(insertCols, srcCols[i], castCols[i])
	}

	batch := make([][]any, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := b.Lake.InsertRows(ctx, staging, insertCols, batch); err != nil {
			return &StorageError{Op: "insert", Table: staging, Err: err}
		}
		batch = batch[:0]
		if b.Progress != nil {
			b.Progress(stats.Rows, profile.TotalRows)
		}
		return nil
	}

	err := ds.Source.ScanRows(ctx, srcCols, func(rowSeq int64, values []string) error {
		row := make([]any, 0, len(insertCols))
		row = append(row, rowSeq)

		for i, raw := range values {
			if raw == "" {
				row = append(row, nil, nil)
				continue
			}
			row = append(row, raw)

			cast, ok := castValue(raw, profile.Columns[i].Type)
			if !ok {
				stats.CastFailures[srcCols[i]]++
				if b.Observer != nil {
					b.Observer(srcCols[i], rowSeq, raw)
				}
				row = append(row, nil)
				continue
			}
			row = append(row, cast)
		}

		stats.Rows++
		batch = append(batch, row)
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		if _, ok := err.(*StorageError); ok {
			return stats, err
		}
		return stats, &StorageError{Op: "scan", Table: profile.Table, Err: err}
	}

	if err := flush(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (b *Builder) runID() string {
	id := strings.TrimSpace(b.RunID)
	if id == "" {
		id = uuid.NewString()
	}
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return id
}

var _ RowSource = (*lake.TableSource)(nil)

func lakeType(t DataType) string {
	switch t {
	case TypeInteger:
		return lake.TypeInteger
	case TypeFloat:
		return lake.TypeFloat
	case TypeBoolean:
		return lake.TypeBoolean
	case TypeDate:
		return lake.TypeDate
	case TypeTime:
		return lake.TypeTime
	case TypeDateTime:
		return lake.TypeDateTime
	default:
		return lake.TypeText
	}
}
