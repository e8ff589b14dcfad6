// Package ingest loads a DSV source into a lake table.
package ingest

import (
	"context"
	"fmt"

	"dataprof/internal/dsv"
	"dataprof/internal/lake"
)

// DefaultBatchSize bounds rows per insert statement.
const DefaultBatchSize = 512

// Load replaces the named lake table with the source's rows. Every column is
// stored as text; the row sequence key is assigned from 1 in file order.
// Returns the number of rows written. Unreadable source rows are reported to
// onErr and skipped.
func Load(ctx context.Context, lk lake.Lake, src *dsv.Source, table string, batchSize int, onErr func(line int, err error)) (int64, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	cols := src.Columns()
	if len(cols) == 0 {
		return 0, fmt.Errorf("source %s has no columns", src.Name())
	}

	if err := lk.DropTable(ctx, table); err != nil {
		return 0, fmt.Errorf("drop %s: %w", table, err)
	}
	if err := lk.EnsureTable(ctx, lake.TextTable(table, cols)); err != nil {
		return 0, fmt.Errorf("create %s: %w", table, err)
	}

	insertCols := append([]string{lake.RowSeqColumn}, cols...)

	var total int64
	batch := make([][]any, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := lk.InsertRows(ctx, table, insertCols, batch); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
		batch = batch[:0]
		return nil
	}

	err := src.Rows(ctx, func(values []string) error {
		total++
		row := make([]any, 0, len(insertCols))
		row = append(row, total)
		for _, v := range values {
			if v == "" {
				row = append(row, nil)
			} else {
				row = append(row, v)
			}
		}
		batch = append(batch, row)
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	}, onErr)
	if err != nil {
		return total, err
	}

	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}
