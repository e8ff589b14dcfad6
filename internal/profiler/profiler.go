package profiler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dataprof/internal/metrics"
)

// Profiler runs the sampled inference pass over a dataset.
//
// Zero value is usable: Workers defaults to min(4, number of columns) and
// SampleSize 0 means the adaptive policy decides.
type Profiler struct {
	// Workers bounds concurrent column classification.
	Workers int
	// SampleSize, when > 0, bypasses the adaptive tiers.
	SampleSize int64
}

// Profile computes one SamplingPlan for the dataset and classifies every
// requested column from the same sampled row subset. Columns are classified
// concurrently; the returned profile lists them in request order.
//
// An unknown requested column fails with *NotFoundError. A zero-row dataset
// profiles every column as TEXT without touching the classifier. On any
// error no partial profile is returned.
func (p *Profiler) Profile(ctx context.Context, ds Dataset) (DatasetProfile, error) {
	start := time.Now()

	cols := ds.Columns
	if len(cols) == 0 {
		cols = ds.Source.Columns()
	}

	known := make(map[string]bool, len(ds.Source.Columns()))
	for _, c := range ds.Source.Columns() {
		known[c] = true
	}
	for _, c := range cols {
		if !known[c] {
			return DatasetProfile{}, &NotFoundError{Column: c}
		}
	}

	total, err := ds.Source.RowCount(ctx)
	if err != nil {
		return DatasetProfile{}, fmt.Errorf("row count %s: %w", ds.Source.Table(), err)
	}

	var plan SamplingPlan
	if p.SampleSize > 0 {
		plan = PlanWithSize(total, p.SampleSize)
	} else {
		plan = Plan(total)
	}

	profile := DatasetProfile{
		Table:     ds.Source.Table(),
		TotalRows: total,
		Plan:      plan,
		Columns:   make([]ColumnProfile, len(cols)),
	}

	if total == 0 {
		for i, c := range cols {
			profile.Columns[i] = ColumnProfile{Name: c, Type: TypeText}
		}
		return profile, nil
	}

	// Every column reads the same row subset.
	rowSeqs := plan.RowIndices()

	workers := p.Workers
	if workers <= 0 {
		workers = 4
	}
	if workers > len(cols) {
		workers = len(cols)
	}

	type job struct {
		idx  int
		name string
	}

	jobs := make(chan job)

	var mu sync.Mutex
	var firstErr error
	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				values, err := ds.Source.ColumnValuesAt(ctx, j.name, rowSeqs)
				if err != nil {
					setErr(fmt.Errorf("sample column %s: %w", j.name, err))
					continue
				}
				profile.Columns[j.idx] = ColumnProfile{
					Name:    j.name,
					Type:    Classify(values),
					Sampled: int64(len(values)),
				}
			}
		}()
	}

	// Dispatch columns, checking for cancellation between dispatches.
	dispatch := func() error {
		defer close(jobs)
		for i, c := range cols {
			if err := ctx.Err(); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case jobs <- job{idx: i, name: c}:
			}
		}
		return nil
	}
	ctxErr := dispatch()

	wg.Wait()

	if ctxErr != nil {
		return DatasetProfile{}, ctxErr
	}
	if firstErr != nil {
		return DatasetProfile{}, firstErr
	}

	for _, c := range profile.Columns {
		metrics.IncCounter(metrics.MetricColumnsTotal, 1,
			metrics.Labels{"type": string(c.Type)})
	}
	metrics.ObserveHistogram(metrics.MetricStageDuration, time.Since(start).Seconds(),
		metrics.Labels{"stage": "profile"})

	return profile, nil
}
