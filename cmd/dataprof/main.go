package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"dataprof/internal/config"
	"dataprof/internal/dsv"
	"dataprof/internal/ingest"
	"dataprof/internal/lake"
	"dataprof/internal/metrics"
	"dataprof/internal/metrics/datadog"
	"dataprof/internal/profiler"

	// register all lake backends with the factory.
	_ "dataprof/internal/lake/all"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "dataprof",
		Usage:   "DSV type inference and typed table materialization",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "dataprof.yaml",
				Usage:   "Path to job configuration file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "plan",
				Usage:  "Show the sampling plan for a dataset size",
				Action: runPlan,
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:  "rows",
						Usage: "Plan for an explicit row count instead of the ingested table",
					},
				},
			},
			{
				Name:   "ingest",
				Usage:  "Load the DSV source into the lake as a text table",
				Action: runIngest,
			},
			{
				Name:   "profile",
				Usage:  "Infer column types from a sample of the ingested table",
				Action: runProfile,
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:  "sample-size",
						Usage: "Explicit sample size, bypassing the adaptive tiers",
					},
				},
			},
			{
				Name:   "run",
				Usage:  "Ingest, profile, and build the typed derived table",
				Action: runAll,
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:  "sample-size",
						Usage: "Explicit sample size, bypassing the adaptive tiers",
					},
					&cli.BoolFlag{
						Name:  "no-progress",
						Usage: "Disable the progress bar",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadJob(c *cli.Context) (config.Job, error) {
	job, err := config.Load(c.String("config"))
	if err != nil {
		return config.Job{}, err
	}

	issues := config.Validate(job)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasError(issues) {
		return config.Job{}, fmt.Errorf("configuration is invalid: %s", c.String("config"))
	}
	return job, nil
}

// tableName resolves the lake table for a job: explicit override, else the
// normalized source file name.
func tableName(job config.Job) string {
	if job.Table != "" {
		return job.Table
	}
	base := filepath.Base(job.Source.Path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return lake.NormalizeIdent(base)
}

func openLake(ctx context.Context, job config.Job) (lake.Lake, error) {
	lk, err := lake.New(ctx, lake.Config{Kind: job.Lake.Kind, DSN: job.Lake.DSN})
	if err != nil {
		return nil, fmt.Errorf("open %s lake: %w", job.Lake.Kind, err)
	}
	return lk, nil
}

// setupMetrics installs the configured metrics backend and returns a
// shutdown func. The nop backend stays installed for "none".
func setupMetrics(job config.Job) func() {
	switch job.Metrics.Backend {
	case "datadog":
		jobName := job.Name
		if jobName == "" {
			jobName = tableName(job)
		}

		tags := datadog.ParseTagsCSV(job.Metrics.Tags)
		if env := os.Getenv("METRICS_TAGS"); env != "" {
			tags = append(tags, datadog.ParseTagsCSV(env)...)
		}

		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName: jobName,
			Tags:    tags,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		metrics.SetBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				log.Printf("metrics: datadog close/flush error: %v", err)
			}
		}

	case "", "none":
		return func() {}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", job.Metrics.Backend)
		return func() {}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted.")
		cancel()
	}()

	return ctx, cancel
}

func runPlan(c *cli.Context) error {
	if c.IsSet("rows") {
		printPlan(profiler.Plan(c.Int64("rows")))
		return nil
	}

	job, err := loadJob(c)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	lk, err := openLake(ctx, job)
	if err != nil {
		return err
	}
	defer lk.Close()

	table := tableName(job)
	total, err := lk.RowCount(ctx, table)
	if err != nil {
		return fmt.Errorf("row count %s: %w", table, err)
	}
	printPlan(profiler.Plan(total))
	return nil
}

func printPlan(p profiler.SamplingPlan) {
	fmt.Printf("total_rows=%d fraction=%.2f sample_size=%d\n", p.TotalRows, p.Fraction, p.SampleSize)
}

func runIngest(c *cli.Context) error {
	job, err := loadJob(c)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	lk, err := openLake(ctx, job)
	if err != nil {
		return err
	}
	defer lk.Close()

	shutdown := setupMetrics(job)
	defer shutdown()

	n, err := ingestSource(ctx, lk, job)
	if err != nil {
		return err
	}
	fmt.Printf("ingested %d rows into %s\n", n, tableName(job))
	return nil
}

func ingestSource(ctx context.Context, lk lake.Lake, job config.Job) (int64, error) {
	src, err := dsv.Open(job.Source.Path, job.Source.DSVOptions())
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}

	onErr := func(line int, err error) {
		log.Printf("source %s line %d: %v", job.Source.Path, line, err)
	}
	return ingest.Load(ctx, lk, src, tableName(job), job.Build.BatchSize, onErr)
}

func runProfile(c *cli.Context) error {
	job, err := loadJob(c)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	lk, err := openLake(ctx, job)
	if err != nil {
		return err
	}
	defer lk.Close()

	shutdown := setupMetrics(job)
	defer shutdown()

	profile, err := profileTable(ctx, c, lk, job)
	if err != nil {
		return err
	}
	printProfile(profile)
	return nil
}

// tableSource builds a row source over the ingested table. Column order
// comes from the DSV header, which ingestion preserves.
func tableSource(lk lake.Lake, job config.Job) (*lake.TableSource, error) {
	src, err := dsv.Open(job.Source.Path, job.Source.DSVOptions())
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	return lake.NewTableSource(lk, tableName(job), src.Columns()), nil
}

func profileTable(ctx context.Context, c *cli.Context, lk lake.Lake, job config.Job) (profiler.DatasetProfile, error) {
	src, err := tableSource(lk, job)
	if err != nil {
		return profiler.DatasetProfile{}, err
	}

	sampleSize := job.Profile.SampleSize
	if c.IsSet("sample-size") {
		sampleSize = c.Int64("sample-size")
	}

	p := &profiler.Profiler{
		Workers:    job.Profile.Workers,
		SampleSize: sampleSize,
	}
	return p.Profile(ctx, profiler.Dataset{
		Name:    job.Name,
		Source:  src,
		Columns: job.Profile.Columns,
	})
}

func printProfile(p profiler.DatasetProfile) {
	fmt.Printf("table=%s rows=%d sampled=%d\n", p.Table, p.TotalRows, p.Plan.SampleSize)
	for _, col := range p.Columns {
		fmt.Printf("  %-32s %s\n", col.Name, col.Type)
	}
}

func runAll(c *cli.Context) error {
	job, err := loadJob(c)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	lk, err := openLake(ctx, job)
	if err != nil {
		return err
	}
	defer lk.Close()

	shutdown := setupMetrics(job)
	defer shutdown()

	start := time.Now()

	n, err := ingestSource(ctx, lk, job)
	if err != nil {
		return err
	}
	log.Printf("ingested %d rows into %s", n, tableName(job))

	profile, err := profileTable(ctx, c, lk, job)
	if err != nil {
		return err
	}
	printProfile(profile)

	src, err := tableSource(lk, job)
	if err != nil {
		return err
	}

	b := &profiler.Builder{
		Lake:      lk,
		RunID:     uuid.NewString(),
		BatchSize: job.Build.BatchSize,
		Observer: func(column string, rowSeq int64, raw string) {
			log.Printf("cast failed: column=%s row=%d value=%q", column, rowSeq, raw)
		},
	}

	var bar *progressbar.ProgressBar
	if !c.Bool("no-progress") {
		bar = progressbar.NewOptions64(
			profile.TotalRows,
			progressbar.OptionSetDescription("Building"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("rows"),
			progressbar.OptionSetRenderBlankState(true),
		)
		b.Progress = func(done, total int64) {
			_ = bar.Set64(done)
		}
	}

	inferred, err := b.Build(ctx, profiler.Dataset{Name: job.Name, Source: src}, profile)
	if err != nil {
		return err
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	log.Printf("built %s: %d rows, %d cast failures, %s elapsed",
		inferred.Name, inferred.Stats.Rows, inferred.Stats.Total(),
		time.Since(start).Truncate(time.Millisecond))
	return nil
}
