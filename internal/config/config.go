// Package config loads and validates profiling job configuration.
package config

import (
	"fmt"
	"os"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"dataprof/internal/dsv"
)

// Job is one profiling job: a DSV source, a lake to put it in, and knobs for
// the inference and build passes.
type Job struct {
	// Name tags metrics and logs. Defaults to the source table name.
	Name string `yaml:"name"`

	Lake    LakeConfig    `yaml:"lake"`
	Source  SourceConfig  `yaml:"source"`
	Profile ProfileConfig `yaml:"profile"`
	Build   BuildConfig   `yaml:"build"`
	Metrics MetricsConfig `yaml:"metrics"`

	// Table overrides the lake table name derived from the source file.
	Table string `yaml:"table"`
}

type LakeConfig struct {
	// Kind selects a registered backend: sqlite, postgres, mssql, mysql.
	Kind string `yaml:"kind"`
	// DSN is the backend connection string. Environment variables in
	// $VAR/${VAR} form are expanded at load time.
	DSN string `yaml:"dsn"`
}

// SourceConfig mirrors dsv.Options. Pointer fields distinguish "absent"
// from an explicit false/zero so absence can default on.
type SourceConfig struct {
	Path           string `yaml:"path"`
	Delimiter      string `yaml:"delimiter"`
	Strip          *bool  `yaml:"strip"`
	Bookend        string `yaml:"bookend"`
	BookendStrip   *bool  `yaml:"bookend_strip"`
	Encoding       string `yaml:"encoding"`
	SkipHeaderRows int    `yaml:"skip_header_rows"`
	SkipFooterRows int    `yaml:"skip_footer_rows"`
	HeaderRows     *int   `yaml:"header_rows"`
	SkipEmptyRows  *bool  `yaml:"skip_empty_rows"`
}

type ProfileConfig struct {
	// Workers bounds concurrent column classification. 0 lets the profiler
	// decide.
	Workers int `yaml:"workers"`
	// SampleSize bypasses the adaptive sampling tiers when > 0.
	SampleSize int64 `yaml:"sample_size"`
	// Columns restricts profiling to a subset. Empty means all.
	Columns []string `yaml:"columns"`
}

type BuildConfig struct {
	BatchSize int `yaml:"batch_size"`
}

type MetricsConfig struct {
	// Backend is "datadog" or "none"/empty.
	Backend string `yaml:"backend"`
	// Tags are extra backend tags, comma-separated ("env:prod,team:data").
	Tags string `yaml:"tags"`
}

// Load reads a YAML job file and expands environment variables in the DSN.
func Load(path string) (Job, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("read config: %w", err)
	}

	var j Job
	if err := yaml.Unmarshal(b, &j); err != nil {
		return Job{}, fmt.Errorf("parse config: %w", err)
	}

	j.Lake.DSN = os.ExpandEnv(j.Lake.DSN)
	return j, nil
}

// DSVOptions resolves the source block into dsv.Options, applying defaults
// for absent fields.
func (s SourceConfig) DSVOptions() dsv.Options {
	opt := dsv.DefaultOptions()

	if s.Delimiter != "" {
		opt.Delimiter, _ = utf8.DecodeRuneInString(s.Delimiter)
	}
	if s.Strip != nil {
		opt.Strip = *s.Strip
	}
	if s.Bookend != "" {
		opt.Bookend, _ = utf8.DecodeRuneInString(s.Bookend)
	}
	if s.BookendStrip != nil {
		opt.BookendStrip = *s.BookendStrip
	}
	if s.Encoding != "" {
		opt.Encoding = s.Encoding
	}
	opt.SkipHeaderRows = s.SkipHeaderRows
	opt.SkipFooterRows = s.SkipFooterRows
	if s.HeaderRows != nil {
		opt.HeaderRows = *s.HeaderRows
	}
	if s.SkipEmptyRows != nil {
		opt.SkipEmptyRows = *s.SkipEmptyRows
	}
	return opt
}
