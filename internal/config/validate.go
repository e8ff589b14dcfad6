package config

import (
	"fmt"
	"unicode/utf8"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// Issue is one validation finding, addressed by a dotted config path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func errIssue(path, format string, a ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, a...)}
}

func warnIssue(path, format string, a ...any) Issue {
	return Issue{Severity: SeverityWarn, Path: path, Message: fmt.Sprintf(format, a...)}
}

// Validate checks a job structurally. Errors make the job unrunnable;
// warnings flag suspicious but workable settings.
func Validate(j Job) []Issue {
	var issues []Issue

	if j.Lake.Kind == "" {
		issues = append(issues, errIssue("lake.kind", "backend kind is required"))
	}
	if j.Lake.DSN == "" {
		issues = append(issues, errIssue("lake.dsn", "connection string is required"))
	}

	if j.Source.Path == "" {
		issues = append(issues, errIssue("source.path", "source file path is required"))
	}
	if n := utf8.RuneCountInString(j.Source.Delimiter); n > 1 {
		issues = append(issues, errIssue("source.delimiter", "must be a single character, got %q", j.Source.Delimiter))
	}
	if n := utf8.RuneCountInString(j.Source.Bookend); n > 1 {
		issues = append(issues, errIssue("source.bookend", "must be a single character, got %q", j.Source.Bookend))
	}
	if j.Source.SkipHeaderRows < 0 {
		issues = append(issues, errIssue("source.skip_header_rows", "must be >= 0"))
	}
	if j.Source.SkipFooterRows < 0 {
		issues = append(issues, errIssue("source.skip_footer_rows", "must be >= 0"))
	}
	if j.Source.HeaderRows != nil && *j.Source.HeaderRows < 0 {
		issues = append(issues, errIssue("source.header_rows", "must be >= 0"))
	}

	if j.Profile.Workers < 0 {
		issues = append(issues, errIssue("profile.workers", "must be >= 0"))
	}
	if j.Profile.SampleSize < 0 {
		issues = append(issues, errIssue("profile.sample_size", "must be >= 0"))
	}
	if j.Profile.SampleSize > 0 && j.Profile.SampleSize < 100 {
		issues = append(issues, warnIssue("profile.sample_size", "very small samples (%d) make inference unreliable", j.Profile.SampleSize))
	}

	if j.Build.BatchSize < 0 {
		issues = append(issues, errIssue("build.batch_size", "must be >= 0"))
	}

	switch j.Metrics.Backend {
	case "", "none", "datadog":
	default:
		issues = append(issues, warnIssue("metrics.backend", "unknown backend %q, metrics will be disabled", j.Metrics.Backend))
	}

	return issues
}

// HasError reports whether any issue is severity error.
func HasError(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
