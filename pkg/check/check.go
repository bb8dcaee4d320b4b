// Package check provides the common model for storage health checks.
package check

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Severity classifies a check outcome.
type Severity int

const (
	SeverityOK Severity = iota
	SeveritySkipped
	SeverityWarn
	SeverityFail
)

// String returns the report token for the severity.
func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "OK"
	case SeveritySkipped:
		return "SKIPPED"
	case SeverityWarn:
		return "WARN"
	case SeverityFail:
		return "FAIL"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Worse returns the more severe of two severities.
func (s Severity) Worse(other Severity) Severity {
	if other > s {
		return other
	}
	return s
}

// Result of a single check execution. Immutable once produced.
type Result struct {
	// Source is the checker name (zfs, mdraid, mounts, smart).
	Source string
	// Severity of the finding.
	Severity Severity
	// Summary is a one-line description.
	Summary string
	// Detail holds the full diagnostic output for operator triage.
	// Empty for healthy results.
	Detail string
}

// OK builds a healthy result.
func OK(source, summary string) Result {
	return Result{Source: source, Severity: SeverityOK, Summary: summary}
}

// Skipped builds a result for a checker that could not run.
func Skipped(source, reason string) Result {
	return Result{Source: source, Severity: SeveritySkipped, Summary: reason}
}

// Alertable reports whether the result should appear in an alert report.
// Skipped checks are surfaced as informational notes so a silently broken
// checker does not masquerade as a healthy subsystem.
func (r Result) Alertable() bool {
	return r.Severity != SeverityOK
}

// Warrants reports whether the result on its own justifies sending a
// report. Tool absence and internal check failures are notes, not storage
// problems, so only WARN and FAIL qualify.
func (r Result) Warrants() bool {
	return r.Severity >= SeverityWarn
}

// Checker performs one health check.
type Checker interface {
	// Name returns a short identifier for this check.
	Name() string
	// Check inspects one subsystem. A returned error means the check
	// itself could not run, not that the subsystem is unhealthy.
	Check(ctx context.Context) (Result, error)
}

// RunAll executes all checks sequentially, in order, and returns one
// result per checker. A checker that errors or panics degrades to a
// SKIPPED result; it never prevents the remaining checks from running.
func RunAll(ctx context.Context, logger *zap.Logger, checks []Checker) []Result {
	if logger == nil {
		logger = zap.NewNop()
	}
	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		r := runOne(ctx, c)
		logger.Info("check finished",
			zap.String("check", c.Name()),
			zap.String("severity", r.Severity.String()),
			zap.String("summary", r.Summary))
		results = append(results, r)
	}
	return results
}

func runOne(ctx context.Context, c Checker) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			result = Skipped(c.Name(), fmt.Sprintf("check panicked: %v", rec))
		}
	}()

	r, err := c.Check(ctx)
	if err != nil {
		return Skipped(c.Name(), fmt.Sprintf("check failed: %v", err))
	}
	if r.Source == "" {
		r.Source = c.Name()
	}
	return r
}

// Worst returns the most severe severity across results.
func Worst(results []Result) Severity {
	worst := SeverityOK
	for _, r := range results {
		worst = worst.Worse(r.Severity)
	}
	return worst
}
