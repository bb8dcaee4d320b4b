// Package report aggregates check results into one deduplicated alert.
package report

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/host"
	"go.uber.org/zap"

	"github.com/addisonbair/storagemon/pkg/check"
	"github.com/addisonbair/storagemon/pkg/smart"
)

// DiskScanner produces the SMART scan; satisfied by *smart.Scanner.
type DiskScanner interface {
	Scan(ctx context.Context) (*smart.ScanReport, error)
}

// Aggregator runs every checker and assembles the report.
type Aggregator struct {
	// Checkers run in report order: zfs, mdraid, mounts.
	Checkers []check.Checker
	Scanner  DiskScanner
	Logger   *zap.Logger
}

// Report is one full assembly pass. Built fresh each run, never
// partially persisted.
type Report struct {
	Host    string
	Uptime  time.Duration
	Time    time.Time
	Results []check.Result
	// SMART holds the scan; SMARTNote replaces it when the scan itself
	// could not run.
	SMART     *smart.ScanReport
	SMARTNote string
}

// Run executes all checks and the SMART scan. Neither a failing checker
// nor a failing scan aborts assembly.
func (a *Aggregator) Run(ctx context.Context) *Report {
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Report{Time: time.Now().UTC()}
	r.Host, r.Uptime = hostHeader(ctx)

	r.Results = check.RunAll(ctx, logger, a.Checkers)

	r.SMART, r.SMARTNote = a.runScan(ctx)
	if r.SMARTNote != "" {
		logger.Warn("smart scan skipped", zap.String("reason", r.SMARTNote))
	} else {
		logger.Info("smart scan finished",
			zap.Int("disks", len(r.SMART.Observations)),
			zap.String("severity", r.SMART.Worst().String()))
	}

	return r
}

// runScan isolates the SMART scan the same way RunAll isolates checkers.
func (a *Aggregator) runScan(ctx context.Context) (scan *smart.ScanReport, note string) {
	defer func() {
		if rec := recover(); rec != nil {
			scan = &smart.ScanReport{}
			note = fmt.Sprintf("smart scan panicked: %v", rec)
		}
	}()

	scan, err := a.Scanner.Scan(ctx)
	if err != nil {
		return &smart.ScanReport{}, fmt.Sprintf("smart scan failed: %v", err)
	}
	return scan, ""
}

func hostHeader(ctx context.Context) (string, time.Duration) {
	if info, err := host.InfoWithContext(ctx); err == nil {
		return info.Hostname, time.Duration(info.Uptime) * time.Second
	}
	hostname, _ := os.Hostname()
	return hostname, 0
}

// Warranted reports whether anything in the run justifies an alert.
// Skipped checks annotate a report but never cause one.
func (r *Report) Warranted() bool {
	for _, res := range r.Results {
		if res.Warrants() {
			return true
		}
	}
	return r.smartSeverity() >= check.SeverityWarn
}

func (r *Report) smartSeverity() check.Severity {
	if r.SMARTNote != "" {
		return check.SeveritySkipped
	}
	return r.SMART.Worst()
}

// Subject is the one-line notification subject.
func (r *Report) Subject() string {
	worst := check.Worst(r.Results).Worse(r.smartSeverity())
	return fmt.Sprintf("[storagemon] %s: storage health %s", r.Host, worst)
}

// Body is the full report text: header plus canonical sections.
func (r *Report) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Storage health report for %s\n", r.Host)
	fmt.Fprintf(&b, "Generated: %s (uptime %s)\n", r.Time.Format("2006-01-02 15:04:05 UTC"), formatUptime(r.Uptime))
	b.WriteString("Findings below require operator attention; identical reports are not re-sent.\n\n")
	b.WriteString(r.Canonical())
	return b.String()
}

// Canonical is the deduplication input: the report sections without the
// volatile header, so an unchanged system hashes identically across runs.
// Tool output embedded in details may still contain timestamps; such a
// change is treated as a genuinely new report.
func (r *Report) Canonical() string {
	var b strings.Builder

	for _, res := range r.Results {
		if !res.Alertable() {
			continue
		}
		fmt.Fprintf(&b, "=== %s: %s ===\n%s\n", res.Source, res.Severity, res.Summary)
		if res.Detail != "" {
			b.WriteString("\n")
			b.WriteString(strings.TrimRight(res.Detail, "\n"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	switch {
	case r.SMARTNote != "":
		fmt.Fprintf(&b, "=== smart: SKIPPED ===\n%s\n\n", r.SMARTNote)
	case r.SMART.Worst() >= check.SeverityWarn:
		// SMART is itself a problem: dedicated alert section.
		fmt.Fprintf(&b, "=== smart: %s ===\n", r.SMART.Worst())
		b.WriteString(r.SMART.SummaryTable())
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(r.SMART.Details(), "\n"))
		b.WriteString("\n")
	default:
		// Clean scan rides along as a trailing note for visibility.
		b.WriteString("SMART disk summary:\n")
		b.WriteString(r.SMART.SummaryTable())
	}

	return b.String()
}

func formatUptime(d time.Duration) string {
	if d <= 0 {
		return "unknown"
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if days > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dh%dm", hours, int(d.Minutes())%60)
}
