// Package smart scans physical block devices and classifies their
// SMART/NVMe health telemetry.
package smart

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/addisonbair/storagemon/pkg/check"
	"github.com/addisonbair/storagemon/pkg/execx"
)

// Observation is the outcome of probing one physical disk.
type Observation struct {
	Name      string // sda
	Device    string // /dev/sda
	Transport string
	NVMe      bool
	Raw       string
	// ExitCode is recorded for troubleshooting only; it never drives
	// severity (smartctl exits non-zero for many benign reasons).
	ExitCode int
	Severity check.Severity
	Reasons  []string
}

// ScanReport is the result of one full scan pass.
type ScanReport struct {
	// ToolAbsent is set when smartctl is not installed; the scan is then
	// empty and never alertable.
	ToolAbsent   bool
	Observations []Observation
}

// Scanner probes all eligible disks.
type Scanner struct {
	Cmd    execx.Commander
	Logger *zap.Logger
	// ExcludeTransports lists lsblk TRAN values to skip (default usb).
	ExcludeTransports []string
	Thresholds        Thresholds
}

// NewScanner creates a scanner with default thresholds and the usb
// transport excluded.
func NewScanner(cmd execx.Commander, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		Cmd:               cmd,
		Logger:            logger,
		ExcludeTransports: []string{"usb"},
		Thresholds:        DefaultThresholds(),
	}
}

// Scan enumerates disks, probes each eligible one, and classifies the
// results. Devices that report no medium or refuse mandatory SMART
// commands (empty card reader bays, odd bridges) are skipped silently.
func (s *Scanner) Scan(ctx context.Context) (*ScanReport, error) {
	if !s.Cmd.Available("smartctl") {
		s.Logger.Info("smartctl not installed, skipping disk scan")
		return &ScanReport{ToolAbsent: true}, nil
	}

	disks, err := listDisks(ctx, s.Cmd)
	if err != nil {
		return nil, err
	}

	report := &ScanReport{}
	for _, d := range disks {
		ok, why := eligible(d, s.ExcludeTransports)
		if !ok {
			s.Logger.Debug("skipping device", zap.String("device", d.Name), zap.String("reason", why))
			continue
		}

		obs, probed := s.probe(ctx, d)
		if !probed {
			continue
		}
		report.Observations = append(report.Observations, obs)
	}
	return report, nil
}

// probe issues the SMART query for one disk. The second return value is
// false when the device is not applicable (no medium, mandatory command
// refused, or the probe itself could not run).
func (s *Scanner) probe(ctx context.Context, d BlockDevice) (Observation, bool) {
	dev := "/dev/" + d.Name

	out, err := s.Cmd.Run(ctx, "smartctl", "-H", "-A", dev)
	if err != nil {
		s.Logger.Warn("smartctl probe failed", zap.String("device", dev), zap.Error(err))
		return Observation{}, false
	}

	// USB bridges often need explicit SCSI-ATA translation.
	if strings.EqualFold(d.Transport, "usb") && strings.Contains(out.Combined, "Unknown USB bridge") {
		retry, rerr := s.Cmd.Run(ctx, "smartctl", "-d", "sat", "-H", "-A", dev)
		if rerr == nil {
			out = retry
		}
	}

	if strings.Contains(out.Combined, "No medium present") ||
		strings.Contains(out.Combined, "Mandatory SMART command failed") {
		s.Logger.Debug("device not applicable", zap.String("device", dev))
		return Observation{}, false
	}

	nvme := strings.EqualFold(d.Transport, "nvme") || strings.HasPrefix(d.Name, "nvme")
	verdict := Classify(out.Combined, nvme, s.Thresholds)

	return Observation{
		Name:      d.Name,
		Device:    dev,
		Transport: d.Transport,
		NVMe:      nvme,
		Raw:       out.Combined,
		ExitCode:  out.ExitCode,
		Severity:  verdict.Severity,
		Reasons:   verdict.Reasons,
	}, true
}

// Worst returns the most severe observation, or OK for an empty scan.
func (r *ScanReport) Worst() check.Severity {
	worst := check.SeverityOK
	for _, o := range r.Observations {
		worst = worst.Worse(o.Severity)
	}
	return worst
}

// disposition maps a severity to the summary-table token.
func disposition(s check.Severity) string {
	if s == check.SeverityOK {
		return "PASS"
	}
	return s.String()
}

// SummaryTable renders the fixed-width per-device table. It always
// produces output, with a placeholder when nothing was scanned.
func (r *ScanReport) SummaryTable() string {
	if r.ToolAbsent {
		return " (smartctl not installed; no disks scanned)\n"
	}
	if len(r.Observations) == 0 {
		return " (no SMART-capable disks found)\n"
	}
	var b strings.Builder
	for _, o := range r.Observations {
		fmt.Fprintf(&b, " %-12s : %s\n", o.Device, disposition(o.Severity))
	}
	return b.String()
}

// Details renders the troubleshooting section: for every non-PASS disk,
// its contributing metrics, raw probe output, and tool exit code.
func (r *ScanReport) Details() string {
	var b strings.Builder
	for _, o := range r.Observations {
		if o.Severity == check.SeverityOK {
			continue
		}
		fmt.Fprintf(&b, "--- %s (%s): %s\n", o.Device, transportLabel(o), disposition(o.Severity))
		for _, reason := range o.Reasons {
			fmt.Fprintf(&b, "    %s\n", reason)
		}
		fmt.Fprintf(&b, "    smartctl exit code: %d\n", o.ExitCode)
		b.WriteString(indent(strings.TrimRight(o.Raw, "\n"), "    "))
		b.WriteString("\n")
	}
	return b.String()
}

func transportLabel(o Observation) string {
	if o.Transport != "" {
		return o.Transport
	}
	if o.NVMe {
		return "nvme"
	}
	return "unknown"
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
