package smart

import (
	"fmt"

	"github.com/addisonbair/storagemon/pkg/check"
)

// Rule maps one health metric to a severity. A rule triggers when the
// metric's raw value is at or above Threshold, so a "any nonzero raw is
// bad" rule uses Threshold 1. Adding a metric is a data change here, not
// a control-flow change in the classifier.
type Rule struct {
	// Metric is the smartctl attribute name (SATA) or health-log line
	// label (NVMe).
	Metric string
	// Threshold is the lowest raw value that triggers the rule.
	Threshold int64
	// Severity assigned when the rule triggers.
	Severity check.Severity
}

func (r Rule) reason(value int64) string {
	return fmt.Sprintf("%s = %d (threshold %d)", r.Metric, value, r.Threshold)
}

// Thresholds carries the configurable limits for both device classes.
type Thresholds struct {
	// NVMeTempWarn is the composite temperature WARN limit in °C.
	NVMeTempWarn int
	// SATATempWarn is the drive temperature WARN limit in °C.
	SATATempWarn int
}

// DefaultThresholds returns the stock limits.
func DefaultThresholds() Thresholds {
	return Thresholds{NVMeTempWarn: 80, SATATempWarn: 60}
}

// sataRules builds the SATA/SAS attribute rule set. Any reallocated,
// pending, or offline-uncorrectable sector is suspicious on its own;
// CRC errors are noisy on marginal cables, so only a triple-digit count
// warns.
func sataRules(t Thresholds) []Rule {
	return []Rule{
		{Metric: "Reallocated_Sector_Ct", Threshold: 1, Severity: check.SeverityWarn},
		{Metric: "Current_Pending_Sector", Threshold: 1, Severity: check.SeverityWarn},
		{Metric: "Offline_Uncorrectable", Threshold: 1, Severity: check.SeverityWarn},
		{Metric: "UDMA_CRC_Error_Count", Threshold: 100, Severity: check.SeverityWarn},
		{Metric: "Temperature_Celsius", Threshold: int64(t.SATATempWarn), Severity: check.SeverityWarn},
	}
}

// nvmeRules builds the NVMe health-log rule set. The critical-warning
// bitfield is handled separately because it is hex-encoded and FAIL-class.
func nvmeRules(t Thresholds) []Rule {
	return []Rule{
		{Metric: "Media and Data Integrity Errors", Threshold: 1, Severity: check.SeverityWarn},
		{Metric: "Percentage Used", Threshold: 100, Severity: check.SeverityWarn},
		{Metric: "Temperature", Threshold: int64(t.NVMeTempWarn), Severity: check.SeverityWarn},
	}
}
