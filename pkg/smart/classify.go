package smart

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/addisonbair/storagemon/pkg/check"
)

// Verdict is the classification of one probe.
type Verdict struct {
	Severity check.Severity
	// Reasons lists the metrics that contributed to the severity.
	Reasons []string
}

var (
	// The two verdict formats smartctl prints for ATA and SCSI devices.
	failVerdictRe = regexp.MustCompile(`(?m)^SMART overall-health self-assessment test result:\s+FAILED|^SMART Health Status:\s+FAILED`)

	criticalWarningRe = regexp.MustCompile(`(?mi)^Critical Warning:\s+0x([0-9a-f]+)`)

	// Attribute table rows: ID# NAME FLAG VALUE WORST THRESH TYPE UPDATED
	// WHEN_FAILED RAW_VALUE. The raw value may carry a suffix such as
	// "33 (Min/Max 25/45)"; the leading integer is the value.
	attrRowRe = regexp.MustCompile(`(?m)^\s*\d+\s+(\S+)\s+0x[0-9a-f]+\s+\d+\s+\d+\s+[\d-]+\s+\S+\s+\S+\s+\S+\s+(\S+)`)
)

// Classify derives a severity from raw smartctl output.
//
// FAIL requires a strict signature: the tool's own FAILED verdict or a
// nonzero NVMe critical-warning bitfield. Threshold rules can only raise
// WARN, and any FAIL produced without a strict signature is downgraded to
// WARN so heuristic over-matching cannot page anyone.
func Classify(raw string, nvme bool, t Thresholds) Verdict {
	var v Verdict

	if failVerdictRe.MatchString(raw) {
		v.Severity = check.SeverityFail
		v.Reasons = append(v.Reasons, "overall-health verdict FAILED")
	}

	if nvme {
		classifyNVMe(raw, t, &v)
	} else {
		classifySATA(raw, t, &v)
	}

	if v.Severity == check.SeverityFail && !strictFailSignature(raw) {
		v.Severity = check.SeverityWarn
		v.Reasons = append(v.Reasons, "downgraded to WARN: no confirmed fail signature")
	}

	return v
}

func classifyNVMe(raw string, t Thresholds, v *Verdict) {
	if bits, ok := criticalWarning(raw); ok && bits != 0 {
		v.Severity = v.Severity.Worse(check.SeverityFail)
		v.Reasons = append(v.Reasons, fmt.Sprintf("critical warning 0x%02x", bits))
	}

	for _, r := range nvmeRules(t) {
		value, found, parsed := lineMetric(raw, r.Metric)
		if !found {
			continue
		}
		if !parsed {
			v.Severity = v.Severity.Worse(check.SeverityWarn)
			v.Reasons = append(v.Reasons, fmt.Sprintf("%s: unparsable value", r.Metric))
			continue
		}
		if value >= r.Threshold {
			v.Severity = v.Severity.Worse(r.Severity)
			v.Reasons = append(v.Reasons, r.reason(value))
		}
	}
}

func classifySATA(raw string, t Thresholds, v *Verdict) {
	attrs := parseAttributes(raw)
	for _, r := range sataRules(t) {
		a, found := attrs[r.Metric]
		if !found {
			continue
		}
		if !a.parsed {
			// An unparsable raw field could mask a real fault, so it is
			// surfaced rather than silently ignored.
			v.Severity = v.Severity.Worse(check.SeverityWarn)
			v.Reasons = append(v.Reasons, fmt.Sprintf("%s: unparsable raw value %q", r.Metric, a.rawText))
			continue
		}
		if a.raw >= r.Threshold {
			v.Severity = v.Severity.Worse(r.Severity)
			v.Reasons = append(v.Reasons, r.reason(a.raw))
		}
	}
}

// strictFailSignature reports whether the raw probe text contains one of
// the recognized fail-verdict or nonzero-critical-warning patterns.
func strictFailSignature(raw string) bool {
	if failVerdictRe.MatchString(raw) {
		return true
	}
	bits, ok := criticalWarning(raw)
	return ok && bits != 0
}

func criticalWarning(raw string) (int64, bool) {
	m := criticalWarningRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	bits, err := strconv.ParseInt(m[1], 16, 64)
	if err != nil {
		return 0, false
	}
	return bits, true
}

type attribute struct {
	raw     int64
	rawText string
	parsed  bool
}

// parseAttributes extracts the ATA attribute table keyed by name.
func parseAttributes(raw string) map[string]attribute {
	attrs := make(map[string]attribute)
	for _, m := range attrRowRe.FindAllStringSubmatch(raw, -1) {
		name, rawField := m[1], m[2]
		value, err := strconv.ParseInt(rawField, 10, 64)
		attrs[name] = attribute{raw: value, rawText: rawField, parsed: err == nil}
	}
	return attrs
}

// lineMetric extracts an integer from a "Label: value" line in NVMe
// health-log output. Values may carry thousands separators, a percent
// sign, or a Celsius suffix.
func lineMetric(raw, label string) (value int64, found, parsed bool) {
	re := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(label) + `:\s+(\S+)`)
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return 0, false, false
	}
	field := strings.TrimSuffix(strings.ReplaceAll(m[1], ",", ""), "%")
	n, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return 0, true, false
	}
	return n, true, true
}
