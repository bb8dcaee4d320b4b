package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addisonbair/storagemon/pkg/check"
	"github.com/addisonbair/storagemon/pkg/smart"
)

type stubChecker struct {
	name   string
	result check.Result
	err    error
}

func (s *stubChecker) Name() string { return s.name }
func (s *stubChecker) Check(ctx context.Context) (check.Result, error) {
	return s.result, s.err
}

type stubScanner struct {
	report *smart.ScanReport
	err    error
	panics bool
	calls  int
}

func (s *stubScanner) Scan(ctx context.Context) (*smart.ScanReport, error) {
	s.calls++
	if s.panics {
		panic("scanner exploded")
	}
	return s.report, s.err
}

func cleanScan() *smart.ScanReport {
	return &smart.ScanReport{Observations: []smart.Observation{
		{Name: "sda", Device: "/dev/sda", Severity: check.SeverityOK},
	}}
}

func warnScan() *smart.ScanReport {
	return &smart.ScanReport{Observations: []smart.Observation{
		{Name: "sda", Device: "/dev/sda", Severity: check.SeverityOK},
		{Name: "sdb", Device: "/dev/sdb", Severity: check.SeverityWarn,
			Reasons: []string{"Current_Pending_Sector = 8 (threshold 1)"},
			Raw:     "SMART output here", ExitCode: 0},
	}}
}

func okCheckers() []check.Checker {
	return []check.Checker{
		&stubChecker{name: "zfs", result: check.OK("zfs", "no pools configured")},
		&stubChecker{name: "mdraid", result: check.OK("mdraid", "no software RAID arrays")},
		&stubChecker{name: "mounts", result: check.OK("mounts", "no unexpected read-only mounts")},
	}
}

func TestRunHealthySystemNotWarranted(t *testing.T) {
	a := &Aggregator{Checkers: okCheckers(), Scanner: &stubScanner{report: cleanScan()}}
	r := a.Run(context.Background())

	assert.False(t, r.Warranted())
}

func TestRunSectionOrder(t *testing.T) {
	checkers := []check.Checker{
		&stubChecker{name: "zfs", result: check.Result{Source: "zfs", Severity: check.SeverityFail, Summary: "pool tank degraded", Detail: "zpool status output"}},
		&stubChecker{name: "mdraid", result: check.Result{Source: "mdraid", Severity: check.SeverityFail, Summary: "md0 degraded [U_]", Detail: "mdadm detail"}},
		&stubChecker{name: "mounts", result: check.Result{Source: "mounts", Severity: check.SeverityFail, Summary: "1 unexpected read-only mount(s): /backup", Detail: "/dev/sdc1 on /backup type xfs (ro,noatime)"}},
	}
	a := &Aggregator{Checkers: checkers, Scanner: &stubScanner{report: warnScan()}}
	r := a.Run(context.Background())

	require.True(t, r.Warranted())
	body := r.Canonical()

	zfsIdx := strings.Index(body, "=== zfs: FAIL ===")
	mdIdx := strings.Index(body, "=== mdraid: FAIL ===")
	mntIdx := strings.Index(body, "=== mounts: FAIL ===")
	smartIdx := strings.Index(body, "=== smart: WARN ===")
	require.NotEqual(t, -1, zfsIdx)
	require.NotEqual(t, -1, mdIdx)
	require.NotEqual(t, -1, mntIdx)
	require.NotEqual(t, -1, smartIdx)
	assert.Less(t, zfsIdx, mdIdx)
	assert.Less(t, mdIdx, mntIdx)
	assert.Less(t, mntIdx, smartIdx)
}

func TestRunSMARTTrailingNoteWhenClean(t *testing.T) {
	checkers := []check.Checker{
		&stubChecker{name: "zfs", result: check.Result{Source: "zfs", Severity: check.SeverityFail, Summary: "pool tank degraded"}},
		&stubChecker{name: "mdraid", result: check.OK("mdraid", "no software RAID arrays")},
		&stubChecker{name: "mounts", result: check.OK("mounts", "no unexpected read-only mounts")},
	}
	a := &Aggregator{Checkers: checkers, Scanner: &stubScanner{report: cleanScan()}}
	r := a.Run(context.Background())

	body := r.Canonical()
	assert.Contains(t, body, "SMART disk summary:")
	assert.NotContains(t, body, "=== smart:")
	assert.NotContains(t, body, "=== mdraid:", "healthy checks do not get sections")
}

func TestRunSMARTPromotedWhenOnlyProblem(t *testing.T) {
	a := &Aggregator{Checkers: okCheckers(), Scanner: &stubScanner{report: warnScan()}}
	r := a.Run(context.Background())

	require.True(t, r.Warranted())
	body := r.Canonical()
	assert.Contains(t, body, "=== smart: WARN ===")
	assert.Contains(t, body, "Current_Pending_Sector = 8")
	assert.NotContains(t, body, "SMART disk summary:", "promoted section replaces the trailing note")
}

func TestRunCheckerErrorBecomesSkippedNote(t *testing.T) {
	checkers := []check.Checker{
		&stubChecker{name: "zfs", err: errors.New("zpool wedged")},
		&stubChecker{name: "mdraid", result: check.OK("mdraid", "no software RAID arrays")},
		&stubChecker{name: "mounts", result: check.Result{Source: "mounts", Severity: check.SeverityFail, Summary: "1 unexpected read-only mount(s): /backup"}},
	}
	a := &Aggregator{Checkers: checkers, Scanner: &stubScanner{report: cleanScan()}}
	r := a.Run(context.Background())

	require.True(t, r.Warranted(), "the mounts FAIL still warrants a report")
	body := r.Canonical()
	assert.Contains(t, body, "=== zfs: SKIPPED ===")
	assert.Contains(t, body, "zpool wedged")
}

func TestRunSkippedAloneDoesNotWarrant(t *testing.T) {
	checkers := []check.Checker{
		&stubChecker{name: "zfs", err: errors.New("zpool wedged")},
		&stubChecker{name: "mdraid", result: check.OK("mdraid", "no software RAID arrays")},
		&stubChecker{name: "mounts", result: check.OK("mounts", "no unexpected read-only mounts")},
	}
	a := &Aggregator{Checkers: checkers, Scanner: &stubScanner{report: cleanScan()}}
	r := a.Run(context.Background())

	assert.False(t, r.Warranted(), "an internal checker error is not a storage alert")
}

func TestRunScannerFailureIsIsolated(t *testing.T) {
	a := &Aggregator{Checkers: okCheckers(), Scanner: &stubScanner{err: errors.New("lsblk missing")}}
	r := a.Run(context.Background())

	assert.False(t, r.Warranted())
	assert.Contains(t, r.SMARTNote, "lsblk missing")
}

func TestRunScannerPanicIsIsolated(t *testing.T) {
	a := &Aggregator{Checkers: okCheckers(), Scanner: &stubScanner{panics: true}}
	r := a.Run(context.Background())

	assert.False(t, r.Warranted())
	assert.Contains(t, r.SMARTNote, "scanner exploded")
}

func TestCanonicalExcludesTimestamp(t *testing.T) {
	build := func(when time.Time) *Report {
		return &Report{
			Host: "nas",
			Time: when,
			Results: []check.Result{
				{Source: "zfs", Severity: check.SeverityFail, Summary: "pool tank degraded"},
			},
			SMART: cleanScan(),
		}
	}

	first := build(time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC))
	second := build(time.Date(2026, 8, 24, 11, 0, 0, 0, time.UTC))

	assert.Equal(t, first.Canonical(), second.Canonical())
	assert.NotEqual(t, first.Body(), second.Body(), "the delivered body still shows when it was generated")
}

func TestSubject(t *testing.T) {
	r := &Report{
		Host: "nas",
		Results: []check.Result{
			{Source: "zfs", Severity: check.SeverityFail, Summary: "pool tank degraded"},
		},
		SMART: cleanScan(),
	}
	assert.Equal(t, "[storagemon] nas: storage health FAIL", r.Subject())
}
