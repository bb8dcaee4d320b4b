package check

import (
	"context"
	"errors"
	"testing"
)

type mockChecker struct {
	name   string
	result Result
	err    error
	panics bool
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(ctx context.Context) (Result, error) {
	if m.panics {
		panic("boom")
	}
	return m.result, m.err
}

func TestRunAll(t *testing.T) {
	tests := []struct {
		name       string
		checks     []Checker
		wantWorst  Severity
		wantCount  int
		wantOrder  []string
	}{
		{
			name:      "no checks",
			checks:    nil,
			wantWorst: SeverityOK,
			wantCount: 0,
		},
		{
			name: "all healthy",
			checks: []Checker{
				&mockChecker{name: "zfs", result: OK("zfs", "no pools")},
				&mockChecker{name: "mdraid", result: OK("mdraid", "all arrays healthy")},
			},
			wantWorst: SeverityOK,
			wantCount: 2,
			wantOrder: []string{"zfs", "mdraid"},
		},
		{
			name: "one failing",
			checks: []Checker{
				&mockChecker{name: "zfs", result: OK("zfs", "no pools")},
				&mockChecker{name: "mdraid", result: Result{Source: "mdraid", Severity: SeverityFail, Summary: "md0 degraded"}},
			},
			wantWorst: SeverityFail,
			wantCount: 2,
			wantOrder: []string{"zfs", "mdraid"},
		},
		{
			name: "order is preserved",
			checks: []Checker{
				&mockChecker{name: "zfs", result: OK("zfs", "")},
				&mockChecker{name: "mdraid", result: OK("mdraid", "")},
				&mockChecker{name: "mounts", result: OK("mounts", "")},
			},
			wantWorst: SeverityOK,
			wantCount: 3,
			wantOrder: []string{"zfs", "mdraid", "mounts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := RunAll(context.Background(), nil, tt.checks)

			if len(results) != tt.wantCount {
				t.Fatalf("got %d results, want %d", len(results), tt.wantCount)
			}
			if got := Worst(results); got != tt.wantWorst {
				t.Errorf("Worst() = %v, want %v", got, tt.wantWorst)
			}
			for i, want := range tt.wantOrder {
				if results[i].Source != want {
					t.Errorf("results[%d].Source = %q, want %q", i, results[i].Source, want)
				}
			}
		})
	}
}

func TestRunAllIsolatesErrors(t *testing.T) {
	checks := []Checker{
		&mockChecker{name: "zfs", err: errors.New("zpool exploded")},
		&mockChecker{name: "mdraid", result: OK("mdraid", "all arrays healthy")},
	}

	results := RunAll(context.Background(), nil, checks)

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Severity != SeveritySkipped {
		t.Errorf("failed check severity = %v, want SKIPPED", results[0].Severity)
	}
	if results[1].Severity != SeverityOK {
		t.Errorf("second check should still have run, got %v", results[1].Severity)
	}
}

func TestRunAllIsolatesPanics(t *testing.T) {
	checks := []Checker{
		&mockChecker{name: "smart", panics: true},
		&mockChecker{name: "mounts", result: OK("mounts", "no read-only mounts")},
	}

	results := RunAll(context.Background(), nil, checks)

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Severity != SeveritySkipped {
		t.Errorf("panicked check severity = %v, want SKIPPED", results[0].Severity)
	}
	if results[0].Source != "smart" {
		t.Errorf("panicked check source = %q, want smart", results[0].Source)
	}
	if results[1].Severity != SeverityOK {
		t.Errorf("second check should still have run, got %v", results[1].Severity)
	}
}

func TestSeverityWorse(t *testing.T) {
	if got := SeverityOK.Worse(SeverityWarn); got != SeverityWarn {
		t.Errorf("OK.Worse(WARN) = %v", got)
	}
	if got := SeverityFail.Worse(SeverityWarn); got != SeverityFail {
		t.Errorf("FAIL.Worse(WARN) = %v", got)
	}
	if got := SeveritySkipped.Worse(SeverityOK); got != SeveritySkipped {
		t.Errorf("SKIPPED.Worse(OK) = %v", got)
	}
}

func TestAlertable(t *testing.T) {
	if OK("zfs", "fine").Alertable() {
		t.Error("OK result should not be alertable")
	}
	if !Skipped("zfs", "tool broken").Alertable() {
		t.Error("skipped result should be alertable as a note")
	}
	r := Result{Source: "smart", Severity: SeverityWarn, Summary: "sda pending sectors"}
	if !r.Alertable() {
		t.Error("WARN result should be alertable")
	}
}

func TestWarrants(t *testing.T) {
	if OK("zfs", "fine").Warrants() {
		t.Error("OK result must not warrant a report")
	}
	if Skipped("zfs", "tool broken").Warrants() {
		t.Error("skipped result must not warrant a report by itself")
	}
	warn := Result{Severity: SeverityWarn}
	fail := Result{Severity: SeverityFail}
	if !warn.Warrants() || !fail.Warrants() {
		t.Error("WARN and FAIL results must warrant a report")
	}
}
