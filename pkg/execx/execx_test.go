package execx

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesStdout(t *testing.T) {
	r := &Runner{}
	out, err := r.Run(context.Background(), "sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.Stdout, "hello") {
		t.Errorf("stdout = %q, want to contain hello", out.Stdout)
	}
	if out.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", out.ExitCode)
	}
}

func TestRunNonZeroExitIsNotAnError(t *testing.T) {
	r := &Runner{}
	out, err := r.Run(context.Background(), "sh", "-c", "echo oops >&2; exit 3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", out.ExitCode)
	}
	if !strings.Contains(out.Stderr, "oops") {
		t.Errorf("stderr = %q, want to contain oops", out.Stderr)
	}
	if !strings.Contains(out.Combined, "oops") {
		t.Errorf("combined = %q, want to contain oops", out.Combined)
	}
}

func TestRunMissingBinary(t *testing.T) {
	r := &Runner{}
	if r.Available("storagemon-no-such-binary") {
		t.Fatal("Available should be false for a nonexistent binary")
	}
	_, err := r.Run(context.Background(), "storagemon-no-such-binary")
	if err == nil {
		t.Error("expected error for missing binary")
	}
}

func TestRunTimeout(t *testing.T) {
	r := &Runner{}
	start := time.Now()
	_, err := r.RunTimeout(context.Background(), 100*time.Millisecond, "sh", "-c", "sleep 5")
	if err == nil {
		t.Error("expected error for timed-out command")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("command was not killed promptly, took %v", elapsed)
	}
}
