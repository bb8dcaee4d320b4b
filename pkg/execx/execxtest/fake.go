// Package execxtest provides a canned-output Commander for checker tests.
package execxtest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/addisonbair/storagemon/pkg/execx"
)

// Call records one invocation.
type Call struct {
	Name string
	Args []string
}

// Fake is an execx.Commander backed by canned responses. Responses are
// keyed by the full command line ("zpool status -x"); a key of just the
// binary name acts as a fallback for any argument list.
type Fake struct {
	// Binaries lists the tools Available reports as installed.
	Binaries []string
	// Responses maps command lines to outputs.
	Responses map[string]execx.Output
	// Errors maps command lines to errors.
	Errors map[string]error
	// Calls records every Run in order.
	Calls []Call
}

var _ execx.Commander = (*Fake)(nil)

// Available reports whether name is in Binaries.
func (f *Fake) Available(name string) bool {
	for _, b := range f.Binaries {
		if b == name {
			return true
		}
	}
	return false
}

// Run returns the canned response for the command line.
func (f *Fake) Run(ctx context.Context, name string, args ...string) (execx.Output, error) {
	return f.RunTimeout(ctx, 0, name, args...)
}

// RunTimeout returns the canned response for the command line, ignoring
// the timeout.
func (f *Fake) RunTimeout(ctx context.Context, _ time.Duration, name string, args ...string) (execx.Output, error) {
	f.Calls = append(f.Calls, Call{Name: name, Args: args})

	key := strings.TrimSpace(name + " " + strings.Join(args, " "))
	if err, ok := f.Errors[key]; ok {
		return execx.Output{}, err
	}
	if err, ok := f.Errors[name]; ok {
		return execx.Output{}, err
	}
	if out, ok := f.Responses[key]; ok {
		return withCombined(out), nil
	}
	if out, ok := f.Responses[name]; ok {
		return withCombined(out), nil
	}
	return execx.Output{}, fmt.Errorf("execxtest: no canned response for %q", key)
}

// withCombined mirrors the real Runner's invariant that Combined carries
// the interleaved stdout and stderr, so responses only need to set the
// individual streams.
func withCombined(out execx.Output) execx.Output {
	if out.Combined == "" {
		out.Combined = out.Stdout + out.Stderr
	}
	return out
}

// CommandLines returns the recorded calls as command-line strings.
func (f *Fake) CommandLines() []string {
	lines := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		lines = append(lines, strings.TrimSpace(c.Name+" "+strings.Join(c.Args, " ")))
	}
	return lines
}
