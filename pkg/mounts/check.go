// Package mounts flags unexpectedly read-only filesystems.
package mounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/addisonbair/storagemon/pkg/check"
)

// Mount is one live mount table entry.
type Mount struct {
	Source string
	Target string
	Fstype string
	Opts   []string
}

// pseudoTypes are kernel-managed filesystems that are expected to be
// read-only or have no meaning for data-loss monitoring.
var pseudoTypes = map[string]bool{
	"proc":     true,
	"sysfs":    true,
	"tmpfs":    true,
	"devtmpfs": true,
	"cgroup":   true,
	"cgroup2":  true,
	"overlay":  true,
	"squashfs": true,
	"fusectl":  true,
	"debugfs":  true,
	"tracefs":  true,
	"ramfs":    true,
}

// Checker implements check.Checker for read-only mounts.
type Checker struct {
	// Allowlist holds mountpoints that may legitimately be read-only.
	Allowlist []string
	// List enumerates live mounts; tests replace it.
	List func(ctx context.Context) ([]Mount, error)
}

// NewChecker creates a mount checker reading the live mount table.
func NewChecker(allowlist []string) *Checker {
	return &Checker{Allowlist: allowlist, List: listMounts}
}

func listMounts(ctx context.Context) ([]Mount, error) {
	parts, err := disk.PartitionsWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("reading mount table: %w", err)
	}
	mounts := make([]Mount, 0, len(parts))
	for _, p := range parts {
		mounts = append(mounts, Mount{
			Source: p.Device,
			Target: p.Mountpoint,
			Fstype: p.Fstype,
			Opts:   p.Opts,
		})
	}
	return mounts, nil
}

// Name returns the check name.
func (c *Checker) Name() string { return "mounts" }

// Check flags mounts carrying the exact option token "ro". Pseudo
// filesystems and allow-listed mountpoints are skipped. A filesystem
// that fell back to read-only usually did so because the kernel hit an
// I/O error, so findings are FAIL-class.
func (c *Checker) Check(ctx context.Context) (check.Result, error) {
	all, err := c.List(ctx)
	if err != nil {
		return check.Result{}, err
	}

	flagged := Filter(all, c.Allowlist)
	if len(flagged) == 0 {
		return check.OK(c.Name(), "no unexpected read-only mounts"), nil
	}

	var summary, detail strings.Builder
	fmt.Fprintf(&summary, "%d unexpected read-only mount(s): ", len(flagged))
	for i, m := range flagged {
		if i > 0 {
			summary.WriteString(", ")
		}
		summary.WriteString(m.Target)
		fmt.Fprintf(&detail, "%s on %s type %s (%s)\n", m.Source, m.Target, m.Fstype, strings.Join(m.Opts, ","))
	}

	return check.Result{
		Source:   c.Name(),
		Severity: check.SeverityFail,
		Summary:  summary.String(),
		Detail:   detail.String(),
	}, nil
}

// Filter returns the mounts that are read-only, not pseudo filesystems,
// and not allow-listed.
func Filter(all []Mount, allowlist []string) []Mount {
	var flagged []Mount
	for _, m := range all {
		if pseudoTypes[m.Fstype] {
			continue
		}
		if allowed(m.Target, allowlist) {
			continue
		}
		if ReadOnly(m.Opts) {
			flagged = append(flagged, m)
		}
	}
	return flagged
}

// ReadOnly reports whether the option set contains the exact token "ro".
// A substring match would false-positive on options like
// errors=remount-ro.
func ReadOnly(opts []string) bool {
	for _, o := range opts {
		if o == "ro" {
			return true
		}
	}
	return false
}

func allowed(target string, allowlist []string) bool {
	for _, a := range allowlist {
		if target == a {
			return true
		}
	}
	return false
}
