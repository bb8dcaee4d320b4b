// Package zfs checks ZFS pool health via the zpool tool.
package zfs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/addisonbair/storagemon/pkg/check"
	"github.com/addisonbair/storagemon/pkg/execx"
)

// DefaultEventsTimeout bounds the zpool events query, which reads from a
// stream and can hang on some kernels.
const DefaultEventsTimeout = 5 * time.Second

// Checker implements check.Checker for ZFS pool health.
type Checker struct {
	Cmd           execx.Commander
	EventsTimeout time.Duration
}

// NewChecker creates a ZFS checker using the given commander.
func NewChecker(cmd execx.Commander) *Checker {
	return &Checker{Cmd: cmd, EventsTimeout: DefaultEventsTimeout}
}

// Name returns the check name.
func (c *Checker) Name() string { return "zfs" }

// Check inspects pool health. A missing zpool binary or zero pools are
// healthy conditions; only degraded pools alert. The alert detail carries
// the pool listing, verbose status, and recent pool events.
func (c *Checker) Check(ctx context.Context) (check.Result, error) {
	if !c.Cmd.Available("zpool") {
		return check.OK(c.Name(), "zpool not installed"), nil
	}

	list, err := c.Cmd.Run(ctx, "zpool", "list", "-H", "-o", "name")
	if err != nil {
		return check.Result{}, fmt.Errorf("zpool list: %w", err)
	}
	pools := splitLines(list.Stdout)
	if len(pools) == 0 {
		return check.OK(c.Name(), "no pools configured"), nil
	}

	status, err := c.Cmd.Run(ctx, "zpool", "status", "-x")
	if err != nil {
		return check.Result{}, fmt.Errorf("zpool status: %w", err)
	}
	if AllHealthy(status.Stdout) {
		return check.OK(c.Name(), fmt.Sprintf("%d pool(s), all healthy", len(pools))), nil
	}

	summary := firstLine(status.Stdout)
	if summary == "" {
		summary = "pool status degraded"
	}

	var detail strings.Builder
	if out, err := c.Cmd.Run(ctx, "zpool", "list", "-o", "name,size,alloc,free,health"); err == nil {
		detail.WriteString(out.Stdout)
		detail.WriteString("\n")
	}
	if out, err := c.Cmd.Run(ctx, "zpool", "status", "-v"); err == nil {
		detail.WriteString(out.Stdout)
		detail.WriteString("\n")
	}

	timeout := c.EventsTimeout
	if timeout <= 0 {
		timeout = DefaultEventsTimeout
	}
	if out, err := c.Cmd.RunTimeout(ctx, timeout, "zpool", "events"); err == nil {
		detail.WriteString("Recent pool events:\n")
		detail.WriteString(out.Stdout)
	} else {
		fmt.Fprintf(&detail, "(zpool events unavailable: %v)\n", err)
	}

	return check.Result{
		Source:   c.Name(),
		Severity: check.SeverityFail,
		Summary:  summary,
		Detail:   detail.String(),
	}, nil
}

// AllHealthy reports whether a zpool status -x summary means no pool
// needs attention.
func AllHealthy(statusX string) bool {
	s := strings.ToLower(strings.TrimSpace(statusX))
	return s == "" || strings.Contains(s, "all pools are healthy")
}

func splitLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func firstLine(s string) string {
	lines := splitLines(s)
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}
