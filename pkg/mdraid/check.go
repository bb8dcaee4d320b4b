package mdraid

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/addisonbair/storagemon/pkg/check"
	"github.com/addisonbair/storagemon/pkg/execx"
)

// partitionName matches partition block devices such as md0p1, which have
// no array detail of their own.
var partitionName = regexp.MustCompile(`^md\d+p\d+$`)

// Checker implements check.Checker for software RAID health.
type Checker struct {
	MdstatPath string
	Cmd        execx.Commander
	// DevPath exists for tests; production uses /dev.
	DevPath string
}

// NewChecker creates an MD-RAID checker using the given commander.
func NewChecker(cmd execx.Commander) *Checker {
	return &Checker{
		MdstatPath: DefaultMdstatPath,
		Cmd:        cmd,
		DevPath:    "/dev",
	}
}

// Name returns the check name.
func (c *Checker) Name() string { return "mdraid" }

// Check inspects the mdstat table. A missing mdadm binary or an absent
// mdstat file means software RAID is not in use and is never alertable.
// Degraded members and resync/recovery/fault notes produce a FAIL result
// carrying per-array mdadm detail.
func (c *Checker) Check(ctx context.Context) (check.Result, error) {
	if !c.Cmd.Available("mdadm") {
		return check.OK(c.Name(), "mdadm not installed"), nil
	}

	arrays, err := ParseMdstatFile(c.MdstatPath)
	if err != nil {
		if os.IsNotExist(err) {
			return check.OK(c.Name(), "no software RAID arrays"), nil
		}
		return check.Result{}, fmt.Errorf("reading %s: %w", c.MdstatPath, err)
	}
	if len(arrays) == 0 {
		return check.OK(c.Name(), "no software RAID arrays"), nil
	}

	var implicated []Array
	for _, a := range arrays {
		if !a.Healthy() {
			implicated = append(implicated, a)
		}
	}
	if len(implicated) == 0 {
		return check.OK(c.Name(), fmt.Sprintf("%d array(s), all healthy", len(arrays))), nil
	}

	var summary, detail strings.Builder
	for i, a := range implicated {
		if i > 0 {
			summary.WriteString("; ")
		}
		if a.Degraded() {
			fmt.Fprintf(&summary, "%s degraded [%s]", a.Name, a.Bitmap)
		} else {
			fmt.Fprintf(&summary, "%s: %s", a.Name, strings.Join(a.Notes, ", "))
		}

		fmt.Fprintf(&detail, "--- %s (%s, %d/%d members) [%s]\n", a.Name, a.Level, a.Active, a.Devices, a.Bitmap)
		for _, n := range a.Notes {
			fmt.Fprintf(&detail, "    %s\n", n)
		}
		if d := c.arrayDetail(ctx, a.Name); d != "" {
			detail.WriteString(d)
			if !strings.HasSuffix(d, "\n") {
				detail.WriteString("\n")
			}
		}
	}

	return check.Result{
		Source:   c.Name(),
		Severity: check.SeverityFail,
		Summary:  summary.String(),
		Detail:   detail.String(),
	}, nil
}

// arrayDetail collects mdadm --detail output for one array. Partition
// devices and names with no real block device node are skipped.
func (c *Checker) arrayDetail(ctx context.Context, name string) string {
	if partitionName.MatchString(name) {
		return ""
	}
	dev := c.DevPath + "/" + name
	if _, err := os.Stat(dev); err != nil {
		return ""
	}
	out, err := c.Cmd.Run(ctx, "mdadm", "--detail", dev)
	if err != nil {
		return fmt.Sprintf("    (mdadm --detail %s failed: %v)", dev, err)
	}
	return out.Combined
}
