package smart

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/addisonbair/storagemon/pkg/execx"
)

// BlockDevice is one entry from the lsblk tree.
type BlockDevice struct {
	Name       string        `json:"name"`
	Type       string        `json:"type"`
	Transport  string        `json:"tran"`
	Fstype     string        `json:"fstype"`
	Mountpoint string        `json:"mountpoint"`
	Children   []BlockDevice `json:"children"`
}

type lsblkOutput struct {
	BlockDevices []BlockDevice `json:"blockdevices"`
}

// virtualPrefixes are device name prefixes that never carry SMART data:
// compressed RAM, loopback, device-mapper, software RAID, CD-ROM, ramdisk.
var virtualPrefixes = []string{"zram", "loop", "dm-", "md", "sr", "ram"}

// listDisks enumerates whole disks via lsblk.
func listDisks(ctx context.Context, cmd execx.Commander) ([]BlockDevice, error) {
	out, err := cmd.Run(ctx, "lsblk", "-J", "-o", "NAME,TYPE,TRAN,FSTYPE,MOUNTPOINT")
	if err != nil {
		return nil, fmt.Errorf("lsblk: %w", err)
	}
	return parseLsblk(out.Stdout)
}

func parseLsblk(raw string) ([]BlockDevice, error) {
	var parsed lsblkOutput
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parsing lsblk output: %w", err)
	}

	var disks []BlockDevice
	for _, d := range parsed.BlockDevices {
		if d.Type == "disk" {
			disks = append(disks, d)
		}
	}
	return disks, nil
}

// eligible decides whether a disk should be probed. Virtual devices,
// disks hosting only swap, and disks on excluded transports are skipped.
func eligible(d BlockDevice, excludeTransports []string) (bool, string) {
	for _, p := range virtualPrefixes {
		if strings.HasPrefix(d.Name, p) {
			return false, "virtual device class " + p
		}
	}
	if swapOnly(d) {
		return false, "hosts only swap"
	}
	for _, t := range excludeTransports {
		if strings.EqualFold(d.Transport, t) {
			return false, "excluded transport " + d.Transport
		}
	}
	return true, ""
}

// swapOnly reports whether every in-use filesystem on the disk (its own
// or a child's) is swap. A disk with nothing in use is kept: an unmounted
// disk may still hold data.
func swapOnly(d BlockDevice) bool {
	inUse := 0
	for _, c := range append([]BlockDevice{d}, d.Children...) {
		if c.Fstype == "" && c.Mountpoint == "" {
			continue
		}
		inUse++
		if c.Fstype != "swap" && c.Mountpoint != "[SWAP]" {
			return false
		}
	}
	return inUse > 0
}
