// Package mdraid checks Linux software RAID (mdadm) array health.
package mdraid

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// DefaultMdstatPath is the kernel's array status table.
const DefaultMdstatPath = "/proc/mdstat"

// Array is one record from the mdstat table.
type Array struct {
	Name    string // md0
	State   string // active, inactive
	Level   string // raid1, raid5, ...
	Devices int    // expected member count
	Active  int    // working member count
	Bitmap  string // per-member status, e.g. "UU" or "U_"
	Notes   []string
}

// Degraded reports whether any member slot is down.
func (a Array) Degraded() bool {
	return strings.Contains(a.Bitmap, "_")
}

// Healthy reports whether the array needs no operator attention.
func (a Array) Healthy() bool {
	return !a.Degraded() && len(a.Notes) == 0
}

var (
	arrayLine  = regexp.MustCompile(`^(md\d+)\s*:\s*(\w+)(?:\s+\(\S+\))?\s+(\S+)\s+(.*)`)
	statusLine = regexp.MustCompile(`\[(\d+)/(\d+)\]\s*\[([U_]+)\]`)
	memberFlag = regexp.MustCompile(`(\S+)\[\d+\]\((F|S|R)\)`)
)

// noteKeywords mark progress or fault lines worth surfacing alongside a
// degraded-member alert.
var noteKeywords = []string{"resync", "recovery", "reshape", "faulty", "removed"}

// ParseMdstatFile parses the mdstat table at path.
func ParseMdstatFile(path string) ([]Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseMdstat(f)
}

// ParseMdstat tokenizes an mdstat table into one record per array.
// Each array entry spans the device line plus its indented continuation
// lines; progress and fault markers become Notes on the owning array.
func ParseMdstat(r io.Reader) ([]Array, error) {
	var arrays []Array
	var current *Array

	flush := func() {
		if current != nil {
			arrays = append(arrays, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if m := arrayLine.FindStringSubmatch(line); m != nil {
			flush()
			current = &Array{
				Name:  m[1],
				State: m[2],
				Level: m[3],
			}
			// Member tokens like sdb1[1](F) mean a faulty device.
			for _, fm := range memberFlag.FindAllStringSubmatch(m[4], -1) {
				if fm[2] == "F" {
					current.Notes = append(current.Notes, "faulty member "+fm[1])
				}
			}
			continue
		}

		if current == nil {
			continue
		}

		if m := statusLine.FindStringSubmatch(line); m != nil {
			current.Devices = atoi(m[1])
			current.Active = atoi(m[2])
			current.Bitmap = m[3]
		}

		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		for _, kw := range noteKeywords {
			if strings.Contains(lower, kw) {
				current.Notes = append(current.Notes, trimmed)
				break
			}
		}
	}
	flush()

	return arrays, scanner.Err()
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
