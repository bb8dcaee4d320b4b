package report

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Gate suppresses re-sending a report whose content has not changed.
// The sole persisted state is one file holding the digest of the last
// report actually sent.
type Gate struct {
	Path string
}

// NewGate creates a dedup gate backed by the state file at path.
func NewGate(path string) *Gate {
	return &Gate{Path: path}
}

// Digest computes the canonical report digest.
func Digest(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// ShouldSend reports whether the digest differs from the last-sent one.
// A missing or unreadable state file means no previous report: the gate
// fails open toward sending, never toward silence.
func (g *Gate) ShouldSend(digest string) bool {
	data, err := os.ReadFile(g.Path)
	if err != nil {
		return true
	}
	return strings.TrimSpace(string(data)) != digest
}

// Commit records the digest of a sent report, overwriting any previous
// value.
func (g *Gate) Commit(digest string) error {
	if err := os.MkdirAll(filepath.Dir(g.Path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	if err := os.WriteFile(g.Path, []byte(digest+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return nil
}
