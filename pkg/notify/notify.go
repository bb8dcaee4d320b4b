// Package notify delivers finished reports to their sinks.
package notify

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

// Notifier delivers one report. Implementations must be safe to call
// repeatedly; delivery failures are reported, never retried internally.
type Notifier interface {
	Name() string
	Send(subject, body string) error
}

// Deliver sends the report to every sink. One sink failing does not stop
// the others; all failures come back joined.
func Deliver(logger *zap.Logger, sinks []Notifier, subject, body string) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var errs []error
	for _, s := range sinks {
		if err := s.Send(subject, body); err != nil {
			logger.Error("notification failed",
				zap.String("sink", s.Name()),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		logger.Info("notification delivered", zap.String("sink", s.Name()))
	}
	return errors.Join(errs...)
}

// FileLog appends every report to a local log file. Unlike the other
// sinks it is not behind the dedup gate: the log is the on-host history
// of every run that found something.
type FileLog struct {
	Path string
}

func (f *FileLog) Name() string { return "logfile" }

func (f *FileLog) Send(subject, body string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	fh, err := os.OpenFile(f.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer fh.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "----- %s -----\n", time.Now().UTC().Format(time.RFC3339))
	b.WriteString(subject)
	b.WriteString("\n\n")
	b.WriteString(strings.TrimRight(body, "\n"))
	b.WriteString("\n\n")

	if _, err := io.WriteString(fh, b.String()); err != nil {
		return fmt.Errorf("appending to log file: %w", err)
	}
	return fh.Close()
}

// Journal writes the report to the systemd journal when one is present.
// On hosts without journald the sink is a no-op rather than an error.
type Journal struct{}

func (Journal) Name() string { return "journal" }

func (Journal) Send(subject, body string) error {
	if !journal.Enabled() {
		return nil
	}
	return journal.Send(subject+"\n"+body, journal.PriWarning, map[string]string{
		"SYSLOG_IDENTIFIER": "storagemon",
	})
}

// Mail sends the report through an SMTP relay. Plain auth is used when a
// username is configured; otherwise the relay is trusted to accept
// unauthenticated submission (the usual localhost-postfix setup).
type Mail struct {
	Relay    string // host:port
	From     string
	To       []string
	Username string
	Password string
}

func (m *Mail) Name() string { return "mail" }

func (m *Mail) Send(subject, body string) error {
	var auth sasl.Client
	if m.Username != "" {
		auth = sasl.NewPlainClient("", m.Username, m.Password)
	}
	msg := m.message(subject, body)
	if err := smtp.SendMail(m.Relay, auth, m.From, m.To, strings.NewReader(msg)); err != nil {
		return fmt.Errorf("sending via %s: %w", m.Relay, err)
	}
	return nil
}

func (m *Mail) message(subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	// SMTP wants CRLF line endings throughout.
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.String()
}
