// Package config loads storagemon configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Defaults for paths and thresholds.
const (
	DefaultEnvFile      = "/etc/storagemon/storagemon.env"
	DefaultStateFile    = "/var/lib/storagemon/last-report.sha256"
	DefaultLogFile      = "/var/log/storagemon.log"
	DefaultNVMeTempWarn = 80
	DefaultSATATempWarn = 60
)

// Config holds all tunables. Everything has a usable default; the mail
// sink stays disabled until a relay is configured.
type Config struct {
	// Transports (lsblk TRAN values) whose disks are skipped during SMART
	// scans. USB bridges routinely garble SMART data, so usb is excluded
	// by default.
	ExcludeTransports []string

	// Temperature warning thresholds in degrees Celsius.
	NVMeTempWarn int
	SATATempWarn int

	// Mountpoints that are allowed to be mounted read-only.
	MountAllowlist []string

	// StateFile holds the digest of the last-sent report.
	StateFile string
	// LogFile receives every warranted report, sent or not.
	LogFile string

	// Mail relay settings. Relay is host:port; empty disables mail.
	MailRelay string
	MailFrom  string
	MailTo    []string
	MailUser  string
	MailPass  string
}

// Load reads configuration from the environment. An optional env file
// (STORAGEMON_ENV_FILE, default /etc/storagemon/storagemon.env) is loaded
// first; a missing file is not an error.
func Load() (*Config, error) {
	envFile := getEnv("STORAGEMON_ENV_FILE", DefaultEnvFile)
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		ExcludeTransports: splitList(getEnv("STORAGEMON_EXCLUDE_TRANSPORTS", "usb")),
		MountAllowlist:    splitList(os.Getenv("STORAGEMON_MOUNT_ALLOWLIST")),
		StateFile:         getEnv("STORAGEMON_STATE_FILE", DefaultStateFile),
		LogFile:           getEnv("STORAGEMON_LOG_FILE", DefaultLogFile),
		MailRelay:         os.Getenv("STORAGEMON_MAIL_RELAY"),
		MailFrom:          getEnv("STORAGEMON_MAIL_FROM", "storagemon@localhost"),
		MailTo:            splitList(os.Getenv("STORAGEMON_MAIL_TO")),
		MailUser:          os.Getenv("STORAGEMON_MAIL_USER"),
		MailPass:          os.Getenv("STORAGEMON_MAIL_PASS"),
	}

	var err error
	cfg.NVMeTempWarn, err = getInt("STORAGEMON_NVME_TEMP_WARN", DefaultNVMeTempWarn)
	if err != nil {
		return nil, err
	}
	cfg.SATATempWarn, err = getInt("STORAGEMON_SATA_TEMP_WARN", DefaultSATATempWarn)
	if err != nil {
		return nil, err
	}

	if cfg.MailRelay != "" && len(cfg.MailTo) == 0 {
		return nil, fmt.Errorf("STORAGEMON_MAIL_RELAY is set but STORAGEMON_MAIL_TO is empty")
	}

	return cfg, nil
}

// MailEnabled reports whether the mail sink is configured.
func (c *Config) MailEnabled() bool {
	return c.MailRelay != "" && len(c.MailTo) > 0
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
