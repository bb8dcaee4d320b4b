// storagemon inspects local storage health (ZFS pools, md arrays, SMART
// disk data, read-only mounts) and reports findings once per distinct
// problem state. Exits 0 when the run completed, 1 when a report could
// not be recorded or delivered.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"github.com/addisonbair/storagemon/pkg/check"
	"github.com/addisonbair/storagemon/pkg/config"
	"github.com/addisonbair/storagemon/pkg/execx"
	"github.com/addisonbair/storagemon/pkg/mdraid"
	"github.com/addisonbair/storagemon/pkg/mounts"
	"github.com/addisonbair/storagemon/pkg/notify"
	"github.com/addisonbair/storagemon/pkg/report"
	"github.com/addisonbair/storagemon/pkg/smart"
	"github.com/addisonbair/storagemon/pkg/zfs"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall timeout for one inspection run")
	interval := flag.Duration("interval", 0, "Run continuously at this interval (0 = one shot)")
	printOnly := flag.Bool("print", false, "Print the report to stdout instead of notifying")
	verbose := flag.Bool("verbose", false, "Human-readable debug logging")
	flag.Parse()

	logger, err := buildLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", zap.Error(err))
		os.Exit(1)
	}

	app := build(cfg, logger)

	if *interval <= 0 {
		os.Exit(app.runOnce(context.Background(), *timeout, *printOnly))
	}

	// Continuous mode under systemd: report readiness, then inspect on a
	// fixed cadence. Exit codes of individual runs only surface in logs.
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warn("sd_notify failed", zap.Error(err))
	}
	logger.Info("starting inspection loop", zap.Duration("interval", *interval))

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		app.runOnce(context.Background(), *timeout, *printOnly)
		<-ticker.C
	}
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

type app struct {
	logger *zap.Logger
	agg    *report.Aggregator
	gate   *report.Gate
	log    notify.Notifier
	// gated sinks fire only when the report digest changed.
	gated []notify.Notifier
}

func build(cfg *config.Config, logger *zap.Logger) *app {
	cmd := &execx.Runner{Logger: logger}

	scanner := smart.NewScanner(cmd, logger)
	scanner.ExcludeTransports = cfg.ExcludeTransports
	scanner.Thresholds = smart.Thresholds{
		NVMeTempWarn: cfg.NVMeTempWarn,
		SATATempWarn: cfg.SATATempWarn,
	}

	a := &app{
		logger: logger,
		agg: &report.Aggregator{
			Checkers: []check.Checker{
				zfs.NewChecker(cmd),
				mdraid.NewChecker(cmd),
				mounts.NewChecker(cfg.MountAllowlist),
			},
			Scanner: scanner,
			Logger:  logger,
		},
		gate: report.NewGate(cfg.StateFile),
		log:  &notify.FileLog{Path: cfg.LogFile},
		gated: []notify.Notifier{
			notify.Journal{},
		},
	}

	if cfg.MailEnabled() {
		a.gated = append(a.gated, &notify.Mail{
			Relay:    cfg.MailRelay,
			From:     cfg.MailFrom,
			To:       cfg.MailTo,
			Username: cfg.MailUser,
			Password: cfg.MailPass,
		})
	}
	return a
}

// runOnce performs one full inspection and delivery pass.
func (a *app) runOnce(parent context.Context, timeout time.Duration, printOnly bool) int {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	rep := a.agg.Run(ctx)
	if !rep.Warranted() {
		a.logger.Info("storage healthy, nothing to report")
		return 0
	}

	subject, body := rep.Subject(), rep.Body()

	if printOnly {
		fmt.Println(subject)
		fmt.Println()
		fmt.Print(body)
		return 0
	}

	exit := 0

	// The log file records every run that found something, including runs
	// whose notification is suppressed as a duplicate.
	if err := a.log.Send(subject, body); err != nil {
		a.logger.Error("log file write failed", zap.Error(err))
		exit = 1
	}

	digest := report.Digest(rep.Canonical())
	if !a.gate.ShouldSend(digest) {
		a.logger.Info("report unchanged since last notification, suppressed",
			zap.String("digest", digest[:12]))
		return exit
	}

	if err := notify.Deliver(a.logger, a.gated, subject, body); err != nil {
		// Leave the stored digest alone so the next run retries delivery.
		return 1
	}
	if err := a.gate.Commit(digest); err != nil {
		a.logger.Error("recording sent report failed", zap.Error(err))
		return 1
	}
	a.logger.Info("report delivered", zap.String("digest", digest[:12]))
	return exit
}
