package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/gofrs/flock"
	"github.com/jessevdk/go-flags"
	"github.com/mattn/go-isatty"

	"github.com/umputun/appcast/pkg/appcast"
	"github.com/umputun/appcast/pkg/config"
)

// Opts with all CLI options
type Opts struct {
	Manifest    string        `short:"m" long:"manifest" env:"APPCAST_MANIFEST" required:"true" description:"release manifest, yaml or toml"`
	Feed        string        `short:"f" long:"feed" env:"APPCAST_FEED" description:"appcast file to update, overrides manifest feed"`
	Strict      bool          `long:"strict" env:"APPCAST_STRICT" description:"fail if the existing appcast can't be parsed instead of replacing it"`
	DryRun      bool          `long:"dry-run" description:"merge and validate, but don't write the appcast"`
	LockTimeout time.Duration `long:"lock-timeout" env:"APPCAST_LOCK_TIMEOUT" default:"30s" description:"max wait for the appcast lock"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	if opts.NoColor || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
	setupLog(opts.Debug)

	log.Printf("[DEBUG] appcast version %s", revision)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Printf("[ERROR] %v", err)
		cancel()
		os.Exit(1) //nolint:gocritic // cancel is called explicitly above
	}
}

// run loads the manifest and merges its releases into the appcast under an exclusive lock
func run(ctx context.Context, opts Opts, out io.Writer) error {
	manifest, err := config.Load(opts.Manifest)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	feedPath := opts.Feed
	if feedPath == "" {
		feedPath = manifest.GetFeed()
	}
	if feedPath == "" {
		return errors.New("appcast file is not set, use --feed or manifest feed")
	}

	releases, err := manifest.DomainReleases()
	if err != nil {
		return fmt.Errorf("failed to prepare releases: %w", err)
	}

	unlock, err := lockFeed(ctx, feedPath, opts.LockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	report, err := appcast.Write(feedPath, releases, appcast.Options{Strict: opts.Strict, DryRun: opts.DryRun})
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", feedPath, err)
	}
	if report.Status != appcast.LoadedExisting {
		log.Printf("[INFO] %s was %s, created a new appcast", feedPath, report.Status)
	}

	_, err = fmt.Fprintln(out, renderSummary(releases, report))
	return err
}

// lockFeed takes an exclusive lock next to the appcast, so two runs never edit it at once
func lockFeed(ctx context.Context, feedPath string, timeout time.Duration) (unlock func(), err error) {
	lock := flock.New(feedPath + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := lock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lock.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("appcast %s is locked by another run", feedPath)
	}
	log.Printf("[DEBUG] lock %s acquired", lock.Path())
	return func() {
		if err := lock.Unlock(); err != nil {
			log.Printf("[WARN] failed to release lock %s: %v", lock.Path(), err)
		}
	}, nil
}

func setupLog(dbg bool) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
