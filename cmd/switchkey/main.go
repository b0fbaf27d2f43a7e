// Package main is the entry point for the switchkey daemon.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/switchkey/internal/app"
	"github.com/dshills/switchkey/internal/hotkeyos"
	"github.com/dshills/switchkey/internal/logging"
	"github.com/dshills/switchkey/internal/notify"
	"github.com/dshills/switchkey/internal/store"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type options struct {
	configPath string
	dataDir    string
	legacyPath string
	logLevel   string
	dryRun     bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	settings, err := app.LoadSettings(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.dataDir != "" {
		settings.DataDir = opts.dataDir
	}
	if opts.legacyPath != "" {
		settings.LegacyPath = opts.legacyPath
	}
	if opts.logLevel != "" {
		settings.LogLevel = opts.logLevel
	}

	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(settings.LogLevel)
	logger := logging.New(cfg)

	storeOpts := []store.Option{
		store.WithLogger(logger.WithComponent("store")),
		store.WithBackupRetention(settings.BackupRetention),
	}
	if settings.LegacyPath != "" {
		storeOpts = append(storeOpts, store.WithLegacyPath(settings.LegacyPath))
	}
	st, err := store.Open(settings.BindingsPath(), storeOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open configuration store: %v\n", err)
		return 1
	}

	// Seed the auto-key policy from settings on a fresh document only.
	if policy := st.AutoKey(); !policy.Enabled && settings.AutoKey.Enabled {
		policy.Enabled = true
		policy.Pattern = settings.AutoKey.Pattern
		policy.CustomTemplate = settings.AutoKey.CustomTemplate
		if err := st.SetAutoKey(policy); err != nil {
			logger.Warn("auto-key policy seed failed: %v", err)
		}
	}

	var backend hotkeyos.Backend
	if opts.dryRun {
		logger.Info("dry-run mode: hotkeys are simulated, not registered")
		backend = hotkeyos.NewMemoryBackend()
	} else {
		backend = hotkeyos.NewSystemBackend()
	}

	// Platform window enumeration plugs in here as a WindowSource; the
	// in-memory source stands in until glue for the host is wired up.
	windows := hotkeyos.NewMemoryWindows()

	manager := app.NewManager(settings, st, backend, windows, logger)
	manager.Subscribe(func(e notify.Event) {
		logger.Debug("change: %s identity=%s global=%s", e.Type, e.Identity, e.GlobalType)
	})
	if err := manager.Start(); err != nil {
		logger.Warn("startup replay incomplete: %v", err)
	}
	defer manager.Stop()

	watcher, err := store.NewWatcher(st, func() {
		logger.Info("bindings document changed on disk, resynchronized")
	}, logger.WithComponent("watcher"))
	if err != nil {
		logger.Warn("file watch unavailable: %v", err)
	} else {
		defer watcher.Close()
	}

	logger.Info("switchkey %s ready, data dir %s", version, settings.DataDir)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
	logger.Info("shutting down")
	return 0
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.configPath, "config", "", "Path to settings file")
	flag.StringVar(&opts.configPath, "c", "", "Path to settings file (shorthand)")
	flag.StringVar(&opts.dataDir, "data-dir", "", "Directory for the bindings document and backups")
	flag.StringVar(&opts.legacyPath, "legacy", "", "Legacy configuration file to migrate from")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "Simulate hotkey registration without touching the OS")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Switchkey - priority-arbitrated global shortcuts for game windows\n\n")
		fmt.Fprintf(os.Stderr, "Usage: switchkey [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("Switchkey %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	return opts
}
