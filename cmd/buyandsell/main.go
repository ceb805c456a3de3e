// Package main is the entry point for the buyandsell server.
//
// buyandsell is a classifieds REST backend storing users, categories, offers
// and comments as JSONL tables. Configuration is read from an optional YAML
// file, a .env file, the environment and CLI flags, in increasing precedence.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/maruel/buyandsell/internal/config"
	"github.com/maruel/buyandsell/internal/exportjob"
	"github.com/maruel/buyandsell/internal/logging"
	"github.com/maruel/buyandsell/internal/metrics"
	"github.com/maruel/buyandsell/internal/server"
	"github.com/maruel/buyandsell/internal/server/auth"
	"github.com/maruel/buyandsell/internal/server/reqctx"
	"github.com/maruel/buyandsell/internal/storage"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "buyandsell: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	configFile := flag.String("config", "", "YAML configuration file (default $CONFIG_FILE)")
	envFile := flag.String("env-file", "", "dotenv file (default .env when present)")
	httpAddr := flag.String("http", "", "Address to listen on (e.g., localhost:4055, :4055); overrides HOST and PORT")
	dataDir := flag.String("data-dir", "", "Data directory; overrides DATA_DIR")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := logging.Setup()

	cfg, err := config.Load(config.LoadOptions{ConfigFile: *configFile, EnvFile: *envFile})
	if err != nil {
		return err
	}

	// Flags explicitly set win over every other source.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if set["http"] {
		host, port, err := net.SplitHostPort(*httpAddr)
		if err != nil {
			return fmt.Errorf("invalid -http: %w", err)
		}
		if host == "" {
			host = "localhost"
		}
		if cfg.Port, err = strconv.Atoi(port); err != nil {
			return fmt.Errorf("invalid -http port: %w", err)
		}
		cfg.Host = host
	}
	if set["data-dir"] {
		cfg.DataDir = *dataDir
	}
	if set["log-level"] {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	ll.Set(level)

	store, err := storage.Open(storage.Options{
		DataDir:   cfg.DataDir,
		DBName:    cfg.DBName,
		UploadDir: cfg.UploadDirectory,
		Salt:      cfg.Salt,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	slog.InfoContext(ctx, "Database loaded",
		"dir", filepath.Join(cfg.DataDir, cfg.DBName),
		"users", store.Users.Count(),
		"offers", store.Offers.Count(),
		"comments", store.Comments.Count(),
	)

	// Watch own executable for modifications (for development restarts)
	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}

	m := metrics.New()
	if cfg.ExportSchedule != "" {
		exporter := &exportjob.Exporter{Store: store, Metrics: m}
		sched, err := exportjob.NewScheduler(cfg.ExportSchedule, cfg.ExportDirectory, exporter)
		if err != nil {
			return err
		}
		sched.Start(ctx)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := sched.Stop(stopCtx); err != nil {
				slog.WarnContext(ctx, "Export still running at shutdown", "err", err)
			}
		}()
		slog.InfoContext(ctx, "Export scheduled", "schedule", cfg.ExportSchedule, "dir", cfg.ExportDirectory)
	}

	proxies, err := reqctx.NewProxies(cfg.TrustedProxyList())
	if err != nil {
		return err
	}

	buildVersion, _, _, _ := getBuildInfo()
	router := server.NewRouter(&server.Config{
		Store:          store,
		Tokens:         auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL),
		Metrics:        m,
		Version:        buildVersion,
		Proxies:        proxies,
		AuthRatePerMin: cfg.AuthRatePerMin,
		MaxBodyBytes:   cfg.MaxRequestBodyBytes,
	})
	defer router.Close()

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", addr, "version", buildVersion)
		serverErr <- httpServer.ListenAndServe()
	}()

	// Wait for either context cancellation or server error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		// Graceful shutdown
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("buyandsell %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

// watchExecutable cancels ctx through stop when the running binary is
// replaced, so a supervisor restarts the new build.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	// go run builds into a temporary directory that disappears on exit.
	if strings.Contains(exe, string(filepath.Separator)+"go-build") {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "Executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching executable", "err", err)
			}
		}
	}()
	return nil
}
