// Command buyandsell-cli generates, imports and exports offer data for the
// buyandsell server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/maruel/buyandsell/internal/config"
	"github.com/maruel/buyandsell/internal/logging"
	"github.com/maruel/buyandsell/internal/storage"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "buyandsell-cli: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	envFile    string
	dataDir    string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "buyandsell-cli",
		Short: "Manage buyandsell offer data",
		Long: `buyandsell-cli generates mock offers, imports and exports the offer
catalogue as tab separated files and prints the API request schemas.

The database location and password salt are read the same way as the server:
YAML file, .env file, then environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ll := logging.Setup()
			if opts.logLevel != "" {
				level, err := logging.ParseLevel(opts.logLevel)
				if err != nil {
					return err
				}
				ll.Set(level)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML configuration file (default $CONFIG_FILE)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file (default .env when present)")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Data directory; overrides DATA_DIR")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newVersionCommand(),
		newGenerateCommand(),
		newImportCommand(opts),
		newExportCommand(opts),
		newSchemaCommand(),
	)
	return cmd
}

// openStore loads the configuration and opens the database it names.
func (o *globalOptions) openStore() (*storage.Store, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: o.configFile, EnvFile: o.envFile})
	if err != nil {
		return nil, err
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if err := cfg.ValidateStorage(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	store, err := storage.Open(storage.Options{
		DataDir:   cfg.DataDir,
		DBName:    cfg.DBName,
		UploadDir: cfg.UploadDirectory,
		Salt:      cfg.Salt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	slog.Debug("Database loaded", "dir", filepath.Join(cfg.DataDir, cfg.DBName), "offers", store.Offers.Count())
	return store, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			version, goVersion, revision := "unknown", "unknown", "unknown"
			if info, ok := debug.ReadBuildInfo(); ok {
				version = info.Main.Version
				if version == "" || version == "(devel)" {
					version = "dev"
				}
				goVersion = info.GoVersion
				for _, s := range info.Settings {
					if s.Key == "vcs.revision" {
						revision = s.Value
					}
				}
			}
			_, _ = fmt.Fprintf(out, "buyandsell-cli %s\n", version)
			_, _ = fmt.Fprintf(out, "  Go version: %s\n", goVersion)
			_, _ = fmt.Fprintf(out, "  Revision:   %s\n", revision)
		},
	}
}
