// Command worker runs one fleet worker process to retirement: it pops
// requests from the shared coordinator queue, distributes each file tree
// to its classifiers and scanners, and exits once its configured
// max_files/time_to_live budget is exhausted for a supervisor to restart.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fleetscan/worker/internal/bootstrap"
	"github.com/fleetscan/worker/internal/model"

	_ "github.com/fleetscan/worker/internal/scanner/leaks"
	_ "github.com/fleetscan/worker/internal/scanner/ociimage"
	_ "github.com/fleetscan/worker/internal/scanner/x509scan"
	_ "github.com/fleetscan/worker/internal/scanner/zip"
)

var (
	flagConfigPath string
	flagVerbose    bool

	config model.Config
)

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "worker-config", bootstrap.DefaultConfigPath, "worker config file")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "worker",
	Short:             "runs one fleet scanning worker to retirement",
	PersistentPreRunE: loadAndLog,
	RunE:              run,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("worker: version info not available")
			return
		}
		fmt.Printf("worker: %s\n", info.Main.Version)
		fmt.Printf("go:     %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit: %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:   %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:  %s\n", s.Value)
			}
		}
	},
}

func loadAndLog(cmd *cobra.Command, _ []string) error {
	// version needs neither config nor a coordinator connection.
	if cmd.Name() == versionCmd.Name() {
		return nil
	}

	if _, statErr := os.Stat(flagConfigPath); errors.Is(statErr, os.ErrNotExist) {
		cfg, err := seedDefaultConfig(flagConfigPath)
		if err != nil {
			return fmt.Errorf("seeding default config: %w", err)
		}
		config = cfg
		slog.SetDefault(bootstrap.Logger(config, flagVerbose))
		slog.Info("no config found, wrote a default", "path", flagConfigPath)
		return nil
	}

	cfg, err := bootstrap.LoadConfig(flagConfigPath)
	if err != nil {
		var cerr *model.ConfigError
		if errors.As(err, &cerr) {
			for _, d := range cerr.Details {
				slog.Error(d)
			}
		}
		return fmt.Errorf("loading config: %w", err)
	}
	config = cfg

	slog.SetDefault(bootstrap.Logger(config, flagVerbose))
	slog.Debug("worker starting", "config_path", flagConfigPath)
	return nil
}

// seedDefaultConfig writes a usable default document to path and returns
// it, for a --worker-config target that doesn't exist yet rather than
// failing the process outright (teacher's cmd/seeker/main.go idiom).
func seedDefaultConfig(path string) (model.Config, error) {
	cfg := model.DefaultConfig()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cfg, fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return cfg, fmt.Errorf("creating config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	enc := yaml.NewEncoder(f)
	if err := enc.Encode(cfg); err != nil {
		return cfg, fmt.Errorf("writing default config: %w", err)
	}
	return cfg, enc.Close()
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bs, err := bootstrap.New(ctx, config)
	if err != nil {
		return fmt.Errorf("bootstrapping worker: %w", err)
	}
	defer func() { _ = bs.Coord.Close() }()

	return bs.Worker.Run(ctx)
}
