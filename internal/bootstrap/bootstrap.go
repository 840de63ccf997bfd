// Package bootstrap wires the worker's components together from a config
// file path (C7): load and validate config, build the classifier,
// coordinator client, scanner registry and distributor, and hand back one
// worker.Worker ready to run to retirement.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fleetscan/worker/internal/classify"
	"github.com/fleetscan/worker/internal/coordinator"
	"github.com/fleetscan/worker/internal/distribute"
	"github.com/fleetscan/worker/internal/log"
	"github.com/fleetscan/worker/internal/model"
	"github.com/fleetscan/worker/internal/registry"
	"github.com/fleetscan/worker/internal/worker"
)

// DefaultConfigPath is used when --worker-config is not given. It
// deliberately does not name the real-world system this worker's design
// was distilled from.
const DefaultConfigPath = "/etc/fleetscan/worker.yaml"

// LoadConfig reads and CUE-validates the worker config document at path.
func LoadConfig(path string) (model.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Config{}, fmt.Errorf("opening config %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return decodeConfig(f)
}

func decodeConfig(r io.Reader) (model.Config, error) {
	cfg, err := model.LoadConfig(r)
	if err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Bootstrap is the fully wired set of components a single worker process
// owns for its lifetime.
type Bootstrap struct {
	Config model.Config
	Coord  *coordinator.Client
	Worker *worker.Worker
}

// New loads cfg, pings the coordinator (exiting the caller's responsibility
// on failure — ErrCoordinatorUnavailable is fatal per spec §6/§7), and
// assembles every downstream component.
func New(ctx context.Context, cfg model.Config) (*Bootstrap, error) {
	classifier, err := classify.New(cfg.Tasting)
	if err != nil {
		return nil, fmt.Errorf("building classifier: %w", err)
	}

	coord := coordinator.New(cfg.Coordinator.Addr, cfg.Coordinator.DB)
	if err := coord.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging coordinator: %w", err)
	}

	scanners, err := cfg.CompiledScanners()
	if err != nil {
		return nil, fmt.Errorf("compiling scanner rules: %w", err)
	}

	limits, err := cfg.Limits.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolving limits: %w", err)
	}

	reg := registry.New(cfg, coord)
	dist := distribute.New(classifier, reg, coord, limits, cfg.ScannerNames, scanners)
	w := worker.New(coord, dist, limits)

	return &Bootstrap{Config: cfg, Coord: coord, Worker: w}, nil
}

// Logger builds the worker's logger per cfg/verbose, matching the
// teacher's --verbose-overrides-config-file precedence rule.
func Logger(cfg model.Config, verbose bool) *slog.Logger {
	return log.New(verbose || cfg.LoggingCfg == "debug")
}
