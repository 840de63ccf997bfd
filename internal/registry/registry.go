// Package registry implements the scanner plugin registry (C3). It is a
// static, build-time map from scanner name to constructor, populated by
// each plugin's init() — the REDESIGN FLAG from spec §9/§4.3 applied: no
// camel-case-to-underscore module resolution, config scanner names are
// registry keys verbatim.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fleetscan/worker/internal/coordinator"
	"github.com/fleetscan/worker/internal/model"
)

// Scanner is the uniform contract every plugin implements (spec §6).
type Scanner interface {
	ScanWrapper(ctx context.Context, data []byte, file model.File, options map[string]any, expireAt time.Time) ([]model.File, map[string]any, error)
}

// Constructor builds a Scanner given the full worker config and the
// coordinator client, mirroring spec §4.3's "construction receives the
// full backend config and the coordinator client."
type Constructor func(cfg model.Config, coord *coordinator.Client) (Scanner, error)

var (
	ctorsMu sync.Mutex
	ctors   = make(map[string]Constructor)
)

// Register associates name with ctor. Called from each plugin's init();
// a duplicate name is a programming error and panics at startup rather
// than silently shadowing.
func Register(name string, ctor Constructor) {
	ctorsMu.Lock()
	defer ctorsMu.Unlock()
	if _, exists := ctors[name]; exists {
		panic(fmt.Sprintf("registry: scanner %q already registered", name))
	}
	ctors[name] = ctor
}

// Registry lazily instantiates and caches scanner plugins by name for the
// lifetime of one worker. It is exclusively owned by the worker's single
// goroutine (spec §5 — "not concurrently accessed"); no internal locking.
type Registry struct {
	cfg       model.Config
	coord     *coordinator.Client
	instances map[string]Scanner
}

func New(cfg model.Config, coord *coordinator.Client) *Registry {
	return &Registry{
		cfg:       cfg,
		coord:     coord,
		instances: make(map[string]Scanner),
	}
}

// Get resolves name to a live plugin instance, constructing and caching it
// on first use. A name with no registered constructor is
// model.ErrMissingScanner — a soft failure the caller logs and skips
// (spec §4.3, §7).
func (r *Registry) Get(name string) (Scanner, error) {
	if s, ok := r.instances[name]; ok {
		return s, nil
	}

	ctorsMu.Lock()
	ctor, ok := ctors[name]
	ctorsMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrMissingScanner, name)
	}

	s, err := ctor(r.cfg, r.coord)
	if err != nil {
		return nil, fmt.Errorf("%w: constructing %s: %w", model.ErrScannerFault, name, err)
	}
	r.instances[name] = s
	return s, nil
}
