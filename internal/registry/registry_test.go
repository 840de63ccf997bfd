package registry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetscan/worker/internal/coordinator"
	"github.com/fleetscan/worker/internal/model"
	"github.com/fleetscan/worker/internal/registry"
)

func TestRegistry_LazyInstantiateAndCache(t *testing.T) {
	constructs := 0
	registry.Register("__stub_cache__", func(model.Config, *coordinator.Client) (registry.Scanner, error) {
		constructs++
		return stubScannerImpl{}, nil
	})

	r := registry.New(model.Config{}, nil)
	_, err := r.Get("__stub_cache__")
	require.NoError(t, err)
	_, err = r.Get("__stub_cache__")
	require.NoError(t, err)
	require.Equal(t, 1, constructs, "second Get must reuse the cached instance")
}

func TestRegistry_MissingScannerIsSoftFailure(t *testing.T) {
	r := registry.New(model.Config{}, nil)
	_, err := r.Get("__never_registered__")
	require.True(t, errors.Is(err, model.ErrMissingScanner))
}

type stubScannerImpl struct{}

func (stubScannerImpl) ScanWrapper(context.Context, []byte, model.File, map[string]any, time.Time) ([]model.File, map[string]any, error) {
	return nil, nil, nil
}
