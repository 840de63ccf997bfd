package distribute_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetscan/worker/internal/classify"
	"github.com/fleetscan/worker/internal/coordinator"
	"github.com/fleetscan/worker/internal/distribute"
	"github.com/fleetscan/worker/internal/model"
	"github.com/fleetscan/worker/internal/registry"
)

// fakeCoord stands in for *coordinator.Client: it serves bytes by pointer
// and records every emitted event, so tests can assert on the distributor's
// traversal and emission behavior without a live Redis connection.
type fakeCoord struct {
	mu      sync.Mutex
	bytes   map[string][]byte
	emitted []emission
}

type emission struct {
	rootID   string
	record   []byte
	expireAt time.Time
}

func newFakeCoord() *fakeCoord {
	return &fakeCoord{bytes: make(map[string][]byte)}
}

func (f *fakeCoord) put(pointer string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bytes[pointer] = data
}

func (f *fakeCoord) DrainBytes(_ context.Context, pointer string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bytes[pointer], nil
}

func (f *fakeCoord) Emit(_ context.Context, rootID string, record []byte, expireAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, emission{rootID: rootID, record: append([]byte(nil), record...), expireAt: expireAt})
	return nil
}

func newClassifier(t *testing.T) *classify.Classifier {
	t.Helper()
	dir := t.TempDir()
	rf := filepath.Join(dir, "noop.rules")
	require.NoError(t, os.WriteFile(rf, []byte("# empty\n"), 0o644))
	c, err := classify.New(model.Tasting{RuleFiles: rf})
	require.NoError(t, err)
	return c
}

func testLimits() model.Limits {
	return model.Limits{MaxFiles: 100, TimeToLive: 60 * time.Second, MaxDepth: 5, Distribution: 2 * time.Second}
}

func TestDistribute_RootWithNoScannersEmitsOneEvent(t *testing.T) {
	reg := registry.New(model.Config{}, nil)
	coord := newFakeCoord()
	coord.put("r1", []byte("hello world"))

	d := distribute.New(newClassifier(t), reg, coord, testLimits(), nil, nil)

	err := d.Distribute(context.Background(), "r1", model.RootFile("r1"), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, coord.emitted, 1)
	require.Equal(t, "r1", coord.emitted[0].rootID)
}

func TestDistribute_ChildRecursionInOrder(t *testing.T) {
	const scannerName = "__test_spawns_children__"
	var calls int32
	registry.Register(scannerName, func(model.Config, *coordinator.Client) (registry.Scanner, error) {
		return spawnOnceScanner{calls: &calls}, nil
	})

	reg := registry.New(model.Config{}, nil)
	coord := newFakeCoord()
	coord.put("root", []byte("parent bytes"))
	coord.put("child-a", []byte("a"))
	coord.put("child-b", []byte("b"))

	scanners := map[string][]model.ScannerRule{
		scannerName: {{Positive: &model.Match{Flavors: []string{"*"}}, Priority: 5}},
	}

	d := distribute.New(newClassifier(t), reg, coord, testLimits(), []string{scannerName}, scanners)

	root := model.RootFile("root-id")
	root.Pointer = "root"
	err := d.Distribute(context.Background(), "root-id", root, time.Now().Add(time.Minute))
	require.NoError(t, err)

	// one event for the root, one each for the two children it spawned.
	require.Len(t, coord.emitted, 3)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls), "children must not spawn their own children")
}

type spawnOnceScanner struct {
	calls *int32
}

func (s spawnOnceScanner) ScanWrapper(_ context.Context, _ []byte, file model.File, _ map[string]any, _ time.Time) ([]model.File, map[string]any, error) {
	if atomic.AddInt32(s.calls, 1) > 1 {
		return nil, nil, nil
	}
	return []model.File{
		model.NewChildFile(file, "child-a", "a.bin", "__test_spawns_children__"),
		model.NewChildFile(file, "child-b", "b.bin", "__test_spawns_children__"),
	}, nil, nil
}

func TestDistribute_DepthBudgetExceededSkipsNode(t *testing.T) {
	reg := registry.New(model.Config{}, nil)
	coord := newFakeCoord()

	limits := testLimits()
	limits.MaxDepth = 0

	d := distribute.New(newClassifier(t), reg, coord, limits, nil, nil)

	deep := model.RootFile("r1")
	deep.Depth = 1 // past MaxDepth 0

	err := d.Distribute(context.Background(), "r1", deep, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Empty(t, coord.emitted, "a node past the depth budget must never be processed or emitted")
}

func TestDistribute_MissingScannerIsSoftFailure(t *testing.T) {
	reg := registry.New(model.Config{}, nil)
	coord := newFakeCoord()
	coord.put("r1", []byte("hello"))

	scanners := map[string][]model.ScannerRule{
		"__never_registered__": {{Positive: &model.Match{Flavors: []string{"*"}}, Priority: 5}},
	}

	d := distribute.New(newClassifier(t), reg, coord, testLimits(), []string{"__never_registered__"}, scanners)

	err := d.Distribute(context.Background(), "r1", model.RootFile("r1"), time.Now().Add(time.Minute))
	require.NoError(t, err, "an unresolvable scanner must be logged and skipped, never fail the request")
	require.Len(t, coord.emitted, 1)
}

// slowScanner blocks past the node's distribution timeout so the
// distributor must treat it as a lost event, not a fatal abort.
type slowScanner struct{}

func (slowScanner) ScanWrapper(ctx context.Context, _ []byte, _ model.File, _ map[string]any, _ time.Time) ([]model.File, map[string]any, error) {
	select {
	case <-time.After(5 * time.Second):
	case <-ctx.Done():
	}
	return nil, nil, ctx.Err()
}

func TestDistribute_DistributionTimeoutIsNonFatal(t *testing.T) {
	const scannerName = "__test_slow__"
	registry.Register(scannerName, func(model.Config, *coordinator.Client) (registry.Scanner, error) {
		return slowScanner{}, nil
	})

	reg := registry.New(model.Config{}, nil)
	coord := newFakeCoord()
	coord.put("r1", []byte("hello"))

	scanners := map[string][]model.ScannerRule{
		scannerName: {{Positive: &model.Match{Flavors: []string{"*"}}, Priority: 5}},
	}

	limits := testLimits()
	limits.Distribution = time.Second

	d := distribute.New(newClassifier(t), reg, coord, limits, []string{scannerName}, scanners)

	err := d.Distribute(context.Background(), "r1", model.RootFile("r1"), time.Now().Add(time.Minute))
	require.NoError(t, err, "a per-node distribution timeout must not abort the whole request")
	require.Empty(t, coord.emitted, "the timed-out node's event is allowed to be lost")
}

func TestDistribute_RequestCancellationAborts(t *testing.T) {
	reg := registry.New(model.Config{}, nil)
	coord := newFakeCoord()
	coord.put("r1", []byte("hello"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := distribute.New(newClassifier(t), reg, coord, testLimits(), nil, nil)
	err := d.Distribute(ctx, "r1", model.RootFile("r1"), time.Now().Add(time.Minute))
	require.True(t, errors.Is(err, context.Canceled))
}
