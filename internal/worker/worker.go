// Package worker implements the steady-state worker loop (C6): pop one
// request at a time from the coordinator, distribute its file tree to
// completion or timeout, and retire once either budget in limits is
// exhausted so a supervising process can restart with fresh config.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/fleetscan/worker/internal/log"
	"github.com/fleetscan/worker/internal/model"
)

const emptyQueueSleep = 250 * time.Millisecond

// distributor is the slice of *distribute.Distributor the loop needs,
// extracted so tests can drive the retirement and timeout logic without
// constructing a full classify/registry/coordinator stack.
type distributor interface {
	Distribute(ctx context.Context, rootID string, root model.File, expireAt time.Time) error
}

// coordinatorClient is the slice of *coordinator.Client the loop needs.
type coordinatorClient interface {
	PopTask(ctx context.Context) (rootID string, expireAt time.Time, ok bool, err error)
	Emit(ctx context.Context, rootID string, record []byte, expireAt time.Time) error
}

// Worker runs one bounded-lifetime pass over the shared task queue.
type Worker struct {
	coord  coordinatorClient
	dist   distributor
	limits model.Limits

	// now and sleep are overridden in tests to avoid wall-clock waits.
	now   func() time.Time
	sleep func(time.Duration)
}

// New builds a Worker against coord and dist, bounded by limits.
func New(coord coordinatorClient, dist distributor, limits model.Limits) *Worker {
	return &Worker{
		coord:  coord,
		dist:   dist,
		limits: limits,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// SetClock overrides the wall clock and sleep function, for tests that
// need the loop's retirement and expiration logic without real timing.
func (w *Worker) SetClock(now func() time.Time, sleep func(time.Duration)) {
	w.now = now
	w.sleep = sleep
}

// Run executes the steady-state loop until either budget in limits is
// exhausted, then returns nil so the caller can exit the process (spec
// §4.6 — retirement is an intentional supervised restart, not an error).
func (w *Worker) Run(ctx context.Context) error {
	filesDone := 0
	workExpire := w.now().Add(w.limits.TimeToLive)

	for {
		if filesDone >= w.limits.MaxFiles || !w.now().Before(workExpire) {
			slog.InfoContext(ctx, "worker retiring", "files_done", filesDone, "max_files", w.limits.MaxFiles)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rootID, expireAt, ok, err := w.coord.PopTask(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "popping task failed, coordinator fault", "error", err)
			w.sleep(emptyQueueSleep)
			continue
		}
		if !ok {
			w.sleep(emptyQueueSleep)
			continue
		}

		taskCtx := log.ContextAttrs(ctx, slog.String("root_id", rootID))

		remaining := expireAt.Sub(w.now())
		timeout := time.Duration(math.Ceil(remaining.Seconds())) * time.Second
		if timeout <= 0 {
			slog.DebugContext(taskCtx, "task already expired, skipping", "expire_at", expireAt)
			continue
		}

		w.runOne(taskCtx, rootID, expireAt, timeout)
		filesDone++
	}
}

// runOne carries one request through its request timeout, emitting FIN on
// normal completion (spec §4.6 steps 4-6). ctx already carries the
// request's root_id attribute (attached once in Run), so every log line
// below and every log line the distributor emits for this request's nodes
// picks it up without repeating it at each call site.
func (w *Worker) runOne(ctx context.Context, rootID string, expireAt time.Time, timeout time.Duration) {
	reqCtx, cancel := context.WithDeadlineCause(ctx, w.now().Add(timeout), model.ErrRequestTimeout)
	defer cancel()

	root := model.RootFile(rootID)
	err := w.dist.Distribute(reqCtx, rootID, root, expireAt)

	switch {
	case err == nil:
		if emitErr := w.coord.Emit(ctx, rootID, []byte(model.FIN), expireAt); emitErr != nil {
			slog.ErrorContext(ctx, "emitting FIN failed", "error", emitErr)
		}
	case errors.Is(context.Cause(reqCtx), model.ErrRequestTimeout):
		slog.DebugContext(ctx, "request timed out, FIN not emitted")
	default:
		slog.ErrorContext(ctx, "request failed", "error", fmt.Sprintf("%+v", err))
	}
}
