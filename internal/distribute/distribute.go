// Package distribute implements the distributor (C5): it runs one file
// through classification and its assigned scanners, emits its event, and
// surfaces child files for recursive processing.
//
// Recursion is implemented with an explicit work stack rather than native
// call recursion (REDESIGN FLAG, spec §9), and each node's classify+scan
// phase runs under its own cooperative distribution timeout derived from
// the request context via context.WithTimeoutCause, grounded on the
// teacher's internal/scan.Scan goroutine-plus-select pattern: the work runs
// in a goroutine while the driving loop selects against the node's
// context, so a plugin that ignores cancellation degrades to "next
// check-in" instead of blocking the whole request.
package distribute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fleetscan/worker/internal/assign"
	"github.com/fleetscan/worker/internal/classify"
	"github.com/fleetscan/worker/internal/log"
	"github.com/fleetscan/worker/internal/model"
	"github.com/fleetscan/worker/internal/registry"
)

// coordinatorClient is the subset of *coordinator.Client the distributor
// needs, extracted so tests can exercise the traversal and timeout logic
// against a fake without a live Redis connection.
type coordinatorClient interface {
	DrainBytes(ctx context.Context, pointer string) ([]byte, error)
	Emit(ctx context.Context, rootID string, record []byte, expireAt time.Time) error
}

// Distributor processes one request's file tree to completion or until the
// enclosing request context is cancelled.
type Distributor struct {
	classifier   *classify.Classifier
	registry     *registry.Registry
	coord        coordinatorClient
	limits       model.Limits
	scannerNames []string
	scanners     map[string][]model.ScannerRule
}

// New builds a Distributor. scannerNames fixes the configured scanner
// evaluation order (spec invariant 6 — ties break by configured order), so
// callers must pass a stable, deterministic ordering (e.g. model.Config's
// ScannerNames, captured from the document's declared field order).
func New(classifier *classify.Classifier, reg *registry.Registry, coord coordinatorClient, limits model.Limits, scannerNames []string, scanners map[string][]model.ScannerRule) *Distributor {
	return &Distributor{
		classifier:   classifier,
		registry:     reg,
		coord:        coord,
		limits:       limits,
		scannerNames: scannerNames,
		scanners:     scanners,
	}
}

type node struct {
	file     model.File
	rootID   string
	expireAt time.Time
}

// Distribute walks the file tree rooted at root, depth-first in
// child-insertion order (spec §5), returning when the tree is exhausted or
// ctx (the request-level context) is cancelled. expireAt is the request's
// absolute deadline, handed to every scanner plugin regardless of how far
// into the tree it runs or how tightly any single node's own distribution
// timeout bounds it.
func (d *Distributor) Distribute(ctx context.Context, rootID string, root model.File, expireAt time.Time) error {
	stack := []node{{file: root, rootID: rootID, expireAt: expireAt}}

	for len(stack) > 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, aborted := d.distributeOne(ctx, n)
		if aborted {
			return ctx.Err()
		}

		// Push in reverse so popping the stack yields children in their
		// original collection order (spec §5 ordering guarantee).
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, node{file: children[i], rootID: n.rootID, expireAt: n.expireAt})
		}
	}
	return nil
}

type result struct {
	children []model.File
	record   model.FileRecord
	scan     map[string]any
}

// distributeOne processes a single node under its own distribution
// timeout. aborted is true only when the enclosing request context is the
// reason the node's context ended — the caller must stop the whole
// traversal in that case; a plain per-node distribution timeout (logged,
// node's event possibly lost) does not abort the request.
func (d *Distributor) distributeOne(ctx context.Context, n node) (children []model.File, aborted bool) {
	file := n.file

	ctx = log.ContextAttrs(ctx,
		slog.String("root_id", n.rootID),
		slog.String("pointer", file.Pointer),
		slog.Int("depth", file.Depth),
	)

	if file.Depth > d.limits.MaxDepth {
		slog.DebugContext(ctx, "depth budget exceeded, skipping node", "max_depth", d.limits.MaxDepth)
		return nil, false
	}

	nodeCtx, cancel := context.WithTimeoutCause(ctx, d.limits.Distribution, model.ErrDistributionTimeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		r := d.process(nodeCtx, n)
		done <- r
	}()

	select {
	case <-nodeCtx.Done():
		cause := context.Cause(nodeCtx)
		if errors.Is(cause, model.ErrDistributionTimeout) {
			slog.WarnContext(ctx, "distribution timeout, event for this node may be lost")
			return nil, false
		}
		return nil, true
	case r := <-done:
		if err := d.emit(ctx, n.rootID, n.expireAt, r.record, r.scan); err != nil {
			slog.ErrorContext(ctx, "emitting event failed", "error", err)
		}
		return r.children, false
	}
}

// process drains bytes, classifies, assigns scanners, and runs each
// assigned plugin in configured priority order (spec §4.5 steps 2-7).
func (d *Distributor) process(ctx context.Context, n node) result {
	file := n.file

	data, err := d.coord.DrainBytes(ctx, file.Pointer)
	if err != nil {
		slog.ErrorContext(ctx, "draining file bytes failed", "error", err)
		return result{}
	}

	if file.Flavors == nil {
		file.Flavors = model.NewFlavors()
	}
	d.classifier.Classify(data, file.Flavors)
	flavors := file.Flavors.Union()

	assignments := assign.All(d.scannerNames, d.scanners, flavors, file)

	assignedNames := make([]string, 0, len(assignments))
	for _, a := range assignments {
		assignedNames = append(assignedNames, a.Scanner)
	}

	scan := make(map[string]any)
	var children []model.File
	for _, a := range assignments {
		if ctx.Err() != nil {
			break
		}

		plugin, err := d.registry.Get(a.Scanner)
		if err != nil {
			slog.WarnContext(ctx, "scanner unresolvable, skipping", "scanner", a.Scanner, "error", err)
			continue
		}

		kids, out, err := plugin.ScanWrapper(ctx, data, file, a.Options, n.expireAt)
		if err != nil {
			slog.ErrorContext(ctx, "scanner fault, skipping", "scanner", a.Scanner, "error", err)
		}
		for k, v := range out {
			scan[k] = v
		}
		children = append(children, kids...)
	}

	return result{
		children: children,
		record: model.FileRecord{
			Depth:    file.Depth,
			Name:     file.Name,
			Flavors:  flavors,
			Scanners: assignedNames,
			Size:     len(data),
			Source:   file.Source,
			Tree:     buildTree(file, n.rootID),
		},
		scan: scan,
	}
}

// buildTree anchors the event's tree to the request's root id even when
// the root file carries its own uid (spec §4.5 step 6).
func buildTree(file model.File, rootID string) model.Tree {
	t := model.Tree{Node: file.UID, Parent: file.Parent, Root: rootID}
	if file.Depth == 0 {
		t.Node = rootID
	}
	if file.Depth == 1 {
		t.Parent = rootID
	}
	return t
}

// emit serializes the event record as JSON and pushes it to
// event:{root_id} with the request's expiration stamped.
func (d *Distributor) emit(ctx context.Context, rootID string, expireAt time.Time, rec model.FileRecord, scan map[string]any) error {
	doc := model.EventRecord{File: rec, Scan: scan}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling event record: %w", err)
	}

	return d.coord.Emit(ctx, rootID, b, expireAt)
}
