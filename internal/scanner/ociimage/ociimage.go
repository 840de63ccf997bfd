// Package ociimage implements the ScanOCIImage plugin: for a file flavored
// as a Docker/OCI image tarball, it opens the image with
// github.com/anchore/stereoscope and pushes every regular file in the
// squashed layer tree back to the coordinator as a child file, grounded on
// the teacher's internal/walk/image.go traversal (WalkConditions over the
// squashed filetree, terminating on context cancellation).
package ociimage

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/anchore/stereoscope"
	"github.com/anchore/stereoscope/pkg/file"
	"github.com/anchore/stereoscope/pkg/filetree"
	"github.com/anchore/stereoscope/pkg/filetree/filenode"
	"github.com/anchore/stereoscope/pkg/image"
	"github.com/google/uuid"

	"github.com/fleetscan/worker/internal/coordinator"
	"github.com/fleetscan/worker/internal/model"
	"github.com/fleetscan/worker/internal/registry"
)

func init() {
	registry.Register("ScanOCIImage", New)
}

type Scanner struct {
	coord *coordinator.Client
}

func New(_ model.Config, coord *coordinator.Client) (registry.Scanner, error) {
	return &Scanner{coord: coord}, nil
}

func (s *Scanner) ScanWrapper(ctx context.Context, data []byte, target model.File, _ map[string]any, _ time.Time) ([]model.File, map[string]any, error) {
	tmp, err := os.CreateTemp("", "fleetscan-ociimage-*.tar")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: staging image tarball: %w", model.ErrScannerFault, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return nil, nil, fmt.Errorf("%w: writing image tarball: %w", model.ErrScannerFault, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, nil, fmt.Errorf("%w: closing image tarball: %w", model.ErrScannerFault, err)
	}

	img, err := stereoscope.GetImage(ctx, "docker-archive:"+tmpPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: opening OCI image: %w", model.ErrScannerFault, err)
	}
	defer stereoscope.Cleanup()

	children, count, err := extractChildren(ctx, img, target, s.coord)
	out := map[string]any{"ScanOCIImage": map[string]any{"files": count}}
	if err != nil {
		return children, out, err
	}
	return children, out, nil
}

func extractChildren(ctx context.Context, img *image.Image, parent model.File, coord *coordinator.Client) ([]model.File, int, error) {
	var children []model.File
	count := 0

	cond := filetree.WalkConditions{
		ShouldTerminate: func(_ imagepath, _ filenode.FileNode) bool {
			return ctx.Err() != nil
		},
		ShouldVisit: func(_ imagepath, node filenode.FileNode) bool {
			return !node.IsLink()
		},
		ShouldContinueBranch: func(_ imagepath, node filenode.FileNode) bool {
			return !node.IsLink()
		},
	}

	fn := func(path imagepath, node filenode.FileNode) error {
		if node.FileType != file.TypeRegular {
			return nil
		}
		rc, err := img.OpenReference(*node.Reference)
		if err != nil {
			return nil
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil
		}

		pointer := uuid.NewString()
		if err := coord.PushBytes(ctx, pointer, content); err != nil {
			return nil
		}
		children = append(children, model.NewChildFile(parent, pointer, string(path), "ScanOCIImage"))
		count++
		return nil
	}

	if err := img.SquashedTree().Walk(fn, &cond); err != nil {
		return children, count, fmt.Errorf("%w: walking squashed image tree: %w", model.ErrScannerFault, err)
	}
	return children, count, ctx.Err()
}

// imagepath aliases stereoscope's file.Path so the walk callback signatures
// above read the same as the library's, without importing file solely for
// its Path type name.
type imagepath = file.Path
