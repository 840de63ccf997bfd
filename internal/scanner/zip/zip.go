// Package zip implements the ScanZip plugin: it walks a ZIP archive's
// central directory and pushes each entry back to the coordinator as a
// child file, grounded on the teacher's scanner-as-plugin shape but using
// the standard library's archive/zip — no third-party archive-walking
// library appears anywhere in the dependency pack, so stdlib is the
// correct (and only) choice here (see DESIGN.md).
package zip

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/fleetscan/worker/internal/coordinator"
	"github.com/fleetscan/worker/internal/model"
	"github.com/fleetscan/worker/internal/registry"
)

func init() {
	registry.Register("ScanZip", New)
}

type Scanner struct {
	coord *coordinator.Client
}

func New(_ model.Config, coord *coordinator.Client) (registry.Scanner, error) {
	return &Scanner{coord: coord}, nil
}

func (s *Scanner) ScanWrapper(ctx context.Context, data []byte, file model.File, _ map[string]any, _ time.Time) ([]model.File, map[string]any, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: opening zip: %w", model.ErrScannerFault, err)
	}

	var children []model.File
	names := make([]string, 0, len(r.File))
	for _, entry := range r.File {
		if ctx.Err() != nil {
			return children, map[string]any{"ScanZip": map[string]any{"entries": names}}, ctx.Err()
		}
		if entry.FileInfo().IsDir() {
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			continue
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			continue
		}

		pointer := uuid.NewString()
		if err := s.coord.PushBytes(ctx, pointer, content); err != nil {
			continue
		}

		children = append(children, model.NewChildFile(file, pointer, entry.Name, "ScanZip"))
		names = append(names, entry.Name)
	}

	return children, map[string]any{"ScanZip": map[string]any{"entries": names}}, nil
}
