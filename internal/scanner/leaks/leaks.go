// Package leaks implements the ScanLeaks plugin, wrapping
// github.com/zricethezav/gitleaks/v8's detector, adapted directly from the
// teacher's internal/gitleaks package: a pooled *detect.Detector so
// concurrent distributions (one per worker process, but the pool survives
// future intra-worker parallelism) never share a single non-thread-safe
// detector instance.
package leaks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/fleetscan/worker/internal/coordinator"
	"github.com/fleetscan/worker/internal/model"
	"github.com/fleetscan/worker/internal/registry"
)

func init() {
	registry.Register("ScanLeaks", New)
}

type Scanner struct {
	pool sync.Pool
}

func New(_ model.Config, _ *coordinator.Client) (registry.Scanner, error) {
	first, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: creating gitleaks detector: %w", model.ErrScannerFault, err)
	}
	s := &Scanner{}
	s.pool = sync.Pool{
		New: func() any {
			d, err := detect.NewDetectorDefaultConfig()
			if err != nil {
				panic(err)
			}
			return d
		},
	}
	s.pool.Put(first)
	return s, nil
}

type leak struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	StartLine   int    `json:"start_line"`
}

func (s *Scanner) ScanWrapper(ctx context.Context, data []byte, file model.File, _ map[string]any, _ time.Time) ([]model.File, map[string]any, error) {
	if ctx.Err() != nil {
		return nil, nil, ctx.Err()
	}

	detector := s.pool.Get().(*detect.Detector)
	defer s.pool.Put(detector)

	var leaks []leak
	for _, finding := range detector.DetectString(string(data)) {
		leaks = append(leaks, leak{
			RuleID:      finding.RuleID,
			Description: finding.Description,
			StartLine:   finding.StartLine,
		})
	}

	if len(leaks) == 0 {
		return nil, nil, nil
	}
	return nil, map[string]any{"ScanLeaks": map[string]any{"leaks": leaks}}, nil
}
