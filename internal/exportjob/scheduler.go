package exportjob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs an Exporter on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	exporter *Exporter
	dir      string
	cron     *cron.Cron
	now      func() time.Time

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler validates spec (standard five field cron syntax or
// descriptors like "@hourly") and creates dir.
func NewScheduler(spec, dir string, exporter *Exporter) (*Scheduler, error) {
	if spec == "" {
		return nil, errors.New("export schedule is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	s := &Scheduler{
		exporter: exporter,
		dir:      dir,
		now:      time.Now,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid export schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins the schedule. Runs are canceled when ctx is done or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.cron.Start()
}

// Stop halts the schedule and waits for a running export, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce exports to a new timestamped file and returns its path.
func (s *Scheduler) RunOnce(ctx context.Context) (string, int, error) {
	path := filepath.Join(s.dir, "offers-"+s.now().UTC().Format("20060102T150405Z")+".tsv")
	n, err := s.exporter.Export(ctx, path)
	return path, n, err
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	path, n, err := s.RunOnce(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Scheduled export failed", "err", err)
		return
	}
	slog.InfoContext(ctx, "Scheduled export done", "path", path, "rows", n)
}
