// Package watcher re-runs the ingestion pipeline whenever files under the
// configured glob directories change. The ledger makes every re-run cheap:
// unchanged file versions are skipped, changed ones are indexed as new
// versions.
package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/opsgrep/lograg/internal/pipeline/ingest"
)

// DefaultDebounce is how long to wait after the last filesystem event
// before re-running ingestion. Log exporters write files in several bursts;
// fingerprinting a half-written file would just record a version that never
// exists again.
const DefaultDebounce = 2 * time.Second

// Watcher triggers ingestion runs on filesystem changes.
type Watcher struct {
	svc      *ingest.Service
	globs    []string
	debounce time.Duration
	logger   *zap.Logger

	// OnRun, when set, is called with the outcome of every triggered run.
	OnRun func(ingest.Summary, error)
}

// New creates a watcher over the ingest service's source globs.
func New(svc *ingest.Service, globs []string, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{svc: svc, globs: globs, debounce: DefaultDebounce, logger: logger}
}

// WithDebounce overrides the event settle delay.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// Run performs one initial ingestion pass, then blocks re-running the
// pipeline on changes until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.runOnce(ctx)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	dirs := watchDirs(w.globs)
	if len(dirs) == 0 {
		return fmt.Errorf("no watchable directories in globs %v", w.globs)
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.logger.Info("watching directory", zap.String("dir", dir))
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("filesystem event",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.runOnce(ctx)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) {
	summary, err := w.svc.Run(ctx)
	if err != nil {
		w.logger.Error("ingestion run failed", zap.Error(err))
	} else {
		w.logger.Info("ingestion run finished",
			zap.Int("discovered", summary.Discovered),
			zap.Int("ingested", summary.Ingested),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", summary.Failed),
			zap.Duration("took", summary.Duration))
	}
	if w.OnRun != nil {
		w.OnRun(summary, err)
	}
}

// watchDirs resolves the static directory prefix of each glob pattern.
func watchDirs(globs []string) []string {
	seen := make(map[string]struct{})
	var dirs []string
	for _, glob := range globs {
		base, _ := doublestar.SplitPattern(glob)
		if base == "" {
			base = "."
		}
		if _, ok := seen[base]; !ok {
			seen[base] = struct{}{}
			dirs = append(dirs, base)
		}
	}
	return dirs
}
