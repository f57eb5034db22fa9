package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch drops a cached artifact whenever its file in the artifact directory
// is created, written, renamed or removed, so a long-running process serves
// the next training run without a restart.
//
// The directory is created if needed. Watch returns once the watcher is
// registered; events are handled in the background until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("artifact watcher: %w", err)
	}
	// the directory, not the files: saves replace them by rename.
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				s.onEvent(event)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("artifact watcher", "error", err)
			}
		}
	}()
	return nil
}

func (s *Store) onEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create | fsnotify.Write | fsnotify.Rename | fsnotify.Remove) {
		return
	}
	switch filepath.Base(event.Name) {
	case PipelineFile:
		s.dropPipeline()
	case MetricsFile:
		s.dropMetrics()
	default:
		return
	}
	s.logger.Info("artifact changed on disk", "path", event.Name, "op", event.Op.String())
}
