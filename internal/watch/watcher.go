package watch

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Trigger sources.
const (
	SourceFile      = "fs"
	SourceDevServer = "devserver"
)

// Event is one trigger from an external source. All sources publish to
// the same channel; the scheduler side only ever reads that one channel.
type Event struct {
	Source  string
	Payload string
}

// FileWatcher polls a fixed file set for modification-time changes and
// publishes one event per poll tick that observed any change. Finer
// per-file coalescing is unnecessary; the debounce window downstream
// collapses bursts anyway.
type FileWatcher struct {
	interval time.Duration
	mods     map[string]time.Time
	logger   *slog.Logger
}

// NewFileWatcher creates a watcher over the given files, snapshotting
// their current modification times.
func NewFileWatcher(paths []string, interval time.Duration, logger *slog.Logger) *FileWatcher {
	mods := make(map[string]time.Time, len(paths))
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			mods[p] = info.ModTime()
		}
	}
	return &FileWatcher{
		interval: interval,
		mods:     mods,
		logger:   logger,
	}
}

// Run polls until the context is cancelled, publishing to events on
// change. It blocks; run it in its own goroutine.
func (w *FileWatcher) Run(ctx context.Context, events chan<- Event) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !w.check() {
				continue
			}
			select {
			case events <- Event{Source: SourceFile}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// check refreshes the snapshot and reports whether any watched file
// changed. A file that disappeared counts as a change once.
func (w *FileWatcher) check() bool {
	changed := false
	for path, last := range w.mods {
		info, err := os.Stat(path)
		if err != nil {
			if !last.IsZero() {
				w.mods[path] = time.Time{}
				changed = true
				w.logger.Debug("watched_file_removed", "path", path)
			}
			continue
		}
		if !info.ModTime().Equal(last) {
			w.mods[path] = info.ModTime()
			changed = true
		}
	}
	return changed
}
