package monitor

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"questflow/internal/models"
	"questflow/internal/progress"

	"github.com/fsnotify/fsnotify"
)

// Watcher follows a progress file until its run completes. File system
// events trigger an immediate re-read; the poll interval covers platforms
// and mounts where events are not delivered.
type Watcher struct {
	Path     string
	Interval time.Duration

	// OnUpdate is called whenever the completed window count or the status
	// changes. newWindows counts windows completed since the last call.
	OnUpdate func(doc *models.ProgressDocument, p Progress, newWindows int)
	// OnWait is called when the file is missing or unreadable; the watcher
	// keeps retrying.
	OnWait func(err error)
}

// Run blocks until the document reaches its terminal status or ctx is done.
// It returns the last document it read.
func (w *Watcher) Run(ctx context.Context) (*models.ProgressDocument, error) {
	interval := w.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if fw, err := fsnotify.NewWatcher(); err != nil {
		slog.Debug("file watch unavailable, polling only", "error", err)
	} else {
		defer fw.Close()
		// The file is replaced by rename, so watch its directory.
		if err := fw.Add(filepath.Dir(w.Path)); err != nil {
			slog.Debug("file watch unavailable, polling only", "path", w.Path, "error", err)
		} else {
			events, errs = fw.Events, fw.Errors
		}
	}

	target := filepath.Clean(w.Path)
	var last *models.ProgressDocument
	lastCompleted, lastStatus := 0, ""
	check := func() bool {
		doc, err := progress.ReadFile(w.Path)
		if err != nil {
			if w.OnWait != nil {
				w.OnWait(err)
			}
			return false
		}
		last = doc
		if last.WindowsCompleted != lastCompleted || last.ProcessingStatus != lastStatus {
			if w.OnUpdate != nil {
				newWindows := doc.WindowsCompleted - lastCompleted
				if newWindows < 0 {
					newWindows = 0
				}
				w.OnUpdate(doc, Snapshot(doc), newWindows)
			}
			lastCompleted, lastStatus = doc.WindowsCompleted, doc.ProcessingStatus
		}
		return doc.Completed()
	}

	if check() {
		return last, nil
	}
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) {
				continue
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Debug("file watch error", "error", err)
			continue
		}
		if check() {
			return last, nil
		}
	}
}
