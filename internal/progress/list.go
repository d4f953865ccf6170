package progress

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"questflow/internal/storage"
)

// ListFileRuns summarises the run documents under dataOutRoot, most recently
// modified first.
func ListFileRuns(_ context.Context, dataOutRoot string, limit int) ([]storage.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	paths, err := filepath.Glob(filepath.Join(dataOutRoot, "runs", "*.json"))
	if err != nil {
		return nil, err
	}
	type entry struct {
		path string
		mod  int64
	}
	entries := make([]entry, 0, len(paths))
	for _, p := range paths {
		if strings.HasPrefix(filepath.Base(p), "tmp-") {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		entries = append(entries, entry{path: p, mod: info.ModTime().UnixNano()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].mod > entries[j].mod })

	out := []storage.RunSummary{}
	for _, e := range entries {
		if len(out) == limit {
			break
		}
		doc, err := ReadFile(e.path)
		if err != nil {
			slog.Debug("skipping unreadable run document", "path", e.path, "error", err)
			continue
		}
		runID := doc.RunID
		if runID == "" {
			runID = strings.TrimSuffix(filepath.Base(e.path), ".json")
		}
		out = append(out, storage.RunSummary{
			RunID:            runID,
			SourceDescriptor: doc.SourceDescriptor,
			Status:           doc.ProcessingStatus,
			WindowsCompleted: doc.WindowsCompleted,
			TotalWindows:     doc.TotalWindows,
		})
	}
	return out, nil
}
