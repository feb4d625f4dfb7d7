package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DoneSuffix is appended to the name of ingested files.
const DoneSuffix = ".done"

// settleDelay is how long a file must stay unmodified before it is ingested.
const settleDelay = 250 * time.Millisecond

// Watch calls fn for every *.jsonl file in dir, existing ones first, then for
// files created or written later. A file is renamed with DoneSuffix once fn
// succeeds; failing files are logged and left in place.
//
// It blocks until ctx is canceled.
func Watch(ctx context.Context, dir string, fn func(ctx context.Context, path string) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	existing, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return err
	}
	slices.Sort(existing)
	for _, path := range existing {
		if err := ctx.Err(); err != nil {
			return err
		}
		handle(ctx, path, fn)
	}

	// Writers may emit several events per file; wait for them to settle.
	pending := map[string]time.Time{}
	ticker := time.NewTicker(settleDelay / 5)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ".jsonl" {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				pending[event.Name] = time.Now()
			} else if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				delete(pending, event.Name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "Error watching directory", "dir", dir, "err", err)
		case now := <-ticker.C:
			var ready []string
			for path, last := range pending {
				if now.Sub(last) >= settleDelay {
					ready = append(ready, path)
				}
			}
			slices.Sort(ready)
			for _, path := range ready {
				delete(pending, path)
				handle(ctx, path, fn)
			}
		}
	}
}

func handle(ctx context.Context, path string, fn func(ctx context.Context, path string) error) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := fn(ctx, path); err != nil {
		slog.WarnContext(ctx, "Failed to ingest file", "file", path, "err", err)
		return
	}
	if err := os.Rename(path, path+DoneSuffix); err != nil {
		slog.WarnContext(ctx, "Failed to mark file as ingested", "file", path, "err", err)
	}
}
