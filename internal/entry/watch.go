package entry

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the entries file at path whenever it is written or replaced
// and passes the result to onChange. It runs until ctx is cancelled.
//
// A file that fails to parse is logged and skipped; onChange is not called,
// so the previously applied entries stay in place.
func Watch(ctx context.Context, path string, onChange func(*File)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors and config management replace the file
	// by rename, which drops a watch on the file itself.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(path)

	slog.Info("entries: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			f, err := LoadFile(path)
			if err != nil {
				slog.Error("entries: reload failed, keeping previous entries",
					"path", path, "error", err)
				continue
			}

			slog.Info("entries: reloaded", "path", path, "entries", len(f.Entries))
			onChange(f)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("entries: watcher error", "error", err)
		}
	}
}
