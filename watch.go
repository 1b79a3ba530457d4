package main

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch imports files created below root until ctx is done. New directories
// are watched as they appear.
func (im *Importer) Watch(ctx context.Context, root string) error {
	if im.known == nil {
		im.loadKnown()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	addTree := func(dir string) error {
		return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			return w.Add(path)
		})
	}
	if err := addTree(root); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Watching for media files", "root", root, "table", im.Table.Name)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if isDir(event.Name) {
				if err := addTree(event.Name); err != nil {
					slog.WarnContext(ctx, "Cannot watch directory", "path", event.Name, "err", err)
				}
				continue
			}
			if !im.wanted(event.Name) {
				continue
			}
			m := parseMediaFile(event.Name)
			if m == nil {
				// Partially written files fail to parse; a later Write event retries.
				continue
			}
			added, err := im.add(m)
			if err != nil {
				return err
			}
			if added {
				slog.InfoContext(ctx, "Imported", "path", event.Name, "name", m.Title)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "Error watching media files", "err", err)
		}
	}
}
