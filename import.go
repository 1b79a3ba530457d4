package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dhowden/tag"
	"golang.org/x/sync/errgroup"
)

// DefaultExtensions lists the media files the importer reads tags from.
var DefaultExtensions = []string{".mp3", ".m4a", ".m4v", ".mp4", ".ogg", ".oga", ".flac"}

// MediaFile is the metadata read from one media file.
type MediaFile struct {
	Path    string
	Title   string
	Artist  string
	Genre   string
	Comment string
	Year    int
}

// Importer appends rows to a table from the tags of media files.
type Importer struct {
	Table      *Table
	Workers    int
	Extensions []string

	known map[string]bool
}

func (im *Importer) wanted(path string) bool {
	exts := im.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	return slices.Contains(exts, strings.ToLower(filepath.Ext(path)))
}

func parseMediaFile(path string) *MediaFile {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		slog.Debug("Cannot read tags", "path", path, "err", err)
		return nil
	}

	artist := m.Artist()
	if albumArtist := m.AlbumArtist(); albumArtist != "" {
		artist = albumArtist
	}

	title := m.Title()
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return &MediaFile{
		Path:    path,
		Title:   strings.TrimSpace(title),
		Artist:  strings.TrimSpace(artist),
		Genre:   strings.TrimSpace(m.Genre()),
		Comment: strings.TrimSpace(m.Comment()),
		Year:    m.Year(),
	}
}

// Run imports every wanted file below root and returns the number of rows added.
// Files whose title already names a row are skipped.
func (im *Importer) Run(ctx context.Context, root string) (int, error) {
	im.loadKnown()
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	filesChan := make(chan string, 100)
	mediaChan := make(chan *MediaFile, 100)

	// Discovery
	g.Go(func() error {
		defer close(filesChan)
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				slog.Debug("Cannot walk", "path", path, "err", err)
				return nil
			}
			if d.IsDir() || !im.wanted(path) {
				return nil
			}
			select {
			case filesChan <- path:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	// Workers
	numWorkers := im.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	var wgWorkers sync.WaitGroup
	for range numWorkers {
		wgWorkers.Add(1)
		g.Go(func() error {
			defer wgWorkers.Done()
			for path := range filesChan {
				m := parseMediaFile(path)
				if m == nil {
					continue
				}
				select {
				case mediaChan <- m:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wgWorkers.Wait()
		close(mediaChan)
	}()

	// Writer
	added := 0
	g.Go(func() error {
		const batchSize = 100
		batch := make([]*MediaFile, 0, batchSize)
		write := func() error {
			n, err := im.write(batch)
			added += n
			batch = batch[:0]
			return err
		}
		for m := range mediaChan {
			batch = append(batch, m)
			if len(batch) >= batchSize {
				if err := write(); err != nil {
					return err
				}
			}
		}
		return write()
	})

	err := g.Wait()
	slog.Info("Imported media files", "table", im.Table.Name, "added", added, "workers", numWorkers, "elapsed", time.Since(start).Round(time.Millisecond))
	return added, err
}

func (im *Importer) loadKnown() {
	im.known = map[string]bool{}
	for _, r := range im.Table.Rows() {
		if name, ok := r.Value(im.Table.Kind, "name").(string); ok {
			im.known[strings.ToLower(name)] = true
		}
	}
}

// write appends one row per new file, in path order.
func (im *Importer) write(batch []*MediaFile) (int, error) {
	slices.SortFunc(batch, func(a, b *MediaFile) int { return strings.Compare(a.Path, b.Path) })
	added := 0
	for _, m := range batch {
		ok, err := im.add(m)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

func (im *Importer) add(m *MediaFile) (bool, error) {
	t := im.Table
	key := strings.ToLower(m.Title)
	if m.Title == "" || im.known[key] {
		return false, nil
	}
	values := make([]any, len(t.Kind.Columns))
	values[0] = m.Title
	if i := t.Kind.ColumnIndex("year"); i >= 0 && m.Year > 0 {
		values[i] = int64(m.Year)
	}
	if i := t.Kind.ColumnIndex("comment"); i >= 0 && m.Comment != "" {
		values[i] = m.Comment
	}
	r, err := t.Append(values...)
	if err != nil {
		return false, err
	}
	im.known[key] = true
	if m.Genre != "" && t.Kind.HasUtility("category") {
		if err := t.SetTags(r.Position, "category", []string{m.Genre}); err != nil {
			return true, err
		}
	}
	if m.Artist != "" && t.Kind.Person != "" {
		if err := t.SetTags(r.Position, t.Kind.Person, []string{m.Artist}); err != nil {
			return true, err
		}
	}
	slog.Debug("Imported", "path", m.Path, "name", m.Title)
	return true, nil
}
