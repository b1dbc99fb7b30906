package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const maxLineBytes = 4 * 1024 * 1024

// FileSource reads one text file. Its name is the path relative to the
// corpus root, with forward slashes.
type FileSource struct {
	path    string
	name    string
	decoder *Decoder
}

func NewFileSource(path string, name string, decoder *Decoder) *FileSource {
	return &FileSource{path: path, name: name, decoder: decoder}
}

func (f *FileSource) Name() string {
	return f.name
}

func (f *FileSource) Path() string {
	return f.path
}

// Lines decodes the whole file before emitting anything, so an undecodable
// file produces no lines at all.
func (f *FileSource) Lines(ctx context.Context, fn func(Line) error) error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return unavailable(f.name, err)
	}
	text, _, err := f.decoder.Decode(data)
	if err != nil {
		return unavailable(f.name, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	offset := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(Line{Text: scanner.Text(), Source: f.name, Offset: offset}); err != nil {
			return err
		}
		offset++
	}
	if err := scanner.Err(); err != nil {
		return unavailable(f.name, fmt.Errorf("scanning lines: %w", err))
	}
	return nil
}

// Discover walks dir and returns a FileSource for every file whose extension
// is in extensions (case-insensitive), ordered by relative path.
// Subdirectories that cannot be read are logged and skipped.
func Discover(dir string, extensions []string, decoder *Decoder) ([]*FileSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus path %s is not a directory", dir)
	}
	logger := slog.Default().With("component", "source-discovery")

	wanted := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		wanted[ext] = struct{}{}
	}

	sources := make([]*FileSource, 0)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == dir {
				return walkErr
			}
			logger.Warn("skipping unreadable path", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := wanted[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		sources = append(sources, NewFileSource(path, filepath.ToSlash(rel), decoder))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking corpus directory %s: %w", dir, err)
	}
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].name < sources[j].name
	})
	logger.Debug("corpus discovered", "dir", dir, "files", len(sources))
	return sources, nil
}
