package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var fileKeyRe = regexp.MustCompile(`^[0-9a-f]{32}$`)

// FileStore keeps one JSON document per key under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("cache: mkdir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) Name() string { return "file" }

func (f *FileStore) path(key string) (string, error) {
	if !fileKeyRe.MatchString(key) {
		return "", fmt.Errorf("cache: invalid key %q", key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}

func (f *FileStore) Get(_ context.Context, key string) (Entry, error) {
	path, err := f.path(key)
	if err != nil {
		return Entry{}, ErrMiss
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("cache: read %s: %w", key, err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		_ = os.Remove(path)
		return Entry{}, ErrMiss
	}
	return e, nil
}

// Put writes through a temp file and rename so readers never see a partial document.
func (f *FileStore) Put(_ context.Context, key string, e Entry) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache: encode: %w", err)
	}
	tmp, err := os.CreateTemp(f.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("cache: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cache: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: rename: %w", err)
	}
	return nil
}

func (f *FileStore) Delete(_ context.Context, key string) (bool, error) {
	path, err := f.path(key)
	if err != nil {
		return false, nil
	}
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: remove %s: %w", key, err)
	}
	return true, nil
}

// Sweep removes entries created before cutoff, unreadable documents, and
// temp files abandoned before cutoff.
func (f *FileStore) Sweep(_ context.Context, before time.Time) (int, error) {
	items, err := os.ReadDir(f.dir)
	if err != nil {
		return 0, fmt.Errorf("cache: list %s: %w", f.dir, err)
	}
	removed := 0
	for _, it := range items {
		if it.IsDir() {
			continue
		}
		name := it.Name()
		full := filepath.Join(f.dir, name)
		switch {
		case strings.HasSuffix(name, ".tmp"):
			if info, err := it.Info(); err == nil && info.ModTime().Before(before) {
				if os.Remove(full) == nil {
					removed++
				}
			}
		case strings.HasSuffix(name, ".json"):
			data, err := os.ReadFile(full)
			if err != nil {
				continue
			}
			var e Entry
			if json.Unmarshal(data, &e) != nil || e.CreatedAt.Before(before) {
				if os.Remove(full) == nil {
					removed++
				}
			}
		}
	}
	return removed, nil
}
