package pkgmeta

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru"
	"github.com/spf13/afero"

	"github.com/conneroisu/deppack/internal/errors"
)

// Loader reads the raw manifest document stored at a package root.
type Loader interface {
	LoadMetadata(root string) ([]byte, error)
}

// DirChecker reports whether a path names a directory. Missing paths are
// not directories and are not an error.
type DirChecker interface {
	IsDir(ctx context.Context, path string) (bool, error)
}

// DefaultCacheSize bounds the number of manifests FSLoader keeps in memory.
const DefaultCacheSize = 1024

// FSLoader loads manifests from an afero filesystem and keeps recently
// used documents in an LRU cache.
type FSLoader struct {
	fs    afero.Fs
	cache *lru.Cache
}

// NewFSLoader creates a loader over fsys. A non-positive size selects
// DefaultCacheSize.
func NewFSLoader(fsys afero.Fs, size int) (*FSLoader, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &FSLoader{fs: fsys, cache: cache}, nil
}

// LoadMetadata returns the manifest document at root.
func (l *FSLoader) LoadMetadata(root string) ([]byte, error) {
	if v, ok := l.cache.Get(root); ok {
		return v.([]byte), nil
	}

	data, err := afero.ReadFile(l.fs, filepath.Join(root, ManifestName))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewMetadataNotFound(root, err)
		}
		return nil, errors.NewIOError(root, "cannot read package metadata", err)
	}
	if !json.Valid(data) {
		return nil, errors.NewInvalidMetadata(errors.ErrCodeMetadataInvalid, root, "package metadata is not valid JSON", nil)
	}

	l.cache.Add(root, data)
	return data, nil
}

// Forget drops the cached manifest for root.
func (l *FSLoader) Forget(root string) {
	l.cache.Remove(root)
}

// Purge drops every cached manifest.
func (l *FSLoader) Purge() {
	l.cache.Purge()
}

// Cached returns the number of manifests held in memory.
func (l *FSLoader) Cached() int {
	return l.cache.Len()
}

// FSDirChecker answers directory questions from an afero filesystem.
type FSDirChecker struct {
	FS afero.Fs
}

// IsDir implements DirChecker.
func (d FSDirChecker) IsDir(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := afero.IsDir(d.FS, path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, errors.NewIOError(path, "cannot stat path", err)
	}
	return ok, nil
}
