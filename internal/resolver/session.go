// Package resolver maps source files inside nested dependency trees to the
// module identifiers they are registered under in a flat bundle.
//
// All state lives in a Session: the entry cache (package root to resolved
// entry file) and the merged metadata for every root seen so far. A Session
// belongs to one build pass and is not safe for concurrent use. Overrides
// are fixed when the Session is created, so a cache is never populated
// against a different override set than the one it answers with; start a
// new Session (or call Reset) when inputs change.
package resolver

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/conneroisu/deppack/internal/errors"
	"github.com/conneroisu/deppack/internal/logging"
	"github.com/conneroisu/deppack/internal/modpath"
	"github.com/conneroisu/deppack/internal/pkgmeta"
)

// Options configures a Session.
type Options struct {
	// Loader reads raw manifests. Required.
	Loader pkgmeta.Loader
	// Dirs answers whether a declared main names a directory. Required.
	Dirs pkgmeta.DirChecker
	// Overrides patch manifests by package name before anything reads them.
	Overrides pkgmeta.Overrides
	// Reserved is the dependency directory name, modpath.DefaultReserved
	// when empty.
	Reserved string
	Logger   logging.Logger
}

// Session resolves module identifiers for one build pass.
type Session struct {
	loader    pkgmeta.Loader
	dirs      pkgmeta.DirChecker
	overrides pkgmeta.Overrides
	reserved  string
	logger    logging.Logger

	entries map[string]string
	meta    map[string]*pkgmeta.Metadata
}

// NewSession creates a Session with an empty entry cache.
func NewSession(opts Options) (*Session, error) {
	if opts.Loader == nil {
		return nil, fmt.Errorf("resolver: metadata loader is required")
	}
	if opts.Dirs == nil {
		return nil, fmt.Errorf("resolver: directory checker is required")
	}
	if opts.Reserved == "" {
		opts.Reserved = modpath.DefaultReserved
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger{}
	}
	return &Session{
		loader:    opts.Loader,
		dirs:      opts.Dirs,
		overrides: opts.Overrides,
		reserved:  opts.Reserved,
		logger:    opts.Logger.WithComponent("resolver"),
		entries:   make(map[string]string),
		meta:      make(map[string]*pkgmeta.Metadata),
	}, nil
}

// Reserved returns the dependency directory name this session splits on.
func (s *Session) Reserved() string {
	return s.reserved
}

// Reset clears every cached entry file and manifest.
func (s *Session) Reset() {
	s.entries = make(map[string]string)
	s.meta = make(map[string]*pkgmeta.Metadata)
}

func (s *Session) parse(path string) modpath.Path {
	return modpath.Parse(filepath.Clean(path), s.reserved)
}

// root returns the package root of path or a not-in-package error.
func (s *Session) root(path string) (string, error) {
	root, ok := s.parse(path).Root()
	if !ok {
		return "", errors.NewNotInPackage(path)
	}
	return root, nil
}

// fullName returns the full qualified name of the package owning path.
func (s *Session) fullName(path string) (string, error) {
	name, ok := s.parse(path).FullName()
	if !ok {
		return "", errors.NewNotInPackage(path)
	}
	return name, nil
}

// Metadata returns the merged metadata of the package owning path.
func (s *Session) Metadata(path string) (*pkgmeta.Metadata, error) {
	root, err := s.root(path)
	if err != nil {
		return nil, err
	}
	return s.MergedMetadataFor(root)
}

// MergedMetadataFor loads the manifest at root and applies the caller
// override registered for its declared name. A missing manifest fails with
// a metadata-not-found error.
func (s *Session) MergedMetadataFor(root string) (*pkgmeta.Metadata, error) {
	if m, ok := s.meta[root]; ok {
		return m, nil
	}
	doc, err := s.loader.LoadMetadata(root)
	if err != nil {
		return nil, err
	}
	m, err := s.overrides.Apply(root, doc)
	if err != nil {
		return nil, err
	}
	s.meta[root] = m
	return m, nil
}

// MainFile resolves the entry file declared by meta under root. A main that
// names a directory resolves to its index.js, which also settles the case of
// a directory and an extension-less file sharing a name. A main without a
// script extension gets ".js" appended.
func (s *Session) MainFile(ctx context.Context, root string, meta *pkgmeta.Metadata) (string, error) {
	fileOrDir := filepath.Join(root, filepath.FromSlash(meta.MainOrDefault()))
	isDir, err := s.dirs.IsDir(ctx, fileOrDir)
	if err != nil {
		return "", fmt.Errorf("resolve main of %s: %w", root, err)
	}
	if isDir {
		s.logger.Debug(ctx, "Main names a directory, using its index",
			"root", root, "main", meta.MainOrDefault())
		return filepath.Join(fileOrDir, pkgmeta.DefaultMain), nil
	}
	if !modpath.HasScriptExt(fileOrDir) {
		return fileOrDir + ".js", nil
	}
	return fileOrDir, nil
}

// CacheEntry resolves and memoizes the entry file of the package owning
// path. The cached value is absolute.
func (s *Session) CacheEntry(ctx context.Context, path string) (string, error) {
	root, err := s.root(path)
	if err != nil {
		return "", err
	}
	if entry, ok := s.entries[root]; ok {
		return entry, nil
	}
	meta, err := s.MergedMetadataFor(root)
	if err != nil {
		return "", err
	}
	main, err := s.MainFile(ctx, root, meta)
	if err != nil {
		return "", err
	}
	entry, err := filepath.Abs(main)
	if err != nil {
		return "", errors.NewIOError(main, "cannot resolve entry path", err)
	}
	s.entries[root] = entry
	s.logger.Debug(ctx, "Cached package entry", "root", root, "entry", entry)
	return entry, nil
}

// EntryOf returns the cached entry file of the package owning path without
// resolving it.
func (s *Session) EntryOf(path string) (string, bool) {
	root, err := s.root(path)
	if err != nil {
		return "", false
	}
	entry, ok := s.entries[root]
	return entry, ok
}
