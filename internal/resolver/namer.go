package resolver

import (
	"context"
	"path/filepath"

	"github.com/conneroisu/deppack/internal/errors"
	"github.com/conneroisu/deppack/internal/modpath"
)

// IsEntryPoint reports whether file, after browser expansion, is the entry
// file of its package. The entry cache is primed on first use.
func (s *Session) IsEntryPoint(ctx context.Context, file string) (bool, error) {
	entry, err := s.CacheEntry(ctx, file)
	if err != nil {
		return false, err
	}
	expanded, err := s.ExpandedFilePath(ctx, file)
	if err != nil {
		return false, err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return false, errors.NewIOError(expanded, "cannot resolve path", err)
	}
	return abs == entry, nil
}

// ModuleID returns the identifier file is registered under: the package's
// full name for its entry file, and the full name joined with the
// extension-less relative path for every other file.
func (s *Session) ModuleID(ctx context.Context, file string) (string, error) {
	main, err := s.IsEntryPoint(ctx, file)
	if err != nil {
		return "", err
	}
	if main {
		return s.fullName(file)
	}
	return s.FileBasedID(file)
}

// FileBasedID is ModuleID without the entry-file special case.
func (s *Session) FileBasedID(file string) (string, error) {
	p := s.parse(file)
	name, ok := p.FullName()
	if !ok {
		return "", errors.NewNotInPackage(file)
	}
	rel, _ := p.Rel()
	if rel == "" {
		return name, nil
	}
	return name + "/" + modpath.StripExt(rel), nil
}

// ResolveModuleID expands file through its package's browser table and
// returns the identifier of the result.
func (s *Session) ResolveModuleID(ctx context.Context, file string) (string, error) {
	expanded, err := s.ExpandedFilePath(ctx, file)
	if err != nil {
		return "", err
	}
	return s.ModuleID(ctx, expanded)
}
