package resolver

import (
	"context"
	"path"
	"path/filepath"

	"github.com/conneroisu/deppack/internal/modpath"
	"github.com/conneroisu/deppack/internal/pkgmeta"
)

// OverrideTable returns the browser table of the package owning file. The
// object form is returned as declared. The string form becomes a single
// mapping from the entry file to the replacement. No field yields an empty
// table.
func (s *Session) OverrideTable(ctx context.Context, file string) (*pkgmeta.Table, error) {
	meta, err := s.Metadata(file)
	if err != nil {
		return nil, err
	}
	bf := meta.BrowserField()
	switch {
	case bf.Table != nil:
		return bf.Table, nil
	case bf.Replacement != "":
		root, err := s.root(file)
		if err != nil {
			return nil, err
		}
		entry, err := s.CacheEntry(ctx, file)
		if err != nil {
			return nil, err
		}
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(absRoot, entry)
		if err != nil {
			return nil, err
		}
		key := "./" + filepath.ToSlash(rel)
		val := "./" + path.Join(".", filepath.ToSlash(bf.Replacement))
		return pkgmeta.NewTable(pkgmeta.Mapping{Key: key, Target: pkgmeta.Target{Module: val}}), nil
	default:
		return pkgmeta.NewTable(), nil
	}
}

// GlobalOverrideTable returns the mappings that swap bare package names
// for the package owning file. Relative targets are rewritten to module
// identifiers, bare targets are kept, and exclusions are dropped.
func (s *Session) GlobalOverrideTable(ctx context.Context, file string) (*pkgmeta.Table, error) {
	table, err := s.OverrideTable(ctx, file)
	if err != nil {
		return nil, err
	}
	root, err := s.root(file)
	if err != nil {
		return nil, err
	}

	out := pkgmeta.NewTable()
	for _, m := range table.Entries() {
		if modpath.IsRelative(m.Key) || m.Target.Excluded || m.Target.Module == "" {
			continue
		}
		target := m.Target.Module
		if modpath.IsRelative(target) {
			target, err = s.ModuleID(ctx, joinRoot(root, target))
			if err != nil {
				return nil, err
			}
		}
		out.Set(m.Key, pkgmeta.Target{Module: target})
	}
	return out, nil
}

// ExpandedFilePath applies relative browser keys in declaration order: when
// a key's relative target is the current file, the file takes the key's
// path. Every alias of a redirected file therefore converges on one
// identifier. Keys mapped to bare package names never redirect.
func (s *Session) ExpandedFilePath(ctx context.Context, file string) (string, error) {
	file = filepath.Clean(file)
	table, err := s.OverrideTable(ctx, file)
	if err != nil {
		return "", err
	}
	root, err := s.root(file)
	if err != nil {
		return "", err
	}
	for _, m := range table.Entries() {
		if !modpath.IsRelative(m.Key) || !modpath.IsRelative(m.Target.Module) {
			continue
		}
		if refersTo(root, m.Target.Module, file) {
			file = joinRoot(root, m.Key)
			if !modpath.HasScriptExt(file) {
				file += ".js"
			}
		}
	}
	return file, nil
}

// Shadowed reports whether a relative browser key replaces file with a
// different file of the same package. The replacement is registered in its
// place. A key mapped to a bare package name leaves file registered.
func (s *Session) Shadowed(ctx context.Context, file string) (bool, error) {
	m, ok, err := s.relativeKeyFor(ctx, file)
	if err != nil || !ok {
		return false, err
	}
	if m.Target.Excluded || !modpath.IsRelative(m.Target.Module) {
		return false, nil
	}
	root, err := s.root(file)
	if err != nil {
		return false, err
	}
	return !refersTo(root, m.Target.Module, filepath.Clean(file)), nil
}

// Excluded reports whether a relative browser key maps file to false.
func (s *Session) Excluded(ctx context.Context, file string) (bool, error) {
	m, ok, err := s.relativeKeyFor(ctx, file)
	if err != nil || !ok {
		return false, err
	}
	return m.Target.Excluded, nil
}

// BareExclusions returns the bare package names the package owning file
// maps to false.
func (s *Session) BareExclusions(ctx context.Context, file string) ([]string, error) {
	table, err := s.OverrideTable(ctx, file)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, m := range table.Entries() {
		if !modpath.IsRelative(m.Key) && m.Target.Excluded {
			names = append(names, m.Key)
		}
	}
	return names, nil
}

// relativeKeyFor finds the last relative key naming file.
func (s *Session) relativeKeyFor(ctx context.Context, file string) (pkgmeta.Mapping, bool, error) {
	file = filepath.Clean(file)
	table, err := s.OverrideTable(ctx, file)
	if err != nil {
		return pkgmeta.Mapping{}, false, err
	}
	root, err := s.root(file)
	if err != nil {
		return pkgmeta.Mapping{}, false, err
	}
	var (
		found pkgmeta.Mapping
		ok    bool
	)
	for _, m := range table.Entries() {
		if modpath.IsRelative(m.Key) && refersTo(root, m.Key, file) {
			found, ok = m, true
		}
	}
	return found, ok, nil
}

func joinRoot(root, request string) string {
	return filepath.Join(root, filepath.FromSlash(request))
}

// refersTo reports whether a root-relative request names file, allowing
// the implicit ".js" extension.
func refersTo(root, request, file string) bool {
	if request == "" {
		return false
	}
	p := joinRoot(root, request)
	if p == file {
		return true
	}
	return !modpath.HasScriptExt(p) && p+".js" == file
}
