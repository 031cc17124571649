// Package modpath derives package roots and package identity names from file
// paths inside nested dependency directories.
//
// A file such as
//
//	/app/node_modules/a/node_modules/b/lib/x.js
//
// belongs to the package root /app/node_modules/a/node_modules/b, whose short
// name is "b" and whose full name is "a/node_modules/b". The full name keeps
// the private nesting chain so two copies of b never share an identity.
package modpath

import (
	"path/filepath"
	"strings"
)

// DefaultReserved is the directory name dependencies are installed under.
const DefaultReserved = "node_modules"

// Path is a file path split into forward-slash segments.
type Path struct {
	segs     []string
	reserved string
}

// Parse splits p on the host separator. An empty reserved name selects
// DefaultReserved.
func Parse(p, reserved string) Path {
	if reserved == "" {
		reserved = DefaultReserved
	}
	slashed := filepath.ToSlash(p)
	return Path{
		segs:     strings.Split(slashed, "/"),
		reserved: reserved,
	}
}

// Segments returns a copy of the path segments.
func (p Path) Segments() []string {
	return append([]string(nil), p.segs...)
}

// Nearest returns the index of the last reserved segment, or -1.
func (p Path) Nearest() int {
	for i := len(p.segs) - 1; i >= 0; i-- {
		if p.segs[i] == p.reserved {
			return i
		}
	}
	return -1
}

// Farthest returns the index of the first reserved segment, or -1.
func (p Path) Farthest() int {
	for i, s := range p.segs {
		if s == p.reserved {
			return i
		}
	}
	return -1
}

// Depth counts reserved segments in the path.
func (p Path) Depth() int {
	n := 0
	for _, s := range p.segs {
		if s == p.reserved {
			n++
		}
	}
	return n
}

// nameEnd returns the exclusive end index of the package name that follows
// the reserved segment at i. Scoped names ("@scope/name") take two segments.
func (p Path) nameEnd(i int) (int, bool) {
	if i < 0 || i+1 >= len(p.segs) || p.segs[i+1] == "" {
		return 0, false
	}
	if strings.HasPrefix(p.segs[i+1], "@") {
		if i+2 >= len(p.segs) || p.segs[i+2] == "" {
			return 0, false
		}
		return i + 3, true
	}
	return i + 2, true
}

// InPackage reports whether the path lies inside a dependency package.
func (p Path) InPackage() bool {
	_, ok := p.nameEnd(p.Nearest())
	return ok
}

// Hidden reports whether any name following a reserved segment starts with
// a dot. Package managers and build tools keep caches and links there
// (".cache", ".bin", ".pnpm") and none of them are packages.
func (p Path) Hidden() bool {
	for i, s := range p.segs {
		if s == p.reserved && i+1 < len(p.segs) && strings.HasPrefix(p.segs[i+1], ".") {
			return true
		}
	}
	return false
}

// Root returns the package root directory in host separator form.
func (p Path) Root() (string, bool) {
	end, ok := p.nameEnd(p.Nearest())
	if !ok {
		return "", false
	}
	return filepath.FromSlash(strings.Join(p.segs[:end], "/")), true
}

// ShortName returns the package name right after the nearest reserved segment.
func (p Path) ShortName() (string, bool) {
	i := p.Nearest()
	end, ok := p.nameEnd(i)
	if !ok {
		return "", false
	}
	return strings.Join(p.segs[i+1:end], "/"), true
}

// FullName returns every segment from just after the first reserved segment
// up to and including the package name after the last one.
func (p Path) FullName() (string, bool) {
	end, ok := p.nameEnd(p.Nearest())
	if !ok {
		return "", false
	}
	return strings.Join(p.segs[p.Farthest()+1:end], "/"), true
}

// Rel returns the forward-slash path of the file relative to its package
// root. It is empty for the root itself.
func (p Path) Rel() (string, bool) {
	end, ok := p.nameEnd(p.Nearest())
	if !ok {
		return "", false
	}
	return strings.Join(p.segs[end:], "/"), true
}

// Root is shorthand for Parse(path, reserved).Root().
func Root(path, reserved string) (string, bool) {
	return Parse(path, reserved).Root()
}

// FullName is shorthand for Parse(path, reserved).FullName().
func FullName(path, reserved string) (string, bool) {
	return Parse(path, reserved).FullName()
}

// ShortName is shorthand for Parse(path, reserved).ShortName().
func ShortName(path, reserved string) (string, bool) {
	return Parse(path, reserved).ShortName()
}

// IsRelative reports whether a request is written relative to the requiring
// file ("./x", "../x", "." or "..").
func IsRelative(request string) bool {
	return request == "." || request == ".." ||
		strings.HasPrefix(request, "./") || strings.HasPrefix(request, "../")
}

// scriptExts are stripped from module identifiers. The emitted runtime strips
// the same set from requests.
var scriptExts = []string{".json", ".js"}

// StripExt removes one trailing script or metadata extension.
func StripExt(p string) string {
	for _, ext := range scriptExts {
		if strings.HasSuffix(p, ext) && len(p) > len(ext) {
			return strings.TrimSuffix(p, ext)
		}
	}
	return p
}

// HasScriptExt reports whether p already ends in a recognized extension.
func HasScriptExt(p string) bool {
	for _, ext := range scriptExts {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// IsJSON reports whether p names a metadata (JSON) file.
func IsJSON(p string) bool {
	return strings.HasSuffix(p, ".json")
}
