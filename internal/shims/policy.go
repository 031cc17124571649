package shims

import "github.com/conneroisu/deppack/internal/runtime"

// NamePolicy decides per module whether its registered name changes and
// which extra alias, if any, is emitted for it.
type NamePolicy interface {
	ShouldOverrideName(name string) bool
	OverrideName(name string) string
	// ShouldIncludeFileAlias returns an alias registration for name, or "".
	ShouldIncludeFileAlias(name string) string
}

// Policy is a NamePolicy driven by configuration tables.
type Policy struct {
	// Rename maps a module identifier to the name it is registered under.
	Rename map[string]string
	// FileAliases maps a module identifier to one extra alias. It is
	// consulted when file based aliases are disabled.
	FileAliases map[string]string
}

// ShouldOverrideName implements NamePolicy.
func (p Policy) ShouldOverrideName(name string) bool {
	to, ok := p.Rename[name]
	return ok && to != "" && to != name
}

// OverrideName implements NamePolicy.
func (p Policy) OverrideName(name string) string {
	if p.ShouldOverrideName(name) {
		return p.Rename[name]
	}
	return name
}

// ShouldIncludeFileAlias implements NamePolicy.
func (p Policy) ShouldIncludeFileAlias(name string) string {
	alias, ok := p.FileAliases[name]
	if !ok || alias == "" || alias == name {
		return ""
	}
	return runtime.AliasDef(alias, name) + "\n"
}
