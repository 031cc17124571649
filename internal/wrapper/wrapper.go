// Package wrapper turns a dependency's source file into a registration for
// the bundle's flat module registry.
package wrapper

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/deppack/internal/errors"
	"github.com/conneroisu/deppack/internal/logging"
	"github.com/conneroisu/deppack/internal/modpath"
	"github.com/conneroisu/deppack/internal/resolver"
	"github.com/conneroisu/deppack/internal/runtime"
	"github.com/conneroisu/deppack/internal/shims"
)

// Options configures a Generator.
type Options struct {
	// Globals detects host globals a module needs. Defaults to shims.Scanner.
	Globals shims.GlobalFinder
	// Policy renames modules and supplies extra aliases. Defaults to an
	// empty shims.Policy.
	Policy shims.NamePolicy
	// NoFileBased disables the file-path aliases emitted next to entry and
	// redirected files. Policy.ShouldIncludeFileAlias is consulted instead.
	NoFileBased bool
	Logger      logging.Logger
}

// Generator emits registrations against one resolver session.
type Generator struct {
	session *resolver.Session
	globals shims.GlobalFinder
	policy  shims.NamePolicy
	noFB    bool
	logger  logging.Logger
}

// New creates a Generator.
func New(session *resolver.Session, opts Options) *Generator {
	if opts.Globals == nil {
		opts.Globals = shims.Scanner{}
	}
	if opts.Policy == nil {
		opts.Policy = shims.Policy{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger{}
	}
	return &Generator{
		session: session,
		globals: opts.Globals,
		policy:  opts.Policy,
		noFB:    opts.NoFileBased,
		logger:  opts.Logger.WithComponent("wrapper"),
	}
}

// Generate returns the registration for the file at path with the given
// source. Files replaced by another file through their package's browser
// table produce no output; the replacement is registered in their place.
func (g *Generator) Generate(ctx context.Context, path, source string) (string, error) {
	path = filepath.Clean(path)

	shadowed, err := g.session.Shadowed(ctx, path)
	if err != nil {
		return "", err
	}
	if shadowed {
		g.logger.Debug(ctx, "Skipping file replaced by browser table", "path", path)
		return "", nil
	}

	expanded, err := g.session.ExpandedFilePath(ctx, path)
	if err != nil {
		return "", err
	}
	moduleName, err := g.session.ModuleID(ctx, expanded)
	if err != nil {
		return "", err
	}

	excluded, err := g.session.Excluded(ctx, path)
	if err != nil {
		return "", err
	}
	if excluded {
		return g.emptyModule(ctx, moduleName, expanded)
	}

	return g.header(ctx, moduleName, source, expanded, path)
}

// ExclusionShims returns empty-object registrations for the bare package
// names the package owning path maps to false.
func (g *Generator) ExclusionShims(ctx context.Context, path string) ([]string, error) {
	names, err := g.session.BareExclusions(ctx, path)
	if err != nil {
		return nil, err
	}
	defs := make([]string, 0, len(names))
	for _, name := range names {
		def, err := runtime.SimpleShimDef(name, map[string]interface{}{})
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// emptyModule registers an excluded file as an empty object. An excluded
// entry keeps its file-based alias like any other entry.
func (g *Generator) emptyModule(ctx context.Context, moduleName, file string) (string, error) {
	name := g.rename(moduleName)
	def := runtime.Definition(name, "{}")
	isMain, err := g.session.IsEntryPoint(ctx, file)
	if err != nil {
		return "", err
	}
	alias, err := g.entryAlias(file, name, isMain)
	if err != nil || alias == "" {
		return def, err
	}
	return def + "\n\n" + strings.TrimSpace(alias), nil
}

// entryAlias returns the alias registered next to name: the policy alias
// when file-based aliases are disabled, the file-based id of an entry file
// otherwise.
func (g *Generator) entryAlias(file, name string, isMain bool) (string, error) {
	switch {
	case g.noFB:
		return g.policy.ShouldIncludeFileAlias(name), nil
	case isMain:
		fbName, err := g.session.FileBasedID(file)
		if err != nil {
			return "", err
		}
		return runtime.AliasDef(fbName, name) + "\n", nil
	}
	return "", nil
}

func (g *Generator) rename(name string) string {
	if g.policy.ShouldOverrideName(name) {
		return g.policy.OverrideName(name)
	}
	return name
}

// header builds the registration for file, the expanded path of origPath.
func (g *Generator) header(ctx context.Context, moduleName, source, file, origPath string) (string, error) {
	if modpath.IsJSON(file) {
		body := strings.TrimSpace(source)
		if !json.Valid([]byte(body)) {
			return "", errors.NewInvalidSource(file, "metadata file is not valid JSON", nil)
		}
		return runtime.Definition(g.rename(moduleName), body), nil
	}

	mappings, err := g.session.GlobalOverrideTable(ctx, file)
	if err != nil {
		return "", err
	}
	isMain, err := g.session.IsEntryPoint(ctx, file)
	if err != nil {
		return "", err
	}
	p := modpath.Parse(file, g.session.Reserved())
	fullName, ok := p.FullName()
	if !ok {
		return "", errors.NewNotInPackage(file)
	}

	itemPath := ""
	if isMain {
		rel, _ := p.Rel()
		dirs := strings.Split(modpath.StripExt(rel), "/")
		prefix := strings.Join(append([]string{moduleName}, dirs[:len(dirs)-1]...), "/")
		itemPath = ", " + runtime.Quote(prefix+"/")
	}

	glob := g.globals.FindGlobals(source)
	moduleName = g.rename(moduleName)

	fbName, err := g.session.FileBasedID(file)
	if err != nil {
		return "", err
	}
	fbUnexp, err := g.session.FileBasedID(origPath)
	if err != nil {
		return "", err
	}

	fbAlias, err := g.entryAlias(file, moduleName, isMain)
	if err != nil {
		return "", err
	}
	var fbAliasUnexp string
	if !g.noFB && fbUnexp != fbName {
		fbAliasUnexp = runtime.AliasDef(fbUnexp, moduleName)
	}

	table, err := mappings.MarshalJSON()
	if err != nil {
		return "", err
	}

	aliases := strings.TrimSpace(fbAlias + fbAliasUnexp)
	if aliases != "" {
		aliases = "\n\n" + aliases
	}

	return fmt.Sprintf(
		"\nrequire.register(%s, function(exports, require, module) {\n"+
			"  require = __makeRelativeRequire(require, %s, %s%s);\n"+
			"  %s(function(%s) {\n"+
			"    %s\n"+
			"  })();\n"+
			"});%s",
		runtime.Quote(moduleName), table, runtime.Quote(fullName), itemPath,
		glob.Wrapper, glob.ParamList(),
		strings.TrimSpace(source),
		aliases,
	), nil
}
