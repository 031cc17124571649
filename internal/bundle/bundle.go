// Package bundle runs a full build pass: it discovers dependency sources,
// wraps each one into a registration and writes a single loadable bundle.
package bundle

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"

	"github.com/conneroisu/deppack/internal/logging"
	"github.com/conneroisu/deppack/internal/modpath"
	"github.com/conneroisu/deppack/internal/pkgmeta"
	"github.com/conneroisu/deppack/internal/resolver"
	"github.com/conneroisu/deppack/internal/runtime"
	"github.com/conneroisu/deppack/internal/shims"
	"github.com/conneroisu/deppack/internal/wrapper"
)

// Options configures a Bundler.
type Options struct {
	// FS is the filesystem sources and manifests are read from.
	FS afero.Fs
	// Paths are the directories walked for sources.
	Paths []string
	// Exclude skips files and directories whose slash path matches.
	Exclude []glob.Glob
	// Reserved is the dependency directory name.
	Reserved string
	// WithLoader prepends the CommonJS registry to the output.
	WithLoader bool

	Overrides   pkgmeta.Overrides
	Globals     shims.GlobalFinder
	Policy      shims.NamePolicy
	NoFileBased bool

	// Loader caches manifests across passes. One is created when nil.
	Loader *pkgmeta.FSLoader
	// Progress receives a progress bar when set.
	Progress io.Writer
	Logger   logging.Logger
}

// Result summarizes a build pass.
type Result struct {
	Files    int
	Modules  int
	Skipped  int
	Shims    int
	Bytes    int
	Duration time.Duration
}

// Bundler builds bundles from one set of Options.
type Bundler struct {
	opts   Options
	logger logging.Logger
}

// New validates opts and returns a Bundler.
func New(opts Options) (*Bundler, error) {
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.Reserved == "" {
		opts.Reserved = modpath.DefaultReserved
	}
	if len(opts.Paths) == 0 {
		opts.Paths = []string{opts.Reserved}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger{}
	}
	if opts.Loader == nil {
		loader, err := pkgmeta.NewFSLoader(opts.FS, 0)
		if err != nil {
			return nil, err
		}
		opts.Loader = loader
	}
	return &Bundler{opts: opts, logger: opts.Logger.WithComponent("bundle")}, nil
}

// Loader returns the manifest loader shared by every pass.
func (b *Bundler) Loader() *pkgmeta.FSLoader {
	return b.opts.Loader
}

// SetProgress directs the progress bar of later passes to w. A nil writer
// disables it.
func (b *Bundler) SetProgress(w io.Writer) {
	b.opts.Progress = w
}

// Discover returns the sorted source files under the configured paths.
// Dot entries inside a dependency directory are tool state, not packages,
// and are skipped.
func (b *Bundler) Discover(ctx context.Context) ([]string, error) {
	var files []string
	for _, root := range b.opts.Paths {
		err := afero.Walk(b.opts.FS, root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if b.excluded(path) || modpath.Parse(path, b.opts.Reserved).Hidden() {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if info.IsDir() || !modpath.HasScriptExt(path) {
				return nil
			}
			// Loose files directly under the reserved directory have no root.
			if rel, ok := modpath.Parse(path, b.opts.Reserved).Rel(); !ok || rel == "" {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("discover %s: %w", root, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (b *Bundler) excluded(path string) bool {
	slash := filepath.ToSlash(path)
	for _, g := range b.opts.Exclude {
		if g.Match(slash) {
			return true
		}
	}
	return false
}

// Build runs one pass with a fresh resolver session and writes the bundle
// to w. The first file that fails to resolve aborts the pass.
func (b *Bundler) Build(ctx context.Context, w io.Writer) (*Result, error) {
	perf := logging.StartOperation(b.logger, "bundle")
	start := time.Now()

	files, err := b.Discover(ctx)
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	session, err := resolver.NewSession(resolver.Options{
		Loader:    b.opts.Loader,
		Dirs:      pkgmeta.FSDirChecker{FS: b.opts.FS},
		Overrides: b.opts.Overrides,
		Reserved:  b.opts.Reserved,
		Logger:    b.opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	// Entries are resolved up front so every file sees the same cache.
	for _, f := range files {
		if _, err := session.CacheEntry(ctx, f); err != nil {
			err = fmt.Errorf("resolve entry for %s: %w", f, err)
			perf.EndWithError(ctx, err)
			return nil, err
		}
	}

	gen := wrapper.New(session, wrapper.Options{
		Globals:     b.opts.Globals,
		Policy:      b.opts.Policy,
		NoFileBased: b.opts.NoFileBased,
		Logger:      b.opts.Logger,
	})

	bar := b.progress(len(files))
	result := &Result{Files: len(files)}
	var (
		parts     []string
		shimDefs  []string
		seenShims = make(map[string]bool)
	)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		source, err := afero.ReadFile(b.opts.FS, f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		out, err := gen.Generate(ctx, f, string(source))
		if err != nil {
			err = fmt.Errorf("wrap %s: %w", f, err)
			perf.EndWithError(ctx, err)
			return nil, err
		}
		if out == "" {
			result.Skipped++
		} else {
			result.Modules++
			parts = append(parts, out)
		}

		defs, err := gen.ExclusionShims(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("shims for %s: %w", f, err)
		}
		for _, d := range defs {
			if !seenShims[d] {
				seenShims[d] = true
				shimDefs = append(shimDefs, d)
			}
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	result.Shims = len(shimDefs)

	resolverSrc, err := runtime.ResolverSourceFor(b.opts.Reserved)
	if err != nil {
		return nil, err
	}

	var out strings.Builder
	if b.opts.WithLoader {
		out.WriteString(runtime.LoaderSource())
	}
	out.WriteString(resolverSrc)
	for _, p := range parts {
		out.WriteString(p)
		out.WriteString("\n")
	}
	for _, d := range shimDefs {
		out.WriteString("\n")
		out.WriteString(d)
		out.WriteString("\n")
	}

	n, err := io.WriteString(w, out.String())
	if err != nil {
		return nil, fmt.Errorf("write bundle: %w", err)
	}
	result.Bytes = n
	result.Duration = time.Since(start)

	perf.End(ctx, "files", result.Files, "modules", result.Modules,
		"skipped", result.Skipped, "shims", result.Shims, "bytes", result.Bytes)
	return result, nil
}

func (b *Bundler) progress(total int) *progressbar.ProgressBar {
	if b.opts.Progress == nil || total == 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(b.opts.Progress),
		progressbar.OptionSetDescription("bundling"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
