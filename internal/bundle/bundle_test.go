package bundle

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/gobwas/glob"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/deppack/internal/errors"
	"github.com/conneroisu/deppack/internal/pkgmeta"
)

const nm = "/app/node_modules"

func testFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fsys, name, []byte(content), 0o644))
	}
	return fsys
}

func sampleTree() map[string]string {
	return map[string]string{
		nm + "/.package-lock.json":             `{}`,
		nm + "/.cache/babel-loader/abc123.json": `{"code":"cached"}`,
		nm + "/.bin/tool.js":                   `#!/usr/bin/env node`,
		nm + "/a/node_modules/.bin/b.js":       `require("b");`,
		nm + "/a/package.json":                 `{"name":"a","browser":{"fs":false}}`,
		nm + "/a/index.js":                     `module.exports = {b: require("b").name, fs: typeof require("fs")};`,
		nm + "/a/test/spec.js":                 `throw new Error("tests are not bundled");`,
		nm + "/a/README.md":                    `# a`,
		nm + "/a/node_modules/b/package.json":  `{"name":"b"}`,
		nm + "/a/node_modules/b/index.js":      `module.exports = {name: "nested b"};`,
		nm + "/b/package.json":                 `{"name":"b","browser":{"fs":false}}`,
		nm + "/b/index.js":                     `module.exports = {name: "top b"};`,
		nm + "/c/package.json":                 `{"name":"c","main":"lib/index.js","browser":"lib/browser.js"}`,
		nm + "/c/lib/index.js":                 `module.exports = "node";`,
		nm + "/c/lib/browser.js":               `module.exports = "browser";`,
	}
}

func TestDiscover(t *testing.T) {
	b, err := New(Options{
		FS:      testFS(t, sampleTree()),
		Paths:   []string{nm},
		Exclude: []glob.Glob{glob.MustCompile("**/test/**", '/')},
	})
	require.NoError(t, err)

	files, err := b.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		nm + "/a/index.js",
		nm + "/a/node_modules/b/index.js",
		nm + "/a/node_modules/b/package.json",
		nm + "/a/package.json",
		nm + "/b/index.js",
		nm + "/b/package.json",
		nm + "/c/lib/browser.js",
		nm + "/c/lib/index.js",
		nm + "/c/package.json",
	}, files)
}

func TestDiscoverSkipsToolDirectories(t *testing.T) {
	b, err := New(Options{FS: testFS(t, sampleTree()), Paths: []string{nm}})
	require.NoError(t, err)

	files, err := b.Discover(context.Background())
	require.NoError(t, err)
	for _, f := range files {
		assert.NotContains(t, f, "/.cache/")
		assert.NotContains(t, f, "/.bin/")
	}

	_, err = b.Build(context.Background(), &bytes.Buffer{})
	assert.NoError(t, err)
}

func TestDiscoverMissingPath(t *testing.T) {
	b, err := New(Options{FS: afero.NewMemMapFs(), Paths: []string{"/nowhere"}})
	require.NoError(t, err)
	_, err = b.Discover(context.Background())
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	var progress bytes.Buffer
	b, err := New(Options{
		FS:         testFS(t, sampleTree()),
		Paths:      []string{nm},
		Exclude:    []glob.Glob{glob.MustCompile("**/test/**", '/')},
		WithLoader: true,
		Progress:   &progress,
	})
	require.NoError(t, err)

	var out bytes.Buffer
	result, err := b.Build(context.Background(), &out)
	require.NoError(t, err)

	assert.Equal(t, 9, result.Files)
	assert.Equal(t, 8, result.Modules)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Shims)
	assert.Equal(t, out.Len(), result.Bytes)
	assert.Equal(t, 1, strings.Count(out.String(), `require.register("fs", `))

	vm := goja.New()
	_, err = vm.RunString(out.String())
	require.NoError(t, err)

	v, err := vm.RunString(`require("a").b`)
	require.NoError(t, err)
	assert.Equal(t, "nested b", v.String())

	v, err = vm.RunString(`require("a").fs`)
	require.NoError(t, err)
	assert.Equal(t, "object", v.String())

	v, err = vm.RunString(`require("c")`)
	require.NoError(t, err)
	assert.Equal(t, "browser", v.String())
}

func TestBuildWithoutLoader(t *testing.T) {
	b, err := New(Options{FS: testFS(t, sampleTree()), Paths: []string{nm + "/b"}})
	require.NoError(t, err)

	var out bytes.Buffer
	_, err = b.Build(context.Background(), &out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.String(), "\nvar __makeRelativeRequire"))
}

func TestBuildUsesFreshSessions(t *testing.T) {
	fsys := testFS(t, sampleTree())
	b, err := New(Options{FS: fsys, Paths: []string{nm + "/b"}, WithLoader: true})
	require.NoError(t, err)

	var first bytes.Buffer
	_, err = b.Build(context.Background(), &first)
	require.NoError(t, err)
	assert.Contains(t, first.String(), `require.register("b", `)

	// A changed main only shows up once the manifest cache is purged.
	require.NoError(t, afero.WriteFile(fsys, nm+"/b/package.json", []byte(`{"name":"b","main":"other.js"}`), 0o644))
	require.NoError(t, afero.WriteFile(fsys, nm+"/b/other.js", []byte(`module.exports = 1;`), 0o644))
	b.Loader().Purge()

	var second bytes.Buffer
	_, err = b.Build(context.Background(), &second)
	require.NoError(t, err)
	assert.Contains(t, second.String(), `require.register("b/index", function(exports, require, module) {`+"\n  require = ")
	assert.Contains(t, second.String(), `require.register("b/other", function(exports, require, module) {`+"\n  module.exports = require(\"b\");")
}

func TestBuildAbortsOnMissingManifest(t *testing.T) {
	files := sampleTree()
	files[nm+"/broken/index.js"] = `module.exports = 1;`
	b, err := New(Options{FS: testFS(t, files), Paths: []string{nm}})
	require.NoError(t, err)

	var out bytes.Buffer
	_, err = b.Build(context.Background(), &out)
	require.Error(t, err)
	assert.True(t, errors.IsMetadataNotFound(err))
	assert.Zero(t, out.Len())
}

func TestBuildSharesLoader(t *testing.T) {
	fsys := testFS(t, sampleTree())
	loader, err := pkgmeta.NewFSLoader(fsys, 4)
	require.NoError(t, err)

	b, err := New(Options{FS: fsys, Paths: []string{nm + "/b"}, Loader: loader})
	require.NoError(t, err)
	_, err = b.Build(context.Background(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, loader.Cached())
}
