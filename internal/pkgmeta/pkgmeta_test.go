package pkgmeta

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/deppack/internal/errors"
)

func TestTableKeepsOrder(t *testing.T) {
	var table Table
	err := json.Unmarshal([]byte(`{"./z.js":"./a.js","fs":false,"./a.js":"./b.js","x":true,"y":null,"e":""}`), &table)
	require.NoError(t, err)

	entries := table.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "./z.js", entries[0].Key)
	assert.Equal(t, "fs", entries[1].Key)
	assert.True(t, entries[1].Target.Excluded)
	assert.Equal(t, "./a.js", entries[2].Key)
	assert.Equal(t, "./b.js", entries[2].Target.Module)

	out, err := json.Marshal(&table)
	require.NoError(t, err)
	assert.Equal(t, `{"./z.js":"./a.js","fs":false,"./a.js":"./b.js"}`, string(out))
}

func TestTableSetReplacesInPlace(t *testing.T) {
	table := NewTable(
		Mapping{Key: "a", Target: Target{Module: "1"}},
		Mapping{Key: "b", Target: Target{Module: "2"}},
		Mapping{Key: "a", Target: Target{Module: "3"}},
	)
	assert.Equal(t, 2, table.Len())
	got, ok := table.Get("a")
	require.True(t, ok)
	assert.Equal(t, "3", got.Module)
	assert.Equal(t, "a", table.Entries()[0].Key)

	var nilTable *Table
	_, ok = nilTable.Get("a")
	assert.False(t, ok)
	assert.Zero(t, nilTable.Len())
}

func TestDecodeBrowserForms(t *testing.T) {
	tests := []struct {
		name        string
		doc         string
		replacement string
		tableLen    int
		zero        bool
	}{
		{name: "object", doc: `{"name":"p","browser":{"./a.js":"./b.js"}}`, tableLen: 1},
		{name: "string", doc: `{"name":"p","browser":"lib/browser.js"}`, replacement: "lib/browser.js"},
		{name: "legacy spelling", doc: `{"name":"p","browserify":"b.js"}`, replacement: "b.js"},
		{name: "browser wins over legacy", doc: `{"name":"p","browser":"a.js","browserify":"b.js"}`, replacement: "a.js"},
		{name: "boolean", doc: `{"name":"p","browser":true}`, zero: true},
		{name: "absent", doc: `{"name":"p"}`, zero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Decode("/r", []byte(tt.doc))
			require.NoError(t, err)
			bf := m.BrowserField()
			assert.Equal(t, tt.zero, bf.IsZero())
			assert.Equal(t, tt.replacement, bf.Replacement)
			assert.Equal(t, tt.tableLen, bf.Table.Len())
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode("/r", []byte(`{"name": 5}`))
	require.Error(t, err)
	kind, ok := errors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindInvalidMetadata, kind)
}

func TestMainOrDefault(t *testing.T) {
	m, err := Decode("/r", []byte(`{"name":"p"}`))
	require.NoError(t, err)
	assert.Equal(t, "index.js", m.MainOrDefault())

	m, err = Decode("/r", []byte(`{"name":"p","main":"lib/x"}`))
	require.NoError(t, err)
	assert.Equal(t, "lib/x", m.MainOrDefault())
}

func TestOverridesApply(t *testing.T) {
	overrides, err := OverridesFromMap(map[string]interface{}{
		"pkg": map[string]interface{}{"name": "pkg", "version": "9.9.9"},
	})
	require.NoError(t, err)

	m, err := overrides.Apply("/r", []byte(`{"name":"pkg","version":"1.0.0","main":"x.js"}`))
	require.NoError(t, err)
	assert.Equal(t, "x.js", m.Main)
	assert.Equal(t, "9.9.9", m.Version)
	assert.Equal(t, "pkg", m.Name)

	other, err := overrides.Apply("/r", []byte(`{"name":"other","version":"1.0.0"}`))
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", other.Version)
}

func TestMergeOverrideIsDeep(t *testing.T) {
	merged, err := MergeOverride(
		[]byte(`{"name":"p","browser":{"./a.js":"./b.js","fs":false},"keywords":["x"]}`),
		[]byte(`{"browser":{"./c.js":"./d.js","fs":null},"keywords":["y"]}`),
	)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(merged, &got))
	assert.Equal(t, map[string]interface{}{"./a.js": "./b.js", "./c.js": "./d.js"}, got["browser"])
	assert.Equal(t, []interface{}{"y"}, got["keywords"])
}

func TestOverridesMerge(t *testing.T) {
	a := Overrides{"p": json.RawMessage(`{"main":"a.js","browser":{"x":"y"}}`)}
	b := Overrides{"p": json.RawMessage(`{"browser":{"z":"w"}}`), "q": json.RawMessage(`{"main":"q.js"}`)}

	merged, err := a.Merge(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{"main":"a.js","browser":{"x":"y","z":"w"}}`, string(merged["p"]))
	assert.JSONEq(t, `{"main":"q.js"}`, string(merged["q"]))
}

func TestOverridesFromMapRejectsScalars(t *testing.T) {
	_, err := OverridesFromMap(map[string]interface{}{"p": "nope"})
	assert.Error(t, err)
}

func TestLoadOverridesFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/cfg/overrides.yml", []byte(`
pkg:
  main: dist/pkg.js
  browser:
    fs: false
`), 0o644))

	overrides, err := LoadOverridesFile(fsys, "/cfg/overrides.yml")
	require.NoError(t, err)
	assert.JSONEq(t, `{"main":"dist/pkg.js","browser":{"fs":false}}`, string(overrides["pkg"]))

	_, err = LoadOverridesFile(fsys, "/cfg/missing.yml")
	kind, _ := errors.KindOf(err)
	assert.Equal(t, errors.KindIO, kind)
}

func TestFSLoader(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/app/node_modules/a/package.json", []byte(`{"name":"a"}`), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/app/node_modules/bad/package.json", []byte(`{not json`), 0o644))

	loader, err := NewFSLoader(fsys, 0)
	require.NoError(t, err)

	doc, err := loader.LoadMetadata("/app/node_modules/a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"a"}`, string(doc))
	assert.Equal(t, 1, loader.Cached())

	// Cached copies survive a change on disk until forgotten.
	require.NoError(t, afero.WriteFile(fsys, "/app/node_modules/a/package.json", []byte(`{"name":"a2"}`), 0o644))
	doc, _ = loader.LoadMetadata("/app/node_modules/a")
	assert.JSONEq(t, `{"name":"a"}`, string(doc))
	loader.Forget("/app/node_modules/a")
	doc, _ = loader.LoadMetadata("/app/node_modules/a")
	assert.JSONEq(t, `{"name":"a2"}`, string(doc))

	_, err = loader.LoadMetadata("/app/node_modules/missing")
	assert.True(t, errors.IsMetadataNotFound(err))

	_, err = loader.LoadMetadata("/app/node_modules/bad")
	kind, _ := errors.KindOf(err)
	assert.Equal(t, errors.KindInvalidMetadata, kind)

	loader.Purge()
	assert.Zero(t, loader.Cached())
}

func TestFSDirChecker(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/app/node_modules/a/lib", 0o755))
	require.NoError(t, afero.WriteFile(fsys, "/app/node_modules/a/lib.js", []byte(""), 0o644))

	dirs := FSDirChecker{FS: fsys}
	ctx := context.Background()

	ok, err := dirs.IsDir(ctx, "/app/node_modules/a/lib")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = dirs.IsDir(ctx, "/app/node_modules/a/lib.js")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = dirs.IsDir(ctx, "/app/node_modules/a/missing")
	require.NoError(t, err)
	assert.False(t, ok)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = dirs.IsDir(cancelled, "/app")
	assert.ErrorIs(t, err, context.Canceled)
}
