// Package testutils holds fixtures shared by package tests.
package testutils

import (
	"encoding/json"
	"path"
	"sort"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// WriteTree writes files, keyed by slash path relative to root, into fsys.
func WriteTree(t *testing.T, fsys afero.Fs, root string, files map[string]string) {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := path.Join(root, name)
		require.NoError(t, fsys.MkdirAll(path.Dir(p), 0o755))
		require.NoError(t, afero.WriteFile(fsys, p, []byte(files[name]), 0o644))
	}
}

// Manifest renders a package.json document for name. Extra fields such as
// "main" or "browser" are merged in.
func Manifest(t *testing.T, name string, extra map[string]interface{}) string {
	t.Helper()
	doc := map[string]interface{}{"name": name}
	for k, v := range extra {
		doc[k] = v
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return string(data)
}

// MemTree returns an in-memory filesystem holding files under root.
func MemTree(t *testing.T, root string, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	WriteTree(t, fsys, root, files)
	return fsys
}
