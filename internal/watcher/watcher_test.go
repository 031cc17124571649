package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/glob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestNewFileWatcher(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NotNil(t, watcher.fs)
	assert.NotNil(t, watcher.debouncer)
	assert.Empty(t, watcher.filters)
	assert.Empty(t, watcher.handlers)

	watcher.AddFilter(SourceFilter)
	watcher.AddFilter(NoGitFilter)
	assert.Len(t, watcher.filters, 2)
}

func TestFileWatcherAddPath(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NoError(t, watcher.AddPath(t.TempDir()))
	assert.Error(t, watcher.AddPath("/non/existent/path"))
}

func TestFileWatcherDeliversBatches(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "node_modules", "pkg")
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))

	watcher, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	watcher.AddFilter(SourceFilter)
	watcher.AddFilter(PackageFilter("node_modules"))
	require.NoError(t, watcher.AddRecursive(filepath.Join(root, "node_modules")))

	var (
		mu     sync.Mutex
		events []ChangeEvent
	)
	watcher.AddHandler(func(batch Batch) error {
		mu.Lock()
		events = append(events, batch.Events...)
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	// Give watcher time to start
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "index.js"), []byte("module.exports = 1;"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "README.md"), []byte("# pkg"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if filepath.Base(e.Path) == "index.js" {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	for _, e := range events {
		assert.NotEqual(t, "README.md", filepath.Base(e.Path))
	}
	mu.Unlock()
}

func TestFilters(t *testing.T) {
	exclude := ExcludeFilter([]glob.Glob{glob.MustCompile("**/test/**", '/')})
	pkg := PackageFilter("node_modules")

	testCases := []struct {
		name   string
		filter FileFilter
		path   string
		want   bool
	}{
		{"script", SourceFilter, "node_modules/a/index.js", true},
		{"json", SourceFilter, "node_modules/a/package.json", true},
		{"markdown", SourceFilter, "node_modules/a/README.md", false},
		{"inside package", pkg, "/app/node_modules/a/index.js", true},
		{"outside package", pkg, "/app/src/index.js", false},
		{"tool cache", pkg, "/app/node_modules/.cache/babel-loader/x.json", false},
		{"excluded", exclude, "/app/node_modules/a/test/x.js", false},
		{"not excluded", exclude, "/app/node_modules/a/lib/x.js", true},
		{"git dir", NoGitFilter, "/app/.git/HEAD", false},
		{"plain", NoGitFilter, "/app/node_modules/a/x.js", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter(tc.path))
		})
	}
}

func TestDebouncer(t *testing.T) {
	debouncer := newDebouncer(50 * time.Millisecond)
	defer debouncer.stop()

	debouncer.add(ChangeEvent{Path: "b.js", Type: EventTypeCreated})
	debouncer.add(ChangeEvent{Path: "b.js", Type: EventTypeModified})
	debouncer.add(ChangeEvent{Path: "a.js", Type: EventTypeModified})

	select {
	case batch := <-debouncer.output:
		require.Len(t, batch.Events, 2)
		assert.Equal(t, "a.js", batch.Events[0].Path)
		assert.Equal(t, "b.js", batch.Events[1].Path)
		assert.Equal(t, EventTypeModified, batch.Events[1].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no batch delivered")
	}
}

func TestDebouncerKeepsChangesWhileOutputIsFull(t *testing.T) {
	debouncer := newDebouncer(time.Hour)
	defer debouncer.stop()

	debouncer.add(ChangeEvent{Path: "a.js"})
	debouncer.flush()

	// The first batch has not been taken, so b.js stays pending.
	debouncer.add(ChangeEvent{Path: "b.js"})
	debouncer.flush()

	first := <-debouncer.output
	require.Len(t, first.Events, 1)
	assert.Equal(t, "a.js", first.Events[0].Path)

	debouncer.flush()
	second := <-debouncer.output
	require.Len(t, second.Events, 1)
	assert.Equal(t, "b.js", second.Events[0].Path)
}

func TestBatchManifestRoots(t *testing.T) {
	batch := Batch{Events: []ChangeEvent{
		{Type: EventTypeModified, Path: "/app/node_modules/a/index.js"},
		{Type: EventTypeModified, Path: "/app/node_modules/a/package.json"},
		{Type: EventTypeCreated, Path: "/app/node_modules/a/node_modules/b/package.json"},
		{Type: EventTypeModified, Path: "/app/node_modules/a/package.json"},
	}}

	assert.Equal(t, []string{
		"/app/node_modules/a",
		"/app/node_modules/a/node_modules/b",
	}, batch.ManifestRoots("node_modules"))
	assert.False(t, batch.Structural())
}

func TestBatchStructural(t *testing.T) {
	for _, typ := range []EventType{EventTypeDeleted, EventTypeRenamed} {
		t.Run(typ.String(), func(t *testing.T) {
			batch := Batch{Events: []ChangeEvent{{Type: typ, Path: "/app/node_modules/a/index.js"}}}
			assert.True(t, batch.Structural())
		})
	}
}

func TestChangeEventIsManifest(t *testing.T) {
	assert.True(t, ChangeEvent{Path: "/app/node_modules/a/package.json"}.IsManifest())
	assert.False(t, ChangeEvent{Path: "/app/node_modules/a/index.js"}.IsManifest())
}
