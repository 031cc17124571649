// Package watcher reports debounced batches of changes under dependency
// directories so the bundle can be rebuilt with a fresh resolver session.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/conneroisu/deppack/internal/logging"
	"github.com/conneroisu/deppack/internal/modpath"
	"github.com/conneroisu/deppack/internal/pkgmeta"
)

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

func eventTypeOf(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventTypeCreated
	case op.Has(fsnotify.Remove):
		return EventTypeDeleted
	case op.Has(fsnotify.Rename):
		return EventTypeRenamed
	default:
		return EventTypeModified
	}
}

// ChangeEvent is the latest change seen for one path.
type ChangeEvent struct {
	Type EventType
	Path string
}

// IsManifest reports whether the change touched package metadata.
func (e ChangeEvent) IsManifest() bool {
	return filepath.Base(e.Path) == pkgmeta.ManifestName
}

// Batch is one debounced set of changes, sorted by path.
type Batch struct {
	Events []ChangeEvent
}

// Structural reports whether files disappeared. Removed or moved packages
// can leave any cached manifest stale, so such a batch invalidates all of
// them.
func (b Batch) Structural() bool {
	for _, e := range b.Events {
		if e.Type == EventTypeDeleted || e.Type == EventTypeRenamed {
			return true
		}
	}
	return false
}

// ManifestRoots returns the package roots whose metadata changed.
func (b Batch) ManifestRoots(reserved string) []string {
	var roots []string
	seen := make(map[string]bool)
	for _, e := range b.Events {
		if !e.IsManifest() {
			continue
		}
		root, ok := modpath.Root(e.Path, reserved)
		if ok && !seen[root] {
			seen[root] = true
			roots = append(roots, root)
		}
	}
	return roots
}

// FileFilter determines if a file should be watched
type FileFilter func(path string) bool

// ChangeHandler handles a batch of changes
type ChangeHandler func(batch Batch) error

// Debouncer collects changes until none arrive for its delay.
type Debouncer struct {
	delay   time.Duration
	output  chan Batch
	mu      sync.Mutex
	pending map[string]ChangeEvent
	timer   *time.Timer
}

func newDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		output:  make(chan Batch, 1),
		pending: make(map[string]ChangeEvent),
	}
}

// add records event, replacing any earlier change to the same path, and
// restarts the quiet period.
func (d *Debouncer) add(event ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[event.Path] = event
	if d.timer == nil {
		d.timer = time.AfterFunc(d.delay, d.flush)
		return
	}
	d.timer.Reset(d.delay)
}

// flush hands the pending changes to the output. When the previous batch
// has not been taken yet the changes stay pending and are merged into the
// next flush.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return
	}
	batch := Batch{Events: make([]ChangeEvent, 0, len(d.pending))}
	for _, e := range d.pending {
		batch.Events = append(batch.Events, e)
	}
	sort.Slice(batch.Events, func(i, j int) bool { return batch.Events[i].Path < batch.Events[j].Path })

	select {
	case d.output <- batch:
		d.pending = make(map[string]ChangeEvent)
	default:
		d.timer.Reset(d.delay)
	}
}

func (d *Debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

// FileWatcher watches dependency trees and calls its handlers once per batch.
type FileWatcher struct {
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	logger    logging.Logger

	mu       sync.RWMutex
	filters  []FileFilter
	handlers []ChangeHandler
}

// NewFileWatcher creates a watcher whose batches close after debounceDelay
// of quiet.
func NewFileWatcher(debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &FileWatcher{
		fs:        w,
		debouncer: newDebouncer(debounceDelay),
		logger:    logger.WithComponent("watcher"),
	}, nil
}

// AddFilter adds a filter; a path is reported only if every filter keeps it.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddPath watches a single directory.
func (fw *FileWatcher) AddPath(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return fw.fs.Add(filepath.Clean(path))
}

// AddRecursive watches root and every directory below it.
func (fw *FileWatcher) AddRecursive(root string) error {
	return filepath.Walk(filepath.Clean(root), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		return fw.fs.Add(path)
	})
}

// Start runs the watch loop until ctx is done.
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.run(ctx)
	return nil
}

// Stop releases the underlying watcher.
func (fw *FileWatcher) Stop() error {
	fw.debouncer.stop()
	return fw.fs.Close()
}

func (fw *FileWatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.fs.Events:
			if !ok {
				return
			}
			fw.observe(ctx, event)
		case err, ok := <-fw.fs.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		case batch := <-fw.debouncer.output:
			fw.dispatch(ctx, batch)
		}
	}
}

func (fw *FileWatcher) observe(ctx context.Context, event fsnotify.Event) {
	// A freshly installed package arrives as a new directory.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fw.AddRecursive(event.Name); err != nil {
				fw.logger.Warn(ctx, err, "Cannot watch new directory", "path", event.Name)
			}
			return
		}
	}
	if event.Op == fsnotify.Chmod || !fw.keep(event.Name) {
		return
	}
	fw.debouncer.add(ChangeEvent{Type: eventTypeOf(event.Op), Path: event.Name})
}

func (fw *FileWatcher) keep(path string) bool {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	for _, filter := range fw.filters {
		if !filter(path) {
			return false
		}
	}
	return true
}

func (fw *FileWatcher) dispatch(ctx context.Context, batch Batch) {
	fw.mu.RLock()
	handlers := fw.handlers
	fw.mu.RUnlock()
	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			fw.logger.Error(ctx, err, "File watcher handler error", "events", len(batch.Events))
		}
	}
}

// SourceFilter keeps scripts and metadata files.
func SourceFilter(path string) bool {
	return modpath.HasScriptExt(path)
}

// PackageFilter keeps files that belong to a dependency package, skipping
// dot directories such as ".cache" and ".bin".
func PackageFilter(reserved string) FileFilter {
	return func(path string) bool {
		p := modpath.Parse(path, reserved)
		return p.InPackage() && !p.Hidden()
	}
}

// ExcludeFilter drops paths matching any of the glob patterns.
func ExcludeFilter(patterns []glob.Glob) FileFilter {
	return func(path string) bool {
		slash := filepath.ToSlash(path)
		for _, g := range patterns {
			if g.Match(slash) {
				return false
			}
		}
		return true
	}
}

// NoGitFilter drops paths inside a .git directory.
func NoGitFilter(path string) bool {
	slash := filepath.ToSlash(path)
	return !strings.HasPrefix(slash, ".git/") && !strings.Contains(slash, "/.git/")
}
