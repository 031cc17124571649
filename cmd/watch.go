package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/deppack/internal/pkgmeta"
	"github.com/conneroisu/deppack/internal/watcher"
)

var watchVerbose bool

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Rebuild the bundle when dependencies change",
	Long: `Bundle once, then watch the configured paths and rebuild on every batch
of changes. Each rebuild starts from a fresh resolver session and drops the
cached package metadata, so reinstalled packages are picked up.

Examples:
  deppack watch -o vendor.js
  deppack watch -o vendor.js --verbose`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addBundleFlags(watchCmd.Flags())
	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "Verbose output")
}

func runWatch(cmd *cobra.Command, args []string) error {
	bindBundleFlags(cmd)
	env, err := newEnvironment(afero.NewOsFs())
	if err != nil {
		return err
	}
	b, err := env.bundler()
	if err != nil {
		return err
	}
	exclude, err := env.cfg.ExcludeMatchers()
	if err != nil {
		return err
	}

	fileWatcher, err := watcher.NewFileWatcher(env.cfg.Watch.Debounce, env.logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(watcher.SourceFilter)
	fileWatcher.AddFilter(watcher.PackageFilter(env.cfg.Modules.ReservedDir))
	fileWatcher.AddFilter(watcher.ExcludeFilter(exclude))
	fileWatcher.AddFilter(watcher.NoGitFilter)

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	stderr := cmd.ErrOrStderr()
	rebuild := func() {
		result, err := buildOnce(cmd, env, b)
		if err != nil {
			env.logger.Error(ctx, err, "Rebuild failed")
			return
		}
		fmt.Fprintf(stderr, "Bundled %d modules in %s\n", result.Modules, result.Duration)
	}

	fileWatcher.AddHandler(func(batch watcher.Batch) error {
		if watchVerbose {
			fmt.Fprintln(stderr, "File changes detected:")
			for _, event := range batch.Events {
				fmt.Fprintf(stderr, "   %s: %s\n", event.Type, event.Path)
			}
		} else {
			fmt.Fprintf(stderr, "%d file(s) changed\n", len(batch.Events))
		}
		invalidate(b.Loader(), batch, env.cfg.Modules.ReservedDir)
		rebuild()
		return nil
	})

	for _, path := range env.cfg.Bundle.Paths {
		if err := fileWatcher.AddRecursive(path); err != nil {
			fmt.Fprintf(stderr, "Warning: failed to watch path %s: %v\n", path, err)
		} else if watchVerbose {
			fmt.Fprintf(stderr, "   - Watching: %s\n", path)
		}
	}

	rebuild()

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	fmt.Fprintln(stderr, "Watching for changes. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}
	return nil
}

// invalidate drops the manifests a batch may have made stale. Entry files
// need no invalidation because every rebuild starts a new session.
func invalidate(loader *pkgmeta.FSLoader, batch watcher.Batch, reserved string) {
	if batch.Structural() {
		loader.Purge()
		return
	}
	for _, root := range batch.ManifestRoots(reserved) {
		loader.Forget(root)
	}
}
