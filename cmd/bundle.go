package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/deppack/internal/bundle"
)

var bundleProgress bool

var bundleCmd = &cobra.Command{
	Use:     "bundle",
	Aliases: []string{"b"},
	Short:   "Bundle every dependency file into one script",
	Long: `Walk the configured paths, wrap every script and metadata file and write
the registrations, preceded by the runtime, to the output file (stdout when
no output is configured).

Examples:
  deppack bundle -o vendor.js
  deppack bundle --path node_modules --exclude "**/test/**"`,
	Args: cobra.NoArgs,
	RunE: runBundle,
}

func init() {
	rootCmd.AddCommand(bundleCmd)
	addBundleFlags(bundleCmd.Flags())
	bundleCmd.Flags().BoolVar(&bundleProgress, "progress", false, "Show a progress bar on stderr")
}

// addBundleFlags registers the flags shared by bundle and watch.
func addBundleFlags(flags *pflag.FlagSet) {
	flags.StringP("output", "o", "", "Output file (default stdout)")
	flags.StringSlice("path", nil, "Paths to bundle (default the dependency directory)")
	flags.StringSlice("exclude", nil, "Glob patterns to skip")
	flags.Bool("no-loader", false, "Do not prepend the module registry")
}

// bindBundleFlags binds the flags of the running command. Binding happens at
// run time because bundle and watch share the same keys.
func bindBundleFlags(cmd *cobra.Command) {
	_ = viper.BindPFlag("bundle.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("bundle.paths", cmd.Flags().Lookup("path"))
	_ = viper.BindPFlag("bundle.exclude", cmd.Flags().Lookup("exclude"))
	if noLoader, _ := cmd.Flags().GetBool("no-loader"); noLoader {
		viper.Set("bundle.with_loader", false)
	}
}

func runBundle(cmd *cobra.Command, args []string) error {
	bindBundleFlags(cmd)
	env, err := newEnvironment(afero.NewOsFs())
	if err != nil {
		return err
	}
	b, err := env.bundler()
	if err != nil {
		return err
	}
	if bundleProgress {
		b.SetProgress(cmd.ErrOrStderr())
	}

	result, err := buildOnce(cmd, env, b)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Bundled %d modules from %d files (%d skipped, %d shims) in %s\n",
		result.Modules, result.Files, result.Skipped, result.Shims, result.Duration)
	return nil
}

// buildOnce runs one pass and writes it to the configured output. The output
// file is replaced only after the pass succeeds.
func buildOnce(cmd *cobra.Command, env *environment, b *bundle.Bundler) (*bundle.Result, error) {
	var buf bytes.Buffer
	result, err := b.Build(commandContext(cmd), &buf)
	if err != nil {
		return nil, err
	}

	output := env.cfg.Bundle.Output
	if output == "" {
		_, err = cmd.OutOrStdout().Write(buf.Bytes())
		return result, err
	}
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	tmp := output + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write bundle: %w", err)
	}
	if err := os.Rename(tmp, output); err != nil {
		return nil, fmt.Errorf("write bundle: %w", err)
	}
	return result, nil
}
