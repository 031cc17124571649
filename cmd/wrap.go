package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var wrapShims bool

var wrapCmd = &cobra.Command{
	Use:   "wrap <file>...",
	Short: "Print the registration emitted for dependency files",
	Long: `Wrap each file into the registration it contributes to a bundle. Files
replaced through a browser field print nothing.

Examples:
  deppack wrap node_modules/a/lib/x.js
  deppack wrap node_modules/a/index.js --shims`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWrap,
}

func init() {
	rootCmd.AddCommand(wrapCmd)
	wrapCmd.Flags().BoolVar(&wrapShims, "shims", false, "Also print empty modules for excluded package names")
}

func runWrap(cmd *cobra.Command, args []string) error {
	env, err := newEnvironment(afero.NewOsFs())
	if err != nil {
		return err
	}
	session, err := env.session()
	if err != nil {
		return err
	}
	gen := env.generator(session)
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	for _, f := range args {
		source, err := afero.ReadFile(env.fs, f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		wrapped, err := gen.Generate(ctx, f, string(source))
		if err != nil {
			return fmt.Errorf("wrap %s: %w", f, err)
		}
		fmt.Fprint(out, wrapped)
		if wrapShims {
			defs, err := gen.ExclusionShims(ctx, f)
			if err != nil {
				return err
			}
			for _, d := range defs {
				fmt.Fprint(out, d)
			}
		}
	}
	fmt.Fprintln(out)
	return nil
}
