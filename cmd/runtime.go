package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/deppack/internal/runtime"
)

var runtimeLoader bool

var runtimeCmd = &cobra.Command{
	Use:   "runtime",
	Short: "Print the runtime resolver script",
	Long: `Print the script that defines __makeRelativeRequire for the configured
dependency directory name. With --loader the CommonJS registry it expects is
printed first.`,
	Args: cobra.NoArgs,
	RunE: runRuntime,
}

func init() {
	rootCmd.AddCommand(runtimeCmd)
	runtimeCmd.Flags().BoolVar(&runtimeLoader, "loader", false, "Include the module registry")
}

func runRuntime(cmd *cobra.Command, args []string) error {
	src, err := runtime.ResolverSourceFor(viper.GetString("modules.reserved_dir"))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if runtimeLoader {
		fmt.Fprint(out, runtime.LoaderSource())
	}
	fmt.Fprintln(out, src)
	return nil
}
