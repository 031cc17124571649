// Package cmd provides the deppack command line.
//
// Configuration is read from several sources, highest priority first:
//
//  1. Command-line flags (--config, --reserved-dir, --log-level, ...)
//  2. DEPPACK_CONFIG_FILE: path to a custom configuration file
//  3. DEPPACK_<SECTION>_<OPTION> environment variables (DEPPACK_MODULES_RESERVED_DIR)
//  4. .deppack.yml in the working directory
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "deppack",
	Short: "Bundle installed dependency trees for the browser",
	Long: `deppack flattens nested dependency directories into a single bundle of
CommonJS registrations that can be loaded in a browser.

Every file is registered under a stable module identifier derived from its
location in the tree, package metadata "browser" fields are honored, and a
small runtime resolves relative requires by walking outward through nested
dependency scopes.

Quick Start:
  deppack id node_modules/a/index.js       Show the identifier of a file
  deppack wrap node_modules/a/lib/x.js     Print the registration of a file
  deppack bundle -o vendor.js              Bundle every dependency
  deppack watch -o vendor.js               Rebuild when dependencies change`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .deppack.yml, can also use DEPPACK_CONFIG_FILE env var)")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("reserved-dir", "node_modules", "name of the dependency directory")
	flags.Bool("no-file-based", false, "do not emit file-based aliases for entry files")

	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("modules.reserved_dir", flags.Lookup("reserved-dir"))
	_ = viper.BindPFlag("modules.no_file_based", flags.Lookup("no-file-based"))
}

// initConfig picks the config file (flag, then DEPPACK_CONFIG_FILE, then
// .deppack.yml) and binds DEPPACK_ environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("DEPPACK_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".deppack")
	}

	viper.SetEnvPrefix("DEPPACK")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing or unreadable file falls back to defaults
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
