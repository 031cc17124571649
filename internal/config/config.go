// Package config loads deppack settings through Viper from a YAML file,
// DEPPACK_ environment variables and command-line flags.
//
// Settings cover how dependency paths are split (the reserved directory
// name), caller overrides patched into package metadata, the naming policy,
// and the bundle and watch passes.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/conneroisu/deppack/internal/errors"
	"github.com/conneroisu/deppack/internal/logging"
	"github.com/conneroisu/deppack/internal/modpath"
	"github.com/conneroisu/deppack/internal/pkgmeta"
)

// DefaultDebounce is the watch delay used when none is configured.
const DefaultDebounce = 300 * time.Millisecond

type Config struct {
	Modules ModulesConfig `mapstructure:"modules" yaml:"modules"`
	Bundle  BundleConfig  `mapstructure:"bundle" yaml:"bundle"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

type ModulesConfig struct {
	ReservedDir   string                 `mapstructure:"reserved_dir" yaml:"reserved_dir"`
	NoFileBased   bool                   `mapstructure:"no_file_based" yaml:"no_file_based"`
	Overrides     map[string]interface{} `mapstructure:"overrides" yaml:"overrides"`
	OverridesFile string                 `mapstructure:"overrides_file" yaml:"overrides_file"`
	Rename        map[string]string      `mapstructure:"rename" yaml:"rename"`
	FileAliases   map[string]string      `mapstructure:"file_aliases" yaml:"file_aliases"`
	ProcessEnv    []string               `mapstructure:"process_env" yaml:"process_env"`
}

type BundleConfig struct {
	Paths      []string `mapstructure:"paths" yaml:"paths"`
	Exclude    []string `mapstructure:"exclude" yaml:"exclude"`
	Output     string   `mapstructure:"output" yaml:"output"`
	WithLoader bool     `mapstructure:"with_loader" yaml:"with_loader"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, errors.NewConfigError("cannot decode configuration", err)
	}

	// Apply defaults for modules configuration
	if config.Modules.ReservedDir == "" {
		config.Modules.ReservedDir = modpath.DefaultReserved
	}

	// Handle slices set via viper from env or flags (comma separated)
	if viper.IsSet("bundle.paths") && len(config.Bundle.Paths) == 0 {
		config.Bundle.Paths = viper.GetStringSlice("bundle.paths")
	}
	if viper.IsSet("modules.process_env") && len(config.Modules.ProcessEnv) == 0 {
		config.Modules.ProcessEnv = viper.GetStringSlice("modules.process_env")
	}
	if viper.IsSet("bundle.exclude") && len(config.Bundle.Exclude) == 0 {
		config.Bundle.Exclude = viper.GetStringSlice("bundle.exclude")
	}

	// Apply default values for BundleConfig if not set
	if len(config.Bundle.Paths) == 0 {
		config.Bundle.Paths = []string{config.Modules.ReservedDir}
	}
	if !viper.IsSet("bundle.with_loader") {
		config.Bundle.WithLoader = true
	}

	if !viper.IsSet("watch.debounce") {
		config.Watch.Debounce = DefaultDebounce
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	// Validate configuration values
	if err := validateConfig(&config); err != nil {
		return nil, errors.NewConfigError("invalid configuration", err)
	}

	return &config, nil
}

// LoadOverrides returns the inline overrides layered over those read from
// the overrides file, if one is configured.
func (c *Config) LoadOverrides(fsys afero.Fs) (pkgmeta.Overrides, error) {
	inline, err := pkgmeta.OverridesFromMap(c.Modules.Overrides)
	if err != nil {
		return nil, errors.NewConfigError("modules.overrides", err)
	}
	if c.Modules.OverridesFile == "" {
		return inline, nil
	}
	fromFile, err := pkgmeta.LoadOverridesFile(fsys, c.Modules.OverridesFile)
	if err != nil {
		return nil, err
	}
	return fromFile.Merge(inline)
}

// Env returns process_env entries ("KEY=value") as a map. Entries are a
// list rather than a mapping so key case survives Viper.
func (c *Config) Env() map[string]string {
	env := make(map[string]string, len(c.Modules.ProcessEnv))
	for _, kv := range c.Modules.ProcessEnv {
		k, v, _ := strings.Cut(kv, "=")
		env[k] = v
	}
	return env
}

// ExcludeMatchers compiles the bundle exclude patterns. Patterns match
// forward-slash paths and "**" crosses directories.
func (c *Config) ExcludeMatchers() ([]glob.Glob, error) {
	return compileGlobs(c.Bundle.Exclude)
}

// LoggerConfig returns the logging settings in the form NewLogger takes.
func (c *Config) LoggerConfig() (*logging.LoggerConfig, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = c.Log.Format
	return cfg, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateModulesConfig(&config.Modules); err != nil {
		return fmt.Errorf("modules config: %w", err)
	}

	if err := validateBundleConfig(&config.Bundle); err != nil {
		return fmt.Errorf("bundle config: %w", err)
	}

	if config.Watch.Debounce < 0 {
		return fmt.Errorf("watch config: debounce %s is negative", config.Watch.Debounce)
	}

	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	switch config.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log config: unknown format %q", config.Log.Format)
	}

	return nil
}

// validateModulesConfig validates module resolution settings
func validateModulesConfig(config *ModulesConfig) error {
	dir := config.ReservedDir
	if dir == "." || dir == ".." || strings.ContainsAny(dir, `/\`) {
		return fmt.Errorf("reserved_dir must be a single directory name: %q", dir)
	}

	for name, v := range config.Overrides {
		if _, ok := v.(map[string]interface{}); !ok {
			return fmt.Errorf("override for %q must be a mapping", name)
		}
	}

	for _, kv := range config.ProcessEnv {
		if k, _, _ := strings.Cut(kv, "="); k == "" {
			return fmt.Errorf("process_env entry %q has no name", kv)
		}
	}

	if config.OverridesFile != "" {
		if err := validatePath(config.OverridesFile); err != nil {
			return fmt.Errorf("invalid overrides_file: %w", err)
		}
	}

	return nil
}

// validateBundleConfig validates bundle pass settings
func validateBundleConfig(config *BundleConfig) error {
	for _, path := range config.Paths {
		if err := validatePath(path); err != nil {
			return fmt.Errorf("invalid bundle path '%s': %w", path, err)
		}
	}

	if _, err := compileGlobs(config.Exclude); err != nil {
		return err
	}

	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	// Clean the path
	cleanPath := filepath.Clean(path)

	// Reject dangerous characters
	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
