package cmd

import (
	"context"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/deppack/internal/bundle"
	"github.com/conneroisu/deppack/internal/config"
	"github.com/conneroisu/deppack/internal/logging"
	"github.com/conneroisu/deppack/internal/pkgmeta"
	"github.com/conneroisu/deppack/internal/resolver"
	"github.com/conneroisu/deppack/internal/shims"
	"github.com/conneroisu/deppack/internal/wrapper"
)

// environment is what every subcommand derives from the loaded configuration.
type environment struct {
	cfg       *config.Config
	fs        afero.Fs
	logger    logging.Logger
	overrides pkgmeta.Overrides
	loader    *pkgmeta.FSLoader
}

// newEnvironment loads configuration from Viper and the given filesystem.
func newEnvironment(fsys afero.Fs) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logCfg, err := cfg.LoggerConfig()
	if err != nil {
		return nil, err
	}
	overrides, err := cfg.LoadOverrides(fsys)
	if err != nil {
		return nil, err
	}
	loader, err := pkgmeta.NewFSLoader(fsys, pkgmeta.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &environment{
		cfg:       cfg,
		fs:        fsys,
		logger:    logging.NewLogger(logCfg),
		overrides: overrides,
		loader:    loader,
	}, nil
}

func (e *environment) session() (*resolver.Session, error) {
	return resolver.NewSession(resolver.Options{
		Loader:    e.loader,
		Dirs:      pkgmeta.FSDirChecker{FS: e.fs},
		Overrides: e.overrides,
		Reserved:  e.cfg.Modules.ReservedDir,
		Logger:    e.logger,
	})
}

func (e *environment) policy() shims.Policy {
	return shims.Policy{
		Rename:      e.cfg.Modules.Rename,
		FileAliases: e.cfg.Modules.FileAliases,
	}
}

func (e *environment) generator(session *resolver.Session) *wrapper.Generator {
	return wrapper.New(session, wrapper.Options{
		Globals:     shims.Scanner{Env: e.cfg.Env()},
		Policy:      e.policy(),
		NoFileBased: e.cfg.Modules.NoFileBased,
		Logger:      e.logger,
	})
}

func (e *environment) bundler() (*bundle.Bundler, error) {
	exclude, err := e.cfg.ExcludeMatchers()
	if err != nil {
		return nil, err
	}
	return bundle.New(bundle.Options{
		FS:          e.fs,
		Paths:       e.cfg.Bundle.Paths,
		Exclude:     exclude,
		Reserved:    e.cfg.Modules.ReservedDir,
		WithLoader:  e.cfg.Bundle.WithLoader,
		Overrides:   e.overrides,
		Globals:     shims.Scanner{Env: e.cfg.Env()},
		Policy:      e.policy(),
		NoFileBased: e.cfg.Modules.NoFileBased,
		Loader:      e.loader,
		Logger:      e.logger,
	})
}

// commandContext returns the command's context, or a background context
// when the command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
