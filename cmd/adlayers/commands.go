package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/comalice/adlayers/internal/core"
	"github.com/comalice/adlayers/internal/extensibility"
	"github.com/comalice/adlayers/internal/primitives"
	"github.com/comalice/adlayers/internal/production"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "adlayers",
		Short:         "Layered grad/jvp transform dispatcher",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newValidateCmd(flags),
		newAliasesCmd(flags),
		newDemoCmd(flags),
		newDotCmd(flags),
	)
	return root
}

// load returns the configuration and a logger writing to stderr.
func (f *globalFlags) load() (core.Config, *zap.Logger, error) {
	cfg := core.DefaultConfig()
	if f.configPath != "" {
		var err error
		if cfg, err = core.LoadConfig(f.configPath); err != nil {
			return core.Config{}, nil, err
		}
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	lvl, err := cfg.ZapLevel()
	if err != nil {
		return core.Config{}, nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	logger, err := zc.Build()
	if err != nil {
		return core.Config{}, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}

// catalogs loads the named files and directories, plus the ones listed in the
// config. With neither it falls back to the reference catalog.
func catalogs(ctx context.Context, cfg core.Config, paths []string) ([]*primitives.Catalog, error) {
	var out []*primitives.Catalog
	for _, p := range append(append([]string(nil), cfg.Catalogs...), paths...) {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			cs, err := production.LoadCatalogDir(ctx, p)
			if err != nil {
				return nil, err
			}
			out = append(out, cs...)
			continue
		}
		c, err := production.LoadCatalogFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		out = append(out, extensibility.ReferenceCatalog())
	}
	return out, nil
}

func newValidateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [catalog files or directories...]",
		Short: "Validate operator catalogs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cs, err := catalogs(cmd.Context(), cfg, args)
			if err != nil {
				return err
			}
			if _, err := core.NewMemoryRegistry(cs...); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range cs {
				inplace := 0
				for _, op := range c.Operators {
					if op.IsInplace() {
						inplace++
					}
				}
				fmt.Fprintf(out, "ok %s: %d operators (%d in-place), version %s\n",
					c.ID, len(c.Operators), inplace, primitives.ComputeVersion(c))
			}
			return nil
		},
	}
}

func newAliasesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "aliases [catalog files or directories...]",
		Short: "List the output-to-input alias facts of operator catalogs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cs, err := catalogs(cmd.Context(), cfg, args)
			if err != nil {
				return err
			}
			facts, err := extensibility.NewFactTable(cs...).Facts()
			if err != nil {
				return err
			}
			for _, f := range facts {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\toutput %d aliases input %d\n", f.Operator, f.Output, f.Input)
			}
			return nil
		},
	}
}
