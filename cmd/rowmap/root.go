package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/rowmap/bootstrap"
	"github.com/artpar/rowmap/config"
	"github.com/artpar/rowmap/core/registry"
)

// globalFlags are the persistent flags shared by every sub-command.
type globalFlags struct {
	configPath string
	entities   []string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "rowmap",
		Short: "Map declared entity types onto SQLite tables",
		Long: `rowmap persists entity types declared in YAML (or compiled in) to SQLite.

Tables and columns are created on first use. References between entities are
saved ahead of their dependents and loaded back on read.

Quick start:
  rowmap validate            # Check entity declarations
  rowmap schema              # Show derived tables and columns
  rowmap list Post           # Print stored records as JSON lines
  rowmap serve               # Start the read-only browse API`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "rowmap.yaml", "config file path")
	root.PersistentFlags().StringSliceVarP(&flags.entities, "entities", "e", nil, "entity declaration files or directories (overrides entities.paths)")

	root.AddCommand(
		newSchemaCmd(flags),
		newValidateCmd(flags),
		newCountCmd(flags),
		newListCmd(flags),
		newGetCmd(flags),
		newDeleteCmd(flags),
		newServeCmd(flags),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the config file, or the environment when there is none,
// and applies the --entities override.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFallback(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if len(f.entities) > 0 {
		cfg.Entities.Paths = f.entities
	}
	return cfg, nil
}

// open builds a context for a one-shot command. Logs go to errOut so that
// stdout carries only command output, and metrics stay off.
func (f *globalFlags) open(errOut io.Writer) (*bootstrap.Context, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Metrics.Enabled = false

	logger := cliLogger(errOut, cfg)
	return bootstrap.InitWithOptions(cfg, nil, bootstrap.Options{Logger: &logger})
}

// declarations loads the entity declarations into a fresh registry without
// opening storage.
func (f *globalFlags) declarations(errOut io.Writer) (*config.Config, *registry.Registry, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	decls, err := bootstrap.LoadDeclarations(cfg.Entities.Paths, cliLogger(errOut, cfg))
	if err != nil {
		return nil, nil, err
	}

	reg := registry.New()
	for _, d := range decls {
		if err := reg.RegisterSchema(d); err != nil {
			return nil, nil, fmt.Errorf("register %s: %w", d.Name, err)
		}
	}
	return cfg, reg, nil
}

// cliLogger keeps one-shot commands quiet unless debug logging is asked for.
func cliLogger(w io.Writer, cfg *config.Config) zerolog.Logger {
	level := cfg.Logging.Level
	if level != "debug" {
		level = "warn"
	}
	return bootstrap.NewLoggerTo(w, level, "console")
}
