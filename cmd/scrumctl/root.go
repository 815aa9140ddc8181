package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/config"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/docstore"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/logging"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
	JSON       bool
	Verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "scrumctl",
		Short:         "Maintain the scrum document store",
		Long:          "Import plans, inspect task dependencies and reconcile relationship drift in the scrum document store.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "scrum.toml", "path to config file (empty for defaults)")
	cmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "print results as JSON")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log debug output to stderr")

	cmd.AddCommand(newReconcileCommand(opts))
	cmd.AddCommand(newImportCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newDepsCommand(opts))

	return cmd
}

// env is what a command needs to reach the store.
type env struct {
	cfg    *config.Config
	store  docstore.Store
	logger *slog.Logger
}

func (o *rootOptions) open(cmd *cobra.Command) (*env, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), logging.Options{Level: level, Dev: true})

	st, err := docstore.Open(cfg.Store.Backend, config.ExpandHome(cfg.General.StateDB), cfg.Store.BusyTimeout.Duration)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, store: st, logger: logger}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
