package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/model"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/relations"
)

func newDepsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deps <task-id>",
		Short: "Show what a task depends on and what depends on it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.store.Close()

			rel := relations.NewManager(e.store, e.logger)
			deps, err := rel.Dependencies(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			dependents, err := rel.Dependents(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if opts.JSON {
				return printJSON(cmd.OutOrStdout(), map[string][]model.Task{
					"dependencies": deps,
					"dependents":   dependents,
				})
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "depends on (%d):\n", len(deps))
			for _, t := range deps {
				fmt.Fprintf(w, "  %s  %s [%s]\n", t.ID, t.Title, t.Status)
			}
			fmt.Fprintf(w, "depended on by (%d):\n", len(dependents))
			for _, t := range dependents {
				fmt.Fprintf(w, "  %s  %s [%s]\n", t.ID, t.Title, t.Status)
			}
			return nil
		},
	}
}
