package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/planfile"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/relations"
)

func newImportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <plan.yaml>",
		Short: "Create the epics, stories, tasks and developers of a plan file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := planfile.Load(args[0])
			if err != nil {
				return err
			}
			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.store.Close()

			rel := relations.NewManager(e.store, e.logger)
			res, err := planfile.NewImporter(rel, e.logger).Import(cmd.Context(), plan)
			if err != nil {
				return err
			}
			if opts.JSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d epics, %d stories, %d tasks, %d developers\n",
				len(res.Epics), len(res.Stories), len(res.Tasks), len(res.Developers))
			return nil
		},
	}
}

func newValidateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <plan.yaml>",
		Short: "Check a plan file without touching the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := planfile.Load(args[0])
			if opts.JSON {
				out := map[string]any{"valid": err == nil}
				if err != nil {
					out["error"] = err.Error()
				}
				if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
					return perr
				}
				return err
			}
			if err != nil {
				return err
			}
			tasks := 0
			for _, e := range plan.Epics {
				for _, s := range e.Stories {
					tasks += len(s.Tasks)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "plan valid: %d epics, %d tasks, %d developers\n",
				len(plan.Epics), tasks, len(plan.Developers))
			return nil
		},
	}
}
