package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/reconcile"
)

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check relationship consistency and optionally repair drift",
		Long: `Scan every epic, story, task and developer for dangling references,
one-sided relationships and dependency cycles.

With --repair, every issue that carries a fix is written back. Cycles
are reported but never repaired.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.store.Close()

			rec := reconcile.New(e.store, e.logger)
			report, err := rec.Check(cmd.Context())
			if err != nil {
				return err
			}
			var result *reconcile.RepairResult
			if repair {
				if result, err = rec.Repair(cmd.Context(), report); err != nil {
					return err
				}
			}

			if opts.JSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{"report": report, "repair": result})
			}
			printReport(cmd.OutOrStdout(), report, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "apply fixes for repairable issues")

	return cmd
}

func printReport(w io.Writer, report *reconcile.Report, result *reconcile.RepairResult) {
	collections := make([]string, 0, len(report.Documents))
	for c := range report.Documents {
		collections = append(collections, c)
	}
	slices.Sort(collections)
	for _, c := range collections {
		fmt.Fprintf(w, "%-12s %d documents\n", c, report.Documents[c])
	}

	if len(report.Issues) == 0 {
		fmt.Fprintln(w, "no issues found")
	}
	for _, issue := range report.Issues {
		switch {
		case issue.Kind == reconcile.IssueDependencyCycle:
			fmt.Fprintf(w, "%s: %v\n", issue.Kind, issue.Cycle)
		case issue.Fix != nil:
			fmt.Fprintf(w, "%s: %s/%s %s -> %s (fix: %s %s/%s.%s)\n",
				issue.Kind, issue.Collection, issue.ID, issue.Field, issue.Ref,
				issue.Fix.Op, issue.Fix.Collection, issue.Fix.ID, issue.Fix.Field)
		default:
			fmt.Fprintf(w, "%s: %s/%s %s -> %s\n", issue.Kind, issue.Collection, issue.ID, issue.Field, issue.Ref)
		}
	}
	fmt.Fprintf(w, "%d issues, %d repairable\n", len(report.Issues), report.Repairable())
	if result != nil {
		fmt.Fprintf(w, "repair: %d applied, %d skipped\n", result.Applied, result.Skipped)
	}
}
