package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/reconcile"
)

// ReconcileWorkflow checks relationship consistency and, when asked, repairs
// what the check found. Cycles are only reported.
//
// Pipeline: Check -> Repair (optional)
func ReconcileWorkflow(ctx workflow.Context, req ReconcileRequest) (*ReconcileResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("ReconcileWorkflow starting", "Repair", req.Repair)

	var a *Activities

	checkOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    3,
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
		},
	}
	checkCtx := workflow.WithActivityOptions(ctx, checkOpts)

	var report reconcile.Report
	if err := workflow.ExecuteActivity(checkCtx, a.CheckActivity).Get(ctx, &report); err != nil {
		return nil, fmt.Errorf("reconcile check: %w", err)
	}
	result := summarize(&report)

	if !req.Repair || result.Repairable == 0 {
		logger.Info("ReconcileWorkflow complete", "Issues", result.Issues, "Repaired", false)
		return result, nil
	}

	repairOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
	}
	repairCtx := workflow.WithActivityOptions(ctx, repairOpts)

	var repaired reconcile.RepairResult
	if err := workflow.ExecuteActivity(repairCtx, a.RepairActivity, &report).Get(ctx, &repaired); err != nil {
		return nil, fmt.Errorf("reconcile repair: %w", err)
	}
	result.Repaired = true
	result.Applied = repaired.Applied
	result.Skipped = repaired.Skipped

	logger.Info("ReconcileWorkflow complete",
		"Issues", result.Issues,
		"Applied", result.Applied,
		"Skipped", result.Skipped,
	)
	return result, nil
}
