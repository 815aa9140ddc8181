package temporal

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/reconcile"
)

// Activities holds the dependencies shared by all reconciliation activities.
type Activities struct {
	Reconciler *reconcile.Reconciler
}

// CheckActivity scans the store and returns the drift report.
func (a *Activities) CheckActivity(ctx context.Context) (*reconcile.Report, error) {
	logger := activity.GetLogger(ctx)
	report, err := a.Reconciler.Check(ctx)
	if err != nil {
		return nil, fmt.Errorf("check: %w", err)
	}
	logger.Info("Reconcile check finished", "Issues", len(report.Issues), "Repairable", report.Repairable())
	return report, nil
}

// RepairActivity applies the fixes planned by a previous check. Every fix is
// an idempotent field write, so retries are safe.
func (a *Activities) RepairActivity(ctx context.Context, report *reconcile.Report) (*reconcile.RepairResult, error) {
	logger := activity.GetLogger(ctx)
	result, err := a.Reconciler.Repair(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("repair: %w", err)
	}
	logger.Info("Reconcile repair finished", "Applied", result.Applied, "Skipped", result.Skipped)
	return result, nil
}
