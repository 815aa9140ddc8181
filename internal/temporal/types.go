package temporal

import "github.com/gurpal-04/Autonomous-Scrum-Master/internal/reconcile"

// ReconcileRequest starts a reconciliation run.
type ReconcileRequest struct {
	Repair bool `json:"repair"` // apply planned fixes after the check
}

// ReconcileResult is what ReconcileWorkflow returns.
type ReconcileResult struct {
	Issues     int                         `json:"issues"`
	Repairable int                         `json:"repairable"`
	Counts     map[reconcile.IssueKind]int `json:"counts"`
	Repaired   bool                        `json:"repaired"`
	Applied    int                         `json:"applied"`
	Skipped    int                         `json:"skipped"`
}

func summarize(report *reconcile.Report) *ReconcileResult {
	return &ReconcileResult{
		Issues:     len(report.Issues),
		Repairable: report.Repairable(),
		Counts:     report.Counts(),
	}
}
