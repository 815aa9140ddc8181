package temporal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/reconcile"
)

func driftReport() *reconcile.Report {
	return &reconcile.Report{
		Documents: map[string]int{"epics": 1, "stories": 1},
		Issues: []reconcile.Issue{
			{
				Kind: reconcile.IssueDanglingRef, Collection: "epics", ID: "e1", Field: "stories", Ref: "gone",
				Fix: &reconcile.Fix{Op: reconcile.FixArrayRemove, Collection: "epics", ID: "e1", Field: "stories", Value: "gone"},
			},
			{
				Kind: reconcile.IssueDependencyCycle, Collection: "tasks", ID: "a", Cycle: []string{"a", "b"},
			},
		},
	}
}

func TestReconcileWorkflowRepairs(t *testing.T) {
	s := testsuite.WorkflowTestSuite{}
	env := s.NewTestWorkflowEnvironment()
	var a *Activities

	env.OnActivity(a.CheckActivity, mock.Anything).Return(driftReport(), nil)
	var repairedIssues int
	env.OnActivity(a.RepairActivity, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		if r, ok := args.Get(1).(*reconcile.Report); ok {
			repairedIssues = len(r.Issues)
		}
	}).Return(&reconcile.RepairResult{Applied: 1}, nil)

	env.ExecuteWorkflow(ReconcileWorkflow, ReconcileRequest{Repair: true})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result ReconcileResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, 2, result.Issues)
	require.Equal(t, 1, result.Repairable)
	require.True(t, result.Repaired)
	require.Equal(t, 1, result.Applied)
	require.Equal(t, 1, result.Counts[reconcile.IssueDependencyCycle])
	require.Equal(t, 2, repairedIssues)
}

func TestReconcileWorkflowCheckOnly(t *testing.T) {
	s := testsuite.WorkflowTestSuite{}
	env := s.NewTestWorkflowEnvironment()
	var a *Activities

	env.OnActivity(a.CheckActivity, mock.Anything).Return(driftReport(), nil)
	env.OnActivity(a.RepairActivity, mock.Anything, mock.Anything).Return(&reconcile.RepairResult{}, nil)

	env.ExecuteWorkflow(ReconcileWorkflow, ReconcileRequest{Repair: false})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	env.AssertActivityNotCalled(t, "RepairActivity", mock.Anything, mock.Anything)

	var result ReconcileResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.False(t, result.Repaired)
	require.Equal(t, 2, result.Issues)
}

func TestReconcileWorkflowSkipsRepairWhenClean(t *testing.T) {
	s := testsuite.WorkflowTestSuite{}
	env := s.NewTestWorkflowEnvironment()
	var a *Activities

	env.OnActivity(a.CheckActivity, mock.Anything).Return(&reconcile.Report{Issues: []reconcile.Issue{}}, nil)
	env.OnActivity(a.RepairActivity, mock.Anything, mock.Anything).Return(&reconcile.RepairResult{}, nil)

	env.ExecuteWorkflow(ReconcileWorkflow, ReconcileRequest{Repair: true})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	env.AssertActivityNotCalled(t, "RepairActivity", mock.Anything, mock.Anything)
}

func TestReconcileWorkflowCheckFailure(t *testing.T) {
	s := testsuite.WorkflowTestSuite{}
	env := s.NewTestWorkflowEnvironment()
	var a *Activities

	env.OnActivity(a.CheckActivity, mock.Anything).Return(nil, errors.New("store offline"))

	env.ExecuteWorkflow(ReconcileWorkflow, ReconcileRequest{Repair: true})

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	require.Contains(t, env.GetWorkflowError().Error(), "store offline")
}
