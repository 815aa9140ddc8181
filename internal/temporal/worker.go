package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/config"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/reconcile"
)

// ReconcileWorkflowID is the fixed ID of the cron reconciliation workflow.
const ReconcileWorkflowID = "scrum-reconcile"

// Dial connects to Temporal, retrying with exponential backoff until
// cfg.DialTimeout elapses or ctx is done.
func Dial(ctx context.Context, cfg config.Temporal, logger *slog.Logger) (client.Client, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.DialTimeout.Duration

	var c client.Client
	err := backoff.RetryNotify(func() error {
		var err error
		c, err = client.DialContext(ctx, client.Options{
			HostPort:  cfg.HostPort,
			Namespace: cfg.Namespace,
			Logger:    tlog.NewStructuredLogger(logger),
		})
		return err
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		logger.Warn("temporal dial failed, retrying", "host_port", cfg.HostPort, "wait", wait, "error", err)
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal %s: %w", cfg.HostPort, err)
	}
	return c, nil
}

// Register adds the reconciliation workflow and activities to w.
func Register(w worker.Registry, rec *reconcile.Reconciler) {
	acts := &Activities{Reconciler: rec}
	w.RegisterWorkflow(ReconcileWorkflow)
	w.RegisterActivity(acts.CheckActivity)
	w.RegisterActivity(acts.RepairActivity)
}

// EnsureReconcileSchedule starts the cron reconciliation workflow. An
// execution that is already running is left alone.
func EnsureReconcileSchedule(ctx context.Context, c client.Client, cfg config.Temporal) error {
	opts := client.StartWorkflowOptions{
		ID:                    ReconcileWorkflowID,
		TaskQueue:             cfg.TaskQueue,
		CronSchedule:          cfg.ReconcileCron,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,

		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
	_, err := c.ExecuteWorkflow(ctx, opts, ReconcileWorkflow, ReconcileRequest{Repair: cfg.Repair})
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("start reconcile schedule: %w", err)
	}
	return nil
}

const workerStopTimeout = 10 * time.Second

// StartWorker connects to Temporal, ensures the reconcile schedule exists and
// runs the task queue worker until ctx is done. It returns after the worker
// has stopped, giving running activities up to workerStopTimeout to finish.
func StartWorker(ctx context.Context, cfg config.Temporal, rec *reconcile.Reconciler, logger *slog.Logger) error {
	c, err := Dial(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := EnsureReconcileSchedule(ctx, c, cfg); err != nil {
		return err
	}

	w := worker.New(c, cfg.TaskQueue, worker.Options{WorkerStopTimeout: workerStopTimeout})
	Register(w, rec)
	if err := w.Start(); err != nil {
		return fmt.Errorf("start temporal worker: %w", err)
	}
	logger.Info("temporal worker started", "task_queue", cfg.TaskQueue, "cron", cfg.ReconcileCron)

	<-ctx.Done()
	w.Stop()
	logger.Info("temporal worker stopped")
	return nil
}
