package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/integrations/internal/activity"
)

// ArchiveAuditEventsWorkflow exports audit events older than the retention
// window to object storage and prunes them from the database.
func ArchiveAuditEventsWorkflow(ctx workflow.Context, retentionDays int) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var result activity.ArchiveResult
	err := workflow.ExecuteActivity(ctx, "ArchiveOldAuditEvents", retentionDays).Get(ctx, &result)
	if err != nil {
		return err
	}

	logger := workflow.GetLogger(ctx)
	logger.Info("archived audit events", "exported", result.Exported, "key", result.Key, "retentionDays", retentionDays)

	return nil
}
