package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/integrations/internal/activity"
)

// RefreshLookaheadMinutes is the expiry window the refresh cron scans:
// credentials expiring within the next hour are refreshed proactively.
const RefreshLookaheadMinutes = 60

// RefreshSummary aggregates one refresh batch.
type RefreshSummary struct {
	Scanned   int `json:"scanned"`
	Refreshed int `json:"refreshed"`
	Expired   int `json:"expired"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// RefreshTokensWorkflow is a cron workflow that refreshes OAuth2 access
// tokens before they expire. Each credential is refreshed in its own
// activity with its own timeout; one credential's failure never aborts the
// rest of the batch.
func RefreshTokensWorkflow(ctx workflow.Context) (RefreshSummary, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    3,
			InitialInterval:    1 * time.Second,
			MaximumInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var expiring []activity.ExpiringCredential
	err := workflow.ExecuteActivity(ctx, "GetExpiringCredentials", RefreshLookaheadMinutes).Get(ctx, &expiring)
	if err != nil {
		return RefreshSummary{}, err
	}

	logger := workflow.GetLogger(ctx)
	logger.Info("found credentials to refresh", "count", len(expiring))

	summary := RefreshSummary{Scanned: len(expiring)}
	for _, cred := range expiring {
		var result activity.RefreshResult
		err := workflow.ExecuteActivity(ctx, "RefreshCredential", cred.ID).Get(ctx, &result)
		if err != nil {
			logger.Error("credential refresh failed", "credentialID", cred.ID, "provider", cred.Provider, "error", err)
			summary.Errors++
			// Continue refreshing other credentials even if one fails.
			continue
		}
		switch result.Outcome {
		case activity.RefreshOutcomeRefreshed:
			summary.Refreshed++
		case activity.RefreshOutcomeExpired:
			logger.Warn("credential demoted to expired", "credentialID", cred.ID, "provider", cred.Provider, "detail", result.Detail)
			summary.Expired++
		default:
			summary.Skipped++
		}
	}

	logger.Info("refresh batch complete",
		"scanned", summary.Scanned,
		"refreshed", summary.Refreshed,
		"expired", summary.Expired,
		"skipped", summary.Skipped,
		"errors", summary.Errors)
	return summary, nil
}
