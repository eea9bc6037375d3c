package workflows

import (
	"time"

	"policychat/internal/activities"
	"policychat/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

func Register(w worker.Worker) {
	w.RegisterWorkflow(IngestMessageWorkflow)
}

// IngestMessageWorkflow applies one queued ingestion message. Ordering
// across messages is not guaranteed; each message stands alone.
func IngestMessageWorkflow(ctx workflow.Context, msg models.IngestMessage) (string, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var out activities.ApplyIngestOutput
	if err := workflow.ExecuteActivity(ctx, "ApplyIngestActivity", activities.ApplyIngestInput{Message: msg}).Get(ctx, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}
