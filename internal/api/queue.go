package api

import (
	"context"
	"fmt"

	"policychat/internal/models"
	"policychat/internal/workflows"

	"github.com/google/uuid"
	tclient "go.temporal.io/sdk/client"
)

// TemporalQueue enqueues ingestion messages as workflow executions. The
// workflow id doubles as the message id returned to the caller.
type TemporalQueue struct {
	client    tclient.Client
	taskQueue string
}

func NewTemporalQueue(c tclient.Client, taskQueue string) *TemporalQueue {
	return &TemporalQueue{client: c, taskQueue: taskQueue}
}

func (q *TemporalQueue) Enqueue(ctx context.Context, msg models.IngestMessage) (string, error) {
	messageID := "ingest-" + uuid.NewString()
	_, err := q.client.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:        messageID,
		TaskQueue: q.taskQueue,
	}, workflows.IngestMessageWorkflow, msg)
	if err != nil {
		return "", fmt.Errorf("start ingest workflow: %w", err)
	}
	return messageID, nil
}
