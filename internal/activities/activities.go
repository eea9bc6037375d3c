// Package activities applies queued ingestion messages to the document
// store. Delivery is at-least-once; the idempotent upsert keeps replays
// harmless.
package activities

import (
	"context"
	"encoding/json"
	"fmt"

	"policychat/internal/models"
	"policychat/internal/storage"

	"github.com/rs/zerolog/log"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
)

// Store is the slice of the record repo the activity needs.
type Store interface {
	UpsertRecord(ctx context.Context, rec models.Record) error
	DeleteRecordByID(ctx context.Context, id string) error
}

type Activities struct {
	store Store
}

func New(db *storage.DB) *Activities {
	return &Activities{store: storage.NewRecordRepo(db)}
}

func NewWithStore(store Store) *Activities {
	return &Activities{store: store}
}

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivityWithOptions(a.ApplyIngestActivity, activity.RegisterOptions{Name: "ApplyIngestActivity"})
}

type ApplyIngestInput struct {
	Message models.IngestMessage
}

type ApplyIngestOutput struct {
	Status string
	ID     string
}

func (a *Activities) ApplyIngestActivity(ctx context.Context, in ApplyIngestInput) (ApplyIngestOutput, error) {
	msg := in.Message
	action := msg.Action
	if action == "" {
		action = models.IngestActionUpsert
	}
	version := msg.Version
	if version == "" {
		version = "latest"
	}
	id := msg.ResolveID()
	if id == "" {
		return ApplyIngestOutput{}, temporal.NewNonRetryableApplicationError(
			"message must include 'id' or data.id", "InvalidIngestMessage", nil)
	}

	if action == models.IngestActionDelete {
		if err := a.store.DeleteRecordByID(ctx, id); err != nil {
			return ApplyIngestOutput{}, fmt.Errorf("apply delete %s: %w", id, err)
		}
		log.Info().Str("id", id).Msg("deleted record from queued message")
		return ApplyIngestOutput{Status: "deleted", ID: id}, nil
	}

	rec := models.Record{}
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &rec); err != nil {
			return ApplyIngestOutput{}, temporal.NewNonRetryableApplicationError(
				"message data is not a record object", "InvalidIngestMessage", err)
		}
	}
	rec.ID = id
	if rec.Version == "" {
		rec.Version = version
	}
	// Messages without an owner fall back to the id as partition key, the
	// same convention the queued delete uses.
	if rec.OwnerID == "" {
		rec.OwnerID = id
	}
	if err := a.store.UpsertRecord(ctx, rec); err != nil {
		return ApplyIngestOutput{}, fmt.Errorf("apply upsert %s: %w", id, err)
	}
	log.Info().Str("id", id).Msg("upserted record from queued message")
	return ApplyIngestOutput{Status: "upserted", ID: id}, nil
}
