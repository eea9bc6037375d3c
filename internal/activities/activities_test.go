package activities

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"policychat/internal/models"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
)

type fakeStore struct {
	upserts   []models.Record
	deletes   []string
	upsertErr error
	deleteErr error
}

func (f *fakeStore) UpsertRecord(_ context.Context, rec models.Record) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, rec)
	return nil
}

func (f *fakeStore) DeleteRecordByID(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, id)
	return nil
}

func TestApplyIngestUpsertFillsDefaults(t *testing.T) {
	store := &fakeStore{}
	a := NewWithStore(store)

	out, err := a.ApplyIngestActivity(context.Background(), ApplyIngestInput{Message: models.IngestMessage{
		Data: json.RawMessage(`{"id":"doc-1","content":"hello","title":"Doc"}`),
	}})
	require.NoError(t, err)
	require.Equal(t, "upserted", out.Status)
	require.Equal(t, "doc-1", out.ID)

	require.Len(t, store.upserts, 1)
	rec := store.upserts[0]
	require.Equal(t, "doc-1", rec.ID)
	require.Equal(t, "latest", rec.Version)
	require.Equal(t, "doc-1", rec.OwnerID)
	require.Equal(t, "hello", rec.Content)
}

func TestApplyIngestEnvelopeIDWins(t *testing.T) {
	store := &fakeStore{}
	a := NewWithStore(store)

	out, err := a.ApplyIngestActivity(context.Background(), ApplyIngestInput{Message: models.IngestMessage{
		ID:      "envelope-id",
		Version: "v2",
		Data:    json.RawMessage(`{"id":"data-id","ownerId":"owner-1"}`),
	}})
	require.NoError(t, err)
	require.Equal(t, "envelope-id", out.ID)

	rec := store.upserts[0]
	require.Equal(t, "envelope-id", rec.ID)
	require.Equal(t, "v2", rec.Version)
	require.Equal(t, "owner-1", rec.OwnerID)
}

func TestApplyIngestDelete(t *testing.T) {
	store := &fakeStore{}
	a := NewWithStore(store)

	out, err := a.ApplyIngestActivity(context.Background(), ApplyIngestInput{Message: models.IngestMessage{
		ID:     "doc-9",
		Action: models.IngestActionDelete,
	}})
	require.NoError(t, err)
	require.Equal(t, "deleted", out.Status)
	require.Equal(t, []string{"doc-9"}, store.deletes)
	require.Empty(t, store.upserts)
}

func TestApplyIngestMissingIDNonRetryable(t *testing.T) {
	a := NewWithStore(&fakeStore{})

	_, err := a.ApplyIngestActivity(context.Background(), ApplyIngestInput{Message: models.IngestMessage{
		Action: models.IngestActionUpsert,
		Data:   json.RawMessage(`{"content":"no id here"}`),
	}})
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "InvalidIngestMessage", appErr.Type())
	require.True(t, appErr.NonRetryable())
}

func TestApplyIngestMalformedDataNonRetryable(t *testing.T) {
	a := NewWithStore(&fakeStore{})

	_, err := a.ApplyIngestActivity(context.Background(), ApplyIngestInput{Message: models.IngestMessage{
		ID:   "doc-1",
		Data: json.RawMessage(`["not","an","object"]`),
	}})
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "InvalidIngestMessage", appErr.Type())
}

func TestApplyIngestStoreErrorRetryable(t *testing.T) {
	a := NewWithStore(&fakeStore{upsertErr: errors.New("connection reset")})

	_, err := a.ApplyIngestActivity(context.Background(), ApplyIngestInput{Message: models.IngestMessage{ID: "doc-1"}})
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.False(t, errors.As(err, &appErr))
}
