package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"policychat/internal/models"
	"policychat/internal/providers"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	records []models.Record
	err     error
}

func (f *fakeStore) ListEmbedded(ctx context.Context) ([]models.Record, error) {
	return f.records, f.err
}

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return []float32{0.5}, f.err
}

type fakeCompleter struct {
	calls    int
	lastReq  providers.CompletionRequest
	response string
	err      error
}

func (f *fakeCompleter) Complete(ctx context.Context, req providers.CompletionRequest) (string, error) {
	f.calls++
	f.lastReq = req
	return f.response, f.err
}

func TestAnswerEmptyCorpusSkipsCompletion(t *testing.T) {
	completer := &fakeCompleter{}
	svc := NewService(&fakeStore{}, &fakeEmbedder{}, completer)

	_, _, err := svc.Answer(context.Background(), "what is the leave policy?")
	require.ErrorIs(t, err, ErrEmptyCorpus)
	require.Equal(t, 0, completer.calls)
}

func TestAnswerBuildsGroundedPrompt(t *testing.T) {
	store := &fakeStore{records: []models.Record{
		{ID: "1", Title: "Row 1", Content: "Alice works remotely.", SourceFile: "people.csv"},
		{ID: "2", Title: "Leave Policy", Content: "20 days per year.", FileName: "leave.pdf"},
	}}
	completer := &fakeCompleter{response: "Answer. [Source: people.csv]"}
	svc := NewService(store, &fakeEmbedder{}, completer)

	answer, sources, err := svc.Answer(context.Background(), "who works remotely?")
	require.NoError(t, err)
	require.Equal(t, "Answer. [Source: people.csv]", answer)
	require.Len(t, sources, 2)

	require.Len(t, completer.lastReq.Messages, 2)
	require.Equal(t, "system", completer.lastReq.Messages[0].Role)
	require.Contains(t, completer.lastReq.Messages[0].Content, "cite sources")
	user := completer.lastReq.Messages[1].Content
	require.Contains(t, user, "Question: who works remotely?")
	require.Contains(t, user, "[Source: people.csv]\nAlice works remotely.")
	require.Contains(t, user, "ONLY the context above")
}

func TestAnswerEmbedFailureSurfaces(t *testing.T) {
	completer := &fakeCompleter{}
	svc := NewService(&fakeStore{records: []models.Record{{ID: "1"}}}, &fakeEmbedder{err: errors.New("rate limited")}, completer)

	_, _, err := svc.Answer(context.Background(), "q")
	require.Error(t, err)
	require.Equal(t, 0, completer.calls)
}

func TestBuildContextFallsBackToTitle(t *testing.T) {
	ctx := BuildContext([]models.Record{
		{Title: "Handbook", Content: "body"},
	})
	require.True(t, strings.HasPrefix(ctx, "[Source: Handbook]\n"))
}

func TestBuildContextJoinsWithBlankLines(t *testing.T) {
	ctx := BuildContext([]models.Record{
		{SourceFile: "a.csv", Content: "one"},
		{SourceFile: "b.csv", Content: "two"},
	})
	require.Equal(t, "[Source: a.csv]\none\n\n[Source: b.csv]\ntwo", ctx)
}
