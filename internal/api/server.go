package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"policychat/internal/auth"
	"policychat/internal/config"
	"policychat/internal/ingest"
	"policychat/internal/models"
	"policychat/internal/providers"
	"policychat/internal/rag"
	"policychat/internal/storage"

	"github.com/rs/zerolog/log"
	tclient "go.temporal.io/sdk/client"
)

const chatSystemPrompt = "You are a helpful assistant."

type recordStore interface {
	ListCSVSources(ctx context.Context) ([]models.CSVFile, error)
	ListPolicyFiles(ctx context.Context) ([]models.PolicyFile, error)
}

type ingestor interface {
	IngestTable(ctx context.Context, filename string, data []byte, ownerID string) (ingest.Result, error)
	IngestDocuments(ctx context.Context, files []ingest.File, ownerID string) ingest.Result
}

type answerer interface {
	Answer(ctx context.Context, question string) (string, []models.Record, error)
}

type ingestQueue interface {
	Enqueue(ctx context.Context, msg models.IngestMessage) (string, error)
}

type Server struct {
	cfg       config.Config
	store     recordStore
	pipeline  ingestor
	rag       answerer
	queue     ingestQueue
	completer providers.CompletionProvider
	verifier  auth.TokenVerifier
}

func NewServer(cfg config.Config) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}
	completer, embedder := providers.New(cfg)
	repo := storage.NewRecordRepo(db)
	return &Server{
		cfg:       cfg,
		store:     repo,
		pipeline:  ingest.NewPipeline(repo, embedder),
		rag:       rag.NewService(repo, embedder, completer),
		queue:     NewTemporalQueue(tc, cfg.TemporalTaskQueue),
		completer: completer,
		verifier:  auth.NewVerifier(cfg.TenantID, cfg.AuthAudience),
	}
}

func (s *Server) Routes() http.Handler {
	guard := auth.Middleware(s.verifier, s.cfg.DevAuthBypass)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/api/chat", guard(http.HandlerFunc(s.handleChat)))
	mux.HandleFunc("/api/get-uploaded-files", s.handleGetUploadedFiles)
	mux.HandleFunc("/api/upload-excel-direct", s.handleUploadExcel)
	mux.HandleFunc("/api/upload-policy-documents", s.handleUploadPolicy)
	mux.HandleFunc("/api/rag-query", s.handleRAGQuery)
	mux.HandleFunc("/api/ingest", s.handleIngest)
	mux.HandleFunc("/api/auth/verify", s.handleAuthVerify)
	return withCORS(mux)
}

func (s *Server) maxUploadBytes() int64 {
	mb := s.cfg.MaxUploadMB
	if mb <= 0 {
		mb = 10
	}
	return int64(mb) << 20
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Message             string               `json:"message"`
		ConversationHistory []models.ChatMessage `json:"conversationHistory"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if req.Message == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("missing 'message'"))
		return
	}

	messages := make([]models.ChatMessage, 0, len(req.ConversationHistory)+2)
	messages = append(messages, models.ChatMessage{Role: "system", Content: chatSystemPrompt})
	messages = append(messages, req.ConversationHistory...)
	messages = append(messages, models.ChatMessage{Role: "user", Content: req.Message})

	text, err := s.completer.Complete(r.Context(), providers.CompletionRequest{
		Messages:    messages,
		MaxTokens:   512,
		Temperature: 0.7,
	})
	if err != nil {
		log.Error().Err(err).Msg("chat completion failed")
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": text})
}

func (s *Server) handleGetUploadedFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	csvFiles, err := s.store.ListCSVSources(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	policyFiles, err := s.store.ListPolicyFiles(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csvFiles":    csvFiles,
		"policyFiles": policyFiles,
	})
}

func (s *Server) handleUploadExcel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no file uploaded (must be 'file')"))
		return
	}
	defer file.Close()

	ownerID := r.FormValue("userId")
	if ownerID == "" {
		ownerID = r.URL.Query().Get("userId")
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, fmt.Errorf("read upload: %w", err))
		return
	}

	res, err := s.pipeline.IngestTable(r.Context(), header.Filename, data, ownerID)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "completed",
		"rowsProcessed": res.Processed,
		"rowsFailed":    res.Failed,
		"ids":           res.IDs,
		"errors":        errorsOrNil(res.Errors),
	})
}

func (s *Server) handleUploadPolicy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files uploaded (must be 'files')"))
		return
	}

	ownerID := r.FormValue("userId")
	if ownerID == "" {
		ownerID = r.URL.Query().Get("userId")
	}
	if ownerID == "" {
		ownerID = "default-user"
	}

	files := make([]ingest.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readMultipartFile(fh)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		files = append(files, ingest.File{Name: fh.Filename, Data: data})
	}

	res := s.pipeline.IngestDocuments(r.Context(), files, ownerID)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "completed",
		"filesProcessed": res.Processed,
		"filesFailed":    res.Failed,
		"ids":            res.IDs,
		"errors":         errorsOrNil(res.Errors),
	})
}

func (s *Server) handleRAGQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("missing 'question'"))
		return
	}

	answer, sources, err := s.rag.Answer(r.Context(), req.Question)
	if err != nil {
		if errors.Is(err, rag.ErrEmptyCorpus) {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		log.Error().Err(err).Msg("rag query failed")
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"answer":  answer,
		"sources": sources,
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var msg models.IngestMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	switch msg.Action {
	case "", models.IngestActionUpsert, models.IngestActionDelete:
	default:
		writeErr(w, http.StatusBadRequest, fmt.Errorf("action must be 'upsert' or 'delete'"))
		return
	}
	if msg.ResolveID() == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("message must include 'id' or data.id"))
		return
	}

	messageID, err := s.queue.Enqueue(r.Context(), msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to enqueue ingest message")
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":    "queued",
		"messageId": messageID,
	})
}

func (s *Server) handleAuthVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"valid": false, "error": "missing 'token'"})
		return
	}

	id, err := s.verifier.Verify(r.Context(), req.Token)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": "token verification failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "user": id})
}

func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	return data, nil
}

// errorsOrNil keeps the error field null instead of [] when a batch had no
// failures.
func errorsOrNil(errs []string) any {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	msg := "request failed"
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, code, map[string]any{"error": msg})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
