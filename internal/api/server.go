package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"docuchat/internal/chat"
	"docuchat/internal/config"
	"docuchat/internal/objectstore"
	"docuchat/internal/providers"
	"docuchat/internal/storage"
	"docuchat/internal/vector"
	"docuchat/internal/workflows"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

type Server struct {
	cfg          config.Config
	db           *storage.DB
	docRepo      *storage.DocumentRepo
	chunkRepo    *storage.ChunkRepo
	sessionRepo  *storage.SessionRepo
	messageRepo  *storage.MessageRepo
	objects      objectstore.Store
	providers    *providers.Manager
	orchestrator *chat.Orchestrator
	temporal     tclient.Client
	validate     *validator.Validate
}

func NewServer(cfg config.Config) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		panic(err)
	}
	objects, err := objectstore.NewFS(cfg.ObjectStoreRoot)
	if err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}

	sessionRepo := storage.NewSessionRepo(db)
	messageRepo := storage.NewMessageRepo(db)
	embedder, _ := pm.EmbedProviderByIndex(pm.PreferredEmbedOrder()[0])
	llm, _ := pm.LLMProviderByIndex(pm.PreferredLLMOrder()[0])
	orch, err := chat.New(chat.Config{
		TopK:               cfg.RetrievalTopK,
		ParaphraseCount:    cfg.ParaphraseCount,
		HistoryWindow:      cfg.HistoryWindow,
		RetrieveWorkers:    cfg.RetrieveWorkers,
		EmbedDim:           cfg.EmbedDim,
		JailbreakThreshold: cfg.JailbreakThreshold,
		PIIThreshold:       cfg.PIIThreshold,
	}, sessionRepo, messageRepo, vector.NewSearcher(db.Pool), embedder, llm, pm.Guardrail(), slog.Default())
	if err != nil {
		panic(err)
	}

	return &Server{
		cfg:          cfg,
		db:           db,
		docRepo:      storage.NewDocumentRepo(db),
		chunkRepo:    storage.NewChunkRepo(db),
		sessionRepo:  sessionRepo,
		messageRepo:  messageRepo,
		objects:      objects,
		providers:    pm,
		orchestrator: orch,
		temporal:     tc,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/documents", s.handleDocuments)
	mux.HandleFunc("/documents/", s.handleDocumentsScoped)
	mux.HandleFunc("/chat/messages", s.handleChatMessage)
	mux.HandleFunc("/chat/history/", s.handleChatHistory)
	mux.HandleFunc("/chat/sessions/", s.handleChatSessions)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		docs, err := s.docRepo.ListDocuments(r.Context())
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleDocumentsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/documents/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if parts[0] == "upload" {
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleUpload(w, r)
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid document id"))
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			doc, err := s.docRepo.GetDocument(r.Context(), id)
			if err != nil {
				if errors.Is(err, storage.ErrDocumentNotFound) {
					writeErr(w, http.StatusNotFound, err)
					return
				}
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
			count, err := s.chunkRepo.CountChunks(r.Context(), id)
			if err != nil {
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"document": doc, "chunk_count": count})
		case http.MethodDelete:
			if err := s.docRepo.DeleteDocument(r.Context(), id); err != nil {
				if errors.Is(err, storage.ErrDocumentNotFound) {
					writeErr(w, http.StatusNotFound, err)
					return
				}
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
		default:
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		}
		return
	}

	if len(parts) == 2 && parts[1] == "progress" {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		var prog workflows.IngestProgress
		resp, err := s.temporal.QueryWorkflow(r.Context(), ingestWorkflowID(id), "", workflows.QueryGetProgress)
		if err != nil {
			// Fall back to DB state when no workflow is live to answer the query.
			doc, dErr := s.docRepo.GetDocument(r.Context(), id)
			if dErr != nil {
				if errors.Is(dErr, storage.ErrDocumentNotFound) {
					writeErr(w, http.StatusNotFound, dErr)
					return
				}
				writeErr(w, http.StatusInternalServerError, dErr)
				return
			}
			count, cErr := s.chunkRepo.CountChunks(r.Context(), id)
			if cErr != nil {
				writeErr(w, http.StatusInternalServerError, cErr)
				return
			}
			writeJSON(w, http.StatusOK, workflows.IngestProgress{
				DocumentID: id,
				Status:     doc.Status,
				FailReason: doc.FailReason,
				ChunkCount: count,
			})
			return
		}
		if err := resp.Get(&prog); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, prog)
		return
	}

	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}

	type uploadResult struct {
		DocumentID int64  `json:"document_id"`
		Filename   string `json:"filename"`
		WorkflowID string `json:"workflow_id"`
	}
	out := make([]uploadResult, 0, len(files))

	for _, fh := range files {
		filename := filepath.Base(fh.Filename)
		f, err := fh.Open()
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		storagePath := filepath.Join("documents", uuid.NewString(), filename)
		if err := s.objects.Put(r.Context(), storagePath, data); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}

		doc, err := s.docRepo.CreateDocument(r.Context(), filename, storagePath)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}

		we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
			ID:                    ingestWorkflowID(doc.ID),
			TaskQueue:             s.cfg.TemporalTaskQueue,
			WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		}, workflows.DocumentIngestWorkflow, workflows.DocumentIngestInput{
			DocumentID:   doc.ID,
			StoragePath:  storagePath,
			Filename:     filename,
			ChunkSize:    s.cfg.ChunkSize,
			ChunkOverlap: s.cfg.ChunkOverlap,
		})
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, uploadResult{DocumentID: doc.ID, Filename: filename, WorkflowID: we.GetID()})
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"uploaded": out})
}

type chatMessageRequest struct {
	Message   string `json:"message" validate:"required,min=1,max=8000"`
	SessionID string `json:"session_id" validate:"omitempty,uuid4"`
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req chatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := s.validate.Struct(req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("message is required"))
		return
	}
	var sessionID *uuid.UUID
	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid session id"))
			return
		}
		sessionID = &id
	}

	outcome, err := s.orchestrator.Turn(r.Context(), sessionID, req.Message)
	if err != nil {
		var te *chat.TurnError
		if errors.As(err, &te) {
			writeTurnErr(w, te)
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": outcome.SessionID,
		"outcome":    outcome.Kind,
		"message":    outcome.Answer,
		"retrieved":  outcome.Retrieved,
	})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/chat/history/"), "/")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid session id"))
		return
	}
	if _, err := s.sessionRepo.GetSession(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	messages, err := s.messageRepo.ListMessages(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "messages": messages, "count": len(messages)})
}

func (s *Server) handleChatSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/chat/sessions/"), "/")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid session id"))
		return
	}
	if err := s.sessionRepo.DeleteSession(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func ingestWorkflowID(documentID int64) string {
	return fmt.Sprintf("document-ingest-%d", documentID)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

// writeTurnErr keeps the orchestrator's stable error code on the wire so
// clients can distinguish provider outages from bad requests.
func writeTurnErr(w http.ResponseWriter, te *chat.TurnError) {
	status := http.StatusInternalServerError
	switch te.Code {
	case chat.ErrCodeGuardrail, chat.ErrCodeEmbedding, chat.ErrCodeCompletion:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    te.Code,
			"message": "The assistant could not complete this turn. Please retry.",
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "DC-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "DC-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "DC-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "DC-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "DC-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "DC-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "DC-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "DC-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusBadGateway:
		code = "DC-API-5020"
		msg = "Upstream provider unavailable. Retry shortly."
	}

	if status >= 400 && status < 500 && err != nil {
		low := strings.ToLower(err.Error())
		switch {
		case strings.Contains(low, "message is required"):
			msg = "A chat message is required."
		case strings.Contains(low, "no files provided"):
			msg = "No files were provided."
		case strings.Contains(low, "invalid session id"):
			msg = "Session id must be a valid UUID."
		case strings.Contains(low, "invalid document id"):
			msg = "Document id must be numeric."
		case strings.Contains(low, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
