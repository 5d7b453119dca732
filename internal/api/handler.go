package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/voxhollow/parley/internal/agent"
	"github.com/voxhollow/parley/internal/conversation"
	"github.com/voxhollow/parley/internal/dispatch"
	"github.com/voxhollow/parley/internal/memory"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	dispatcher *dispatch.Dispatcher
	memory     *memory.Store
	registry   *conversation.Registry
	gateway    http.Handler
	logger     *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d *dispatch.Dispatcher, mem *memory.Store, reg *conversation.Registry, logger *zap.Logger) *Handler {
	return &Handler{
		dispatcher: d,
		memory:     mem,
		registry:   reg,
		logger:     logger,
	}
}

// MountGateway attaches platform gateway ingestion routes under /gateway.
// Call before Router.
func (h *Handler) MountGateway(routes http.Handler) {
	h.gateway = routes
}

// Router builds the chi router with all API routes.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Post("/chat", h.chat)
		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", h.listConversations)
			r.Post("/", h.createConversation)
			r.Get("/{id}", h.getConversation)
			r.Get("/{id}/memory", h.getMemory)
			r.Delete("/{id}", h.deleteConversation)
		})
	})
	if h.gateway != nil {
		r.Mount("/gateway", h.gateway)
	}
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "parley"})
}

// chatRequest is the inbound chat payload.
type chatRequest struct {
	UserID         string            `json:"user_id"`
	ConversationID string            `json:"conversation_id,omitempty"`
	SessionID      string            `json:"session_id,omitempty"`
	Kind           string            `json:"kind,omitempty"`
	Content        string            `json:"content"`
	Priority       string            `json:"priority,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// chatResponse wraps the agent response with the conversation id, which the
// client needs when the server minted it.
type chatResponse struct {
	ConversationID string `json:"conversation_id"`
	*agent.Response
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Content is validated before the registry is touched, so malformed
	// requests leave no dangling records behind.
	if strings.TrimSpace(body.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	var cc agent.ConversationContext
	if body.ConversationID == "" {
		cc = *h.registry.Create(body.UserID, body.SessionID, body.Metadata)
	} else {
		cc = agent.ConversationContext{
			UserID:         body.UserID,
			ConversationID: body.ConversationID,
			SessionID:      body.SessionID,
			Metadata:       body.Metadata,
		}
		h.registry.Touch(cc)
	}

	req := &agent.Request{
		Kind:     agent.Kind(body.Kind),
		Content:  body.Content,
		Context:  cc,
		Priority: agent.Priority(body.Priority),
		Metadata: body.Metadata,
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := h.dispatcher.Handle(r.Context(), req)
	writeJSON(w, http.StatusOK, chatResponse{ConversationID: cc.ConversationID, Response: resp})
}

func (h *Handler) createConversation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID    string            `json:"user_id"`
		SessionID string            `json:"session_id,omitempty"`
		Metadata  map[string]string `json:"metadata,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	cc := h.registry.Create(body.UserID, body.SessionID, body.Metadata)
	writeJSON(w, http.StatusCreated, cc)
}

func (h *Handler) listConversations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.List())
}

func (h *Handler) getConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, ok := h.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) getMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conv, err := h.memory.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("memory read failed", zap.String("conversation", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "memory unavailable")
		return
	}
	if conv == nil {
		writeError(w, http.StatusNotFound, "no memory for conversation")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *Handler) deleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.memory.Clear(r.Context(), id); err != nil {
		h.logger.Error("memory clear failed", zap.String("conversation", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear conversation memory")
		return
	}
	h.registry.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
