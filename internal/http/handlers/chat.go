package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

const maxChatBody = 64 << 10

// Responder produces the single reply for an inbound message.
type Responder interface {
	Handle(ctx context.Context, identifier, text string) string
}

// ChatRequest is one message sent to the assistant.
type ChatRequest struct {
	Identifier string `json:"identifier"`
	Text       string `json:"text"`
}

// ChatResponse carries the assistant's reply.
type ChatResponse struct {
	Identifier string `json:"identifier"`
	Reply      string `json:"reply"`
}

// ChatHandler exposes the conversation engine over JSON.
type ChatHandler struct {
	responder Responder
	logger    *logging.Logger
}

func NewChatHandler(responder Responder, logger *logging.Logger) *ChatHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{responder: responder, logger: logger}
}

// Handle serves POST /api/chat.
func (h *ChatHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	// A client disconnect must not abort a send that is already under way.
	ctx := context.WithoutCancel(r.Context())
	reply := h.responder.Handle(ctx, req.Identifier, req.Text)
	writeJSON(w, http.StatusOK, ChatResponse{Identifier: req.Identifier, Reply: reply})
}

// HealthCheck serves GET /health.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
