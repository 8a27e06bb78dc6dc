package llm

import (
	"net/http"

	"github.com/gorilla/mux"

	"slidecraft/internal/apperr"
	"slidecraft/internal/httpx"
	"slidecraft/internal/logs"
)

type Handler struct {
	client       *Client
	defaultModel string
}

func NewHandler(client *Client, defaultModel string) *Handler {
	return &Handler{client: client, defaultModel: defaultModel}
}

// RegisterRoutes: /api/models и /api/chat; аутентификация на стороне r.
func RegisterRoutes(r *mux.Router, h *Handler) {
	r.HandleFunc("/api/models", h.Models).Methods(http.MethodGet)
	r.HandleFunc("/api/chat", h.Chat).Methods(http.MethodPost)
}

// Models не падает, если Ollama недоступна: отдаёт модель по умолчанию.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	models, err := h.client.ListModels(r.Context())
	if err != nil {
		logs.Logger.WithError(err).Warn("ollama: list models failed, using default")
		models = nil
	}
	if len(models) == 0 {
		models = []string{h.defaultModel}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"models":  models,
		"default": h.defaultModel,
	})
}

type chatBody struct {
	Model    string    `json:"model" validate:"omitempty,max=200"`
	Messages []Message `json:"messages" validate:"required,min=1,dive"`
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatBody
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	model := req.Model
	if model == "" {
		model = h.defaultModel
	}
	msg, err := h.client.Chat(r.Context(), model, req.Messages)
	if err != nil {
		httpx.WriteError(w, r, apperr.Dependency("Language model unavailable", err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": msg})
}
