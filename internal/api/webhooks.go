package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridianhq/meridian/internal/webhook"
)

// CreateWebhook handles POST /webhooks.
func (h *Handler) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var reg webhook.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body", nil)
		return
	}
	hook, err := h.hooks.Create(reg)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, hook)
}

// ListWebhooks handles GET /webhooks. Secrets are never echoed.
func (h *Handler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.hooks.List()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, WebhookListResponse{Data: hooks})
}

// DeleteWebhook handles DELETE /webhooks/{id}.
func (h *Handler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.hooks.Delete(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
