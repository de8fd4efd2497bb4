package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/meridianhq/meridian/internal/resourceservice"
	"github.com/meridianhq/meridian/internal/store"
	"github.com/meridianhq/meridian/internal/webhook"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc   *resourceservice.Service
	hooks *webhook.Registry
}

// NewHandler creates a new Handler.
func NewHandler(svc *resourceservice.Service, hooks *webhook.Registry) *Handler {
	return &Handler{svc: svc, hooks: hooks}
}

// parseSort splits an optional "-" prefix off the sort parameter and vets
// the field name. Empty input defaults to descending updated_at.
func parseSort(raw string) (field string, desc, ok bool) {
	if raw == "" {
		return "updated_at", true, true
	}
	field = raw
	if strings.HasPrefix(raw, "-") {
		field = raw[1:]
		desc = true
	}
	switch field {
	case "name", "created_at", "updated_at":
		return field, desc, true
	}
	return "", false, false
}

func queryFilter(r *http.Request) store.Filter {
	q := r.URL.Query()
	return store.Filter{
		Status: q.Get("status"),
		Tag:    q.Get("tag"),
	}
}

func queryPage(r *http.Request) (page, limit int) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	limit, _ = strconv.Atoi(q.Get("limit"))
	return page, limit
}

// List handles GET /data.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sortField, desc, ok := parseSort(r.URL.Query().Get("sort"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, "unknown sort field", nil)
		return
	}
	page, limit := queryPage(r)

	items, pagination, err := h.svc.List(r.Context(), queryFilter(r), sortField, desc, page, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Data: items, Pagination: pagination})
}

// Get handles GET /data/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Create handles POST /data.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var p resourceservice.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body", nil)
		return
	}
	res, err := h.svc.Create(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Update handles PUT /data/{id} (full replace).
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var p resourceservice.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body", nil)
		return
	}
	res, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Patch handles PATCH /data/{id} (partial update).
func (h *Handler) Patch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var p resourceservice.PatchPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body", nil)
		return
	}
	res, err := h.svc.Patch(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Delete handles DELETE /data/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: true})
}

// Search handles GET /search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, "query parameter 'q' is required", nil)
		return
	}
	page, limit := queryPage(r)

	items, total, facets, took, err := h.svc.Search(r.Context(), q, queryFilter(r), page, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Data:        items,
		Facets:      selectFacets(facets, r.URL.Query().Get("facets")),
		Total:       total,
		QueryTimeMS: took.Milliseconds(),
	})
}

// selectFacets keeps only the requested facet fields; unknown fields are
// ignored.
func selectFacets(f store.Facets, requested string) map[string]map[string]int {
	out := map[string]map[string]int{}
	if requested == "" {
		return out
	}
	for _, field := range strings.Split(requested, ",") {
		switch strings.TrimSpace(field) {
		case "status":
			out["status"] = f.Status
		case "tags":
			out["tags"] = f.Tags
		}
	}
	return out
}

// AnalyticsSummary handles GET /analytics/summary.
func (h *Handler) AnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
