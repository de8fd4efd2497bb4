package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/meridianhq/meridian/internal/apperr"
	"github.com/meridianhq/meridian/internal/resourceservice"
)

// Batch handles POST /data/batch. The batch as a whole always responds 200;
// per-item failures are reported in the result's error list.
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4*maxBodyBytes)
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body", nil)
		return
	}

	var result *resourceservice.BatchResult
	switch req.Operation {
	case BatchOpCreate:
		var items []resourceservice.Payload
		if err := decodeBatchItems(req.Items, &items); err != nil {
			writeError(w, r, http.StatusBadRequest, CodeValidationError, err.Error(), itemsFieldError(err))
			return
		}
		result = h.svc.BatchCreate(r.Context(), items)

	case BatchOpUpdate:
		var items []resourceservice.BatchItem
		if err := decodeBatchItems(req.Items, &items); err != nil {
			writeError(w, r, http.StatusBadRequest, CodeValidationError, err.Error(), itemsFieldError(err))
			return
		}
		result = h.svc.BatchUpdate(r.Context(), items)

	case BatchOpDelete:
		var ids []string
		if err := decodeBatchItems(req.Items, &ids); err != nil {
			writeError(w, r, http.StatusBadRequest, CodeValidationError, err.Error(), itemsFieldError(err))
			return
		}
		result = h.svc.BatchDelete(r.Context(), ids)

	default:
		writeError(w, r, http.StatusBadRequest, CodeValidationError, "operation must be create, update, or delete",
			[]apperr.FieldError{{Field: "operation", Message: "must be create, update, or delete"}})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// decodeBatchItems unmarshals and bounds-checks the item list.
func decodeBatchItems[T any](raw json.RawMessage, out *[]T) error {
	if len(raw) == 0 {
		return fmt.Errorf("items are required")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("items are malformed")
	}
	if len(*out) == 0 {
		return fmt.Errorf("items must not be empty")
	}
	if len(*out) > resourceservice.MaxBatchItems {
		return fmt.Errorf("items exceed the batch cap of %d", resourceservice.MaxBatchItems)
	}
	return nil
}

func itemsFieldError(err error) []apperr.FieldError {
	return []apperr.FieldError{{Field: "items", Message: err.Error()}}
}
