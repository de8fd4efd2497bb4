package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/meridianhq/meridian/internal/resourceservice"
	"github.com/meridianhq/meridian/internal/store"
	"github.com/meridianhq/meridian/internal/webhook"
)

// testEnv sets up a temp SQLite store, service, and router for testing.
// An empty key means auth disabled; a non-empty key enables API key mode.
func testEnv(t *testing.T, apiKey string) (*resourceservice.Service, http.Handler) {
	t.Helper()

	dbFile, err := os.CreateTemp("", "meridian-api-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	st, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc := resourceservice.NewService(st, nil, nil)
	hooks := webhook.NewRegistry(st)

	enabled := apiKey != ""
	var keys []string
	if enabled {
		keys = []string{apiKey}
	}
	router := NewRouter(svc, hooks, enabled, keys, nil, nil)
	return svc, router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createResource(t *testing.T, router http.Handler, name string, extra map[string]any) map[string]any {
	t.Helper()
	payload := map[string]any{"name": name}
	for k, v := range extra {
		payload[k] = v
	}
	w := doJSON(t, router, http.MethodPost, "/data", payload)
	if w.Code != http.StatusCreated {
		t.Fatalf("create %q = %d, body = %s", name, w.Code, w.Body.String())
	}
	var res map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	return res
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var body ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not the envelope: %s", w.Body.String())
	}
	return body.Error
}

func TestCreateAndGetResource(t *testing.T) {
	_, router := testEnv(t, "")

	created := createResource(t, router, "sensor-1", map[string]any{
		"description": "roof sensor",
		"tags":        []string{"iot", "roof"},
		"metadata":    map[string]any{"floor": float64(4)},
	})
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("create returned no id")
	}
	if created["status"] != "active" {
		t.Errorf("default status = %v, want active", created["status"])
	}

	w := doJSON(t, router, http.MethodGet, "/data/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d, body = %s", w.Code, w.Body.String())
	}
	var got map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got["id"] != id {
		t.Errorf("id = %v, want %v", got["id"], id)
	}
	if got["name"] != "sensor-1" {
		t.Errorf("name = %v", got["name"])
	}
	if meta, ok := got["metadata"].(map[string]any); !ok || meta["floor"] != float64(4) {
		t.Errorf("metadata = %v", got["metadata"])
	}
}

func TestCreateValidationError(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/data", map[string]any{
		"name":   "",
		"status": "archived",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid create = %d, want 400", w.Code)
	}
	detail := decodeError(t, w)
	if detail.Code != CodeValidationError {
		t.Errorf("code = %q, want %q", detail.Code, CodeValidationError)
	}
	fields := map[string]bool{}
	for _, f := range detail.Details {
		fields[f.Field] = true
	}
	if !fields["name"] || !fields["status"] {
		t.Errorf("details missing name/status: %+v", detail.Details)
	}
}

func TestCreateInvalidJSON(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/data", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad json = %d, want 400", w.Code)
	}
	if detail := decodeError(t, w); detail.Code != CodeInvalidRequest {
		t.Errorf("code = %q, want %q", detail.Code, CodeInvalidRequest)
	}
}

func TestUpdateResource(t *testing.T) {
	_, router := testEnv(t, "")

	created := createResource(t, router, "before", nil)
	id := created["id"].(string)

	w := doJSON(t, router, http.MethodPut, "/data/"+id, map[string]any{
		"name":   "after",
		"status": "inactive",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	var updated map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &updated)
	if updated["name"] != "after" || updated["status"] != "inactive" {
		t.Errorf("updated = %v", updated)
	}
	if updated["created_at"] != created["created_at"] {
		t.Errorf("created_at changed on update: %v -> %v", created["created_at"], updated["created_at"])
	}
}

func TestPatchResource(t *testing.T) {
	_, router := testEnv(t, "")

	created := createResource(t, router, "patchable", map[string]any{
		"description": "keep me",
		"tags":        []string{"a"},
	})
	id := created["id"].(string)

	w := doJSON(t, router, http.MethodPatch, "/data/"+id, map[string]any{
		"status": "inactive",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d, body = %s", w.Code, w.Body.String())
	}
	var patched map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &patched)
	if patched["status"] != "inactive" {
		t.Errorf("status = %v, want inactive", patched["status"])
	}
	if patched["name"] != "patchable" || patched["description"] != "keep me" {
		t.Errorf("patch clobbered untouched fields: %v", patched)
	}
}

func TestDeleteThenGet(t *testing.T) {
	_, router := testEnv(t, "")

	id := createResource(t, router, "ephemeral", nil)["id"].(string)

	w := doJSON(t, router, http.MethodDelete, "/data/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d, body = %s", w.Code, w.Body.String())
	}
	var resp DeleteResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Deleted {
		t.Error("deleted = false, want true")
	}

	w = doJSON(t, router, http.MethodGet, "/data/"+id, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", w.Code)
	}
	if detail := decodeError(t, w); detail.Code != CodeNotFound {
		t.Errorf("code = %q, want %q", detail.Code, CodeNotFound)
	}
}

func TestGetResource_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/data/no-such-id", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing resource = %d, want 404", w.Code)
	}
}

func TestUpdateResource_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPut, "/data/ghost", map[string]any{"name": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

func TestListPagination(t *testing.T) {
	_, router := testEnv(t, "")

	for i := 0; i < 150; i++ {
		createResource(t, router, fmt.Sprintf("item-%03d", i), nil)
	}

	w := doJSON(t, router, http.MethodGet, "/data?page=2&limit=50", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Data) != 50 {
		t.Errorf("len(data) = %d, want 50", len(resp.Data))
	}
	p := resp.Pagination
	if p.Total != 150 || p.TotalPages != 3 || p.CurrentPage != 2 {
		t.Errorf("pagination = %+v", p)
	}
	if !p.HasNext || !p.HasPrev {
		t.Errorf("has_next = %v, has_prev = %v, want both true", p.HasNext, p.HasPrev)
	}
}

func TestListDefaultsAndCap(t *testing.T) {
	_, router := testEnv(t, "")

	for i := 0; i < 25; i++ {
		createResource(t, router, fmt.Sprintf("d-%02d", i), nil)
	}

	// Defaults: page 1, 20 per page.
	w := doJSON(t, router, http.MethodGet, "/data", nil)
	var resp ListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Data) != 20 || resp.Pagination.PerPage != 20 || resp.Pagination.CurrentPage != 1 {
		t.Errorf("defaults: len = %d, pagination = %+v", len(resp.Data), resp.Pagination)
	}

	// limit above 100 is clamped.
	w = doJSON(t, router, http.MethodGet, "/data?limit=500", nil)
	resp = ListResponse{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Pagination.PerPage != 100 {
		t.Errorf("per_page = %d, want 100", resp.Pagination.PerPage)
	}
}

func TestListFilterAndSort(t *testing.T) {
	_, router := testEnv(t, "")

	createResource(t, router, "bravo", map[string]any{"status": "inactive", "tags": []string{"x"}})
	createResource(t, router, "alpha", map[string]any{"tags": []string{"x", "y"}})
	createResource(t, router, "charlie", nil)

	w := doJSON(t, router, http.MethodGet, "/data?status=inactive", nil)
	var resp ListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Data) != 1 || resp.Data[0].Name != "bravo" {
		t.Errorf("status filter = %+v", resp.Data)
	}

	w = doJSON(t, router, http.MethodGet, "/data?tag=x&sort=name", nil)
	resp = ListResponse{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Data) != 2 || resp.Data[0].Name != "alpha" || resp.Data[1].Name != "bravo" {
		t.Errorf("tag filter + name sort = %+v", resp.Data)
	}

	w = doJSON(t, router, http.MethodGet, "/data?sort=-name", nil)
	resp = ListResponse{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data[0].Name != "charlie" {
		t.Errorf("descending name sort starts with %q", resp.Data[0].Name)
	}
}

func TestListUnknownSortField(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/data?sort=price", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown sort = %d, want 400", w.Code)
	}
	if detail := decodeError(t, w); detail.Code != CodeInvalidRequest {
		t.Errorf("code = %q, want %q", detail.Code, CodeInvalidRequest)
	}
}

// Batch tests.

func TestBatchCreatePartialFailure(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/data/batch", map[string]any{
		"operation": "create",
		"items": []map[string]any{
			{"name": "good-1"},
			{"name": ""}, // invalid
			{"name": "good-2"},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("batch create = %d, body = %s", w.Code, w.Body.String())
	}
	var result resourceservice.BatchResult
	_ = json.Unmarshal(w.Body.Bytes(), &result)
	if result.Summary.Created != 2 || result.Summary.Failed != 1 {
		t.Errorf("summary = %+v", result.Summary)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %+v", result.Errors)
	}
	if len(result.Data) != 2 {
		t.Errorf("len(data) = %d, want 2", len(result.Data))
	}
}

func TestBatchDeletePartialFailure(t *testing.T) {
	_, router := testEnv(t, "")

	a := createResource(t, router, "del-a", nil)["id"].(string)
	b := createResource(t, router, "del-b", nil)["id"].(string)

	w := doJSON(t, router, http.MethodPost, "/data/batch", map[string]any{
		"operation": "delete",
		"items":     []string{a, b, "missing-id"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("batch delete = %d, body = %s", w.Code, w.Body.String())
	}
	var result resourceservice.BatchResult
	_ = json.Unmarshal(w.Body.Bytes(), &result)
	if result.Summary.Deleted != 2 || result.Summary.Failed != 1 {
		t.Errorf("summary = %+v", result.Summary)
	}
	if len(result.Errors) != 1 || result.Errors[0].ID != "missing-id" {
		t.Errorf("errors = %+v, want one error for missing-id", result.Errors)
	}

	// The two named resources are actually gone.
	if w := doJSON(t, router, http.MethodGet, "/data/"+a, nil); w.Code != http.StatusNotFound {
		t.Errorf("get deleted a = %d, want 404", w.Code)
	}
}

func TestBatchUpdate(t *testing.T) {
	_, router := testEnv(t, "")

	id := createResource(t, router, "upd", nil)["id"].(string)

	w := doJSON(t, router, http.MethodPost, "/data/batch", map[string]any{
		"operation": "update",
		"items": []map[string]any{
			{"id": id, "name": "upd-2", "status": "inactive"},
			{"id": "missing", "name": "nope"},
		},
	})
	var result resourceservice.BatchResult
	_ = json.Unmarshal(w.Body.Bytes(), &result)
	if result.Summary.Updated != 1 || result.Summary.Failed != 1 {
		t.Errorf("summary = %+v", result.Summary)
	}
}

func TestBatchRejectsBadRequests(t *testing.T) {
	_, router := testEnv(t, "")

	cases := []struct {
		name string
		body map[string]any
	}{
		{"unknown operation", map[string]any{"operation": "upsert", "items": []string{"x"}}},
		{"empty items", map[string]any{"operation": "delete", "items": []string{}}},
		{"missing items", map[string]any{"operation": "create"}},
	}
	for _, tc := range cases {
		w := doJSON(t, router, http.MethodPost, "/data/batch", tc.body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", tc.name, w.Code)
			continue
		}
		if detail := decodeError(t, w); detail.Code != CodeValidationError {
			t.Errorf("%s code = %q, want %q", tc.name, detail.Code, CodeValidationError)
		}
	}
}

func TestBatchCapEnforced(t *testing.T) {
	_, router := testEnv(t, "")

	ids := make([]string, resourceservice.MaxBatchItems+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%d", i)
	}
	w := doJSON(t, router, http.MethodPost, "/data/batch", map[string]any{
		"operation": "delete",
		"items":     ids,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("oversized batch = %d, want 400", w.Code)
	}
}

// Search tests.

func TestSearchWithFacets(t *testing.T) {
	_, router := testEnv(t, "")

	createResource(t, router, "solar panel array", map[string]any{"tags": []string{"energy"}})
	createResource(t, router, "solar inverter", map[string]any{"status": "inactive", "tags": []string{"energy", "spare"}})
	createResource(t, router, "water pump", nil)

	w := doJSON(t, router, http.MethodGet, "/search?q=solar&facets=status,tags", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 || len(resp.Data) != 2 {
		t.Fatalf("total = %d, len(data) = %d, want 2", resp.Total, len(resp.Data))
	}
	if resp.Facets["status"]["active"] != 1 || resp.Facets["status"]["inactive"] != 1 {
		t.Errorf("status facet = %v", resp.Facets["status"])
	}
	if resp.Facets["tags"]["energy"] != 2 || resp.Facets["tags"]["spare"] != 1 {
		t.Errorf("tags facet = %v", resp.Facets["tags"])
	}
}

func TestSearchUnknownFacetIgnored(t *testing.T) {
	_, router := testEnv(t, "")

	createResource(t, router, "findable", nil)

	w := doJSON(t, router, http.MethodGet, "/search?q=findable&facets=status,color", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if _, ok := resp.Facets["color"]; ok {
		t.Error("unknown facet should be ignored, not echoed")
	}
	if _, ok := resp.Facets["status"]; !ok {
		t.Error("requested status facet missing")
	}
}

func TestSearchWithStatusFilter(t *testing.T) {
	_, router := testEnv(t, "")

	createResource(t, router, "gateway north", nil)
	createResource(t, router, "gateway south", map[string]any{"status": "inactive"})

	w := doJSON(t, router, http.MethodGet, "/search?q=gateway&status=inactive", nil)
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Data[0].Name != "gateway south" {
		t.Errorf("filtered search = %+v", resp.Data)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search without q = %d, want 400", w.Code)
	}
}

func TestAnalyticsSummary(t *testing.T) {
	_, router := testEnv(t, "")

	createResource(t, router, "one", map[string]any{"tags": []string{"t1"}})
	createResource(t, router, "two", map[string]any{"tags": []string{"t1", "t2"}})
	createResource(t, router, "three", map[string]any{"status": "inactive"})

	w := doJSON(t, router, http.MethodGet, "/analytics/summary", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summary = %d, body = %s", w.Code, w.Body.String())
	}
	var sum struct {
		Total          int            `json:"total"`
		ByStatus       map[string]int `json:"by_status"`
		TagCounts      map[string]int `json:"tag_counts"`
		UpdatedLast24h int            `json:"updated_last_24h"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &sum)
	if sum.Total != 3 {
		t.Errorf("total = %d, want 3", sum.Total)
	}
	if sum.ByStatus["active"] != 2 || sum.ByStatus["inactive"] != 1 {
		t.Errorf("by_status = %v", sum.ByStatus)
	}
	if sum.TagCounts["t1"] != 2 || sum.TagCounts["t2"] != 1 {
		t.Errorf("tag_counts = %v", sum.TagCounts)
	}
	if sum.UpdatedLast24h != 3 {
		t.Errorf("updated_last_24h = %d, want 3", sum.UpdatedLast24h)
	}
}

// Auth tests.

func TestAuth_ValidKey(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuth_MissingKey(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := doJSON(t, router, http.MethodGet, "/data", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthed = %d, want 401", w.Code)
	}
	if detail := decodeError(t, w); detail.Code != CodeUnauthorized {
		t.Errorf("code = %q, want %q", detail.Code, CodeUnauthorized)
	}
}

func TestAuth_WrongKey(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong key = %d, want 401", w.Code)
	}
}

func TestAuth_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/data", nil)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// Webhook registration tests.

func TestWebhookLifecycle(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/webhooks", map[string]any{
		"url":    "https://example.com/hook",
		"events": []string{"resource.created"},
		"secret": "topsecret1",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create webhook = %d, body = %s", w.Code, w.Body.String())
	}
	var created map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("webhook has no id")
	}
	if _, ok := created["secret"]; ok {
		t.Error("secret must not be echoed back")
	}

	w = doJSON(t, router, http.MethodGet, "/webhooks", nil)
	var list WebhookListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Data) != 1 || list.Data[0].URL != "https://example.com/hook" {
		t.Errorf("list = %+v", list.Data)
	}

	w = doJSON(t, router, http.MethodDelete, "/webhooks/"+id, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete webhook = %d, want 204", w.Code)
	}

	w = doJSON(t, router, http.MethodDelete, "/webhooks/"+id, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("delete again = %d, want 404", w.Code)
	}
}

func TestWebhookValidation(t *testing.T) {
	_, router := testEnv(t, "")

	cases := []struct {
		name string
		body map[string]any
	}{
		{"bad scheme", map[string]any{"url": "ftp://example.com", "secret": "topsecret1"}},
		{"missing secret", map[string]any{"url": "https://example.com/hook"}},
		{"short secret", map[string]any{"url": "https://example.com/hook", "secret": "short"}},
		{"unknown event", map[string]any{"url": "https://example.com/hook", "secret": "topsecret1", "events": []string{"resource.archived"}}},
	}
	for _, tc := range cases {
		w := doJSON(t, router, http.MethodPost, "/webhooks", tc.body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", tc.name, w.Code)
		}
	}
}
