package resourceservice

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/meridianhq/meridian/internal/apperr"
	"github.com/meridianhq/meridian/internal/models"
	"github.com/meridianhq/meridian/internal/store"
)

// recorder captures published events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) Publish(evt models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func testService(t *testing.T) (*Service, *recorder) {
	t.Helper()
	dbFile, err := os.CreateTemp("", "meridian-svc-test-*.db")
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

	rec := &recorder{}
	return NewService(st, nil, rec), rec
}

func TestCreateAssignsIDAndDefaults(t *testing.T) {
	svc, rec := testService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, Payload{Name: "thing"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.ID == "" {
		t.Error("id not assigned")
	}
	if r.Status != models.StatusActive {
		t.Errorf("status = %q, want active", r.Status)
	}
	if r.CreatedAt.IsZero() || !r.CreatedAt.Equal(r.UpdatedAt) {
		t.Errorf("timestamps = %v / %v", r.CreatedAt, r.UpdatedAt)
	}

	got, err := svc.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != r.ID || got.Name != "thing" {
		t.Errorf("roundtrip = %+v", got)
	}

	if types := rec.types(); len(types) != 1 || types[0] != models.EventResourceCreated {
		t.Errorf("events = %v", types)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := testService(t)

	_, err := svc.Create(context.Background(), Payload{Name: "", Status: "archived"})
	if err == nil {
		t.Fatal("invalid payload should fail")
	}
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %T, want *apperr.ValidationError", err)
	}
	if len(verr.Fields) < 2 {
		t.Errorf("fields = %+v, want name and status", verr.Fields)
	}
	if !errors.Is(err, apperr.ErrValidation) {
		t.Error("validation error should match ErrValidation sentinel")
	}
}

func TestCreateDedupesTags(t *testing.T) {
	svc, _ := testService(t)

	r, err := svc.Create(context.Background(), Payload{Name: "tagged", Tags: []string{"a", "b", "a"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Tags) != 2 || r.Tags[0] != "a" || r.Tags[1] != "b" {
		t.Errorf("tags = %v, want deduped [a b]", r.Tags)
	}
}

func TestUpdatePreservesCreatedAt(t *testing.T) {
	svc, rec := testService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, Payload{Name: "v1"})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.Update(ctx, r.ID, Payload{Name: "v2", Status: models.StatusInactive})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.CreatedAt.Equal(r.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", r.CreatedAt, updated.CreatedAt)
	}
	if updated.Name != "v2" || updated.Status != models.StatusInactive {
		t.Errorf("updated = %+v", updated)
	}

	types := rec.types()
	if len(types) != 2 || types[1] != models.EventResourceUpdated {
		t.Errorf("events = %v", types)
	}
}

func TestPatchAppliesOnlySetFields(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, Payload{
		Name:        "original",
		Description: "keep",
		Tags:        []string{"x"},
		Metadata:    map[string]any{"a": "1", "b": "2"},
	})
	if err != nil {
		t.Fatal(err)
	}

	status := models.StatusInactive
	patched, err := svc.Patch(ctx, r.ID, PatchPayload{Status: &status})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if patched.Status != models.StatusInactive {
		t.Errorf("status = %q", patched.Status)
	}
	if patched.Name != "original" || patched.Description != "keep" || len(patched.Tags) != 1 {
		t.Errorf("patch clobbered fields: %+v", patched)
	}
}

func TestPatchReplacesMetadataWholesale(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, Payload{Name: "m", Metadata: map[string]any{"a": "1", "b": "2"}})
	if err != nil {
		t.Fatal(err)
	}

	patched, err := svc.Patch(ctx, r.ID, PatchPayload{Metadata: map[string]any{"c": "3"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(patched.Metadata) != 1 || patched.Metadata["c"] != "3" {
		t.Errorf("metadata = %v, want replaced wholesale", patched.Metadata)
	}
}

func TestDeletePublishesEvent(t *testing.T) {
	svc, rec := testService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, Payload{Name: "gone"})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, r.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, r.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after delete = %v, want ErrNotFound", err)
	}

	types := rec.types()
	if len(types) != 2 || types[1] != models.EventResourceDeleted {
		t.Errorf("events = %v", types)
	}
}

func TestListPaginationEnvelope(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	for i := 0; i < 45; i++ {
		if _, err := svc.Create(ctx, Payload{Name: "n"}); err != nil {
			t.Fatal(err)
		}
	}

	items, p, err := svc.List(ctx, store.Filter{}, "created_at", false, 2, 20)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 20 {
		t.Errorf("len = %d, want 20", len(items))
	}
	if p.Total != 45 || p.TotalPages != 3 || !p.HasNext || !p.HasPrev {
		t.Errorf("pagination = %+v", p)
	}

	// Page and limit are normalized.
	_, p, err = svc.List(ctx, store.Filter{}, "created_at", false, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if p.CurrentPage != 1 || p.PerPage != 20 {
		t.Errorf("normalized pagination = %+v", p)
	}
}

func TestBatchDeleteReportsPartialFailure(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, Payload{Name: "a"})
	b, _ := svc.Create(ctx, Payload{Name: "b"})

	res := svc.BatchDelete(ctx, []string{a.ID, b.ID, "missing"})
	if res.Summary.Deleted != 2 || res.Summary.Failed != 1 {
		t.Errorf("summary = %+v", res.Summary)
	}
	if len(res.Errors) != 1 || res.Errors[0].ID != "missing" {
		t.Errorf("errors = %+v", res.Errors)
	}
}

func TestBatchCreateMixedValidity(t *testing.T) {
	svc, _ := testService(t)

	res := svc.BatchCreate(context.Background(), []Payload{
		{Name: "ok-1"},
		{Name: ""},
		{Name: "ok-2"},
	})
	if res.Summary.Created != 2 || res.Summary.Failed != 1 {
		t.Errorf("summary = %+v", res.Summary)
	}
	if len(res.Data) != 2 {
		t.Errorf("len(data) = %d, want 2", len(res.Data))
	}
}
