package resourceservice

import "context"

// Batch size cap; larger requests are rejected at the API boundary.
const MaxBatchItems = 100

// BatchItem is one entry in a batch update request.
type BatchItem struct {
	ID string `json:"id"`
	Payload
}

// BatchError reports a single failed batch member.
type BatchError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchSummary counts batch outcomes.
type BatchSummary struct {
	Created int `json:"created,omitempty"`
	Updated int `json:"updated,omitempty"`
	Deleted int `json:"deleted,omitempty"`
	Failed  int `json:"failed"`
}

// BatchResult is the partial-failure report for a batch operation. The batch
// as a whole always succeeds; failed members are listed in Errors.
type BatchResult struct {
	Summary BatchSummary `json:"summary"`
	Errors  []BatchError `json:"errors"`
	// Data holds the resources touched by create/update operations,
	// in request order, skipping failed members.
	Data []any `json:"data,omitempty"`
}

// BatchCreate creates each item independently. Failed members carry an
// empty id since ids are assigned only on success.
func (s *Service) BatchCreate(ctx context.Context, items []Payload) *BatchResult {
	res := &BatchResult{Errors: []BatchError{}}
	for _, p := range items {
		r, err := s.Create(ctx, p)
		if err != nil {
			res.Summary.Failed++
			res.Errors = append(res.Errors, BatchError{Error: err.Error()})
			continue
		}
		res.Summary.Created++
		res.Data = append(res.Data, r)
	}
	return res
}

// BatchUpdate fully replaces each named resource independently.
func (s *Service) BatchUpdate(ctx context.Context, items []BatchItem) *BatchResult {
	res := &BatchResult{Errors: []BatchError{}}
	for _, it := range items {
		r, err := s.Update(ctx, it.ID, it.Payload)
		if err != nil {
			res.Summary.Failed++
			res.Errors = append(res.Errors, BatchError{ID: it.ID, Error: err.Error()})
			continue
		}
		res.Summary.Updated++
		res.Data = append(res.Data, r)
	}
	return res
}

// BatchDelete deletes each id independently.
func (s *Service) BatchDelete(ctx context.Context, ids []string) *BatchResult {
	res := &BatchResult{Errors: []BatchError{}}
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			res.Summary.Failed++
			res.Errors = append(res.Errors, BatchError{ID: id, Error: err.Error()})
			continue
		}
		res.Summary.Deleted++
	}
	return res
}
