// Package cache provides an optional read-through cache for single-resource
// lookups. When Redis is not configured the no-op implementation is used and
// every read goes to the store.
package cache

import (
	"context"

	"github.com/meridianhq/meridian/internal/models"
)

// Cache stores recently read resources keyed by id. Implementations must be
// safe for concurrent use. Misses and backend failures are both reported as
// a plain false; the caller always has the store as the source of truth.
type Cache interface {
	Get(ctx context.Context, id string) (*models.Resource, bool)
	Set(ctx context.Context, r *models.Resource)
	Delete(ctx context.Context, id string)
}

type noop struct{}

// Noop returns a cache that never hits.
func Noop() Cache { return noop{} }

func (noop) Get(context.Context, string) (*models.Resource, bool) { return nil, false }
func (noop) Set(context.Context, *models.Resource)                {}
func (noop) Delete(context.Context, string)                       {}
