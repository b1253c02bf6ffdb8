package cache

import (
	"context"
	"time"

	"tokopos/backend/internal/domain"
)

// SearchCache holds product search results per normalized query. Keys
// include the query, so overlapping searches never overwrite each
// other's entries. Invalidate drops every search entry after a
// catalog write.
type SearchCache interface {
	Get(ctx context.Context, query string) ([]domain.Product, bool, error)
	Set(ctx context.Context, query string, products []domain.Product, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopSearchCache struct{}

func (NoopSearchCache) Get(_ context.Context, _ string) ([]domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopSearchCache) Set(_ context.Context, _ string, _ []domain.Product, _ time.Duration) error {
	return nil
}

func (NoopSearchCache) Invalidate(_ context.Context) error {
	return nil
}
