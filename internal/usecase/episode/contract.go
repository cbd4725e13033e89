package episode

import (
	"context"

	"github.com/clique-kr/episodes/internal/domain"
)

// IndexReader reads the published index list.
type IndexReader interface {
	Get(ctx context.Context) (domain.IndexList, error)
}

// CollectionCounter counts documents in the index collection. Used by the
// submit path as a read-only store probe.
type CollectionCounter interface {
	Count(ctx context.Context) (int, error)
}
