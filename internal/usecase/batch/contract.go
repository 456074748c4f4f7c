package batch

import (
	"context"

	dombatch "github.com/kailas-cloud/searchidx/internal/domain/batch"
)

// Indexer submits one indexing batch to the service.
type Indexer interface {
	IndexBatch(ctx context.Context, ops []dombatch.Operation) (dombatch.Result, error)
}
