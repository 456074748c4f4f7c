package batch

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	dombatch "github.com/kailas-cloud/searchidx/internal/domain/batch"
	"github.com/kailas-cloud/searchidx/internal/logger"
)

// MaxBatchSize is the service's per-request operation limit.
const MaxBatchSize = 1000

// DefaultConcurrency is the number of batches in flight at once.
const DefaultConcurrency = 4

// Service splits large operation lists into service-sized batches and submits
// them concurrently.
type Service struct {
	indexer      Indexer
	maxBatchSize int
	concurrency  int
}

// New creates a batch service.
func New(indexer Indexer) *Service {
	return &Service{indexer: indexer, maxBatchSize: MaxBatchSize, concurrency: DefaultConcurrency}
}

// WithMaxBatchSize configures the chunk size. Values outside 1..MaxBatchSize are ignored.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 && size <= MaxBatchSize {
		s.maxBatchSize = size
	}
	return s
}

// WithConcurrency configures how many chunks are in flight.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// Index submits ops in chunks and merges the per-item outcomes in input order.
// The merged status is 200 when every chunk returned 200 and 207 otherwise.
// The first chunk error cancels the chunks still in flight and is returned.
func (s *Service) Index(ctx context.Context, ops []dombatch.Operation) (dombatch.Result, error) {
	if len(ops) == 0 {
		return dombatch.NewResult(http.StatusOK, nil), nil
	}
	chunks := split(ops, s.maxBatchSize)
	if len(chunks) == 1 {
		res, err := s.indexer.IndexBatch(ctx, chunks[0])
		if err != nil {
			return dombatch.Result{}, fmt.Errorf("index chunk 1/1: %w", err)
		}
		return res, nil
	}

	logger.FromContext(ctx).Debug("indexing in chunks",
		zap.Int("operations", len(ops)),
		zap.Int("chunks", len(chunks)),
		zap.Int("concurrency", s.concurrency),
	)

	results := make([]dombatch.Result, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			res, err := s.indexer.IndexBatch(gctx, chunk)
			if err != nil {
				return fmt.Errorf("index chunk %d/%d: %w", i+1, len(chunks), err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return dombatch.Result{}, err //nolint:wrapcheck // chunk errors are already wrapped
	}

	status := http.StatusOK
	items := make([]dombatch.ItemResult, 0, len(ops))
	for _, r := range results {
		if r.Status() != http.StatusOK {
			status = http.StatusMultiStatus
		}
		items = append(items, r.Items()...)
	}
	return dombatch.NewResult(status, items), nil
}

func split(ops []dombatch.Operation, size int) [][]dombatch.Operation {
	chunks := make([][]dombatch.Operation, 0, (len(ops)+size-1)/size)
	for start := 0; start < len(ops); start += size {
		end := min(start+size, len(ops))
		chunks = append(chunks, ops[start:end])
	}
	return chunks
}
