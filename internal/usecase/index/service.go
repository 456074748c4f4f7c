package index

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kailas-cloud/searchidx/internal/domain"
	dombatch "github.com/kailas-cloud/searchidx/internal/domain/batch"
	"github.com/kailas-cloud/searchidx/internal/domain/document"
	domindex "github.com/kailas-cloud/searchidx/internal/domain/index"
	"github.com/kailas-cloud/searchidx/internal/domain/search/request"
	"github.com/kailas-cloud/searchidx/internal/domain/search/result"
	"github.com/kailas-cloud/searchidx/internal/retry"
	"github.com/kailas-cloud/searchidx/internal/shape"
	"github.com/kailas-cloud/searchidx/internal/transport/rest"
)

// Header names sent on every request.
const (
	HeaderAPIKey      = "api-key"
	HeaderContentType = "Content-Type"
	ContentTypeJSON   = "application/json"
)

// Service is the client for one index. It holds only its fixed identity and
// is safe for concurrent use.
type Service struct {
	builder *rest.Builder
	tr      Transport
	retrier Retrier
	apiKey  string
}

// New creates an index service. A nil retrier selects the default retry policy.
func New(builder *rest.Builder, tr Transport, retrier Retrier, apiKey string) *Service {
	if retrier == nil {
		retrier = retry.Policy{}
	}
	return &Service{builder: builder, tr: tr, retrier: retrier, apiKey: apiKey}
}

// Index returns the bound index name.
func (s *Service) Index() string { return s.builder.Index() }

// Exists reports whether the bound index exists. 404 is false, not an error.
func (s *Service) Exists(ctx context.Context) (bool, error) {
	_, err := retry.Once(ctx, s.tr, s.prepare(s.builder.Exists()))
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("index exists: %w", err)
	}
	return true, nil
}

// Get fetches the bound index definition.
func (s *Service) Get(ctx context.Context) (domindex.Definition, error) {
	resp, err := s.retrier.Do(ctx, s.tr, s.prepare(s.builder.Get()))
	if err != nil {
		return domindex.Definition{}, fmt.Errorf("get index: %w", err)
	}
	def, err := shape.Definition(resp.Body)
	if err != nil {
		return domindex.Definition{}, fmt.Errorf("get index: %w", err)
	}
	return def, nil
}

// Create creates an index. An unnamed definition takes the bound index name.
func (s *Service) Create(ctx context.Context, def domindex.Definition) error {
	req, err := s.builder.Create(def)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if _, err := retry.Once(ctx, s.tr, s.prepare(req)); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// CreateOrUpdate creates the index or replaces its definition.
func (s *Service) CreateOrUpdate(ctx context.Context, def domindex.Definition) error {
	req, err := s.builder.CreateOrUpdate(def)
	if err != nil {
		return fmt.Errorf("create or update index: %w", err)
	}
	if _, err := retry.Once(ctx, s.tr, s.prepare(req)); err != nil {
		return fmt.Errorf("create or update index: %w", err)
	}
	return nil
}

// Delete removes the bound index. It returns false when the index was already absent.
func (s *Service) Delete(ctx context.Context) (bool, error) {
	_, err := retry.Once(ctx, s.tr, s.prepare(s.builder.Delete()))
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete index: %w", err)
	}
	return true, nil
}

// IndexBatch submits one batch of operations. A 207 is returned as a result
// with Partial() set, not as an error.
func (s *Service) IndexBatch(ctx context.Context, ops []dombatch.Operation) (dombatch.Result, error) {
	req, err := s.builder.IndexBatch(ops)
	if err != nil {
		return dombatch.Result{}, fmt.Errorf("index batch: %w", err)
	}
	resp, err := s.retrier.Do(ctx, s.tr, s.prepare(req))
	if err != nil {
		return dombatch.Result{}, fmt.Errorf("index batch: %w", err)
	}
	res, err := shape.Batch(resp.StatusCode, resp.Body)
	if err != nil {
		return dombatch.Result{}, fmt.Errorf("index batch: %w", err)
	}
	return res, nil
}

// Search runs a full-text query.
func (s *Service) Search(ctx context.Context, term string, opts request.Search) (result.Search, error) {
	resp, err := s.retrier.Do(ctx, s.tr, s.prepare(s.builder.Search(term, opts)))
	if err != nil {
		return result.Search{}, fmt.Errorf("search: %w", err)
	}
	res, err := shape.Search(resp.Body)
	if err != nil {
		return result.Search{}, fmt.Errorf("search: %w", err)
	}
	return res, nil
}

// Suggest runs a type-ahead query against the named suggester.
func (s *Service) Suggest(ctx context.Context, term, suggester string, opts request.Suggest) (result.Suggest, error) {
	resp, err := s.retrier.Do(ctx, s.tr, s.prepare(s.builder.Suggest(term, suggester, opts)))
	if err != nil {
		return result.Suggest{}, fmt.Errorf("suggest: %w", err)
	}
	res, err := shape.Suggest(resp.Body)
	if err != nil {
		return result.Suggest{}, fmt.Errorf("suggest: %w", err)
	}
	return res, nil
}

// Lookup fetches one document by key. A missing document is domain.ErrNotFound.
func (s *Service) Lookup(ctx context.Context, key string) (document.Document, error) {
	req, err := s.builder.Lookup(key)
	if err != nil {
		return document.Document{}, fmt.Errorf("lookup: %w", err)
	}
	resp, err := s.retrier.Do(ctx, s.tr, s.prepare(req))
	if err != nil {
		return document.Document{}, fmt.Errorf("lookup %q: %w", key, err)
	}
	doc, err := shape.Document(resp.Body)
	if err != nil {
		return document.Document{}, fmt.Errorf("lookup %q: %w", key, err)
	}
	return doc, nil
}

// Count returns the number of documents in the bound index.
func (s *Service) Count(ctx context.Context) (int64, error) {
	resp, err := s.retrier.Do(ctx, s.tr, s.prepare(s.builder.Count()))
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	n, err := shape.Count(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *Service) prepare(req rest.Request) rest.Request {
	h := make(http.Header, 2)
	h.Set(HeaderContentType, ContentTypeJSON)
	h.Set(HeaderAPIKey, s.apiKey)
	req.Header = h
	return req
}
