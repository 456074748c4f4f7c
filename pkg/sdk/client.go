package searchidx

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	dombatch "github.com/kailas-cloud/searchidx/internal/domain/batch"
	"github.com/kailas-cloud/searchidx/internal/domain/document"
	domindex "github.com/kailas-cloud/searchidx/internal/domain/index"
	"github.com/kailas-cloud/searchidx/internal/domain/search/request"
	"github.com/kailas-cloud/searchidx/internal/domain/search/result"
	"github.com/kailas-cloud/searchidx/internal/logger"
	"github.com/kailas-cloud/searchidx/internal/metrics"
	"github.com/kailas-cloud/searchidx/internal/retry"
	"github.com/kailas-cloud/searchidx/internal/transport/rest"
	batchuc "github.com/kailas-cloud/searchidx/internal/usecase/batch"
	indexuc "github.com/kailas-cloud/searchidx/internal/usecase/index"
)

// OpIndexDocuments labels chunked ingestion in logs and metrics.
const OpIndexDocuments = "index_documents"

// Внутренние интерфейсы для подмены в тестах.
type indexUseCase interface {
	Index() string
	Exists(ctx context.Context) (bool, error)
	Get(ctx context.Context) (domindex.Definition, error)
	Create(ctx context.Context, def domindex.Definition) error
	CreateOrUpdate(ctx context.Context, def domindex.Definition) error
	Delete(ctx context.Context) (bool, error)
	IndexBatch(ctx context.Context, ops []dombatch.Operation) (dombatch.Result, error)
	Search(ctx context.Context, term string, opts request.Search) (result.Search, error)
	Suggest(ctx context.Context, term, suggester string, opts request.Suggest) (result.Suggest, error)
	Lookup(ctx context.Context, key string) (document.Document, error)
	Count(ctx context.Context) (int64, error)
}

type batchUseCase interface {
	Index(ctx context.Context, ops []dombatch.Operation) (dombatch.Result, error)
}

// Client is bound to one service endpoint and one index. It holds no
// mutable state and is safe for concurrent use.
type Client struct {
	endpoint string
	svc      indexUseCase
	batchSvc batchUseCase
	log      *zap.Logger
	obs      *observer
}

// New creates a Client for index on service. service is either a bare
// service name (expanded to https://{name}.search.windows.net) or a full
// http(s) endpoint URL.
func New(service, index, apiKey string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{apiVersion: rest.DefaultAPIVersion, apiKey: apiKey}
	for _, o := range opts {
		o.apply(cfg)
	}

	builder, err := rest.NewBuilder(service, index, cfg.apiVersion)
	if err != nil {
		return nil, fmt.Errorf("searchidx: %w", err)
	}

	if cfg.metricsReg != nil {
		if err := metrics.RegisterClientMetrics(cfg.metricsReg); err != nil {
			return nil, fmt.Errorf("searchidx: %w", err)
		}
	}
	obs, err := newObserver(cfg.logger, cfg.metricsReg, index)
	if err != nil {
		return nil, err
	}

	return wireClient(builder, cfg, obs), nil
}

func wireClient(builder *rest.Builder, cfg *clientConfig, obs *observer) *Client {
	tr := cfg.transport
	if tr == nil {
		tr = rest.NewHTTPTransport(cfg.httpClient)
	}
	policy := retry.Policy{
		MaxAttempts: cfg.maxAttempts,
		BaseDelay:   cfg.baseDelay,
		Sleeper:     cfg.sleeper,
	}
	svc := indexuc.New(builder, tr, policy, cfg.apiKey)
	batchSvc := batchuc.New(svc).
		WithMaxBatchSize(cfg.maxBatchSize).
		WithConcurrency(cfg.batchConcurrency)

	var log *zap.Logger
	if cfg.zapLogger != nil {
		log = logger.ForIndex(cfg.zapLogger, builder.Endpoint(), builder.Index())
	}

	return &Client{
		endpoint: builder.Endpoint(),
		svc:      svc,
		batchSvc: batchSvc,
		log:      log,
		obs:      obs,
	}
}

// Endpoint returns the resolved service root URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Index returns the bound index name.
func (c *Client) Index() string { return c.svc.Index() }

// withLogger attaches the configured zap logger unless the caller already did.
func (c *Client) withLogger(ctx context.Context) context.Context {
	if c.log == nil || logger.HasLogger(ctx) {
		return ctx
	}
	return logger.ContextWithLogger(ctx, c.log)
}

// Exists reports whether the index exists. A 404 yields false, not an error.
func (c *Client) Exists(ctx context.Context) (ok bool, err error) {
	start := time.Now()
	defer func() { c.obs.observe(rest.OpExists, start, err) }()

	return c.svc.Exists(c.withLogger(ctx))
}

// Get fetches the index definition. Returns ErrNotFound if the index is absent.
func (c *Client) Get(ctx context.Context) (def Definition, err error) {
	start := time.Now()
	defer func() { c.obs.observe(rest.OpGet, start, err) }()

	return c.svc.Get(c.withLogger(ctx))
}

// Create creates the index. An unnamed definition takes the client's index name.
// Creating an existing index fails with a ServiceError (typically 409).
func (c *Client) Create(ctx context.Context, def Definition) (err error) {
	start := time.Now()
	defer func() { c.obs.observe(rest.OpCreate, start, err) }()

	return c.svc.Create(c.withLogger(ctx), def)
}

// CreateOrUpdate creates the index or replaces its definition.
func (c *Client) CreateOrUpdate(ctx context.Context, def Definition) (err error) {
	start := time.Now()
	defer func() { c.obs.observe(rest.OpCreateOrUpdate, start, err) }()

	return c.svc.CreateOrUpdate(c.withLogger(ctx), def)
}

// Delete deletes the index. Returns false when it did not exist.
func (c *Client) Delete(ctx context.Context) (deleted bool, err error) {
	start := time.Now()
	defer func() { c.obs.observe(rest.OpDelete, start, err) }()

	return c.svc.Delete(c.withLogger(ctx))
}

// IndexBatch sends ops as a single request. The service accepts at most 1000
// operations per request; use IndexDocuments for larger inputs.
// A 207 status is not an error: inspect BatchResult.Failed().
func (c *Client) IndexBatch(ctx context.Context, ops []Operation) (res BatchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe(rest.OpIndex, start, err) }()

	return c.svc.IndexBatch(c.withLogger(ctx), ops)
}

// IndexDocuments splits ops into service-sized batches, sends them
// concurrently and merges the item results in input order.
func (c *Client) IndexDocuments(ctx context.Context, ops []Operation) (res BatchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe(OpIndexDocuments, start, err) }()

	return c.batchSvc.Index(c.withLogger(ctx), ops)
}

// Search runs a full-text query. An empty term matches all documents.
func (c *Client) Search(ctx context.Context, term string, opts ...SearchOption) (res SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe(rest.OpSearch, start, err) }()

	return c.svc.Search(c.withLogger(ctx), term, request.NewSearch(opts...))
}

// Suggest runs a type-ahead query against the named suggester.
func (c *Client) Suggest(
	ctx context.Context, term, suggester string, opts ...SuggestOption,
) (res SuggestResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe(rest.OpSuggest, start, err) }()

	return c.svc.Suggest(c.withLogger(ctx), term, suggester, request.NewSuggest(opts...))
}

// Lookup fetches one document by key. Returns ErrNotFound when absent.
func (c *Client) Lookup(ctx context.Context, key string) (doc Document, err error) {
	start := time.Now()
	defer func() { c.obs.observe(rest.OpLookup, start, err) }()

	return c.svc.Lookup(c.withLogger(ctx), key)
}

// Count returns the number of documents in the index.
func (c *Client) Count(ctx context.Context) (n int64, err error) {
	start := time.Now()
	defer func() { c.obs.observe(rest.OpCount, start, err) }()

	return c.svc.Count(c.withLogger(ctx))
}

// DefaultHTTPClient returns the client used when WithHTTPClient is not given.
func DefaultHTTPClient() *http.Client { return &http.Client{Timeout: rest.DefaultTimeout} }
