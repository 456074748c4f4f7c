package searchidx

import (
	"context"
	"errors"

	dombatch "github.com/kailas-cloud/searchidx/internal/domain/batch"
	"github.com/kailas-cloud/searchidx/internal/domain/document"
	domindex "github.com/kailas-cloud/searchidx/internal/domain/index"
	"github.com/kailas-cloud/searchidx/internal/domain/search/request"
	"github.com/kailas-cloud/searchidx/internal/domain/search/result"
)

var errUnexpected = errors.New("unexpected call")

// --- indexUseCase mock ---

type mockIndexUC struct {
	existsFn         func(ctx context.Context) (bool, error)
	getFn            func(ctx context.Context) (domindex.Definition, error)
	createFn         func(ctx context.Context, def domindex.Definition) error
	createOrUpdateFn func(ctx context.Context, def domindex.Definition) error
	deleteFn         func(ctx context.Context) (bool, error)
	indexBatchFn     func(ctx context.Context, ops []dombatch.Operation) (dombatch.Result, error)
	searchFn         func(ctx context.Context, term string, opts request.Search) (result.Search, error)
	suggestFn        func(ctx context.Context, term, suggester string, opts request.Suggest) (result.Suggest, error)
	lookupFn         func(ctx context.Context, key string) (document.Document, error)
	countFn          func(ctx context.Context) (int64, error)
}

func (m *mockIndexUC) Index() string { return "hotels" }

func (m *mockIndexUC) Exists(ctx context.Context) (bool, error) {
	if m.existsFn == nil {
		return false, errUnexpected
	}
	return m.existsFn(ctx)
}

func (m *mockIndexUC) Get(ctx context.Context) (domindex.Definition, error) {
	if m.getFn == nil {
		return domindex.Definition{}, errUnexpected
	}
	return m.getFn(ctx)
}

func (m *mockIndexUC) Create(ctx context.Context, def domindex.Definition) error {
	if m.createFn == nil {
		return errUnexpected
	}
	return m.createFn(ctx, def)
}

func (m *mockIndexUC) CreateOrUpdate(ctx context.Context, def domindex.Definition) error {
	if m.createOrUpdateFn == nil {
		return errUnexpected
	}
	return m.createOrUpdateFn(ctx, def)
}

func (m *mockIndexUC) Delete(ctx context.Context) (bool, error) {
	if m.deleteFn == nil {
		return false, errUnexpected
	}
	return m.deleteFn(ctx)
}

func (m *mockIndexUC) IndexBatch(ctx context.Context, ops []dombatch.Operation) (dombatch.Result, error) {
	if m.indexBatchFn == nil {
		return dombatch.Result{}, errUnexpected
	}
	return m.indexBatchFn(ctx, ops)
}

func (m *mockIndexUC) Search(ctx context.Context, term string, opts request.Search) (result.Search, error) {
	if m.searchFn == nil {
		return result.Search{}, errUnexpected
	}
	return m.searchFn(ctx, term, opts)
}

func (m *mockIndexUC) Suggest(
	ctx context.Context, term, suggester string, opts request.Suggest,
) (result.Suggest, error) {
	if m.suggestFn == nil {
		return result.Suggest{}, errUnexpected
	}
	return m.suggestFn(ctx, term, suggester, opts)
}

func (m *mockIndexUC) Lookup(ctx context.Context, key string) (document.Document, error) {
	if m.lookupFn == nil {
		return document.Document{}, errUnexpected
	}
	return m.lookupFn(ctx, key)
}

func (m *mockIndexUC) Count(ctx context.Context) (int64, error) {
	if m.countFn == nil {
		return 0, errUnexpected
	}
	return m.countFn(ctx)
}

// --- batchUseCase mock ---

type mockBatchUC struct {
	indexFn func(ctx context.Context, ops []dombatch.Operation) (dombatch.Result, error)
}

func (m *mockBatchUC) Index(ctx context.Context, ops []dombatch.Operation) (dombatch.Result, error) {
	return m.indexFn(ctx, ops)
}

// --- helpers ---

func testClient(svc indexUseCase, batchSvc batchUseCase) *Client {
	if batchSvc == nil {
		batchSvc = &mockBatchUC{indexFn: svc.IndexBatch}
	}
	return &Client{endpoint: "https://svc.search.windows.net", svc: svc, batchSvc: batchSvc}
}
