package searchidx

import (
	"context"
	"errors"
	"fmt"
)

// TypedIndex is a generic, schema-first view of the client's index.
// Schema is inferred from T's struct tags at construction time.
//
// Tag syntax: `searchidx:"name,modifier,..."` with modifiers key, searchable,
// filterable, sortable, facetable, hidden, suggest and analyzer=<name>.
// Nested structs (and slices of structs) become complex fields.
type TypedIndex[T any] struct {
	client *Client
	meta   *schemaMeta
}

// TypedHit is a search hit decoded into T.
type TypedHit[T any] struct {
	Item       T
	Score      float64
	Highlights map[string][]string
}

// TypedSearchResult is a page of typed hits. Count is set only when WithCount was given.
type TypedSearchResult[T any] struct {
	Hits     []TypedHit[T]
	Count    *int64
	Coverage *float64
	Facets   map[string][]FacetValue
}

// TypedSuggestion is a suggestion decoded into T.
type TypedSuggestion[T any] struct {
	Text string
	Item T
}

// NewIndex creates a typed handle on the client's index.
// T must be a struct with searchidx tags. Schema is parsed once and cached.
func NewIndex[T any](client *Client) (*TypedIndex[T], error) {
	meta, err := parseSchema[T]()
	if err != nil {
		return nil, fmt.Errorf("new index %q: %w", client.Index(), err)
	}
	return &TypedIndex[T]{client: client, meta: meta}, nil
}

// Definition returns the index definition derived from T.
func (idx *TypedIndex[T]) Definition() Definition {
	return idx.meta.definition(idx.client.Index())
}

// KeyField returns the wire name of the key field.
func (idx *TypedIndex[T]) KeyField() string { return idx.meta.keyName }

// Ensure creates the index if it does not exist (idempotent).
func (idx *TypedIndex[T]) Ensure(ctx context.Context) error {
	ok, err := idx.client.Exists(ctx)
	if err != nil {
		return fmt.Errorf("ensure %q: %w", idx.client.Index(), err)
	}
	if ok {
		return nil
	}
	if err := idx.client.Create(ctx, idx.Definition()); err != nil {
		return fmt.Errorf("ensure %q: %w", idx.client.Index(), err)
	}
	return nil
}

// Upload inserts or replaces items, chunking as needed.
func (idx *TypedIndex[T]) Upload(ctx context.Context, items ...T) (BatchResult, error) {
	return idx.client.IndexDocuments(ctx, idx.operations(items, Upload))
}

// MergeOrUpload merges items into existing documents or uploads them.
func (idx *TypedIndex[T]) MergeOrUpload(ctx context.Context, items ...T) (BatchResult, error) {
	return idx.client.IndexDocuments(ctx, idx.operations(items, MergeOrUpload))
}

// Delete removes documents by key.
func (idx *TypedIndex[T]) Delete(ctx context.Context, keys ...string) (BatchResult, error) {
	ops := make([]Operation, len(keys))
	for i, k := range keys {
		ops[i] = Delete(idx.meta.keyName, k)
	}
	return idx.client.IndexDocuments(ctx, ops)
}

func (idx *TypedIndex[T]) operations(items []T, op func(Document) Operation) []Operation {
	ops := make([]Operation, len(items))
	for i, item := range items {
		ops[i] = op(idx.meta.toDocument(item))
	}
	return ops
}

// Lookup retrieves a typed item by key.
func (idx *TypedIndex[T]) Lookup(ctx context.Context, key string) (T, error) {
	var zero T
	doc, err := idx.client.Lookup(ctx, key)
	if err != nil {
		return zero, err
	}
	item, err := idx.decode(doc)
	if err != nil {
		return zero, fmt.Errorf("lookup %q: %w", key, err)
	}
	return item, nil
}

// Count returns the number of documents in the index.
func (idx *TypedIndex[T]) Count(ctx context.Context) (int64, error) {
	return idx.client.Count(ctx)
}

// Search runs a query and decodes every hit into T.
func (idx *TypedIndex[T]) Search(
	ctx context.Context, term string, opts ...SearchOption,
) (TypedSearchResult[T], error) {
	res, err := idx.client.Search(ctx, term, opts...)
	if err != nil {
		return TypedSearchResult[T]{}, err
	}

	out := TypedSearchResult[T]{
		Hits:   make([]TypedHit[T], 0, res.Len()),
		Facets: res.Facets(),
	}
	if n, ok := res.Count(); ok {
		out.Count = &n
	}
	if c, ok := res.Coverage(); ok {
		out.Coverage = &c
	}
	for i, h := range res.Hits() {
		item, err := idx.decode(h.Document())
		if err != nil {
			return TypedSearchResult[T]{}, fmt.Errorf("search: hit %d: %w", i, err)
		}
		out.Hits = append(out.Hits, TypedHit[T]{Item: item, Score: h.Score(), Highlights: h.Highlights()})
	}
	return out, nil
}

// Suggest queries the suggester built from fields tagged "suggest".
func (idx *TypedIndex[T]) Suggest(
	ctx context.Context, term string, opts ...SuggestOption,
) ([]TypedSuggestion[T], error) {
	if len(idx.meta.suggest) == 0 {
		return nil, errors.New("suggest: no field is tagged \"suggest\"")
	}
	res, err := idx.client.Suggest(ctx, term, DefaultSuggester, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]TypedSuggestion[T], 0, len(res.Hits()))
	for i, h := range res.Hits() {
		item, err := idx.decode(h.Document())
		if err != nil {
			return nil, fmt.Errorf("suggest: hit %d: %w", i, err)
		}
		out = append(out, TypedSuggestion[T]{Text: h.Text(), Item: item})
	}
	return out, nil
}

func (idx *TypedIndex[T]) decode(doc Document) (T, error) {
	var zero T
	v, err := idx.meta.fromDocument(doc)
	if err != nil {
		return zero, err
	}
	item, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("type assertion failed")
	}
	return item, nil
}
