package searchidx

import (
	dombatch "github.com/kailas-cloud/searchidx/internal/domain/batch"
	"github.com/kailas-cloud/searchidx/internal/domain/document"
	domindex "github.com/kailas-cloud/searchidx/internal/domain/index"
	"github.com/kailas-cloud/searchidx/internal/domain/search/filter"
	"github.com/kailas-cloud/searchidx/internal/domain/search/request"
	"github.com/kailas-cloud/searchidx/internal/domain/search/result"
	"github.com/kailas-cloud/searchidx/internal/transport/rest"
)

// Index definition types.
type (
	// Definition is an index schema: name, fields and suggesters.
	Definition = domindex.Definition
	// Field is one index field.
	Field = domindex.Field
	// FieldType is the EDM type of a field.
	FieldType = domindex.Type
	// FieldOption sets a capability flag on a field.
	FieldOption = domindex.FieldOption
	// Suggester is a named type-ahead configuration.
	Suggester = domindex.Suggester
)

// Field type constants.
const (
	TypeString            = domindex.TypeString
	TypeStringCollection  = domindex.TypeStringCollection
	TypeInt32             = domindex.TypeInt32
	TypeDouble            = domindex.TypeDouble
	TypeBoolean           = domindex.TypeBoolean
	TypeDateTimeOffset    = domindex.TypeDateTimeOffset
	TypeComplex           = domindex.TypeComplex
	TypeComplexCollection = domindex.TypeComplexCollection
)

// NewDefinition creates an index definition. An empty name is replaced by the
// client's index name on Create and CreateOrUpdate.
func NewDefinition(name string, fields []Field, suggesters []Suggester) Definition {
	return domindex.NewDefinition(name, fields, suggesters)
}

// NewField creates a simple field.
func NewField(name string, t FieldType, opts ...FieldOption) Field {
	return domindex.NewField(name, t, opts...)
}

// NewComplexField creates a field holding nested fields.
func NewComplexField(name string, collection bool, fields ...Field) Field {
	return domindex.NewComplexField(name, collection, fields...)
}

// NewSuggester creates an analyzingInfixMatching suggester.
func NewSuggester(name string, sourceFields ...string) Suggester {
	return domindex.NewSuggester(name, sourceFields...)
}

// Key marks the document key field.
func Key() FieldOption { return domindex.Key() }

// Searchable enables full-text search on the field.
func Searchable() FieldOption { return domindex.Searchable() }

// Filterable allows the field in $filter.
func Filterable() FieldOption { return domindex.Filterable() }

// Sortable allows the field in $orderby.
func Sortable() FieldOption { return domindex.Sortable() }

// Facetable allows facet requests on the field.
func Facetable() FieldOption { return domindex.Facetable() }

// Hidden excludes the field from returned documents.
func Hidden() FieldOption { return domindex.Hidden() }

// WithAnalyzer sets the field's analyzer.
func WithAnalyzer(name string) FieldOption { return domindex.WithAnalyzer(name) }

// Document types.
type (
	// Document is an ordered, untyped key/value document.
	Document = document.Document
	// DocumentField is one key/value pair of a Document.
	DocumentField = document.Field
)

// NewDocument creates a document from ordered pairs.
func NewDocument(fields ...DocumentField) Document { return document.New(fields...) }

// Pair is shorthand for a DocumentField.
func Pair(key string, value any) DocumentField { return document.Field{Key: key, Value: value} }

// DocumentFromMap creates a document with keys in sorted order.
func DocumentFromMap(m map[string]any) Document { return document.FromMap(m) }

// Batch types.
type (
	// Operation is one indexing action: Upload, Merge, MergeOrUpload or Delete.
	Operation = dombatch.Operation
	// BatchResult is the outcome of an indexing batch; status 207 means partial success.
	BatchResult = dombatch.Result
	// ItemResult is the outcome of one operation of a batch.
	ItemResult = dombatch.ItemResult
)

// Upload inserts or replaces a document.
func Upload(doc Document) Operation { return dombatch.NewUpload(doc) }

// Merge updates fields of an existing document.
func Merge(doc Document) Operation { return dombatch.NewMerge(doc) }

// MergeOrUpload merges into an existing document or uploads a new one.
func MergeOrUpload(doc Document) Operation { return dombatch.NewMergeOrUpload(doc) }

// Delete removes the document whose keyField equals keyValue.
func Delete(keyField, keyValue string) Operation { return dombatch.NewDelete(keyField, keyValue) }

// Query option types.
type (
	// SearchOption configures a search query.
	SearchOption = request.SearchOption
	// SuggestOption configures a suggest query.
	SuggestOption = request.SuggestOption
	// CommonOption applies to both search and suggest queries.
	CommonOption = request.CommonOption
)

// WithFilter sets the OData $filter expression.
func WithFilter(expr string) CommonOption { return request.WithFilter(expr) }

// WithFilterExpression sets $filter from a structured expression.
func WithFilterExpression(e FilterExpression) CommonOption { return request.WithFilter(e.String()) }

// WithOrderBy sets $orderby clauses.
func WithOrderBy(clauses ...string) CommonOption { return request.WithOrderBy(clauses...) }

// WithSelect restricts the returned fields.
func WithSelect(fields ...string) CommonOption { return request.WithSelect(fields...) }

// WithSearchFields restricts the fields searched.
func WithSearchFields(fields ...string) CommonOption { return request.WithSearchFields(fields...) }

// WithHighlightTags sets the highlight pre and post tags.
func WithHighlightTags(pre, post string) CommonOption { return request.WithHighlightTags(pre, post) }

// WithTop limits the number of hits.
func WithTop(n int) CommonOption { return request.WithTop(n) }

// WithMinimumCoverage sets the minimum index coverage percentage.
func WithMinimumCoverage(pct float64) CommonOption { return request.WithMinimumCoverage(pct) }

// WithCount requests the total match count.
func WithCount() SearchOption { return request.WithCount() }

// WithFacets requests facets, e.g. "rating" or "price,values:10|20".
func WithFacets(facets ...string) SearchOption { return request.WithFacets(facets...) }

// WithHighlight requests highlights for the given fields.
func WithHighlight(fields ...string) SearchOption { return request.WithHighlight(fields...) }

// WithScoringProfile selects a scoring profile.
func WithScoringProfile(name string) SearchOption { return request.WithScoringProfile(name) }

// WithScoringParameters passes "name-value" scoring parameters.
func WithScoringParameters(params ...string) SearchOption {
	return request.WithScoringParameters(params...)
}

// WithSkip skips the first n hits.
func WithSkip(n int) SearchOption { return request.WithSkip(n) }

// RequireAllTerms switches the search mode to "all".
func RequireAllTerms() SearchOption { return request.RequireAllTerms() }

// WithFuzzy enables fuzzy suggest matching.
func WithFuzzy() SuggestOption { return request.WithFuzzy() }

// Filter builder types.
type (
	// FilterExpression combines conditions into must, should and must-not groups.
	FilterExpression = filter.Expression
	// FilterCondition is one equality or range clause.
	FilterCondition = filter.Condition
	// FilterRange holds numeric range bounds.
	FilterRange = filter.Range
)

// NewFilter builds a filter expression. At most 32 conditions per group.
func NewFilter(must, should, mustNot []FilterCondition) (FilterExpression, error) {
	return filter.NewExpression(must, should, mustNot)
}

// Eq creates an equality condition; string values are quoted and escaped.
func Eq(key string, value any) (FilterCondition, error) { return filter.NewMatch(key, value) }

// InRange creates a numeric range condition. Nil bounds are open.
func InRange(key string, gt, gte, lt, lte *float64) (FilterCondition, error) {
	r, err := filter.NewRangeFilter(gt, gte, lt, lte)
	if err != nil {
		return FilterCondition{}, err
	}
	return filter.NewRange(key, r)
}

// Result types.
type (
	// SearchResult is a page of search hits with optional count, coverage and facets.
	SearchResult = result.Search
	// Hit is one search hit.
	Hit = result.Hit
	// FacetValue is one facet bucket.
	FacetValue = result.FacetValue
	// SuggestResult is the list of suggestions.
	SuggestResult = result.Suggest
	// SuggestHit is one suggestion.
	SuggestHit = result.SuggestHit
)

// Transport types for WithTransport.
type (
	// Transport performs one HTTP exchange.
	Transport = rest.Transport
	// TransportFunc adapts a function to Transport.
	TransportFunc = rest.TransportFunc
	// Request is an outbound HTTP request.
	Request = rest.Request
	// Response is a raw HTTP response.
	Response = rest.Response
)
