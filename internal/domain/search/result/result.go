package result

import "github.com/kailas-cloud/searchidx/internal/domain/document"

// Hit is a single search hit.
type Hit struct {
	document   document.Document
	score      float64
	highlights map[string][]string
}

// NewHit creates a search hit. highlights may be nil.
func NewHit(doc document.Document, score float64, highlights map[string][]string) Hit {
	return Hit{document: doc, score: score, highlights: cloneHighlights(highlights)}
}

// Document returns the hit's fields with service annotations removed.
func (h Hit) Document() document.Document { return h.document }

// Score returns the relevance score.
func (h Hit) Score() float64 { return h.score }

// Highlights returns the highlighted snippets per field, nil when none were returned.
func (h Hit) Highlights() map[string][]string { return cloneHighlights(h.highlights) }

// Highlight returns the snippets of one field.
func (h Hit) Highlight(field string) ([]string, bool) {
	s, ok := h.highlights[field]
	if !ok {
		return nil, false
	}
	out := make([]string, len(s))
	copy(out, s)
	return out, true
}

func cloneHighlights(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for k, v := range in {
		cp := make([]string, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// FacetValue is one facet bucket: either a discrete value or a from/to range.
// Unset slots stay absent so a zero value is distinguishable from no value.
type FacetValue struct {
	value any
	from  any
	to    any
	count int64
}

// NewFacetValue creates a bucket. Pass nil for slots the service did not send.
func NewFacetValue(value, from, to any, count int64) FacetValue {
	return FacetValue{value: value, from: from, to: to, count: count}
}

// Value returns the discrete bucket value.
func (f FacetValue) Value() (any, bool) { return f.value, f.value != nil }

// From returns the inclusive lower bound of a range bucket.
func (f FacetValue) From() (any, bool) { return f.from, f.from != nil }

// To returns the exclusive upper bound of a range bucket.
func (f FacetValue) To() (any, bool) { return f.to, f.to != nil }

// Count returns the number of documents in the bucket.
func (f FacetValue) Count() int64 { return f.count }

// IsRange reports whether the bucket is a from/to range.
func (f FacetValue) IsRange() bool { return f.value == nil && (f.from != nil || f.to != nil) }

// SearchParts carries the decoded pieces of a search response.
type SearchParts struct {
	Hits     []Hit
	Count    *int64
	Coverage *float64
	NextLink string
	Facets   map[string][]FacetValue
}

// Search is a page of search results.
type Search struct {
	hits     []Hit
	count    *int64
	coverage *float64
	nextLink string
	facets   map[string][]FacetValue
}

// NewSearch creates a search result.
func NewSearch(p SearchParts) Search {
	s := Search{nextLink: p.NextLink}
	s.hits = make([]Hit, len(p.Hits))
	copy(s.hits, p.Hits)
	if p.Count != nil {
		c := *p.Count
		s.count = &c
	}
	if p.Coverage != nil {
		c := *p.Coverage
		s.coverage = &c
	}
	s.facets = cloneFacets(p.Facets)
	return s
}

// Hits returns the hits in ranking order.
func (s Search) Hits() []Hit {
	out := make([]Hit, len(s.hits))
	copy(out, s.hits)
	return out
}

// Len returns the number of hits on this page.
func (s Search) Len() int { return len(s.hits) }

// Count returns the total match count, present only when it was requested.
func (s Search) Count() (int64, bool) {
	if s.count == nil {
		return 0, false
	}
	return *s.count, true
}

// Coverage returns the percentage of the index the query reached.
func (s Search) Coverage() (float64, bool) {
	if s.coverage == nil {
		return 0, false
	}
	return *s.coverage, true
}

// NextLink returns the continuation URL the service sends when it truncates a page.
func (s Search) NextLink() (string, bool) { return s.nextLink, s.nextLink != "" }

// Facets returns the facet buckets per field, nil when no facets were requested.
func (s Search) Facets() map[string][]FacetValue { return cloneFacets(s.facets) }

// Facet returns the buckets of one field.
func (s Search) Facet(field string) ([]FacetValue, bool) {
	b, ok := s.facets[field]
	if !ok {
		return nil, false
	}
	out := make([]FacetValue, len(b))
	copy(out, b)
	return out, true
}

func cloneFacets(in map[string][]FacetValue) map[string][]FacetValue {
	if in == nil {
		return nil
	}
	out := make(map[string][]FacetValue, len(in))
	for k, v := range in {
		cp := make([]FacetValue, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}
