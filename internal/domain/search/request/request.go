// Package request holds the immutable option values for search and suggest
// queries. Every option is either present or absent; only present options
// become query parameters.
package request

// common holds the options search and suggest share.
type common struct {
	filter          string
	orderBy         []string
	selectFields    []string
	searchFields    []string
	preTag          *string
	postTag         *string
	top             *int
	minimumCoverage *float64
}

// Filter returns the OData $filter expression.
func (c common) Filter() (string, bool) { return c.filter, c.filter != "" }

// OrderBy returns the $orderby clauses in order.
func (c common) OrderBy() []string { return clone(c.orderBy) }

// Select returns the fields to retrieve.
func (c common) Select() []string { return clone(c.selectFields) }

// SearchFields returns the fields the term is matched against.
func (c common) SearchFields() []string { return clone(c.searchFields) }

// HighlightPreTag returns the tag inserted before highlighted terms.
func (c common) HighlightPreTag() (string, bool) { return deref(c.preTag) }

// HighlightPostTag returns the tag inserted after highlighted terms.
func (c common) HighlightPostTag() (string, bool) { return deref(c.postTag) }

// Top returns the page size.
func (c common) Top() (int, bool) { return deref(c.top) }

// MinimumCoverage returns the index coverage percentage the query must reach.
func (c common) MinimumCoverage() (float64, bool) { return deref(c.minimumCoverage) }

// Search is the option set of a search query.
type Search struct {
	common
	includeCount      bool
	facets            []string
	highlight         []string
	scoringProfile    string
	scoringParameters []string
	skip              *int
	requireAllTerms   bool
}

// NewSearch builds search options. Zero options is a valid plain search.
func NewSearch(opts ...SearchOption) Search {
	var s Search
	for _, o := range opts {
		o.applySearch(&s)
	}
	return s
}

// IncludeCount reports whether the total match count was requested.
func (s Search) IncludeCount() bool { return s.includeCount }

// Facets returns the facet expressions, one query parameter each.
func (s Search) Facets() []string { return clone(s.facets) }

// Highlight returns the fields to highlight.
func (s Search) Highlight() []string { return clone(s.highlight) }

// ScoringProfile returns the scoring profile name.
func (s Search) ScoringProfile() (string, bool) { return s.scoringProfile, s.scoringProfile != "" }

// ScoringParameters returns the scoring parameters, one query parameter each.
func (s Search) ScoringParameters() []string { return clone(s.scoringParameters) }

// Skip returns the number of hits to skip.
func (s Search) Skip() (int, bool) { return deref(s.skip) }

// RequireAllTerms reports whether every term must match (searchMode=all).
func (s Search) RequireAllTerms() bool { return s.requireAllTerms }

// Suggest is the option set of a suggest query.
type Suggest struct {
	common
	fuzzy bool
}

// NewSuggest builds suggest options.
func NewSuggest(opts ...SuggestOption) Suggest {
	var s Suggest
	for _, o := range opts {
		o.applySuggest(&s)
	}
	return s
}

// Fuzzy reports whether fuzzy matching was requested.
func (s Suggest) Fuzzy() bool { return s.fuzzy }

func clone(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func deref[T any](p *T) (T, bool) {
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

func ptr[T any](v T) *T { return &v }
