package request

// SearchOption configures a Search.
type SearchOption interface {
	applySearch(*Search)
}

// SuggestOption configures a Suggest.
type SuggestOption interface {
	applySuggest(*Suggest)
}

// CommonOption configures both Search and Suggest.
type CommonOption func(*common)

func (o CommonOption) applySearch(s *Search)   { o(&s.common) }
func (o CommonOption) applySuggest(s *Suggest) { o(&s.common) }

type searchOption func(*Search)

func (o searchOption) applySearch(s *Search) { o(s) }

type suggestOption func(*Suggest)

func (o suggestOption) applySuggest(s *Suggest) { o(s) }

// WithFilter sets the OData $filter expression. An empty expression is ignored.
func WithFilter(expr string) CommonOption {
	return func(c *common) { c.filter = expr }
}

// WithOrderBy sets the $orderby clauses, e.g. "rating desc".
func WithOrderBy(clauses ...string) CommonOption {
	return func(c *common) { c.orderBy = nonEmpty(clauses) }
}

// WithSelect limits the retrieved fields.
func WithSelect(fields ...string) CommonOption {
	return func(c *common) { c.selectFields = nonEmpty(fields) }
}

// WithSearchFields limits the fields the term is matched against.
func WithSearchFields(fields ...string) CommonOption {
	return func(c *common) { c.searchFields = nonEmpty(fields) }
}

// WithHighlightTags sets the tags wrapped around highlighted terms.
// An empty tag is left unset.
func WithHighlightTags(pre, post string) CommonOption {
	return func(c *common) {
		if pre != "" {
			c.preTag = ptr(pre)
		}
		if post != "" {
			c.postTag = ptr(post)
		}
	}
}

// WithTop sets the page size. Negative values are ignored.
func WithTop(n int) CommonOption {
	return func(c *common) {
		if n >= 0 {
			c.top = ptr(n)
		}
	}
}

// WithMinimumCoverage sets the required index coverage percentage (0-100).
func WithMinimumCoverage(pct float64) CommonOption {
	return func(c *common) {
		if pct >= 0 && pct <= 100 {
			c.minimumCoverage = ptr(pct)
		}
	}
}

// WithCount requests the total match count.
func WithCount() SearchOption {
	return searchOption(func(s *Search) { s.includeCount = true })
}

// WithFacets adds facet expressions such as "rating" or "rating,values:2|4".
func WithFacets(facets ...string) SearchOption {
	return searchOption(func(s *Search) { s.facets = append(s.facets, nonEmpty(facets)...) })
}

// WithHighlight sets the fields to highlight.
func WithHighlight(fields ...string) SearchOption {
	return searchOption(func(s *Search) { s.highlight = nonEmpty(fields) })
}

// WithScoringProfile selects a scoring profile defined on the index.
func WithScoringProfile(name string) SearchOption {
	return searchOption(func(s *Search) { s.scoringProfile = name })
}

// WithScoringParameters adds scoring profile parameters such as "currentLocation--122.2,44.8".
func WithScoringParameters(params ...string) SearchOption {
	return searchOption(func(s *Search) {
		s.scoringParameters = append(s.scoringParameters, nonEmpty(params)...)
	})
}

// WithSkip skips the first n hits. Negative values are ignored.
func WithSkip(n int) SearchOption {
	return searchOption(func(s *Search) {
		if n >= 0 {
			s.skip = ptr(n)
		}
	})
}

// RequireAllTerms makes every term mandatory.
func RequireAllTerms() SearchOption {
	return searchOption(func(s *Search) { s.requireAllTerms = true })
}

// WithFuzzy enables fuzzy suggest matching.
func WithFuzzy() SuggestOption {
	return suggestOption(func(s *Suggest) { s.fuzzy = true })
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
