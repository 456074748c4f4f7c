package result

import "github.com/kailas-cloud/searchidx/internal/domain/document"

// SuggestHit is one type-ahead suggestion.
type SuggestHit struct {
	text     string
	document document.Document
}

// NewSuggestHit creates a suggestion.
func NewSuggestHit(text string, doc document.Document) SuggestHit {
	return SuggestHit{text: text, document: doc}
}

// Text returns the suggested text.
func (h SuggestHit) Text() string { return h.text }

// Document returns the suggested document's selected fields.
func (h SuggestHit) Document() document.Document { return h.document }

// Suggest is the result of a suggest query.
type Suggest struct {
	hits     []SuggestHit
	coverage *float64
}

// NewSuggest creates a suggest result. coverage may be nil.
func NewSuggest(hits []SuggestHit, coverage *float64) Suggest {
	s := Suggest{hits: make([]SuggestHit, len(hits))}
	copy(s.hits, hits)
	if coverage != nil {
		c := *coverage
		s.coverage = &c
	}
	return s
}

// Hits returns the suggestions in order.
func (s Suggest) Hits() []SuggestHit {
	out := make([]SuggestHit, len(s.hits))
	copy(out, s.hits)
	return out
}

// Coverage returns the percentage of the index the query reached.
func (s Suggest) Coverage() (float64, bool) {
	if s.coverage == nil {
		return 0, false
	}
	return *s.coverage, true
}
