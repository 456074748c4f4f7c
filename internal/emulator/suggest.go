package emulator

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/kailas-cloud/searchidx/internal/domain/document"
)

const (
	defaultSuggestTop = 5
	maxSuggestTop     = 100
	maxSuggestTerm    = 100
)

type suggestParams struct {
	term         string
	suggester    string
	fuzzy        bool
	filter       string
	orderBy      []string
	selectFields []string
	searchFields []string
	preTag       string
	postTag      string
	top          int
	coverage     bool
}

func parseSuggestParams(q url.Values) (suggestParams, error) {
	p := suggestParams{
		term:         q.Get("search"),
		suggester:    q.Get("suggesterName"),
		filter:       q.Get("$filter"),
		orderBy:      splitList(q.Get("$orderby")),
		selectFields: splitList(q.Get("$select")),
		searchFields: splitList(q.Get("searchFields")),
		preTag:       q.Get("highlightPreTag"),
		postTag:      q.Get("highlightPostTag"),
		top:          defaultSuggestTop,
	}
	if n := utf8.RuneCountInString(p.term); n < 1 || n > maxSuggestTerm {
		return p, badRequestf("search must be between 1 and %d characters", maxSuggestTerm)
	}
	if p.suggester == "" {
		return p, badRequestf("suggesterName is required")
	}
	if (p.preTag == "") != (p.postTag == "") {
		return p, badRequestf("highlightPreTag and highlightPostTag must be given together")
	}
	if v := q.Get("fuzzy"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, badRequestf("invalid fuzzy %q", v)
		}
		p.fuzzy = b
	}
	if v := q.Get("$top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxSuggestTop {
			return p, badRequestf("$top must be between 1 and %d", maxSuggestTop)
		}
		p.top = n
	}
	if v := q.Get("minimumCoverage"); v != "" {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return p, badRequestf("invalid minimumCoverage %q", v)
		}
		p.coverage = true
	}
	return p, nil
}

// suggestion is one suggest hit: the matched source text and the projected document.
type suggestion struct {
	text string
	doc  document.Document
}

func (s *indexStore) suggest(ctx context.Context, p suggestParams) ([]suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sg, ok := s.schema.suggesters[p.suggester]
	if !ok {
		return nil, badRequestf("suggester '%s' is not defined on the index", p.suggester)
	}
	sources := sg.SourceFields()
	if len(p.searchFields) > 0 {
		allowed := make(map[string]struct{}, len(sources))
		for _, src := range sources {
			allowed[src] = struct{}{}
		}
		for _, f := range p.searchFields {
			if _, ok := allowed[f]; !ok {
				return nil, badRequestf("field '%s' is not a source field of suggester '%s'", f, p.suggester)
			}
		}
		sources = p.searchFields
	}
	if err := s.validateSelect(p.selectFields); err != nil {
		return nil, err
	}

	tokens := strings.Fields(strings.ToLower(p.term))
	if len(tokens) == 0 {
		return nil, nil
	}
	qs := make([]query.Query, 0, len(sources))
	for _, name := range sources {
		f, ok := s.schema.field(name)
		if !ok {
			continue
		}
		qs = append(qs, prefixQuery(f.path, tokens, p.fuzzy))
	}
	if len(qs) == 0 {
		return nil, nil
	}
	var q query.Query = bleve.NewDisjunctionQuery(qs...)
	if p.filter != "" {
		fq, err := compileFilter(p.filter, s.schema)
		if err != nil {
			return nil, err
		}
		q = bleve.NewConjunctionQuery(q, fq)
	}

	matches, err := s.run(ctx, q, nil)
	if err != nil {
		return nil, err
	}
	if err := s.sortMatches(matches, p.orderBy); err != nil {
		return nil, err
	}
	if len(matches) > p.top {
		matches = matches[:p.top]
	}

	out := make([]suggestion, 0, len(matches))
	for _, m := range matches {
		out = append(out, suggestion{
			text: suggestText(m.doc, sources, tokens[len(tokens)-1], p.preTag, p.postTag),
			doc:  s.suggestDocument(m.doc, p.selectFields),
		})
	}
	return out, nil
}

// prefixQuery matches every token but the last as a term and the last as a prefix.
func prefixQuery(field string, tokens []string, fuzzy bool) query.Query {
	qs := make([]query.Query, 0, len(tokens))
	for _, t := range tokens[:len(tokens)-1] {
		mq := bleve.NewMatchQuery(t)
		mq.SetField(field)
		if fuzzy {
			mq.SetFuzziness(1)
		}
		qs = append(qs, mq)
	}
	last := tokens[len(tokens)-1]
	pq := bleve.NewPrefixQuery(last)
	pq.SetField(field)
	var lastQ query.Query = pq
	if fuzzy {
		fq := bleve.NewFuzzyQuery(last)
		fq.SetField(field)
		fq.SetFuzziness(1)
		lastQ = bleve.NewDisjunctionQuery(pq, fq)
	}
	if len(qs) == 0 {
		return lastQ
	}
	return bleve.NewConjunctionQuery(append(qs, lastQ)...)
}

// suggestText picks the first source value containing a word that starts with
// prefix, falling back to the first non-empty source value.
func suggestText(doc document.Document, sources []string, prefix, pre, post string) string {
	var fallback string
	for _, name := range sources {
		for _, v := range valuesAt(doc, name) {
			text, ok := v.(string)
			if !ok || text == "" {
				continue
			}
			if fallback == "" {
				fallback = text
			}
			if tagged, ok := tagPrefix(text, prefix, pre, post); ok {
				return tagged
			}
		}
	}
	return fallback
}

func tagPrefix(text, prefix, pre, post string) (string, bool) {
	words := strings.Fields(text)
	for _, w := range words {
		if strings.HasPrefix(strings.ToLower(w), prefix) {
			if pre == "" {
				return text, true
			}
			return strings.Replace(text, w, pre+w+post, 1), true
		}
	}
	return "", false
}

// suggestDocument carries the key plus any $select fields.
func (s *indexStore) suggestDocument(doc document.Document, selectFields []string) document.Document {
	keep := map[string]struct{}{s.schema.keyName: {}}
	for _, f := range selectFields {
		keep[f] = struct{}{}
	}
	_, star := keep["*"]
	return doc.Filter(func(k string) bool {
		if s.schema.hidden(k) {
			return false
		}
		_, ok := keep[k]
		return ok || star
	})
}
