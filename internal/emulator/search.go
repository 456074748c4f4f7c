package emulator

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/highlight/highlighter/html"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/kailas-cloud/searchidx/internal/domain/document"
	domindex "github.com/kailas-cloud/searchidx/internal/domain/index"
)

// DefaultPageSize is the number of hits returned when $top is absent.
const DefaultPageSize = 50

const (
	defaultPreTag  = "<em>"
	defaultPostTag = "</em>"
	markOpen       = "<mark>"
	markClose      = "</mark>"
)

type searchParams struct {
	term           string
	all            bool
	searchFields   []string
	filter         string
	orderBy        []string
	selectFields   []string
	facets         []string
	highlight      []string
	preTag         string
	postTag        string
	top            int
	topSet         bool
	skip           int
	count          bool
	coverage       bool
	scoringProfile string
}

func parseSearchParams(q url.Values) (searchParams, error) {
	p := searchParams{
		term:         q.Get("search"),
		searchFields: splitList(q.Get("searchFields")),
		filter:       q.Get("$filter"),
		orderBy:      splitList(q.Get("$orderby")),
		selectFields: splitList(q.Get("$select")),
		facets:       q["facet"],
		highlight:    splitList(q.Get("highlight")),
		preTag:       q.Get("highlightPreTag"),
		postTag:      q.Get("highlightPostTag"),
		top:          DefaultPageSize,
	}
	switch mode := q.Get("searchMode"); mode {
	case "", "any":
	case "all":
		p.all = true
	default:
		return p, badRequestf("invalid searchMode %q", mode)
	}
	if v := q.Get("$top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, badRequestf("invalid $top %q", v)
		}
		p.top, p.topSet = n, true
	}
	if v := q.Get("$skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100000 {
			return p, badRequestf("invalid $skip %q", v)
		}
		p.skip = n
	}
	if v := q.Get("$count"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, badRequestf("invalid $count %q", v)
		}
		p.count = b
	}
	if v := q.Get("minimumCoverage"); v != "" {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return p, badRequestf("invalid minimumCoverage %q", v)
		}
		p.coverage = true
	}
	p.scoringProfile = q.Get("scoringProfile")
	if p.preTag == "" {
		p.preTag = defaultPreTag
	}
	if p.postTag == "" {
		p.postTag = defaultPostTag
	}
	return p, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// match is one bleve hit joined with its stored document.
type match struct {
	key        string
	score      float64
	doc        document.Document
	highlights map[string][]string
}

// searchPage is the outcome of a search before wire encoding.
type searchPage struct {
	hits     []match
	total    int
	facets   map[string][]document.Document
	hasMore  bool
	nextSkip int
}

func (s *indexStore) search(ctx context.Context, p searchParams) (searchPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p.scoringProfile != "" {
		return searchPage{}, badRequestf("scoring profile '%s' is not defined on the index", p.scoringProfile)
	}
	q, err := s.textQuery(p.term, p.searchFields, p.all)
	if err != nil {
		return searchPage{}, err
	}
	if p.filter != "" {
		fq, err := compileFilter(p.filter, s.schema)
		if err != nil {
			return searchPage{}, err
		}
		q = bleve.NewConjunctionQuery(q, fq)
	}
	hl, err := s.highlightPaths(p.highlight)
	if err != nil {
		return searchPage{}, err
	}
	specs, err := s.parseFacets(p.facets)
	if err != nil {
		return searchPage{}, err
	}
	if err := s.validateSelect(p.selectFields); err != nil {
		return searchPage{}, err
	}

	matches, err := s.run(ctx, q, hl)
	if err != nil {
		return searchPage{}, err
	}
	if isWildcard(p.term) {
		for i := range matches {
			matches[i].score = 1
		}
	}
	for i := range matches {
		matches[i].highlights = retag(matches[i].highlights, p.preTag, p.postTag)
	}
	if err := s.sortMatches(matches, p.orderBy); err != nil {
		return searchPage{}, err
	}

	page := searchPage{total: len(matches), facets: computeFacets(specs, matches)}
	start := min(p.skip, len(matches))
	end := min(start+p.top, len(matches))
	page.hits = matches[start:end]
	if !p.topSet && end < len(matches) {
		page.hasMore, page.nextSkip = true, end
	}
	return page, nil
}

func isWildcard(term string) bool {
	t := strings.TrimSpace(term)
	return t == "" || t == "*"
}

func (s *indexStore) textQuery(term string, fields []string, all bool) (query.Query, error) {
	targets := s.schema.searchable()
	if len(fields) > 0 {
		targets = targets[:0:0]
		for _, name := range fields {
			f, ok := s.schema.field(name)
			if !ok || !(f.searchable || s.schema.isSuggestSource(name)) {
				return nil, badRequestf("field '%s' in searchFields is not searchable", name)
			}
			targets = append(targets, f)
		}
	}
	if isWildcard(term) {
		return bleve.NewMatchAllQuery(), nil
	}
	if len(targets) == 0 {
		return matchNone(), nil
	}
	qs := make([]query.Query, 0, len(targets))
	for _, f := range targets {
		mq := bleve.NewMatchQuery(term)
		mq.SetField(f.path)
		if all {
			mq.SetOperator(query.MatchQueryOperatorAnd)
		}
		qs = append(qs, mq)
	}
	return bleve.NewDisjunctionQuery(qs...), nil
}

func (s *indexStore) highlightPaths(names []string) ([]string, error) {
	paths := make([]string, 0, len(names))
	for _, name := range names {
		f, ok := s.schema.field(name)
		if !ok || !f.searchable {
			return nil, badRequestf("field '%s' cannot be highlighted; it is not searchable", name)
		}
		paths = append(paths, f.path)
	}
	return paths, nil
}

func (s *indexStore) validateSelect(fields []string) error {
	for _, name := range fields {
		if name == "*" {
			continue
		}
		if _, ok := s.schema.topLevel[name]; !ok {
			return badRequestf("field '%s' in $select does not exist", name)
		}
	}
	return nil
}

// run executes q over every document, best score first and key as tie breaker.
func (s *indexStore) run(ctx context.Context, q query.Query, highlight []string) ([]match, error) {
	if len(s.docs) == 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequestOptions(q, len(s.docs), 0, false)
	req.SortBy([]string{"-_score", "_id"})
	if len(highlight) > 0 {
		req.Highlight = bleve.NewHighlightWithStyle(html.Name)
		req.Highlight.Fields = highlight
	}
	res, err := s.bleve.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}
	out := make([]match, 0, len(res.Hits))
	for _, h := range res.Hits {
		doc, ok := s.docs[h.ID]
		if !ok {
			continue
		}
		m := match{key: h.ID, score: h.Score, doc: doc}
		if len(h.Fragments) > 0 {
			m.highlights = make(map[string][]string, len(h.Fragments))
			for path, frags := range h.Fragments {
				m.highlights[strings.ReplaceAll(path, ".", "/")] = frags
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func retag(hl map[string][]string, pre, post string) map[string][]string {
	if len(hl) == 0 {
		return nil
	}
	r := strings.NewReplacer(markOpen, pre, markClose, post)
	out := make(map[string][]string, len(hl))
	for field, frags := range hl {
		tagged := make([]string, len(frags))
		for i, f := range frags {
			tagged[i] = r.Replace(f)
		}
		out[field] = tagged
	}
	return out
}

// sortMatches applies $orderby. Nulls sort first ascending; the relevance
// order is kept for ties.
func (s *indexStore) sortMatches(matches []match, orderBy []string) error {
	if len(orderBy) == 0 {
		return nil
	}
	type key struct {
		field string
		score bool
		desc  bool
	}
	keys := make([]key, 0, len(orderBy))
	for _, clause := range orderBy {
		parts := strings.Fields(clause)
		k := key{field: parts[0]}
		if len(parts) > 2 {
			return badRequestf("invalid $orderby clause %q", clause)
		}
		if len(parts) == 2 {
			switch strings.ToLower(parts[1]) {
			case "asc":
			case "desc":
				k.desc = true
			default:
				return badRequestf("invalid $orderby direction %q", parts[1])
			}
		}
		if k.field == "search.score()" {
			k.score = true
		} else {
			f, ok := s.schema.field(k.field)
			if !ok || !f.sortable || f.inCollection || f.typ == domindex.TypeStringCollection {
				return badRequestf("field '%s' is not sortable", k.field)
			}
		}
		keys = append(keys, k)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		for _, k := range keys {
			var c int
			if k.score {
				c = compareValues(matches[i].score, matches[j].score)
			} else {
				c = compareValues(firstValue(matches[i].doc, k.field), firstValue(matches[j].doc, k.field))
			}
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return nil
}

func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// valuesAt returns the leaf values at a "/"-separated path, flattening collections.
func valuesAt(doc document.Document, name string) []any {
	path := strings.Split(name, "/")
	v, ok := doc.Get(path[0])
	if !ok {
		return nil
	}
	return collect(v, path[1:])
}

func collect(v any, path []string) []any {
	if len(path) == 0 {
		switch t := v.(type) {
		case nil:
			return nil
		case []any:
			var out []any
			for _, e := range t {
				if e != nil {
					out = append(out, e)
				}
			}
			return out
		default:
			return []any{v}
		}
	}
	switch t := v.(type) {
	case map[string]any:
		return collect(t[path[0]], path[1:])
	case document.Document:
		next, _ := t.Get(path[0])
		return collect(next, path[1:])
	case []any:
		var out []any
		for _, e := range t {
			out = append(out, collect(e, path)...)
		}
		return out
	}
	return nil
}

func firstValue(doc document.Document, name string) any {
	if vs := valuesAt(doc, name); len(vs) > 0 {
		return vs[0]
	}
	return nil
}

// project applies $select and removes fields that are not retrievable.
func (s *indexStore) project(doc document.Document, selectFields []string) document.Document {
	keep := make(map[string]struct{}, len(selectFields))
	for _, f := range selectFields {
		keep[f] = struct{}{}
	}
	_, star := keep["*"]
	all := len(selectFields) == 0 || star
	return doc.Filter(func(k string) bool {
		if s.schema.hidden(k) {
			return false
		}
		if all {
			return true
		}
		_, ok := keep[k]
		return ok
	})
}
