package main

import (
	"github.com/spf13/cobra"

	searchidx "github.com/kailas-cloud/searchidx/pkg/sdk"
)

// queryFlags are the options shared by search and suggest.
type queryFlags struct {
	filter       string
	orderBy      []string
	selectFields []string
	searchFields []string
	top          int
	preTag       string
	postTag      string
}

func (q *queryFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&q.filter, "filter", "", "OData filter expression")
	f.StringSliceVar(&q.orderBy, "orderby", nil, "order clauses, e.g. \"rating desc\"")
	f.StringSliceVar(&q.selectFields, "select", nil, "fields to return")
	f.StringSliceVar(&q.searchFields, "search-fields", nil, "fields to match the term against")
	f.IntVar(&q.top, "top", -1, "maximum number of results")
	f.StringVar(&q.preTag, "pre-tag", "", "highlight pre tag")
	f.StringVar(&q.postTag, "post-tag", "", "highlight post tag")
}

func (q *queryFlags) options() []searchidx.CommonOption {
	opts := []searchidx.CommonOption{
		searchidx.WithFilter(q.filter),
		searchidx.WithOrderBy(q.orderBy...),
		searchidx.WithSelect(q.selectFields...),
		searchidx.WithSearchFields(q.searchFields...),
		searchidx.WithTop(q.top),
	}
	if q.preTag != "" || q.postTag != "" {
		opts = append(opts, searchidx.WithHighlightTags(q.preTag, q.postTag))
	}
	return opts
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		q         queryFlags
		facets    []string
		highlight []string
		skip      int
		count     bool
		all       bool
	)
	cmd := &cobra.Command{
		Use:   "search [term]",
		Short: "Run a full-text query; no term matches every document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			var opts []searchidx.SearchOption
			for _, o := range q.options() {
				opts = append(opts, o)
			}
			opts = append(opts,
				searchidx.WithFacets(facets...),
				searchidx.WithHighlight(highlight...),
			)
			if skip > 0 {
				opts = append(opts, searchidx.WithSkip(skip))
			}
			if count {
				opts = append(opts, searchidx.WithCount())
			}
			if all {
				opts = append(opts, searchidx.RequireAllTerms())
			}
			res, err := c.Search(cmd.Context(), term, opts...)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), searchOutput(res))
		},
	}
	q.bind(cmd)
	f := cmd.Flags()
	f.StringArrayVar(&facets, "facet", nil, "facet expression, e.g. \"rating,count:5\" (repeatable)")
	f.StringSliceVar(&highlight, "highlight", nil, "fields to highlight")
	f.IntVar(&skip, "skip", 0, "results to skip")
	f.BoolVar(&count, "count", false, "include the total match count")
	f.BoolVar(&all, "all", false, "require every term to match")
	return cmd
}

func newSuggestCmd(a *app) *cobra.Command {
	var (
		q         queryFlags
		suggester string
		fuzzy     bool
	)
	cmd := &cobra.Command{
		Use:   "suggest <term>",
		Short: "Run a type-ahead query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			var opts []searchidx.SuggestOption
			for _, o := range q.options() {
				opts = append(opts, o)
			}
			if fuzzy {
				opts = append(opts, searchidx.WithFuzzy())
			}
			res, err := c.Suggest(cmd.Context(), args[0], suggester, opts...)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), suggestOutput(res))
		},
	}
	q.bind(cmd)
	cmd.Flags().StringVar(&suggester, "suggester", "sg", "suggester name")
	cmd.Flags().BoolVar(&fuzzy, "fuzzy", false, "tolerate one typo per term")
	return cmd
}

type hitOutput struct {
	Score      float64             `json:"score"`
	Highlights map[string][]string `json:"highlights,omitempty"`
	Document   searchidx.Document  `json:"document"`
}

type facetOutput struct {
	Value any   `json:"value,omitempty"`
	From  any   `json:"from,omitempty"`
	To    any   `json:"to,omitempty"`
	Count int64 `json:"count"`
}

type searchResultOutput struct {
	Count    *int64                   `json:"count,omitempty"`
	Coverage *float64                 `json:"coverage,omitempty"`
	Facets   map[string][]facetOutput `json:"facets,omitempty"`
	Hits     []hitOutput              `json:"hits"`
	NextLink string                   `json:"nextLink,omitempty"`
}

func searchOutput(res searchidx.SearchResult) searchResultOutput {
	out := searchResultOutput{Hits: make([]hitOutput, 0, res.Len())}
	if n, ok := res.Count(); ok {
		out.Count = &n
	}
	if c, ok := res.Coverage(); ok {
		out.Coverage = &c
	}
	out.NextLink, _ = res.NextLink()
	for _, h := range res.Hits() {
		out.Hits = append(out.Hits, hitOutput{
			Score:      h.Score(),
			Highlights: h.Highlights(),
			Document:   h.Document(),
		})
	}
	for name, values := range res.Facets() {
		if out.Facets == nil {
			out.Facets = make(map[string][]facetOutput)
		}
		buckets := make([]facetOutput, 0, len(values))
		for _, v := range values {
			b := facetOutput{Count: v.Count()}
			b.Value, _ = v.Value()
			b.From, _ = v.From()
			b.To, _ = v.To()
			buckets = append(buckets, b)
		}
		out.Facets[name] = buckets
	}
	return out
}

type suggestionOutput struct {
	Text     string             `json:"text"`
	Document searchidx.Document `json:"document"`
}

func suggestOutput(res searchidx.SuggestResult) []suggestionOutput {
	hits := res.Hits()
	out := make([]suggestionOutput, 0, len(hits))
	for _, h := range hits {
		out = append(out, suggestionOutput{Text: h.Text(), Document: h.Document()})
	}
	return out
}
