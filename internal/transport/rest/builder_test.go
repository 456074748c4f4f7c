package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/kailas-cloud/searchidx/internal/domain"
	"github.com/kailas-cloud/searchidx/internal/domain/batch"
	"github.com/kailas-cloud/searchidx/internal/domain/document"
	"github.com/kailas-cloud/searchidx/internal/domain/index"
	"github.com/kailas-cloud/searchidx/internal/domain/search/request"
)

const base = "https://svc.search.windows.net"

func newBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder("svc", "hotels", "")
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	return b
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "svc", want: "https://svc.search.windows.net"},
		{in: "My-Svc", want: "https://my-svc.search.windows.net"},
		{in: "http://127.0.0.1:8080/", want: "http://127.0.0.1:8080"},
		{in: "https://proxy.local/search/", want: "https://proxy.local/search"},
		{in: "", wantErr: true},
		{in: "bad name", wantErr: true},
		{in: "ftp://host", wantErr: true},
		{in: "http://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := BaseURL(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("BaseURL(%q) = %q, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("BaseURL(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("BaseURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewBuilder_Validation(t *testing.T) {
	if _, err := NewBuilder("svc", "", ""); err == nil {
		t.Error("expected error for empty index")
	}
	b, err := NewBuilder("svc", "x", "2020-06-30")
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	if !strings.HasSuffix(b.ListURL(), "?api-version=2020-06-30") {
		t.Errorf("ListURL = %s", b.ListURL())
	}
	if b.Endpoint() != base {
		t.Errorf("Endpoint = %s", b.Endpoint())
	}
}

func TestManagementURLs(t *testing.T) {
	b := newBuilder(t)
	tests := []struct {
		name, got, want string
	}{
		{"list", b.ListURL(), base + "/indexes?api-version=2016-09-01"},
		{"definition", b.DefinitionURL("hotels"), base + "/indexes/hotels?api-version=2016-09-01"},
		{"indexing", b.IndexingURL(), base + "/indexes/hotels/docs/index?api-version=2016-09-01"},
		{"count", b.CountURL(), base + "/indexes/hotels/docs/$count?api-version=2016-09-01"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %s, want %s", tt.name, tt.got, tt.want)
		}
	}
}

func TestLookupURL_PathEscaping(t *testing.T) {
	b := newBuilder(t)
	got, err := b.LookupURL("a b")
	if err != nil {
		t.Fatalf("LookupURL: %v", err)
	}
	want := base + "/indexes/hotels/docs('a%20b')?api-version=2016-09-01"
	if got != want {
		t.Errorf("LookupURL = %s, want %s", got, want)
	}
	if strings.Contains(got, "a+b") {
		t.Error("lookup key was form-escaped")
	}
	if got == base+"/indexes/hotels/docs('"+url.QueryEscape("a b")+"')?api-version=2016-09-01" {
		t.Error("path escaping must differ from query escaping")
	}
}

func TestEscapeKey(t *testing.T) {
	tests := []struct {
		key, want string
	}{
		{"1", "1"},
		{"a/b", "a%2Fb"},
		{"o'neil", "o%27%27neil"},
		{"50%", "50%25"},
		{"ключ", "%D0%BA%D0%BB%D1%8E%D1%87"},
	}
	for _, tt := range tests {
		got, err := EscapeKey(tt.key)
		if err != nil {
			t.Errorf("EscapeKey(%q): %v", tt.key, err)
			continue
		}
		if got != tt.want {
			t.Errorf("EscapeKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestEscapeKey_Errors(t *testing.T) {
	for _, key := range []string{"", "bad\xff", "tab\there", "nl\n"} {
		_, err := EscapeKey(key)
		if !errors.Is(err, domain.ErrEncoding) {
			t.Errorf("EscapeKey(%q) err = %v, want ErrEncoding", key, err)
		}
		var encErr *domain.EncodingError
		if !errors.As(err, &encErr) {
			t.Errorf("EscapeKey(%q) err is not *EncodingError", key)
		}
	}
}

func TestSearchURL_PresenceMap(t *testing.T) {
	b := newBuilder(t)
	got := b.SearchURL("lux hotel", request.NewSearch(
		request.WithCount(),
		request.WithFilter("rating gt 3"),
		request.WithFacets("rating", "city"),
		request.WithTop(5),
	))
	want := base + "/indexes/hotels/docs?api-version=2016-09-01&search=lux+hotel&$count=true" +
		"&$filter=rating+gt+3&facet=rating&facet=city&$top=5"
	if got != want {
		t.Errorf("SearchURL =\n%s\nwant\n%s", got, want)
	}
}

func TestSearchURL_NoOptions(t *testing.T) {
	b := newBuilder(t)
	got := b.SearchURL("*", request.NewSearch())
	want := base + "/indexes/hotels/docs?api-version=2016-09-01&search=%2A"
	if got != want {
		t.Errorf("SearchURL = %s, want %s", got, want)
	}
}

func TestSearchURL_EmptyHighlightTagsOmitted(t *testing.T) {
	b := newBuilder(t)
	got := b.SearchURL("*", request.NewSearch(request.WithHighlightTags("", "")))
	if strings.Contains(got, "highlightPreTag") || strings.Contains(got, "highlightPostTag") {
		t.Errorf("SearchURL = %s", got)
	}
}

func TestSearchURL_AllOptions(t *testing.T) {
	b := newBuilder(t)
	got := b.SearchURL("x", request.NewSearch(
		request.WithOrderBy("rating desc", "name"),
		request.WithSelect("id", "name"),
		request.WithSearchFields("name"),
		request.WithHighlight("name"),
		request.WithHighlightTags("<b>", "</b>"),
		request.WithScoringProfile("geo"),
		request.WithScoringParameters("a-1", "b-2"),
		request.WithSkip(20),
		request.RequireAllTerms(),
		request.WithMinimumCoverage(99.5),
	))
	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	checks := map[string]string{
		"$orderby":         "rating desc,name",
		"$select":          "id,name",
		"searchFields":     "name",
		"highlight":        "name",
		"highlightPreTag":  "<b>",
		"highlightPostTag": "</b>",
		"scoringProfile":   "geo",
		"$skip":            "20",
		"searchMode":       "all",
		"minimumCoverage":  "99.5",
	}
	for k, v := range checks {
		if q.Get(k) != v {
			t.Errorf("%s = %q, want %q", k, q.Get(k), v)
		}
	}
	if p := q["scoringParameter"]; len(p) != 2 || p[0] != "a-1" || p[1] != "b-2" {
		t.Errorf("scoringParameter = %v", p)
	}
	for _, absent := range []string{"$count", "$top", "$filter", "facet"} {
		if q.Has(absent) {
			t.Errorf("%s should be absent", absent)
		}
	}
}

func TestSuggestURL(t *testing.T) {
	b := newBuilder(t)
	got := b.SuggestURL("fan", "sg", request.NewSuggest(request.WithFuzzy(), request.WithTop(3)))
	want := base + "/indexes/hotels/docs/suggest?api-version=2016-09-01&search=fan&suggesterName=sg&fuzzy=true&$top=3"
	if got != want {
		t.Errorf("SuggestURL =\n%s\nwant\n%s", got, want)
	}
}

func TestCreate_DefaultsName(t *testing.T) {
	b := newBuilder(t)
	def := index.NewDefinition("", []index.Field{index.NewField("id", index.TypeString, index.Key())}, nil)

	req, err := b.Create(def)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.Method != http.MethodPost || req.URL != b.ListURL() || req.Op != OpCreate {
		t.Errorf("req = %s %s (%s)", req.Method, req.URL, req.Op)
	}
	var body map[string]any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["name"] != "hotels" {
		t.Errorf("name = %v, want hotels", body["name"])
	}
}

func TestCreateOrUpdate(t *testing.T) {
	b := newBuilder(t)
	named := index.NewDefinition("other", nil, nil)
	req, err := b.CreateOrUpdate(named)
	if err != nil {
		t.Fatalf("CreateOrUpdate: %v", err)
	}
	if req.Method != http.MethodPut || req.URL != b.DefinitionURL("other") {
		t.Errorf("req = %s %s", req.Method, req.URL)
	}

	req, err = b.CreateOrUpdate(index.NewDefinition("", nil, nil))
	if err != nil {
		t.Fatalf("CreateOrUpdate: %v", err)
	}
	if req.URL != b.DefinitionURL("hotels") {
		t.Errorf("unnamed URL = %s", req.URL)
	}
}

func TestIndexBatch(t *testing.T) {
	b := newBuilder(t)
	req, err := b.IndexBatch([]batch.Operation{
		batch.NewUpload(document.New(document.Field{Key: "id", Value: "1"})),
		batch.NewDelete("id", "2"),
	})
	if err != nil {
		t.Fatalf("IndexBatch: %v", err)
	}
	want := `{"value":[{"id":"1","@search.action":"upload"},{"id":"2","@search.action":"delete"}]}`
	if string(req.Body) != want {
		t.Errorf("body = %s, want %s", req.Body, want)
	}
	if req.Method != http.MethodPost || req.URL != b.IndexingURL() {
		t.Errorf("req = %s %s", req.Method, req.URL)
	}

	if _, err := b.IndexBatch([]batch.Operation{batch.NewDelete("", "1")}); !errors.Is(err, domain.ErrEncoding) {
		t.Errorf("err = %v, want ErrEncoding", err)
	}
}

func TestSimpleRequests(t *testing.T) {
	b := newBuilder(t)
	lookup, err := b.Lookup("7")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	tests := []struct {
		req          Request
		method, op   string
		urlHasPrefix string
	}{
		{b.Exists(), http.MethodGet, OpExists, base + "/indexes/hotels?"},
		{b.Get(), http.MethodGet, OpGet, base + "/indexes/hotels?"},
		{b.Delete(), http.MethodDelete, OpDelete, base + "/indexes/hotels?"},
		{b.Count(), http.MethodGet, OpCount, base + "/indexes/hotels/docs/$count?"},
		{lookup, http.MethodGet, OpLookup, base + "/indexes/hotels/docs('7')?"},
		{b.Search("x", request.NewSearch()), http.MethodGet, OpSearch, base + "/indexes/hotels/docs?"},
		{b.Suggest("x", "sg", request.NewSuggest()), http.MethodGet, OpSuggest, base + "/indexes/hotels/docs/suggest?"},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			if tt.req.Method != tt.method || tt.req.Op != tt.op {
				t.Errorf("got %s (%s), want %s (%s)", tt.req.Method, tt.req.Op, tt.method, tt.op)
			}
			if !strings.HasPrefix(tt.req.URL, tt.urlHasPrefix) {
				t.Errorf("URL = %s, want prefix %s", tt.req.URL, tt.urlHasPrefix)
			}
			if !strings.Contains(tt.req.URL, "api-version=2016-09-01") {
				t.Errorf("URL %s lacks api-version", tt.req.URL)
			}
			if tt.req.Body != nil {
				t.Errorf("unexpected body %s", tt.req.Body)
			}
		})
	}
	if _, err := b.Lookup(""); !errors.Is(err, domain.ErrEncoding) {
		t.Errorf("Lookup(\"\") err = %v", err)
	}
}
