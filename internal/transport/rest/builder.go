package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/searchidx/internal/domain"
	"github.com/kailas-cloud/searchidx/internal/domain/batch"
	"github.com/kailas-cloud/searchidx/internal/domain/index"
	"github.com/kailas-cloud/searchidx/internal/domain/search/request"
)

// DefaultAPIVersion is the service API version sent on every URL.
const DefaultAPIVersion = "2016-09-01"

// ServiceDomain is appended to bare service names.
const ServiceDomain = "search.windows.net"

// Builder maps logical operations onto wire requests for one index. It does no I/O.
type Builder struct {
	base       string
	index      string
	apiVersion string
}

// NewBuilder creates a request builder. service is either a bare service name
// ("myservice" -> https://myservice.search.windows.net) or a full endpoint URL.
// An empty apiVersion selects DefaultAPIVersion.
func NewBuilder(service, indexName, apiVersion string) (*Builder, error) {
	base, err := BaseURL(service)
	if err != nil {
		return nil, err
	}
	if indexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &Builder{base: base, index: indexName, apiVersion: apiVersion}, nil
}

// BaseURL resolves a service name or endpoint into the service root URL without a trailing slash.
func BaseURL(service string) (string, error) {
	service = strings.TrimSpace(service)
	if service == "" {
		return "", fmt.Errorf("service name is required")
	}
	if !strings.Contains(service, "://") {
		for _, r := range service {
			if !(r == '-' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
				return "", fmt.Errorf("invalid service name %q", service)
			}
		}
		return "https://" + strings.ToLower(service) + "." + ServiceDomain, nil
	}
	u, err := url.Parse(service)
	if err != nil {
		return "", fmt.Errorf("parse service endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("service endpoint %q: unsupported scheme %q", service, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("service endpoint %q: missing host", service)
	}
	return strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/"), nil
}

// Index returns the bound index name.
func (b *Builder) Index() string { return b.index }

// Endpoint returns the service root URL.
func (b *Builder) Endpoint() string { return b.base }

// APIVersion returns the API version sent on every URL.
func (b *Builder) APIVersion() string { return b.apiVersion }

// ListURL is the index collection URL.
func (b *Builder) ListURL() string {
	return b.base + "/indexes?" + b.query().String()
}

// DefinitionURL is the URL of the named index definition.
func (b *Builder) DefinitionURL(name string) string {
	return b.base + "/indexes/" + url.PathEscape(name) + "?" + b.query().String()
}

// IndexingURL is the batch mutation URL of the bound index.
func (b *Builder) IndexingURL() string {
	return b.docsPath("/index") + "?" + b.query().String()
}

// CountURL is the document count URL of the bound index.
func (b *Builder) CountURL() string {
	return b.docsPath("/$count") + "?" + b.query().String()
}

// SearchURL builds the search URL. Only present options become parameters.
func (b *Builder) SearchURL(term string, opts request.Search) string {
	q := b.query()
	q.add("search", term)
	if opts.IncludeCount() {
		q.addBool("$count", true)
	}
	if f, ok := opts.Filter(); ok {
		q.add("$filter", f)
	}
	q.addList("$orderby", opts.OrderBy())
	q.addList("$select", opts.Select())
	q.addList("searchFields", opts.SearchFields())
	for _, f := range opts.Facets() {
		q.add("facet", f)
	}
	q.addList("highlight", opts.Highlight())
	if pre, ok := opts.HighlightPreTag(); ok {
		q.add("highlightPreTag", pre)
	}
	if post, ok := opts.HighlightPostTag(); ok {
		q.add("highlightPostTag", post)
	}
	if p, ok := opts.ScoringProfile(); ok {
		q.add("scoringProfile", p)
	}
	for _, p := range opts.ScoringParameters() {
		q.add("scoringParameter", p)
	}
	if top, ok := opts.Top(); ok {
		q.addInt("$top", top)
	}
	if skip, ok := opts.Skip(); ok {
		q.addInt("$skip", skip)
	}
	if opts.RequireAllTerms() {
		q.add("searchMode", "all")
	}
	if c, ok := opts.MinimumCoverage(); ok {
		q.addFloat("minimumCoverage", c)
	}
	return b.docsPath("") + "?" + q.String()
}

// SuggestURL builds the suggest URL for the named suggester.
func (b *Builder) SuggestURL(term, suggester string, opts request.Suggest) string {
	q := b.query()
	q.add("search", term)
	q.add("suggesterName", suggester)
	if f, ok := opts.Filter(); ok {
		q.add("$filter", f)
	}
	q.addList("$orderby", opts.OrderBy())
	q.addList("$select", opts.Select())
	q.addList("searchFields", opts.SearchFields())
	if pre, ok := opts.HighlightPreTag(); ok {
		q.add("highlightPreTag", pre)
	}
	if post, ok := opts.HighlightPostTag(); ok {
		q.add("highlightPostTag", post)
	}
	if opts.Fuzzy() {
		q.addBool("fuzzy", true)
	}
	if top, ok := opts.Top(); ok {
		q.addInt("$top", top)
	}
	if c, ok := opts.MinimumCoverage(); ok {
		q.addFloat("minimumCoverage", c)
	}
	return b.docsPath("/suggest") + "?" + q.String()
}

// LookupURL builds the URL of one document. The key becomes a quoted OData
// literal inside a path segment and is escaped with path rules (space is %20).
func (b *Builder) LookupURL(key string) (string, error) {
	seg, err := EscapeKey(key)
	if err != nil {
		return "", err
	}
	return b.docsPath("('"+seg+"')") + "?" + b.query().String(), nil
}

// EscapeKey validates a document key and escapes it for use inside docs('...').
func EscapeKey(key string) (string, error) {
	if key == "" {
		return "", &domain.EncodingError{Value: key, Reason: "empty key"}
	}
	if !utf8.ValidString(key) {
		return "", &domain.EncodingError{Value: key, Reason: "invalid UTF-8"}
	}
	if strings.IndexFunc(key, unicode.IsControl) >= 0 {
		return "", &domain.EncodingError{Value: key, Reason: "control character"}
	}
	literal := strings.ReplaceAll(key, "'", "''")
	seg, err := runtime.StyleParamWithLocation("simple", false, "key", runtime.ParamLocationPath, literal)
	if err != nil {
		return "", &domain.EncodingError{Value: key, Reason: err.Error()}
	}
	return seg, nil
}

// Exists builds the definition probe.
func (b *Builder) Exists() Request {
	return Request{Op: OpExists, Method: http.MethodGet, URL: b.DefinitionURL(b.index)}
}

// Get builds the definition fetch.
func (b *Builder) Get() Request {
	return Request{Op: OpGet, Method: http.MethodGet, URL: b.DefinitionURL(b.index)}
}

// Create builds the definition create request. An unnamed definition takes the bound index name.
func (b *Builder) Create(def index.Definition) (Request, error) {
	body, err := b.definitionBody(def)
	if err != nil {
		return Request{}, err
	}
	return Request{Op: OpCreate, Method: http.MethodPost, URL: b.ListURL(), Body: body}, nil
}

// CreateOrUpdate builds the definition upsert request.
func (b *Builder) CreateOrUpdate(def index.Definition) (Request, error) {
	if def.Name() == "" {
		def = def.WithName(b.index)
	}
	body, err := b.definitionBody(def)
	if err != nil {
		return Request{}, err
	}
	return Request{Op: OpCreateOrUpdate, Method: http.MethodPut, URL: b.DefinitionURL(def.Name()), Body: body}, nil
}

// Delete builds the definition delete request.
func (b *Builder) Delete() Request {
	return Request{Op: OpDelete, Method: http.MethodDelete, URL: b.DefinitionURL(b.index)}
}

// IndexBatch builds the batch mutation request.
func (b *Builder) IndexBatch(ops []batch.Operation) (Request, error) {
	body, err := batch.Body(ops)
	if err != nil {
		return Request{}, fmt.Errorf("encode batch: %w", err)
	}
	return Request{Op: OpIndex, Method: http.MethodPost, URL: b.IndexingURL(), Body: body}, nil
}

// Search builds the search request.
func (b *Builder) Search(term string, opts request.Search) Request {
	return Request{Op: OpSearch, Method: http.MethodGet, URL: b.SearchURL(term, opts)}
}

// Suggest builds the suggest request.
func (b *Builder) Suggest(term, suggester string, opts request.Suggest) Request {
	return Request{Op: OpSuggest, Method: http.MethodGet, URL: b.SuggestURL(term, suggester, opts)}
}

// Lookup builds the document fetch request.
func (b *Builder) Lookup(key string) (Request, error) {
	u, err := b.LookupURL(key)
	if err != nil {
		return Request{}, err
	}
	return Request{Op: OpLookup, Method: http.MethodGet, URL: u}, nil
}

// Count builds the document count request.
func (b *Builder) Count() Request {
	return Request{Op: OpCount, Method: http.MethodGet, URL: b.CountURL()}
}

func (b *Builder) definitionBody(def index.Definition) ([]byte, error) {
	if def.Name() == "" {
		def = def.WithName(b.index)
	}
	body, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("encode index definition: %w", err)
	}
	return body, nil
}

func (b *Builder) docsPath(suffix string) string {
	return b.base + "/indexes/" + url.PathEscape(b.index) + "/docs" + suffix
}

func (b *Builder) query() *query {
	q := &query{}
	q.add("api-version", b.apiVersion)
	return q
}

// query is an ordered query string. Keys are emitted verbatim ("$filter" stays
// unescaped); values are form-encoded.
type query struct {
	sb strings.Builder
}

func (q *query) add(key, value string) {
	if q.sb.Len() > 0 {
		q.sb.WriteByte('&')
	}
	q.sb.WriteString(key)
	q.sb.WriteByte('=')
	q.sb.WriteString(url.QueryEscape(value))
}

func (q *query) addList(key string, values []string) {
	if len(values) > 0 {
		q.add(key, strings.Join(values, ","))
	}
}

func (q *query) addInt(key string, v int) { q.add(key, strconv.Itoa(v)) }

func (q *query) addFloat(key string, v float64) { q.add(key, strconv.FormatFloat(v, 'f', -1, 64)) }

func (q *query) addBool(key string, v bool) { q.add(key, strconv.FormatBool(v)) }

func (q *query) String() string { return q.sb.String() }
