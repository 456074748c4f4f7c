// Package emulator serves the search service REST protocol from memory. Each
// index is backed by a bleve in-memory index; it exists for tests, local
// development and the CLI's serve command.
package emulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchidx/internal/domain/document"
	domindex "github.com/kailas-cloud/searchidx/internal/domain/index"
	logpkg "github.com/kailas-cloud/searchidx/internal/logger"
	"github.com/kailas-cloud/searchidx/internal/metrics"
)

// DefaultMetricsPath is where Prometheus metrics are exposed.
const DefaultMetricsPath = "/metrics"

// errorHandler tries to handle an error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Emulator is an in-memory search service.
type Emulator struct {
	registry      *registry
	faults        *faults
	logger        *zap.Logger
	apiKey        string
	metricsPath   string
	metricsReg    *prometheus.Registry
	router        chi.Router
	errorHandlers []errorHandler
}

// Option configures an Emulator.
type Option func(*Emulator)

// WithAPIKey requires every request to carry key in the api-key header.
func WithAPIKey(key string) Option { return func(e *Emulator) { e.apiKey = key } }

// WithLogger sets the zap logger used for request logs.
func WithLogger(l *zap.Logger) Option { return func(e *Emulator) { e.logger = l } }

// WithMetrics registers the server metrics with reg and exposes them at path.
func WithMetrics(reg *prometheus.Registry, path string) Option {
	return func(e *Emulator) {
		e.metricsReg = reg
		if path != "" {
			e.metricsPath = path
		}
	}
}

// New creates an emulator with no indexes.
func New(opts ...Option) (*Emulator, error) {
	e := &Emulator{
		registry:    newRegistry(),
		faults:      &faults{},
		logger:      zap.NewNop(),
		metricsPath: DefaultMetricsPath,
	}
	for _, o := range opts {
		o(e)
	}
	if e.metricsReg != nil {
		if err := metrics.RegisterServerMetrics(e.metricsReg); err != nil {
			return nil, fmt.Errorf("register emulator metrics: %w", err)
		}
	}
	e.errorHandlers = []errorHandler{
		sentinelHandler(errIndexNotFound, http.StatusNotFound, "ResourceNotFound"),
		sentinelHandler(errDocNotFound, http.StatusNotFound, "ResourceNotFound"),
		sentinelHandler(errIndexExists, http.StatusConflict, "ResourceNameAlreadyInUse"),
		sentinelHandler(errBadRequest, http.StatusBadRequest, "InvalidRequestParameter"),
		filterErrorHandler,
	}
	e.router = e.routes()
	return e, nil
}

// Handler returns the HTTP handler serving the REST protocol.
func (e *Emulator) Handler() http.Handler { return e.router }

// FailNext makes the next n requests fail with status before reaching any handler.
func (e *Emulator) FailNext(n, status int) { e.faults.set(n, status) }

// Close releases every index.
func (e *Emulator) Close() error { return e.registry.closeAll() }

// CreateIndex registers an index directly, bypassing HTTP.
func (e *Emulator) CreateIndex(def domindex.Definition) error { return e.registry.create(def) }

func (e *Emulator) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(e.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(e.logger))
	r.Use(apiKeyMiddleware(e.apiKey, e.metricsPath))
	r.Use(e.faults.middleware(e.metricsPath))
	r.Use(metrics.Middleware())

	if e.metricsReg != nil {
		r.Handle(e.metricsPath, promhttp.HandlerFor(e.metricsReg, promhttp.HandlerOpts{}))
	}
	r.Group(func(r chi.Router) {
		r.Use(requireAPIVersion)
		r.Get("/indexes", e.listIndexes)
		r.Post("/indexes", e.createIndex)
		r.Get("/indexes/{index}", e.getIndex)
		r.Put("/indexes/{index}", e.putIndex)
		r.Delete("/indexes/{index}", e.deleteIndex)
		r.HandleFunc("/indexes/{index}/*", e.documents)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "ResourceNotFound", "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed")
	})
	return r
}

func requireAPIVersion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api-version") == "" {
			writeError(w, http.StatusBadRequest, "MissingApiVersionParameter", "the api-version query parameter is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- index management ---

func (e *Emulator) listIndexes(w http.ResponseWriter, r *http.Request) {
	defs := e.registry.list()
	if r.URL.Query().Get("$select") == "name" {
		names := make([]map[string]string, 0, len(defs))
		for _, d := range defs {
			names = append(names, map[string]string{"name": d.Name()})
		}
		writeJSON(w, http.StatusOK, map[string]any{"value": names})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": defs})
}

func (e *Emulator) createIndex(w http.ResponseWriter, r *http.Request) {
	def, err := decodeDefinition(r.Body)
	if err != nil {
		e.handleError(w, r, err)
		return
	}
	if def.Name() == "" {
		e.handleError(w, r, badRequestf("index name is required"))
		return
	}
	if err := e.registry.create(def); err != nil {
		e.handleError(w, r, err)
		return
	}
	logpkg.FromContext(r.Context()).Debug("index created", zap.String("index", def.Name()))
	writeJSON(w, http.StatusCreated, def)
}

func (e *Emulator) getIndex(w http.ResponseWriter, r *http.Request) {
	s, err := e.registry.get(pathParam(r, "index"))
	if err != nil {
		e.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.definition())
}

func (e *Emulator) putIndex(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "index")
	def, err := decodeDefinition(r.Body)
	if err != nil {
		e.handleError(w, r, err)
		return
	}
	if def.Name() == "" {
		def = def.WithName(name)
	}
	if def.Name() != name {
		e.handleError(w, r, badRequestf("index name '%s' in the body does not match '%s' in the URL", def.Name(), name))
		return
	}
	created, err := e.registry.put(def)
	if err != nil {
		e.handleError(w, r, err)
		return
	}
	if created {
		writeJSON(w, http.StatusCreated, def)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *Emulator) deleteIndex(w http.ResponseWriter, r *http.Request) {
	if err := e.registry.delete(pathParam(r, "index")); err != nil {
		e.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeDefinition(body io.Reader) (domindex.Definition, error) {
	var def domindex.Definition
	if err := json.NewDecoder(body).Decode(&def); err != nil {
		return domindex.Definition{}, badRequestf("invalid index definition: %v", err)
	}
	return def, nil
}

// --- documents ---

// documents dispatches every /indexes/{index}/... route. Keys inside docs('...')
// may contain any character, so the tail is matched by hand instead of by pattern.
func (e *Emulator) documents(w http.ResponseWriter, r *http.Request) {
	s, err := e.registry.get(pathParam(r, "index"))
	if err != nil {
		e.handleError(w, r, err)
		return
	}
	tail := pathParam(r, "*")
	switch {
	case tail == "docs" && r.Method == http.MethodGet:
		e.search(w, r, s)
	case tail == "docs/suggest" && r.Method == http.MethodGet:
		e.suggest(w, r, s)
	case tail == "docs/$count" && r.Method == http.MethodGet:
		e.count(w, s)
	case tail == "docs/index" && r.Method == http.MethodPost:
		e.indexBatch(w, r, s)
	case strings.HasPrefix(tail, "docs(") && strings.HasSuffix(tail, ")") && r.Method == http.MethodGet:
		key, err := parseKeyLiteral(tail[len("docs(") : len(tail)-1])
		if err != nil {
			e.handleError(w, r, err)
			return
		}
		e.lookup(w, r, s, key)
	default:
		writeError(w, http.StatusNotFound, "ResourceNotFound", "resource not found")
	}
}

// parseKeyLiteral decodes an OData string literal: 'value' with quotes doubled.
func parseKeyLiteral(lit string) (string, error) {
	if len(lit) < 2 || lit[0] != '\'' || lit[len(lit)-1] != '\'' {
		return "", badRequestf("document key must be a quoted string literal")
	}
	return strings.ReplaceAll(lit[1:len(lit)-1], "''", "'"), nil
}

func (e *Emulator) search(w http.ResponseWriter, r *http.Request, s *indexStore) {
	p, err := parseSearchParams(r.URL.Query())
	if err != nil {
		e.handleError(w, r, err)
		return
	}
	page, err := s.search(r.Context(), p)
	if err != nil {
		e.handleError(w, r, err)
		return
	}

	var fields []document.Field
	if p.count {
		fields = append(fields, document.Field{Key: "@odata.count", Value: page.total})
	}
	if p.coverage {
		fields = append(fields, document.Field{Key: "@search.coverage", Value: float64(100)})
	}
	if page.facets != nil {
		fields = append(fields, document.Field{Key: "@search.facets", Value: page.facets})
	}
	hits := make([]document.Document, 0, len(page.hits))
	for _, m := range page.hits {
		hf := []document.Field{{Key: "@search.score", Value: m.score}}
		if len(m.highlights) > 0 {
			hf = append(hf, document.Field{Key: "@search.highlights", Value: m.highlights})
		}
		hf = append(hf, s.project(m.doc, p.selectFields).Fields()...)
		hits = append(hits, document.New(hf...))
	}
	fields = append(fields, document.Field{Key: "value", Value: hits})
	if page.hasMore {
		fields = append(fields, document.Field{Key: "@odata.nextLink", Value: nextLink(r, page.nextSkip)})
	}
	writeJSON(w, http.StatusOK, document.New(fields...))
}

func nextLink(r *http.Request, skip int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	q := r.URL.Query()
	q.Set("$skip", strconv.Itoa(skip))
	u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: q.Encode()}
	return u.String()
}

func (e *Emulator) suggest(w http.ResponseWriter, r *http.Request, s *indexStore) {
	p, err := parseSuggestParams(r.URL.Query())
	if err != nil {
		e.handleError(w, r, err)
		return
	}
	out, err := s.suggest(r.Context(), p)
	if err != nil {
		e.handleError(w, r, err)
		return
	}
	hits := make([]document.Document, 0, len(out))
	for _, sg := range out {
		fields := append([]document.Field{{Key: "@search.text", Value: sg.text}}, sg.doc.Fields()...)
		hits = append(hits, document.New(fields...))
	}
	fields := []document.Field{{Key: "value", Value: hits}}
	if p.coverage {
		fields = append(fields, document.Field{Key: "@search.coverage", Value: float64(100)})
	}
	writeJSON(w, http.StatusOK, document.New(fields...))
}

func (e *Emulator) count(w http.ResponseWriter, s *indexStore) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "\ufeff"+strconv.Itoa(s.count()))
}

func (e *Emulator) lookup(w http.ResponseWriter, r *http.Request, s *indexStore, key string) {
	doc, err := s.lookup(key)
	if err != nil {
		e.handleError(w, r, err)
		return
	}
	selectFields := splitList(r.URL.Query().Get("$select"))
	if err := s.validateSelect(selectFields); err != nil {
		e.handleError(w, r, err)
		return
	}
	fields := append([]document.Field{{Key: "@odata.context", Value: contextURL(r)}},
		s.project(doc, selectFields).Fields()...)
	writeJSON(w, http.StatusOK, document.New(fields...))
}

func contextURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/indexes('" + pathParam(r, "index") + "')/$metadata#docs/$entity"
}

func (e *Emulator) indexBatch(w http.ResponseWriter, r *http.Request, s *indexStore) {
	var body struct {
		Value []json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		e.handleError(w, r, badRequestf("invalid batch body: %v", err))
		return
	}
	if len(body.Value) == 0 {
		e.handleError(w, r, badRequestf("no indexing actions found in the request"))
		return
	}
	entries := make([]document.Document, 0, len(body.Value))
	for i, raw := range body.Value {
		doc, err := document.Decode(raw)
		if err != nil {
			e.handleError(w, r, badRequestf("action %d: %v", i, err))
			return
		}
		entries = append(entries, doc)
	}
	items, err := s.apply(entries)
	if err != nil {
		e.handleError(w, r, err)
		return
	}
	status := http.StatusOK
	for _, it := range items {
		if !it.Status {
			status = http.StatusMultiStatus
			break
		}
	}
	logpkg.FromContext(r.Context()).Debug("batch applied",
		zap.Int("actions", len(items)), zap.Int("status", status))
	writeJSON(w, status, map[string]any{"value": items})
}

// --- helpers ---

// pathParam returns a chi URL parameter, unescaping it when chi routed on the raw path.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; odata.metadata=minimal")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

func filterErrorHandler(w http.ResponseWriter, err error) bool {
	var fe *filterError
	if !errors.As(err, &fe) {
		return false
	}
	writeError(w, http.StatusBadRequest, "InvalidRequestParameter", fe.Error())
	return true
}

func (e *Emulator) handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	for _, h := range e.errorHandlers {
		if h(w, err) {
			log.Debug("request rejected", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "InternalServerError", "internal error")
}
