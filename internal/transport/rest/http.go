package rest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/kailas-cloud/searchidx/internal/domain"
	"github.com/kailas-cloud/searchidx/internal/metrics"
)

// Operation names, used as metric and log labels.
const (
	OpExists         = "exists"
	OpGet            = "get"
	OpCreate         = "create"
	OpCreateOrUpdate = "create_or_update"
	OpDelete         = "delete"
	OpIndex          = "index"
	OpSearch         = "search"
	OpSuggest        = "suggest"
	OpLookup         = "lookup"
	OpCount          = "count"
)

// Request is one wire exchange.
type Request struct {
	Op     string
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is the raw outcome of an exchange. Any status is a Response;
// only failures without a status are errors.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport executes a request.
type Transport interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request) (Response, error)

// Do implements Transport.
func (f TransportFunc) Do(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

// MaxResponseBytes bounds the response body read into memory.
const MaxResponseBytes = 64 << 20

// DefaultTimeout bounds one HTTP exchange when no client is supplied.
const DefaultTimeout = 60 * time.Second

// HTTPTransport executes requests with net/http.
type HTTPTransport struct {
	client  *http.Client
	maxBody int64
}

// NewHTTPTransport creates a transport. A nil client selects one with DefaultTimeout.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPTransport{client: client, maxBody: MaxResponseBytes}
}

// Do implements Transport. Failures without an HTTP status wrap domain.ErrNetwork,
// or domain.ErrInterrupted when ctx ended.
func (t *HTTPTransport) Do(ctx context.Context, req Request) (Response, error) {
	var body io.Reader = http.NoBody
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return Response{}, fmt.Errorf("build http request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		metrics.TransportRequestsTotal.WithLabelValues(req.Op, "error").Inc()
		return Response{}, wrapNetwork(ctx, req, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		metrics.TransportRequestsTotal.WithLabelValues(req.Op, "error").Inc()
		return Response{}, wrapNetwork(ctx, req, fmt.Errorf("read body: %w", err))
	}
	if int64(len(data)) > t.maxBody {
		metrics.TransportRequestsTotal.WithLabelValues(req.Op, "error").Inc()
		return Response{}, fmt.Errorf("%s %s: http %d: %w: body exceeds %d bytes",
			req.Method, req.Op, resp.StatusCode, domain.ErrResponseTooLarge, t.maxBody)
	}

	metrics.TransportRequestsTotal.WithLabelValues(req.Op, strconv.Itoa(resp.StatusCode)).Inc()
	metrics.TransportRequestDuration.WithLabelValues(req.Op).Observe(time.Since(start).Seconds())

	return Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func wrapNetwork(ctx context.Context, req Request, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s %s: %w: %w", req.Method, req.Op, domain.ErrInterrupted, ctxErr)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w: %w", req.Method, req.Op, domain.ErrInterrupted, err)
	}
	return fmt.Errorf("%s %s: %w: %w", req.Method, req.Op, domain.ErrNetwork, err)
}
