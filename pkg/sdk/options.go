package searchidx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchidx/internal/retry"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

// Sleeper waits between retry attempts. Sleep must return ctx.Err() when ctx ends first.
type Sleeper = retry.Sleeper

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc = retry.SleeperFunc

type clientConfig struct {
	apiKey     string
	apiVersion string
	httpClient *http.Client
	transport  Transport

	maxAttempts int
	baseDelay   time.Duration
	sleeper     Sleeper

	maxBatchSize     int
	batchConcurrency int

	logger     *slog.Logger
	zapLogger  *zap.Logger
	metricsReg prometheus.Registerer
}

// WithAPIVersion overrides the api-version query parameter.
// Default: 2016-09-01.
func WithAPIVersion(v string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiVersion = v
	})
}

// WithHTTPClient sets the HTTP client used for requests.
// Default: a client with a 60 second timeout.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// WithTransport replaces the HTTP transport entirely. Useful for tests and
// for routing requests through custom middleware.
func WithTransport(t Transport) Option {
	return optionFunc(func(c *clientConfig) {
		c.transport = t
	})
}

// WithMaxAttempts sets how many times a request answered with 503 is sent.
// Default and maximum: 3. Values <= 0 or above 3 keep the default.
func WithMaxAttempts(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxAttempts = n
	})
}

// WithBaseDelay sets the backoff unit: the wait after attempt i is base*(i+1).
// Default: 30s (so 60s, then 90s).
func WithBaseDelay(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseDelay = d
	})
}

// WithSleeper replaces the backoff timer.
func WithSleeper(s Sleeper) Option {
	return optionFunc(func(c *clientConfig) {
		c.sleeper = s
	})
}

// WithMaxBatchSize sets the chunk size used by IndexDocuments.
// Default: 1000, the service limit.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithBatchConcurrency sets how many IndexDocuments chunks are in flight.
// Default: 4.
func WithBatchConcurrency(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchConcurrency = n
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithZapLogger routes the retry and batching logs to l.
// Pass nil to disable (default).
func WithZapLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.zapLogger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations,
// HTTP requests and retries) on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
