package searchidx

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/searchidx/internal/domain"
)

// Outcome labels of searchidx_sdk_operations_total.
const (
	outcomeOK          = "ok"
	outcomeNotFound    = "not_found"
	outcomeTransient   = "transient"
	outcomeFatal       = "fatal"
	outcomeShape       = "shape"
	outcomeEncoding    = "encoding"
	outcomeNetwork     = "network"
	outcomeInterrupted = "interrupted"
	outcomeTooLarge    = "too_large"
	outcomeOther       = "other"
)

// outcomeOf maps an operation error onto the taxonomy in errors.go.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, domain.ErrNotFound):
		return outcomeNotFound
	case errors.Is(err, domain.ErrTransient):
		return outcomeTransient
	case errors.Is(err, domain.ErrFatal):
		return outcomeFatal
	case errors.Is(err, domain.ErrShape):
		return outcomeShape
	case errors.Is(err, domain.ErrEncoding), errors.Is(err, domain.ErrInvalidDefinition):
		return outcomeEncoding
	case errors.Is(err, domain.ErrNetwork):
		return outcomeNetwork
	case errors.Is(err, domain.ErrInterrupted):
		return outcomeInterrupted
	case errors.Is(err, domain.ErrResponseTooLarge):
		return outcomeTooLarge
	default:
		return outcomeOther
	}
}

// sdkMetrics holds the per-operation collectors.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "searchidx",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "SDK operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		// Buckets reach past the worst-case backoff of a retried call.
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "searchidx",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds, backoff waits included.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 240},
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers c, or swaps in the collector already registered
// under the same descriptor so several clients can share one registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("searchidx: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("searchidx: metric already registered as %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer records one log line and one metric sample per public operation.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
	index   string
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer, index string) (*observer, error) {
	o := &observer{logger: logger, index: index}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	outcome := outcomeOf(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, outcome).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}
	if o.logger == nil {
		return
	}

	attrs := []any{"op", op, "index", o.index, "duration", dur, "outcome", outcome}
	var se *domain.ServiceError
	if errors.As(err, &se) {
		attrs = append(attrs, "http_status", strconv.Itoa(se.StatusCode))
	}
	switch outcome {
	case outcomeOK:
		o.logger.Debug("operation completed", attrs...)
	case outcomeNotFound:
		o.logger.Debug("operation found nothing", attrs...)
	default:
		o.logger.Warn("operation failed", append(attrs, "error", err)...)
	}
}
