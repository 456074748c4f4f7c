// Package retry runs one logical request against the transport and retries it
// while the service answers 503.
package retry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchidx/internal/domain"
	"github.com/kailas-cloud/searchidx/internal/logger"
	"github.com/kailas-cloud/searchidx/internal/metrics"
	"github.com/kailas-cloud/searchidx/internal/transport/rest"
)

// Defaults: three attempts, waiting 60s then 90s.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 30 * time.Second
)

// Sleeper waits for d or until ctx ends, returning ctx.Err() in the latter case.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep implements Sleeper.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TimerSleeper waits on a real timer.
var TimerSleeper Sleeper = timerSleeper{}

// Policy is a bounded retry policy. The zero value uses the defaults.
// MaxAttempts can lower the budget but never raise it above DefaultMaxAttempts.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleeper     Sleeper
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 || p.MaxAttempts > DefaultMaxAttempts {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.Sleeper == nil {
		p.Sleeper = TimerSleeper
	}
	return p
}

// Delay returns the wait after failed attempt n (1-based): BaseDelay*(n+1).
func (p Policy) Delay(attempt int) time.Duration {
	return p.normalized().BaseDelay * time.Duration(attempt+1)
}

// Classify maps a response onto the error taxonomy. Statuses below 400 are success.
func Classify(resp rest.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}
	return domain.NewServiceError(resp.StatusCode, resp.Body)
}

// Once performs a single classified exchange. Errors are not prefixed with the
// operation name; callers add their own context.
func Once(ctx context.Context, tr rest.Transport, req rest.Request) (rest.Response, error) {
	resp, err := tr.Do(ctx, req)
	if err != nil {
		return rest.Response{}, err //nolint:wrapcheck // transport errors already carry op context
	}
	if err := Classify(resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// Do performs the exchange, retrying the whole request on 503 until the attempt
// budget is spent. Other statuses and transport errors return immediately.
func (p Policy) Do(ctx context.Context, tr rest.Transport, req rest.Request) (rest.Response, error) {
	p = p.normalized()
	log := logger.FromContext(ctx)

	var last error
	for attempt := 1; ; attempt++ {
		resp, err := tr.Do(ctx, req)
		if err != nil {
			return rest.Response{}, err //nolint:wrapcheck // transport errors already carry op context
		}
		cerr := Classify(resp)
		if cerr == nil {
			if attempt > 1 {
				log.Info("request succeeded after retry", zap.String("op", req.Op), zap.Int("attempt", attempt))
			}
			return resp, nil
		}
		last = cerr
		if resp.StatusCode != http.StatusServiceUnavailable {
			return resp, cerr
		}
		if attempt >= p.MaxAttempts {
			break
		}

		delay := p.Delay(attempt)
		log.Warn("service unavailable, retrying",
			zap.String("op", req.Op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.Duration("delay", delay),
		)
		metrics.RetriesTotal.WithLabelValues(req.Op).Inc()
		if err := p.Sleeper.Sleep(ctx, delay); err != nil {
			return rest.Response{}, fmt.Errorf("backoff before attempt %d: %w: %w",
				attempt+1, domain.ErrInterrupted, err)
		}
	}
	return rest.Response{}, fmt.Errorf("gave up after %d attempts: %w", p.MaxAttempts, last)
}
