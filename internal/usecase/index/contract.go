package index

import (
	"context"

	"github.com/kailas-cloud/searchidx/internal/transport/rest"
)

// Transport executes one wire exchange against the search service.
type Transport interface {
	Do(ctx context.Context, req rest.Request) (rest.Response, error)
}

// Retrier runs an exchange under the retry policy.
type Retrier interface {
	Do(ctx context.Context, tr rest.Transport, req rest.Request) (rest.Response, error)
}
