package batch

import "net/http"

// ItemResult is the outcome of one operation in an indexing batch.
type ItemResult struct {
	key          string
	succeeded    bool
	statusCode   int
	errorMessage *string
}

// NewItemResult creates an item result. errorMessage may be nil.
func NewItemResult(key string, succeeded bool, statusCode int, errorMessage *string) ItemResult {
	r := ItemResult{key: key, succeeded: succeeded, statusCode: statusCode}
	if errorMessage != nil {
		msg := *errorMessage
		r.errorMessage = &msg
	}
	return r
}

// Key returns the document key the outcome refers to.
func (r ItemResult) Key() string { return r.key }

// Succeeded reports whether the operation was applied.
func (r ItemResult) Succeeded() bool { return r.succeeded }

// StatusCode returns the per-item HTTP status.
func (r ItemResult) StatusCode() int { return r.statusCode }

// ErrorMessage returns the service's error message, if any.
func (r ItemResult) ErrorMessage() (string, bool) {
	if r.errorMessage == nil {
		return "", false
	}
	return *r.errorMessage, true
}

// Result is the outcome of an indexing batch.
type Result struct {
	status int
	items  []ItemResult
}

// NewResult creates a batch result with the overall HTTP status.
func NewResult(status int, items []ItemResult) Result {
	cp := make([]ItemResult, len(items))
	copy(cp, items)
	return Result{status: status, items: cp}
}

// Status returns the overall HTTP status of the batch request.
func (r Result) Status() int { return r.status }

// Partial reports a 207 response: some operations failed and Items must be inspected.
func (r Result) Partial() bool { return r.status == http.StatusMultiStatus }

// Items returns the per-operation outcomes in request order.
func (r Result) Items() []ItemResult {
	out := make([]ItemResult, len(r.items))
	copy(out, r.items)
	return out
}

// Failed returns the outcomes that did not succeed.
func (r Result) Failed() []ItemResult {
	var out []ItemResult
	for _, it := range r.items {
		if !it.succeeded {
			out = append(out, it)
		}
	}
	return out
}
