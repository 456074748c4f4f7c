package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates the service answers and the index is usable.
	Healthy Status = "ok"
	// Degraded indicates the service answers but the index is not usable.
	Degraded Status = "degraded"
	// Unhealthy indicates the service cannot be reached.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckSkipped indicates a check that did not run because the service is down.
	CheckSkipped CheckResult = "skipped"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
	Errors map[string]string      `json:"errors,omitempty"`
}

// Service coordinates health checks.
type Service struct {
	service Checker
	index   Checker
}

// New creates a Service. index can be nil.
func New(service, index Checker) *Service {
	return &Service{service: service, index: index}
}

// Check probes the service, then the index when the service answered.
func (s *Service) Check(ctx context.Context) Report {
	r := Report{Status: Healthy, Checks: make(map[string]CheckResult)}

	if err := s.service.Check(ctx); err != nil {
		r.fail("service", err)
		r.Status = Unhealthy
		if s.index != nil {
			r.Checks["index"] = CheckSkipped
		}
		return r
	}
	r.Checks["service"] = CheckOK

	if s.index != nil {
		if err := s.index.Check(ctx); err != nil {
			r.fail("index", err)
			r.Status = Degraded
		} else {
			r.Checks["index"] = CheckOK
		}
	}
	return r
}

func (r *Report) fail(name string, err error) {
	r.Checks[name] = CheckError
	if r.Errors == nil {
		r.Errors = make(map[string]string)
	}
	r.Errors[name] = err.Error()
}
