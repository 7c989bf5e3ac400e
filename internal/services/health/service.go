// Package health reports process readiness: backing stores, the job queue and
// which analysis providers are configured.
package health

import (
	"context"
	"sort"
	"time"
)

// Status values.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// Check tests one dependency; a nil error means healthy.
type Check func(ctx context.Context) error

// Report is the /health payload.
type Report struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Providers map[string]bool   `json:"providers,omitempty"`
	Queue     map[string]any    `json:"queue,omitempty"`
}

// Service encapsulates health-related checks.
type Service struct {
	checks    map[string]Check
	providers map[string]bool
	queue     func() map[string]any
	timeout   time.Duration
}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{checks: map[string]Check{}, providers: map[string]bool{}, timeout: 2 * time.Second}
}

// AddCheck registers a named check.
func (s *Service) AddCheck(name string, check Check) *Service {
	s.checks[name] = check
	return s
}

// SetProvider records whether a provider has credentials.
func (s *Service) SetProvider(name string, enabled bool) *Service {
	s.providers[name] = enabled
	return s
}

// SetQueueStats wires a queue snapshot into the report.
func (s *Service) SetQueueStats(fn func() map[string]any) *Service {
	s.queue = fn
	return s
}

// Status runs every check. Any failing check degrades the report; provider
// enablement is informational.
func (s *Service) Status(ctx context.Context) Report {
	r := Report{Status: StatusOK, Checks: map[string]string{}}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.checks[name](cctx)
		cancel()
		if err != nil {
			r.Status = StatusDegraded
			r.Checks[name] = err.Error()
			continue
		}
		r.Checks[name] = StatusOK
	}

	if len(s.providers) > 0 {
		r.Providers = make(map[string]bool, len(s.providers))
		for k, v := range s.providers {
			r.Providers[k] = v
		}
	}
	if s.queue != nil {
		r.Queue = s.queue()
	}
	return r
}
