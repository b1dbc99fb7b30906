// Package health serves /health/live and /health/ready. Readiness runs every
// registered probe in parallel, each under its own deadline, and reports the
// worst result.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

func (s Status) severity() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Check probes one dependency. It should honour ctx; a probe that outlives
// its deadline is reported down.
type Check func(ctx context.Context) Result

type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Took    string `json:"took,omitempty"`
}

type Report struct {
	Status     Status            `json:"status"`
	Components map[string]Result `json:"components"`
	CheckedAt  time.Time         `json:"checkedAt"`
}

type Checker struct {
	mu      sync.RWMutex
	probes  map[string]Check
	timeout time.Duration
	started time.Time
	log     *slog.Logger
}

// NewChecker returns a Checker whose probes each get timeout (default 2s).
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{
		probes:  make(map[string]Check),
		timeout: timeout,
		started: time.Now(),
		log:     slog.Default().With("component", "health"),
	}
}

// Register adds or replaces the probe called name.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	c.probes[name] = check
	c.mu.Unlock()
}

// Run probes every component. With nothing registered the service is up.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	probes := make(map[string]Check, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.RUnlock()

	results := make(chan namedResult, len(probes))
	for name, probe := range probes {
		go func() { results <- namedResult{name, c.probe(ctx, probe)} }()
	}

	report := Report{Status: StatusUp, Components: make(map[string]Result, len(probes)), CheckedAt: time.Now().UTC()}
	for range len(probes) {
		r := <-results
		report.Components[r.name] = r.Result
		if r.Status.severity() > report.Status.severity() {
			report.Status = r.Status
		}
		if r.Status != StatusUp {
			c.log.Debug("component not up", "name", r.name, "status", r.Status, "message", r.Message)
		}
	}
	return report
}

type namedResult struct {
	name string
	Result
}

func (c *Checker) probe(ctx context.Context, check Check) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan Result, 1)
	go func() { done <- check(ctx) }()

	var r Result
	select {
	case r = <-done:
	case <-ctx.Done():
		r = Result{Status: StatusDown, Message: fmt.Sprintf("no answer within %v", c.timeout)}
	}
	r.Took = time.Since(start).Round(time.Millisecond).String()
	return r
}

// LiveHandler answers 200 while the process can serve HTTP at all.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(c.started).Round(time.Second).String(),
		})
	}
}

// ReadyHandler answers 503 only when some component is down; degraded
// components are listed but the service stays in rotation.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		code := http.StatusOK
		if report.Status == StatusDown {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
