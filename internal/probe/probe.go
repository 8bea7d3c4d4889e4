// Package probe provides readiness probes for dependent services.
//
// The harness gates spec-test execution on a fixed set of TCP ports being
// reachable. Probes run concurrently and all resolve before any run
// decision is made; results are computed fresh on each check.
package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
)

// Service describes one dependent service to probe.
type Service struct {
	Name     string // Human-readable service name
	Port     int    // TCP port on localhost
	Required bool   // False = advisory: failure is reported but never blocks
	Hint     string // Remediation suggestion shown when unreachable
}

// Result is the outcome of probing a single service.
type Result struct {
	Service
	Reachable bool
}

// Report holds the results of all probes, in request order.
type Report struct {
	Results []Result
}

// String returns a human-readable summary of the result.
func (r Result) String() string {
	status := "✓"
	if !r.Reachable {
		status = "✗"
		if !r.Required {
			status = "⚠"
		}
	}
	return fmt.Sprintf("  %s %s (port %d)", status, r.Name, r.Port)
}

// CheckPort probes a single TCP port on localhost. Any error (connection
// refused, timeout, host error) resolves to false; it never propagates.
// Timeout semantics are the dialer's own; no extra layer is added.
func CheckPort(ctx context.Context, port int) bool {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// RunAll probes all services concurrently and waits for every probe to
// resolve (fan-out/fan-in, no short-circuit). Report order matches the
// order of services.
func RunAll(ctx context.Context, services []Service) *Report {
	results := make([]Result, len(services))

	var wg sync.WaitGroup
	for i, svc := range services {
		wg.Add(1)
		go func(i int, svc Service) {
			defer wg.Done()
			results[i] = Result{
				Service:   svc,
				Reachable: CheckPort(ctx, svc.Port),
			}
		}(i, svc)
	}
	wg.Wait()

	return &Report{Results: results}
}

// RequiredPassed reports whether every required service is reachable.
// Advisory services never affect the outcome.
func (r *Report) RequiredPassed() bool {
	for _, res := range r.Results {
		if res.Required && !res.Reachable {
			return false
		}
	}
	return true
}

// Unreachable returns the results for services that did not respond.
func (r *Report) Unreachable() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Reachable {
			out = append(out, res)
		}
	}
	return out
}
