package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/noah-isme/toko-carriers/internal/common"
)

const defaultProbeTimeout = 500 * time.Millisecond

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips the process-wide readiness flag. The server clears it when
// draining so load balancers stop routing before connections close.
func SetReady(v bool) { ready.Store(v) }

// Probe is one dependency checked by the readiness endpoint.
type Probe struct {
	Name    string
	Timeout time.Duration
	Ping    func(ctx context.Context) error
}

// Handler serves the liveness and readiness endpoints. Carrier APIs are not probed:
// an outage there degrades relay search but the service itself stays usable.
type Handler struct {
	Probes []Probe
}

// Report is the readiness body.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe concurrently, each under its own timeout.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() {
		common.JSON(w, http.StatusServiceUnavailable, Report{Status: "draining"})
		return
	}
	if len(h.Probes) == 0 {
		common.JSON(w, http.StatusServiceUnavailable, Report{Status: "unavailable"})
		return
	}

	results := make([]string, len(h.Probes))
	var wg sync.WaitGroup
	for i, p := range h.Probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = run(r.Context(), p)
		}()
	}
	wg.Wait()

	rep := Report{Status: "ok", Checks: make(map[string]string, len(h.Probes))}
	code := http.StatusOK
	for i, p := range h.Probes {
		rep.Checks[p.Name] = results[i]
		if results[i] != "ok" {
			rep.Status = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}
	common.JSON(w, code, rep)
}

func run(ctx context.Context, p Probe) string {
	if p.Ping == nil {
		return "not configured"
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return err.Error()
	}
	return "ok"
}
