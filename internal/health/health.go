// Package health serves liveness and readiness probes for the pipeline
// server.
//
//   - /healthz — liveness; a process that can answer HTTP is alive.
//   - /readyz  — readiness; 200 only while every registered [Check] passes.
//
// Checks are plain closures over pipeline state (microphone running, session
// not errored, synthesis endpoint reachable), registered at startup.
// Responses are JSON with a top-level "status" and a per-check map.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Check is a named readiness probe. Probe returns nil while the watched
// component is healthy.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler evaluates the registered checks on each /readyz request. The check
// list is fixed at construction; Handler is safe for concurrent use.
type Handler struct {
	checks []Check
}

// New builds a [Handler] over the given checks. They run sequentially in the
// order given.
func New(checks ...Check) *Handler {
	c := make([]Check, len(checks))
	copy(c, checks)
	return &Handler{checks: c}
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz always answers 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz answers 200 only when every check passes, 503 otherwise. Each check
// runs under a [checkTimeout] deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	results := make(map[string]string, len(h.checks))
	ready := true

	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Probe(ctx)
		cancel()

		if err != nil {
			results[c.Name] = "fail: " + err.Error()
			ready = false
		} else {
			results[c.Name] = "ok"
		}
	}

	rep := report{Status: "ok", Checks: results}
	status := http.StatusOK
	if !ready {
		rep.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rep)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
