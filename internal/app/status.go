package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/vk/labrig/internal/executor"
	"github.com/vk/labrig/internal/plan"
)

// statusState tracks run progress for the status endpoints. The executor
// mutates step results on its own goroutine, so the HTTP handlers read this
// mutex-guarded snapshot instead.
type statusState struct {
	mu      sync.Mutex
	runID   string
	total   int
	current string
	done    int
	failed  int
	skipped int
}

func newStatusState(p *plan.Plan) *statusState {
	return &statusState{runID: p.RunID, total: len(p.Steps)}
}

func (s *statusState) stepStarted(sr *executor.StepResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = sr.Step.ID()
}

func (s *statusState) stepFinished(sr *executor.StepResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = ""
	switch sr.State {
	case executor.Done:
		s.done++
	case executor.Failed:
		s.failed++
	case executor.Skipped:
		s.skipped++
	}
}

func (s *statusState) snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := map[string]any{
		"run_id":  s.runID,
		"total":   s.total,
		"done":    s.done,
		"failed":  s.failed,
		"skipped": s.skipped,
	}
	if s.current != "" {
		snap["current_step"] = s.current
	}
	return snap
}

// healthzHandler answers liveness probes.
func (a *App) healthzHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// startStatusServer initializes and runs the status HTTP server. It lives
// for the remainder of the process; runs are one-shot so there is nothing
// to gracefully drain.
func (a *App) startStatusServer(port int, status *statusState) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.healthzHandler)
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		a.logger.Debug("Status endpoint hit.", "remote_addr", r.RemoteAddr)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status.snapshot()); err != nil {
			a.logger.Error("Failed to encode status response", "error", err)
		}
	})

	addr := fmt.Sprintf(":%d", port)

	go func() {
		a.logger.Info("🩺 Status server starting", "address", fmt.Sprintf("http://localhost%s/status", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			a.logger.Error("Status server failed", "error", err)
		}
	}()
}
