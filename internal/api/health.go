package api

import (
	"context"
	"net/http"

	"candidate-notifier/internal/common/admission"
)

type tablesResponse struct {
	Candidates   string `json:"candidates"`
	Requirements string `json:"requirements"`
	Tracking     string `json:"tracking"`
}

type dispatcherStats struct {
	Pending  int `json:"pending"`
	Capacity int `json:"capacity"`
}

type healthResponse struct {
	Status        string            `json:"status"`
	Service       string            `json:"service"`
	Version       string            `json:"version,omitempty"`
	Timestamp     string            `json:"timestamp"`
	Configuration Features          `json:"configuration"`
	Tables        tablesResponse    `json:"database_tables"`
	Admission     *admission.Stats  `json:"admission,omitempty"`
	Dispatcher    dispatcherStats   `json:"dispatcher"`
	Checks        map[string]string `json:"checks,omitempty"`
}

func (s *Server) tables() tablesResponse {
	return tablesResponse{
		Candidates:   s.opts.Tables.Candidates,
		Requirements: s.opts.Tables.Requirements,
		Tracking:     s.opts.Tables.Tracking,
	}
}

// handleHealth reports configuration and load. A failing store ping turns the
// response into 503 "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "healthy",
		Service:       s.opts.Service,
		Version:       s.opts.Version,
		Timestamp:     s.now().Format("2006-01-02T15:04:05.000Z07:00"),
		Configuration: s.opts.Features,
		Tables:        s.tables(),
		Dispatcher: dispatcherStats{
			Pending:  s.dispatcher.Pending(),
			Capacity: s.dispatcher.Capacity(),
		},
	}
	if s.admission != nil {
		stats := s.admission.Stats()
		resp.Admission = &stats
	}

	status := http.StatusOK
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.storePingTimeout)
		defer cancel()

		resp.Checks = map[string]string{"store": "ok"}
		if err := s.store.Ping(ctx); err != nil {
			s.logger.Warn("store health check failed", map[string]interface{}{"error": err})
			resp.Checks["store"] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, resp)
}

type rootResponse struct {
	Service      string            `json:"service"`
	Version      string            `json:"version,omitempty"`
	Status       string            `json:"status"`
	Schema       tablesResponse    `json:"schema"`
	Capabilities []string          `json:"capabilities"`
	Endpoints    map[string]string `json:"endpoints"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Service:      s.opts.Service,
		Version:      s.opts.Version,
		Status:       "active",
		Schema:       s.tables(),
		Capabilities: []string{"email", "sms"},
		Endpoints: map[string]string{
			"webhook": "/webhook/job-match",
			"replay":  "/webhook/replay",
			"health":  "/health",
			"metrics": "/metrics",
		},
	})
}
