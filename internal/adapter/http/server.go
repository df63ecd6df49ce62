package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/seedtime-etl/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Runner runs one pipeline pass on demand.
type Runner interface {
	Run(ctx context.Context) (pipeline.Report, error)
}

// Server exposes health, readiness, metrics, and manual run endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// POST /runs routes. runner may be nil, in which case /runs is not mounted.
func NewServer(addr string, ready sharedobs.ReadinessChecker, runner Runner, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// A manual run waits for every conversion, so no write timeout.
			IdleTimeout: 60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if runner != nil {
		mux.HandleFunc("POST /runs", s.handleRun(runner))
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// runResponse is the JSON body returned by POST /runs.
type runResponse struct {
	RunID     string   `json:"run_id"`
	Input     string   `json:"input"`
	Output    string   `json:"output,omitempty"`
	Skipped   bool     `json:"skipped"`
	Records   int      `json:"records"`
	Eligible  int      `json:"eligible"`
	Converted int      `json:"converted"`
	Failed    int      `json:"failed"`
	Sheets    []string `json:"sheets"`
	Error     string   `json:"error,omitempty"`
}

func newRunResponse(r pipeline.Report, err error) runResponse {
	resp := runResponse{
		RunID:     r.RunID,
		Input:     r.InputPath,
		Output:    r.OutputPath,
		Skipped:   r.Skipped,
		Records:   r.Summary.Records,
		Eligible:  r.Summary.Eligible,
		Converted: r.Summary.Converted,
		Failed:    r.Summary.Failed,
		Sheets:    make([]string, 0, len(r.Sheets)),
	}
	for _, s := range r.Sheets {
		resp.Sheets = append(resp.Sheets, s.Name)
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func (s *Server) handleRun(runner Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.logger.Info("manual run requested", "remote", r.RemoteAddr)
		report, err := runner.Run(r.Context())
		status := http.StatusOK
		if err != nil {
			status = http.StatusInternalServerError
		}
		sharedobs.WriteJSON(w, status, newRunResponse(report, err))
	}
}
