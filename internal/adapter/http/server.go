package http

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/odata-mobility-chart/internal/domain"
)

// ResultSource exposes the most recent successful run.
type ResultSource interface {
	sharedobs.ReadinessChecker
	Last() (domain.RunResult, bool)
}

// Server serves the rendered chart alongside health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	chartPath  string
	source     ResultSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server. The chart page at chartPath is served on
// / and /chart.html once this process has completed a run; /api/chart returns
// the latest series as JSON.
func NewServer(addr, chartPath string, source ResultSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		chartPath: chartPath,
		source:    source,
		logger:    logger,
	}

	mux.HandleFunc("GET /{$}", s.handleChart)
	mux.HandleFunc("GET /chart.html", s.handleChart)
	mux.HandleFunc("GET /api/chart", handleChartData(source))
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(source))
	mux.Handle("GET /metrics", promhttp.Handler())

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

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	// A file left by an earlier process is not served.
	if _, ok := s.source.Last(); !ok {
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "chart not rendered yet"})
		return
	}
	f, err := os.Open(s.chartPath)
	if errors.Is(err, fs.ErrNotExist) {
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "chart not rendered yet"})
		return
	}
	if err != nil {
		s.logger.Error("open chart", "path", s.chartPath, "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "chart unavailable"})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.logger.Error("stat chart", "path", s.chartPath, "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "chart unavailable"})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, "chart.html", info.ModTime(), f)
}

type chartResponse struct {
	RunID       string           `json:"run_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	Datasets    []string         `json:"datasets"`
	Rows        int              `json:"rows"`
	Chart       domain.ChartData `json:"chart"`
}

func handleChartData(source ResultSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		result, ok := source.Last()
		if !ok {
			sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no run completed"})
			return
		}
		sharedobs.WriteJSON(w, http.StatusOK, chartResponse{
			RunID:       result.RunID,
			GeneratedAt: result.GeneratedAt,
			Datasets:    result.Datasets,
			Rows:        len(result.Rows),
			Chart:       result.Chart,
		})
	}
}
