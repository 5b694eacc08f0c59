package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/odata-mobility-chart/internal/adapter/http"
	"github.com/couchcryptid/odata-mobility-chart/internal/domain"
)

type mockSource struct {
	err    error
	result *domain.RunResult
}

func (m *mockSource) CheckReadiness(_ context.Context) error { return m.err }

func (m *mockSource) Last() (domain.RunResult, bool) {
	if m.result == nil {
		return domain.RunResult{}, false
	}
	return *m.result, true
}

func newTestServer(t *testing.T, source *mockSource) (*httpadapter.Server, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chart.html")
	return httpadapter.NewServer(":0", path, source, slog.Default()), path
}

func TestHealthzReturns200(t *testing.T) {
	srv, _ := newTestServer(t, &mockSource{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv, _ := newTestServer(t, &mockSource{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv, _ := newTestServer(t, &mockSource{err: fmt.Errorf("no chart has been rendered yet")})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no chart has been rendered yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &mockSource{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestChartServedOnRootAndFileName(t *testing.T) {
	srv, path := newTestServer(t, &mockSource{result: &domain.RunResult{RunID: "run-1"}})
	require.NoError(t, os.WriteFile(path, []byte("<html>chart</html>"), 0o644))

	for _, target := range []string{"/", "/chart.html"} {
		t.Run(target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
			assert.Equal(t, "<html>chart</html>", rec.Body.String())
		})
	}
}

func TestChartReturns503BeforeFirstRender(t *testing.T) {
	srv, _ := newTestServer(t, &mockSource{})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChartFromEarlierProcessNotServedBeforeFirstRun(t *testing.T) {
	srv, path := newTestServer(t, &mockSource{})
	require.NoError(t, os.WriteFile(path, []byte("<html>stale</html>"), 0o644))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "stale")
}

func TestUnknownPathReturns404(t *testing.T) {
	srv, _ := newTestServer(t, &mockSource{})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChartDataEndpoint(t *testing.T) {
	result := domain.RunResult{
		RunID:       "run-1",
		GeneratedAt: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
		Datasets:    []string{"https://example.test/83496NED"},
		Rows:        make([]domain.DataRow, 3),
		Chart: domain.ChartData{
			Years: []string{"2015", "2016"},
			Panels: []domain.PanelSeries{{
				Title: "Geslacht",
				Series: []domain.Series{{
					Name: "Geslacht: Mannen",
					Points: []domain.Point{
						{Year: 2015, Value: domain.Absent()},
						{Year: 2016, Value: domain.Present(30)},
					},
				}},
			}},
		},
	}
	srv, _ := newTestServer(t, &mockSource{result: &result})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chart", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"run_id": "run-1",
		"generated_at": "2024-03-01T12:00:00Z",
		"datasets": ["https://example.test/83496NED"],
		"rows": 3,
		"chart": {
			"years": ["2015", "2016"],
			"panels": [{"title": "Geslacht", "series": [{"name": "Geslacht: Mannen", "points": [
				{"year": 2015, "value": null},
				{"year": 2016, "value": 30}
			]}]}]
		}
	}`, rec.Body.String())
}

func TestChartDataEndpointBeforeFirstRun(t *testing.T) {
	srv, _ := newTestServer(t, &mockSource{})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chart", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
