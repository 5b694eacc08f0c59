package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/odata-mobility-chart/internal/domain"
	"github.com/couchcryptid/odata-mobility-chart/internal/observability"
)

// Fetcher retrieves the OData documents of a dataset.
type Fetcher interface {
	FetchIndex(ctx context.Context, rootURL string) (domain.ResourceIndex, error)
	FetchLookup(ctx context.Context, idx domain.ResourceIndex, name string) (*domain.LookupTable, error)
	FetchFacts(ctx context.Context, idx domain.ResourceIndex) ([]domain.FactRecord, error)
}

// Renderer turns a run result into the chart output.
type Renderer interface {
	Render(ctx context.Context, result domain.RunResult) error
}

// Exporter writes a run result to an additional sink.
type Exporter interface {
	Name() string
	Export(ctx context.Context, result domain.RunResult) error
}

// Pipeline orchestrates fetch, join, aggregate, render and export.
type Pipeline struct {
	datasets  []string
	panels    []domain.Panel
	metric    domain.MetricSelector
	fetcher   Fetcher
	renderer  Renderer
	exporters []Exporter
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock

	ready atomic.Bool
	mu    sync.Mutex // serializes runs
	last  atomic.Pointer[domain.RunResult]
}

// New creates a Pipeline over the given datasets and panels. Rows of all
// datasets are pooled in declaration order before aggregation.
func New(datasets []string, panels []domain.Panel, f Fetcher, r Renderer, exporters []Exporter, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		datasets:  datasets,
		panels:    panels,
		metric:    domain.PublicTransport,
		fetcher:   f,
		renderer:  r,
		exporters: exporters,
		logger:    logger,
		metrics:   metrics,
		clock:     domain.Clock(),
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no chart has been rendered yet")
	}
	return nil
}

// Last returns the most recent successful result, if any.
func (p *Pipeline) Last() (domain.RunResult, bool) {
	r := p.last.Load()
	if r == nil {
		return domain.RunResult{}, false
	}
	return *r, true
}

// RunOnce performs one complete run. Any error aborts the run; nothing is
// rendered or exported from partial data.
func (p *Pipeline) RunOnce(ctx context.Context) (domain.RunResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.clock.Now()
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)

	result, err := p.run(ctx, runID, logger)
	p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())
	if err != nil {
		p.metrics.Runs.WithLabelValues("error").Inc()
		return domain.RunResult{}, err
	}

	p.metrics.Runs.WithLabelValues("success").Inc()
	p.metrics.LastSuccess.Set(float64(result.GeneratedAt.Unix()))
	p.metrics.SeriesRendered.Set(float64(result.Chart.SeriesCount()))
	p.last.Store(&result)
	p.ready.Store(true)
	logger.Info("run complete", "duration", p.clock.Since(start).Round(time.Millisecond))
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, runID string, logger *slog.Logger) (domain.RunResult, error) {
	rows, err := p.collect(ctx, logger)
	if err != nil {
		return domain.RunResult{}, err
	}
	logger.Info("total rows", "rows", len(rows))

	chart, err := domain.Aggregate(rows, p.panels, p.metric)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("aggregate: %w", err)
	}
	logger.Info("aggregated", "years", len(chart.Years), "panels", len(chart.Panels), "series", chart.SeriesCount())

	result := domain.NewRunResult(runID, p.datasets, rows, chart)

	if err := p.renderer.Render(ctx, result); err != nil {
		return domain.RunResult{}, err
	}

	for _, e := range p.exporters {
		if err := e.Export(ctx, result); err != nil {
			p.metrics.ExportsCompleted.WithLabelValues(e.Name(), "error").Inc()
			return domain.RunResult{}, fmt.Errorf("export %s: %w", e.Name(), err)
		}
		p.metrics.ExportsCompleted.WithLabelValues(e.Name(), "success").Inc()
		logger.Info("exported", "exporter", e.Name())
	}
	return result, nil
}

// RunEvery runs immediately and then on every tick until ctx is cancelled.
// Failed runs are logged and the previous chart stays in place.
func (p *Pipeline) RunEvery(ctx context.Context, interval time.Duration) {
	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("run failed", "error", err)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("refresh loop stopping", "reason", ctx.Err())
			return
		case <-ticker.Chan():
		}
	}
}
