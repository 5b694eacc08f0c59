package domain

import "time"

// RunResult is the output of one fetch-join-aggregate run, handed to the
// renderer and every exporter.
type RunResult struct {
	RunID       string
	GeneratedAt time.Time
	Datasets    []string
	Rows        []DataRow
	Chart       ChartData
}

// NewRunResult stamps a result with the package clock.
func NewRunResult(runID string, datasets []string, rows []DataRow, chart ChartData) RunResult {
	return RunResult{
		RunID:       runID,
		GeneratedAt: clock.Now().UTC(),
		Datasets:    datasets,
		Rows:        rows,
		Chart:       chart,
	}
}
