package echarts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/couchcryptid/odata-mobility-chart/internal/domain"
)

// missingPoint is the ECharts convention for "no value": the line shows a gap.
const missingPoint = "-"

// Options controls the page the panels are laid out on.
type Options struct {
	Title    string
	Subtitle string
	Width    int // whole page, pixels
	Height   int
}

// DefaultSubtitle describes the built-in four-panel layout.
const DefaultSubtitle = "Gebruik van het openbaar vervoer\ngeslacht, onderwijsniveau, migratieachtergrond, leeftijd"

// Assemble maps aggregated chart data onto one line chart per panel, laid
// out two by two. Every panel shares the year axis.
func Assemble(data domain.ChartData, o Options) []*charts.Line {
	cols, rows := 2, (len(data.Panels)+1)/2
	if rows < 1 {
		rows = 1
	}
	width := fmt.Sprintf("%dpx", o.Width/cols)
	height := fmt.Sprintf("%dpx", o.Height/rows)

	lines := make([]*charts.Line, 0, len(data.Panels))
	for i, p := range data.Panels {
		title := opts.Title{Title: p.Title}
		if i == 0 {
			title = opts.Title{Title: o.Title + ": " + p.Title, Subtitle: o.Subtitle}
		}

		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{
				PageTitle: o.Title,
				Width:     width,
				Height:    height,
			}),
			charts.WithTitleOpts(title),
			charts.WithLegendOpts(opts.Legend{Top: "bottom"}),
			charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
			charts.WithXAxisOpts(opts.XAxis{Name: "Year", Type: "category"}),
			charts.WithYAxisOpts(opts.YAxis{Type: "value"}),
		)
		line.SetXAxis(data.Years)
		for _, s := range p.Series {
			line.AddSeries(s.Name, lineData(s))
		}
		lines = append(lines, line)
	}
	return lines
}

func lineData(s domain.Series) []opts.LineData {
	out := make([]opts.LineData, len(s.Points))
	for i, pt := range s.Points {
		if v, ok := pt.Value.Get(); ok {
			out[i] = opts.LineData{Value: v}
			continue
		}
		out[i] = opts.LineData{Value: missingPoint}
	}
	return out
}

// Render writes the assembled panels as a single self-contained HTML page.
func Render(w io.Writer, data domain.ChartData, o Options) error {
	page := components.NewPage()
	page.PageTitle = o.Title
	page.SetLayout(components.PageFlexLayout)
	for _, line := range Assemble(data, o) {
		page.AddCharts(line)
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// RenderFile renders to path, creating parent directories. The file is
// written to a temporary sibling first so readers never see a partial page.
func RenderFile(path string, data domain.ChartData, o Options) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if err := Render(tmp, data, o); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// FileRenderer renders each run to a fixed path.
type FileRenderer struct {
	Path    string
	Options Options
}

// Render implements pipeline.Renderer.
func (r FileRenderer) Render(_ context.Context, result domain.RunResult) error {
	return RenderFile(r.Path, result.Chart, r.Options)
}
