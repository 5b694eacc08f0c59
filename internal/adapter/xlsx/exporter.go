// Package xlsx exports aggregated series to an Excel workbook with one sheet
// per panel.
package xlsx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/odata-mobility-chart/internal/domain"
)

const (
	infoSheet     = "Run"
	maxSheetName  = 31
	categoryLabel = "Categorie"
)

// Exporter writes each run to a workbook at Path, replacing the previous one.
// It implements pipeline.Exporter.
type Exporter struct {
	Path string
}

// NewExporter creates a workbook exporter.
func NewExporter(path string) *Exporter {
	return &Exporter{Path: path}
}

func (e *Exporter) Name() string { return "xlsx" }

// Export builds the workbook and saves it via a temporary sibling file.
func (e *Exporter) Export(_ context.Context, result domain.RunResult) error {
	f, err := Build(result)
	if err != nil {
		return err
	}
	defer f.Close()

	if dir := filepath.Dir(e.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create xlsx dir: %w", err)
		}
	}
	tmp := e.Path + ".tmp.xlsx"
	if err := f.SaveAs(tmp); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	if err := os.Rename(tmp, e.Path); err != nil {
		os.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// Build lays out a workbook: one sheet per panel with a header row of years
// and one row per series, followed by a sheet describing the run. Absent
// values are left as empty cells.
func Build(result domain.RunResult) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}

	used := map[string]bool{}
	first := true
	for _, panel := range result.Chart.Panels {
		name := uniqueSheetName(panel.Title, used)
		if first {
			err = f.SetSheetName("Sheet1", name)
			first = false
		} else {
			_, err = f.NewSheet(name)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		if err := writePanel(f, name, result.Chart.Years, panel, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}

	if first {
		err = f.SetSheetName("Sheet1", infoSheet)
	} else {
		_, err = f.NewSheet(infoSheet)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("sheet %q: %w", infoSheet, err)
	}
	if err := writeInfo(f, result); err != nil {
		f.Close()
		return nil, err
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writePanel(f *excelize.File, sheet string, years []string, panel domain.PanelSeries, headerStyle int) error {
	header := make([]any, 0, len(years)+1)
	header = append(header, categoryLabel)
	for _, y := range years {
		header = append(header, y)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header of %q: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style header of %q: %w", sheet, err)
	}

	for i, s := range panel.Series {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetCellValue(sheet, cell, s.Name); err != nil {
			return fmt.Errorf("write %q: %w", s.Name, err)
		}
		for j, p := range s.Points {
			v, ok := p.Value.Get()
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(j+2, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("write %q: %w", s.Name, err)
			}
		}
	}
	return f.SetColWidth(sheet, "A", "A", 40)
}

func writeInfo(f *excelize.File, result domain.RunResult) error {
	rows := [][]any{
		{"run_id", result.RunID},
		{"generated_at", result.GeneratedAt.Format(time.RFC3339)},
		{"rows", len(result.Rows)},
	}
	for _, ds := range result.Datasets {
		rows = append(rows, []any{"dataset", ds})
	}
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(infoSheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write run info: %w", err)
		}
	}
	return nil
}

// uniqueSheetName strips characters Excel rejects, truncates to the sheet
// name limit and suffixes duplicates.
func uniqueSheetName(title string, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "Panel"
	}
	name = truncateRunes(name, maxSheetName)

	candidate := name
	for n := 2; used[strings.ToLower(candidate)] || strings.EqualFold(candidate, infoSheet); n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncateRunes(name, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
