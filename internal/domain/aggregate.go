package domain

import (
	"maps"
	"slices"
	"strconv"
)

// YearBuckets groups rows by the year parsed from their period title.
type YearBuckets map[uint32][]*DataRow

// GroupByYear buckets rows by year. Period titles must be unsigned integers
// as written; "2015" is a year, " 2015" and "2015JJ00" are not.
func GroupByYear(rows []DataRow) (YearBuckets, error) {
	buckets := make(YearBuckets)
	for i := range rows {
		row := &rows[i]
		year, err := strconv.ParseUint(row.Period.Title, 10, 32)
		if err != nil {
			return nil, &InvalidYearError{Period: row.Period.Title, RowID: row.ID, Err: err}
		}
		y := uint32(year)
		buckets[y] = append(buckets[y], row)
	}
	return buckets, nil
}

// Years returns the bucket years in ascending order.
func (b YearBuckets) Years() []uint32 {
	return slices.Sorted(maps.Keys(b))
}

// YearsSorted returns the bucket years ascending, formatted for a category axis.
func (b YearBuckets) YearsSorted() []string {
	years := b.Years()
	labels := make([]string, len(years))
	for i, y := range years {
		labels[i] = strconv.FormatUint(uint64(y), 10)
	}
	return labels
}

// AverageFor returns the mean of the selected metric over the rows matching
// match. Rows whose metric is absent count in neither the sum nor the
// divisor. When no row contributes, the result is absent.
func AverageFor(rows []*DataRow, match Predicate, metric MetricSelector) Metric {
	var sum float64
	var n int
	for _, row := range rows {
		if !match(row) {
			continue
		}
		v, ok := metric(row).Get()
		if !ok {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return Absent()
	}
	return Present(sum / float64(n))
}

// Point is one (year, value) pair of a series.
type Point struct {
	Year  uint32 `json:"year"`
	Value Metric `json:"value"`
}

// Series is the yearly average of one category, ordered by year.
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Values returns the point values in year order.
func (s Series) Values() []Metric {
	vals := make([]Metric, len(s.Points))
	for i, p := range s.Points {
		vals[i] = p.Value
	}
	return vals
}

// PanelSeries is the aggregated content of one panel.
type PanelSeries struct {
	Title  string   `json:"title"`
	Series []Series `json:"series"`
}

// ChartData is everything the chart needs: the shared year axis and the
// panels in display order.
type ChartData struct {
	Years  []string      `json:"years"`
	Panels []PanelSeries `json:"panels"`
}

// SeriesCount returns the number of series across all panels.
func (c ChartData) SeriesCount() int {
	n := 0
	for _, p := range c.Panels {
		n += len(p.Series)
	}
	return n
}

// Aggregate buckets rows by year and computes one series per category.
// Years ascend numerically; panels and categories keep declaration order.
func Aggregate(rows []DataRow, panels []Panel, metric MetricSelector) (ChartData, error) {
	buckets, err := GroupByYear(rows)
	if err != nil {
		return ChartData{}, err
	}
	years := buckets.Years()

	out := ChartData{
		Years:  buckets.YearsSorted(),
		Panels: make([]PanelSeries, 0, len(panels)),
	}
	for _, p := range panels {
		ps := PanelSeries{Title: p.Title, Series: make([]Series, 0, len(p.Categories))}
		for _, c := range p.Categories {
			s := Series{Name: c.Name, Points: make([]Point, 0, len(years))}
			for _, y := range years {
				s.Points = append(s.Points, Point{Year: y, Value: AverageFor(buckets[y], c.Match, metric)})
			}
			ps.Series = append(ps.Series, s)
		}
		out.Panels = append(out.Panels, ps)
	}
	return out, nil
}
