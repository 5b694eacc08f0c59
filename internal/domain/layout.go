package domain

import (
	"fmt"
	"slices"
)

// Predicate selects the rows that belong to a category.
type Predicate func(row *DataRow) bool

// Field names a labeled dimension a category can match on.
type Field string

const (
	FieldGender      Field = "gender"
	FieldPersonTrait Field = "person_trait"
	FieldPeriod      Field = "period"
)

// ParseField validates a field name from configuration.
func ParseField(s string) (Field, error) {
	switch f := Field(s); f {
	case FieldGender, FieldPersonTrait, FieldPeriod:
		return f, nil
	default:
		return "", fmt.Errorf("unknown field %q: want %s, %s or %s", s, FieldGender, FieldPersonTrait, FieldPeriod)
	}
}

// TitleIn returns a predicate matching rows whose field title is one of titles.
func TitleIn(field Field, titles ...string) Predicate {
	pick := titleOf(field)
	return func(row *DataRow) bool {
		return slices.Contains(titles, pick(row))
	}
}

func titleOf(field Field) func(*DataRow) string {
	switch field {
	case FieldGender:
		return func(r *DataRow) string { return r.Gender.Title }
	case FieldPeriod:
		return func(r *DataRow) string { return r.Period.Title }
	default:
		return func(r *DataRow) string { return r.PersonTrait.Title }
	}
}

// Category is one line of a panel.
type Category struct {
	Name  string
	Match Predicate
}

// Panel is one grid of the chart: a title and its categories in display order.
type Panel struct {
	Title      string
	Categories []Category
}

// MetricSelector picks the measurement that is averaged.
type MetricSelector func(row *DataRow) Metric

// PublicTransport selects GebruikVanHetOpenbaarVervoer_2.
func PublicTransport(row *DataRow) Metric { return row.PublicTransportMetric }

// Participation selects Verkeersdeelname_1.
func Participation(row *DataRow) Metric { return row.ParticipationMetric }

// CategorySpec is the declarative form of a category: its series name and
// the titles it matches. Series are named after the first title unless Name
// is set.
type CategorySpec struct {
	Name   string
	Titles []string
}

// PanelSpec is the declarative form of a panel.
type PanelSpec struct {
	Title      string
	Field      Field
	Categories []CategorySpec
}

// Build turns the declarative panel into predicates.
func (s PanelSpec) Build() (Panel, error) {
	if _, err := ParseField(string(s.Field)); err != nil {
		return Panel{}, fmt.Errorf("panel %q: %w", s.Title, err)
	}
	if len(s.Categories) == 0 {
		return Panel{}, fmt.Errorf("panel %q: no categories", s.Title)
	}
	p := Panel{Title: s.Title, Categories: make([]Category, 0, len(s.Categories))}
	for i, c := range s.Categories {
		if len(c.Titles) == 0 {
			return Panel{}, fmt.Errorf("panel %q: category %d has no titles", s.Title, i)
		}
		name := c.Name
		if name == "" {
			name = c.Titles[0]
		}
		p.Categories = append(p.Categories, Category{
			Name:  name,
			Match: TitleIn(s.Field, c.Titles...),
		})
	}
	return p, nil
}

// BuildPanels builds every spec, keeping declaration order.
func BuildPanels(specs []PanelSpec) ([]Panel, error) {
	panels := make([]Panel, 0, len(specs))
	for _, s := range specs {
		p, err := s.Build()
		if err != nil {
			return nil, err
		}
		panels = append(panels, p)
	}
	return panels, nil
}

// DefaultLayout is the four-panel breakdown of public transport use by
// gender, education level, migration background and age.
func DefaultLayout() []PanelSpec {
	trait := func(titles ...string) CategorySpec { return CategorySpec{Titles: titles} }
	return []PanelSpec{
		{
			Title: "Geslacht",
			Field: FieldGender,
			Categories: []CategorySpec{
				{Name: "Geslacht: Mannen", Titles: []string{"Mannen"}},
				{Name: "Geslacht: Vrouwen", Titles: []string{"Vrouwen"}},
			},
		},
		{
			Title: "Onderwijsniveau",
			Field: FieldPersonTrait,
			Categories: []CategorySpec{
				// The two datasets label education levels differently.
				trait("Actueel onderwijsniveau: laag", "Onderwijsniveau: 1 Laag"),
				trait("Actueel onderwijsniveau: middelbaar", "Onderwijsniveau: 2 Middelbaar"),
				trait("Actueel onderwijsniveau: hoog", "Onderwijsniveau: 3 Hoog"),
			},
		},
		{
			Title: "Migratieachtergrond",
			Field: FieldPersonTrait,
			Categories: []CategorySpec{
				trait("Migratieachtergrond: Nederland"),
				trait("Migratieachtergrond: westers"),
				trait("Migratieachtergrond: niet-westers"),
			},
		},
		{
			Title: "Leeftijd",
			Field: FieldPersonTrait,
			Categories: []CategorySpec{
				trait("Leeftijd: 12 tot 18 jaar"),
				trait("Leeftijd: 18 tot 25 jaar"),
				trait("Leeftijd: 25 tot 35 jaar"),
				trait("Leeftijd: 35 tot 50 jaar"),
				trait("Leeftijd: 50 tot 65 jaar"),
				trait("Leeftijd: 65 tot 75 jaar"),
				trait("Leeftijd: 75 jaar of ouder"),
			},
		},
	}
}
