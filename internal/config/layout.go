package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/couchcryptid/odata-mobility-chart/internal/domain"
)

// layoutFile is the TOML shape of a chart layout:
//
//	[[panel]]
//	title = "Geslacht"
//	field = "gender"
//	  [[panel.category]]
//	  name   = "Geslacht: Mannen"
//	  titles = ["Mannen"]
type layoutFile struct {
	Panels []struct {
		Title      string `toml:"title"`
		Field      string `toml:"field"`
		Categories []struct {
			Name   string   `toml:"name"`
			Titles []string `toml:"titles"`
		} `toml:"category"`
	} `toml:"panel"`
}

// LoadLayout returns the panel layout from path, or the built-in layout when
// path is empty.
func LoadLayout(path string) ([]domain.PanelSpec, error) {
	if path == "" {
		return domain.DefaultLayout(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	return ParseLayout(data)
}

// ParseLayout decodes and validates a TOML layout.
func ParseLayout(data []byte) ([]domain.PanelSpec, error) {
	var lf layoutFile
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&lf); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	if len(lf.Panels) == 0 {
		return nil, fmt.Errorf("parse layout: no panels defined")
	}

	specs := make([]domain.PanelSpec, 0, len(lf.Panels))
	for _, p := range lf.Panels {
		field, err := domain.ParseField(p.Field)
		if err != nil {
			return nil, fmt.Errorf("panel %q: %w", p.Title, err)
		}
		spec := domain.PanelSpec{Title: p.Title, Field: field}
		for _, c := range p.Categories {
			spec.Categories = append(spec.Categories, domain.CategorySpec{Name: c.Name, Titles: c.Titles})
		}
		if _, err := spec.Build(); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
