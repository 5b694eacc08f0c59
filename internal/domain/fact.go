package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"strconv"
)

// MissingMarker is the string CBS writes in place of an unavailable figure.
const MissingMarker = "NaN"

// Metric is an optional measurement. The zero value is absent.
// A present Metric always holds a finite number.
type Metric struct {
	value float64
	valid bool
}

// Present returns a Metric holding v.
func Present(v float64) Metric { return Metric{value: v, valid: true} }

// Absent returns a missing Metric.
func Absent() Metric { return Metric{} }

// Get returns the value and whether it is present.
func (m Metric) Get() (float64, bool) { return m.value, m.valid }

// IsPresent reports whether m holds a value.
func (m Metric) IsPresent() bool { return m.valid }

// Ptr returns nil for an absent Metric, for sinks that model NULL as nil.
func (m Metric) Ptr() *float64 {
	if !m.valid {
		return nil
	}
	v := m.value
	return &v
}

func (m Metric) String() string {
	if !m.valid {
		return "absent"
	}
	return strconv.FormatFloat(m.value, 'g', -1, 64)
}

// UnmarshalJSON decodes a metric field. Three shapes are accepted:
//
//	12.5   present
//	"NaN"  absent
//	null   absent
//
// Any other string, or a number outside the float64 range, yields an
// *InvalidValueError. A boolean, object, or array is a malformed document and
// yields a *json.UnmarshalTypeError instead. A missing field leaves the zero
// value, which is absent.
func (m *Metric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0:
		return &InvalidValueError{Raw: ""}
	case bytes.Equal(data, []byte("null")):
		*m = Absent()
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return &InvalidValueError{Raw: string(data)}
		}
		if s != MissingMarker {
			return &InvalidValueError{Raw: string(data)}
		}
		*m = Absent()
		return nil
	case data[0] == 't', data[0] == 'f':
		return &json.UnmarshalTypeError{Value: "bool", Type: reflect.TypeFor[Metric]()}
	case data[0] == '{':
		return &json.UnmarshalTypeError{Value: "object", Type: reflect.TypeFor[Metric]()}
	case data[0] == '[':
		return &json.UnmarshalTypeError{Value: "array", Type: reflect.TypeFor[Metric]()}
	}

	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return &InvalidValueError{Raw: string(data)}
	}
	*m = Present(v)
	return nil
}

// MarshalJSON writes null for an absent Metric.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(m.value, 'g', -1, 64)), nil
}

// FactRecord is one row of a typed fact table before its codes are joined.
type FactRecord struct {
	ID                    int64  `json:"ID"`
	GenderCode            string `json:"Geslacht"`
	PersonTraitCode       string `json:"Persoonskenmerken"`
	PeriodCode            string `json:"Perioden"`
	ParticipationMetric   Metric `json:"Verkeersdeelname_1"`
	PublicTransportMetric Metric `json:"GebruikVanHetOpenbaarVervoer_2"`
}

// FactDocument is the OData envelope of a typed fact table.
type FactDocument struct {
	MetadataURL string       `json:"odata.metadata"`
	Value       []FactRecord `json:"value"`
}
