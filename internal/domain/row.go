package domain

// DataRow is a fact row whose three codes have been replaced by their
// lookup entries. It is never modified after Enrich returns it.
type DataRow struct {
	ID                    int64       `json:"id"`
	Gender                LookupEntry `json:"gender"`
	PersonTrait           LookupEntry `json:"person_trait"`
	Period                LookupEntry `json:"period"`
	ParticipationMetric   Metric      `json:"participation"`
	PublicTransportMetric Metric      `json:"public_transport"`

	// Dataset is the root URL of the dataset the row came from.
	Dataset string `json:"dataset,omitempty"`
}

// Enrich joins rec against the lookup tables by exact key match.
// A code missing from its table is a *MissingReferenceError.
func Enrich(rec FactRecord, lk Lookups) (DataRow, error) {
	gender, ok := lk.Gender.Get(rec.GenderCode)
	if !ok {
		return DataRow{}, &MissingReferenceError{Table: lk.Gender.Name(), Code: rec.GenderCode, RowID: rec.ID}
	}
	trait, ok := lk.PersonTrait.Get(rec.PersonTraitCode)
	if !ok {
		return DataRow{}, &MissingReferenceError{Table: lk.PersonTrait.Name(), Code: rec.PersonTraitCode, RowID: rec.ID}
	}
	period, ok := lk.Period.Get(rec.PeriodCode)
	if !ok {
		return DataRow{}, &MissingReferenceError{Table: lk.Period.Name(), Code: rec.PeriodCode, RowID: rec.ID}
	}

	return DataRow{
		ID:                    rec.ID,
		Gender:                gender,
		PersonTrait:           trait,
		Period:                period,
		ParticipationMetric:   rec.ParticipationMetric,
		PublicTransportMetric: rec.PublicTransportMetric,
	}, nil
}

// EnrichAll joins every record of one dataset. The first unresolvable code
// aborts the whole dataset; no partial result is returned.
func EnrichAll(dataset string, records []FactRecord, lk Lookups) ([]DataRow, error) {
	rows := make([]DataRow, 0, len(records))
	for _, rec := range records {
		row, err := Enrich(rec, lk)
		if err != nil {
			return nil, err
		}
		row.Dataset = dataset
		rows = append(rows, row)
	}
	return rows, nil
}
