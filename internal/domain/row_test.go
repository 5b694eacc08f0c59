package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLookups() Lookups {
	desc := "Leeftijd 12 jaar of ouder"
	return Lookups{
		Gender: NewLookupTable(TableGender, []LookupEntry{
			{Key: "3000", Title: "Mannen"},
			{Key: "4000", Title: "Vrouwen"},
		}),
		PersonTrait: NewLookupTable(TablePersonTrait, []LookupEntry{
			{Key: "10000", Title: "Totaal personen", Description: &desc},
			{Key: "53105", Title: "Leeftijd: 18 tot 25 jaar"},
		}),
		Period: NewLookupTable(TablePeriod, []LookupEntry{
			{Key: "2015JJ00", Title: "2015"},
			{Key: "2016JJ00", Title: "2016"},
		}),
	}
}

func TestEnrich(t *testing.T) {
	rec := FactRecord{
		ID:                    4,
		GenderCode:            "4000",
		PersonTraitCode:       "53105",
		PeriodCode:            "2016JJ00",
		ParticipationMetric:   Present(88),
		PublicTransportMetric: Absent(),
	}

	row, err := Enrich(rec, testLookups())
	require.NoError(t, err)

	assert.Equal(t, int64(4), row.ID)
	assert.Equal(t, "Vrouwen", row.Gender.Title)
	assert.Equal(t, "4000", row.Gender.Key)
	assert.Equal(t, "Leeftijd: 18 tot 25 jaar", row.PersonTrait.Title)
	assert.Equal(t, "2016", row.Period.Title)
	assert.Equal(t, Present(88), row.ParticipationMetric)
	assert.False(t, row.PublicTransportMetric.IsPresent())
}

func TestEnrich_MissingReference(t *testing.T) {
	base := FactRecord{ID: 9, GenderCode: "3000", PersonTraitCode: "10000", PeriodCode: "2015JJ00"}

	tests := []struct {
		name  string
		mod   func(*FactRecord)
		table string
		code  string
	}{
		{"gender", func(r *FactRecord) { r.GenderCode = "T001038" }, TableGender, "T001038"},
		{"person trait", func(r *FactRecord) { r.PersonTraitCode = "99999" }, TablePersonTrait, "99999"},
		{"period", func(r *FactRecord) { r.PeriodCode = "2030JJ00" }, TablePeriod, "2030JJ00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := base
			tt.mod(&rec)

			_, err := Enrich(rec, testLookups())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingReference)

			var mre *MissingReferenceError
			require.True(t, errors.As(err, &mre))
			assert.Equal(t, tt.table, mre.Table)
			assert.Equal(t, tt.code, mre.Code)
			assert.Equal(t, int64(9), mre.RowID)
		})
	}
}

func TestEnrichAll_FailsWholeDataset(t *testing.T) {
	records := []FactRecord{
		{ID: 0, GenderCode: "3000", PersonTraitCode: "10000", PeriodCode: "2015JJ00"},
		{ID: 1, GenderCode: "5000", PersonTraitCode: "10000", PeriodCode: "2015JJ00"},
		{ID: 2, GenderCode: "4000", PersonTraitCode: "10000", PeriodCode: "2015JJ00"},
	}

	rows, err := EnrichAll("ds", records, testLookups())
	require.Error(t, err)
	assert.Nil(t, rows, "no partial result")
	assert.True(t, IsDataIntegrity(err))
}

func TestEnrichAll_TagsDataset(t *testing.T) {
	records := []FactRecord{
		{ID: 0, GenderCode: "3000", PersonTraitCode: "10000", PeriodCode: "2015JJ00"},
		{ID: 1, GenderCode: "4000", PersonTraitCode: "10000", PeriodCode: "2016JJ00"},
	}

	rows, err := EnrichAll("https://example.test/ds", records, testLookups())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, "https://example.test/ds", r.Dataset)
	}
	assert.Equal(t, "Mannen", rows[0].Gender.Title)
	assert.Equal(t, "Vrouwen", rows[1].Gender.Title)
}

func TestLookupTable_FirstDuplicateWins(t *testing.T) {
	tbl := NewLookupTable(TableGender, []LookupEntry{
		{Key: "3000", Title: "Mannen"},
		{Key: "3000", Title: "Men"},
	})

	e, ok := tbl.Get("3000")
	require.True(t, ok)
	assert.Equal(t, "Mannen", e.Title)
	assert.Equal(t, 2, tbl.Len())

	_, ok = tbl.Get("4000")
	assert.False(t, ok)
}

func TestResourceIndex_Resolve(t *testing.T) {
	idx := ResourceIndex{
		Source: "https://example.test/83496NED",
		Entries: []ResourceEntry{
			{Name: "Perioden", URL: "https://example.test/83496NED/Perioden"},
			{Name: "TableInfos", URL: "https://example.test/83496NED/TableInfos"},
			{Name: "TypedDataSet", URL: "https://example.test/83496NED/TypedDataSet"},
		},
	}

	u, err := idx.Resolve(ResourceTypedDataSet)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/83496NED/TypedDataSet", u)

	_, err = idx.Resolve("Geslacht")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "83496NED")
	assert.False(t, IsDataIntegrity(err))
}
