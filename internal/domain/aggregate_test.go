package domain

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(id int64, gender, trait, year string, metric Metric) DataRow {
	return DataRow{
		ID:                    id,
		Gender:                LookupEntry{Key: gender, Title: gender},
		PersonTrait:           LookupEntry{Key: trait, Title: trait},
		Period:                LookupEntry{Key: year + "JJ00", Title: year},
		PublicTransportMetric: metric,
	}
}

func TestGroupByYear(t *testing.T) {
	rows := []DataRow{
		row(0, "Mannen", "t", "2016", Present(1)),
		row(1, "Mannen", "t", "2015", Present(2)),
		row(2, "Vrouwen", "t", "2016", Present(3)),
	}

	buckets, err := GroupByYear(rows)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Len(t, buckets[2015], 1)
	assert.Len(t, buckets[2016], 2)
	assert.Equal(t, int64(0), buckets[2016][0].ID)
	assert.Equal(t, int64(2), buckets[2016][1].ID)
}

func TestGroupByYear_InvalidYear(t *testing.T) {
	for _, title := range []string{"2015JJ00", " 2015", "-2015", "", "2015 1e kwartaal", "99999999999"} {
		t.Run(title, func(t *testing.T) {
			_, err := GroupByYear([]DataRow{row(3, "Mannen", "t", title, Present(1))})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidYear)

			var iye *InvalidYearError
			require.True(t, errors.As(err, &iye))
			assert.Equal(t, title, iye.Period)
			assert.Equal(t, int64(3), iye.RowID)
		})
	}
}

func TestYearsSorted_IndependentOfInputOrder(t *testing.T) {
	years := []string{"2017", "2009", "2010", "2015", "2011", "2100", "998"}
	want := []string{"998", "2009", "2010", "2011", "2015", "2017", "2100"}

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 20; i++ {
		rows := make([]DataRow, 0, len(years))
		for j, y := range years {
			rows = append(rows, row(int64(j), "Mannen", "t", y, Present(1)))
		}
		rng.Shuffle(len(rows), func(a, b int) { rows[a], rows[b] = rows[b], rows[a] })

		buckets, err := GroupByYear(rows)
		require.NoError(t, err)
		assert.Equal(t, want, buckets.YearsSorted(), "numeric not lexical order")
	}
}

func TestAverageFor(t *testing.T) {
	rows := []DataRow{
		row(0, "Mannen", "t", "2015", Present(10)),
		row(1, "Vrouwen", "t", "2015", Present(20)),
	}
	buckets, err := GroupByYear(rows)
	require.NoError(t, err)
	bucket := buckets[2015]

	assert.Equal(t, Present(10), AverageFor(bucket, TitleIn(FieldGender, "Mannen"), PublicTransport))
	assert.Equal(t, Present(20), AverageFor(bucket, TitleIn(FieldGender, "Vrouwen"), PublicTransport))
	assert.Equal(t, Present(15), AverageFor(bucket, TitleIn(FieldGender, "Mannen", "Vrouwen"), PublicTransport))

	empty := AverageFor(bucket, TitleIn(FieldGender, "Onbekend"), PublicTransport)
	assert.False(t, empty.IsPresent(), "zero matches is absent, not 0/0")
}

func TestAverageFor_ExcludesAbsent(t *testing.T) {
	rows := []DataRow{
		row(0, "Mannen", "t", "2015", Absent()),
		row(1, "Mannen", "t", "2015", Present(30)),
	}
	buckets, err := GroupByYear(rows)
	require.NoError(t, err)

	got := AverageFor(buckets[2015], TitleIn(FieldGender, "Mannen"), PublicTransport)
	assert.Equal(t, Present(30), got)
}

func TestAverageFor_AllAbsent(t *testing.T) {
	rows := []DataRow{row(0, "Mannen", "t", "2015", Absent())}
	buckets, err := GroupByYear(rows)
	require.NoError(t, err)

	got := AverageFor(buckets[2015], TitleIn(FieldGender, "Mannen"), PublicTransport)
	assert.False(t, got.IsPresent())
}

func TestAverageFor_Participation(t *testing.T) {
	r := row(0, "Mannen", "t", "2015", Present(40))
	r.ParticipationMetric = Present(90)
	buckets, err := GroupByYear([]DataRow{r})
	require.NoError(t, err)

	assert.Equal(t, Present(90), AverageFor(buckets[2015], TitleIn(FieldGender, "Mannen"), Participation))
}

func TestAggregate(t *testing.T) {
	rows := []DataRow{
		row(0, "Mannen", "Onderwijsniveau: 1 Laag", "2016", Present(10)),
		row(1, "Vrouwen", "Actueel onderwijsniveau: laag", "2016", Present(20)),
		row(2, "Mannen", "Leeftijd: 18 tot 25 jaar", "2015", Present(40)),
		row(3, "Vrouwen", "Leeftijd: 18 tot 25 jaar", "2015", Absent()),
	}
	panels, err := BuildPanels([]PanelSpec{
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
				{Titles: []string{"Actueel onderwijsniveau: laag", "Onderwijsniveau: 1 Laag"}},
			},
		},
	})
	require.NoError(t, err)

	got, err := Aggregate(rows, panels, PublicTransport)
	require.NoError(t, err)

	want := ChartData{
		Years: []string{"2015", "2016"},
		Panels: []PanelSeries{
			{
				Title: "Geslacht",
				Series: []Series{
					{Name: "Geslacht: Mannen", Points: []Point{{2015, Present(40)}, {2016, Present(10)}}},
					{Name: "Geslacht: Vrouwen", Points: []Point{{2015, Absent()}, {2016, Present(20)}}},
				},
			},
			{
				Title: "Onderwijsniveau",
				Series: []Series{
					{Name: "Actueel onderwijsniveau: laag", Points: []Point{{2015, Absent()}, {2016, Present(15)}}},
				},
			},
		},
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(Metric{})); diff != "" {
		t.Fatalf("aggregate mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, got.SeriesCount())
	assert.Equal(t, []Metric{Absent(), Present(20)}, got.Panels[0].Series[1].Values())
}

func TestAggregate_PropagatesInvalidYear(t *testing.T) {
	panels, err := BuildPanels(DefaultLayout())
	require.NoError(t, err)

	_, err = Aggregate([]DataRow{row(0, "Mannen", "t", "2015JJ00", Present(1))}, panels, PublicTransport)
	assert.ErrorIs(t, err, ErrInvalidYear)
}
