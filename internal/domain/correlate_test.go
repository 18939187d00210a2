package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ejRow(county string, pop, svi, poverty, composite float64) Row {
	r := NewRow()
	r.Text[ColCounty] = county
	r.Values[ColPopulation] = pop
	r.Values[ColSVI] = svi
	r.Values[ColPovertyRate] = poverty
	r.Values[ColCompositeEJ] = composite
	return r
}

func mergeFixture() (ej, outage Table) {
	ej = Table{Key: ColCounty, Columns: EJColumns, Rows: []Row{
		ejRow("Kern", 100000, 0.8, 30, 0.7),
		ejRow("Marin", 200000, 0.2, 5, 0.2),
		ejRow("Inyo", 20000, 0.6, 20, 0.5),
		ejRow("Napa", 100000, 0.3, 8, 0.3),
	}}

	o := func(county string, events, duration, customers float64) Row {
		r := NewRow()
		r.Text[ColCounty] = county
		r.Values[ColEventCount] = events
		r.Values[ColAvgDuration] = duration
		r.Values[ColTotalCustomers] = customers
		return r
	}
	outage = Table{Key: ColCounty, Columns: OutageColumns, Rows: []Row{
		o("Kern", 500, 6, 50000),
		o("Marin", 100, 2, 10000),
		o("Inyo", 40, 8, 2000),
	}}
	return ej, outage
}

func TestMerge(t *testing.T) {
	ej, outage := mergeFixture()

	merged := Merge(ej, outage)
	require.NoError(t, merged.Validate())
	assert.Equal(t, MergedColumns, merged.Columns)
	assert.Equal(t, []string{"Kern", "Marin", "Inyo", "Napa"}, keys(merged))

	kern := merged.Rows[0]
	assert.Equal(t, 500.0, kern.Num(ColEventCount))
	assert.Equal(t, 5.0, kern.Num(ColOutageRate))
	assert.Equal(t, 0.5, kern.Num(ColImpactPerCapita))
	assert.Equal(t, 0.8, kern.Num(ColSVI))

	napa := merged.Rows[3]
	assert.Zero(t, napa.Num(ColEventCount), "missing outage rows are filled with zero")
	assert.Zero(t, napa.Num(ColOutageRate))

	_, hasRate := ej.Rows[0].Values[ColOutageRate]
	assert.False(t, hasRate, "source rows are not modified")
}

func TestPearson(t *testing.T) {
	assert.InDelta(t, 1.0, Pearson([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-9)
	assert.InDelta(t, -1.0, Pearson([]float64{1, 2, 3}, []float64{3, 2, 1}), 1e-9)
	assert.Zero(t, Pearson([]float64{1, 1, 1}, []float64{1, 2, 3}))
	assert.Zero(t, Pearson([]float64{1}, []float64{1}))
	assert.Zero(t, Pearson([]float64{1, 2}, []float64{1, 2, 3}))
}

func TestComputeDisparity(t *testing.T) {
	ej, outage := mergeFixture()
	d := ComputeDisparity(Merge(ej, outage))

	// median SVI of {0.8, 0.2, 0.6, 0.3} is 0.45: Kern and Inyo are high.
	assert.Equal(t, 0.45, d.MedianSVI)
	assert.Equal(t, 2, d.HighCount)
	assert.Equal(t, 2, d.LowCount)
	assert.Equal(t, 3.5, d.HighOutageRate)
	assert.Equal(t, 0.25, d.LowOutageRate)
	assert.Equal(t, 1300.0, d.RateDiffPct)
	assert.Equal(t, 7.0, d.HighAvgDuration)
	assert.Equal(t, 1.0, d.LowAvgDuration)
	assert.Equal(t, 600.0, d.DurationDiffPct)
	assert.True(t, d.EquityConcern)
}

func TestComputeDisparity_SingleGroup(t *testing.T) {
	ej := Table{Key: ColCounty, Columns: EJColumns, Rows: []Row{ejRow("Kern", 1000, 0.5, 10, 0.4)}}
	d := ComputeDisparity(Merge(ej, Table{Key: ColCounty}))

	assert.Equal(t, 1, d.HighCount)
	assert.Zero(t, d.LowCount)
	assert.Zero(t, d.RateDiffPct)
	assert.False(t, d.EquityConcern)
}

func TestCorrelate(t *testing.T) {
	ej, outage := mergeFixture()
	c := Correlate(Merge(ej, outage))

	assert.Greater(t, c.SVIOutageRate, disparityCorrelation)
	assert.True(t, c.DisparityDetected)
	assert.Equal(t, []string{"Kern", "Inyo", "Napa", "Marin"}, c.MostVulnerable)
	assert.Equal(t, "Kern", c.MostOutages[0])

	bullets := CorrelationInsights(c)
	require.Len(t, bullets, 2)
	assert.Contains(t, bullets[0], "SVI-Outage correlation: r = ")
	assert.Equal(t, "DISPARITY DETECTED", bullets[1])
	assert.Equal(t, "No major disparity", CorrelationInsights(Correlation{})[1])
}

func TestOutageInsights(t *testing.T) {
	_, outage := mergeFixture()
	outage.Rows[0].Values[ColDOEEvents] = 12
	outage.Rows[0].Values[ColPSPS] = 1500

	got := OutageInsights(outage)

	require.Len(t, got, 5)
	assert.Equal(t, "Kern has the most outages (500)", got[0])
	assert.Equal(t, "Average duration: 5.5 hours", got[1])
	assert.Equal(t, "12 events meet DOE 50K threshold", got[2])
	assert.Equal(t, "1,500 PSPS events across 3 counties", got[3])
	assert.Equal(t, "Total customers: 62,000", got[4])

	assert.Nil(t, OutageInsights(Table{}))
}

func TestEJInsights(t *testing.T) {
	ej, _ := mergeFixture()

	got := EJInsights(ej)

	require.Len(t, got, 3)
	assert.Equal(t, "2 high-vulnerability counties", got[0])
	assert.Equal(t, "Top EJ burden: Kern, Inyo, Napa", got[1])
	assert.Equal(t, "Average SVI: 0.475", got[2])
}

func TestThousands(t *testing.T) {
	assert.Equal(t, "0", thousands(0))
	assert.Equal(t, "999", thousands(999))
	assert.Equal(t, "1,000", thousands(1000))
	assert.Equal(t, "1,234,567", thousands(1234567))
	assert.Equal(t, "-45,000", thousands(-45000))
}
