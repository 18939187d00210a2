package domain

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// MergedColumns is the schema of the EJ table joined with outage aggregates.
var MergedColumns = append(slices.Clone(EJColumns),
	ColEventCount, ColPSPS, ColWeather, ColAvgDuration, ColTotalCustomers, ColDOEEvents,
	ColOutageRate, ColImpactPerCapita,
)

// mergedOutageColumns are copied from the outage table; counties with no
// outage row get zero.
var mergedOutageColumns = []string{
	ColEventCount, ColPSPS, ColWeather, ColAvgDuration, ColTotalCustomers, ColDOEEvents,
}

// Merge left-joins ej with outage on county and derives the per-capita
// outage rate and customer impact. EJ row order is preserved.
func Merge(ej, outage Table) Table {
	rows := make([]Row, 0, ej.Len())
	for i, src := range ej.Rows {
		r := NewRow()
		for k, v := range src.Text {
			r.Text[k] = v
		}
		for k, v := range src.Values {
			r.Values[k] = v
		}

		var match Row
		if j, ok := outage.Find(ej.KeyOf(i)); ok {
			match = outage.Rows[j]
		}
		for _, col := range mergedOutageColumns {
			r.Values[col] = match.Num(col)
		}

		pop := r.Num(ColPopulation)
		if pop > 0 {
			r.Values[ColOutageRate] = round(r.Num(ColEventCount)/pop*1000, 4)
			r.Values[ColImpactPerCapita] = round(r.Num(ColTotalCustomers)/pop, 4)
		} else {
			r.Values[ColOutageRate] = 0
			r.Values[ColImpactPerCapita] = 0
		}
		rows = append(rows, r)
	}
	return Table{Key: ColCounty, Columns: MergedColumns, Rows: rows}
}

// Pearson returns the correlation coefficient of x and y. It returns 0 when
// the series differ in length, have fewer than two points, or either has no
// variance.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0
	}
	var mx, my float64
	for i := range n {
		mx += x[i]
		my += y[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var cov, vx, vy float64
	for i := range n {
		dx, dy := x[i]-mx, y[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}

// Disparity compares counties at or above the median SVI with those below it.
type Disparity struct {
	MedianSVI       float64 `json:"median_svi"`
	HighCount       int     `json:"high_svi_counties"`
	LowCount        int     `json:"low_svi_counties"`
	HighOutageRate  float64 `json:"high_svi_outage_rate"`
	LowOutageRate   float64 `json:"low_svi_outage_rate"`
	RateDiffPct     float64 `json:"outage_rate_diff_pct"`
	HighAvgDuration float64 `json:"high_svi_avg_duration"`
	LowAvgDuration  float64 `json:"low_svi_avg_duration"`
	DurationDiffPct float64 `json:"duration_diff_pct"`
	EquityConcern   bool    `json:"equity_concern"`
}

// equityConcernPct is the outage-rate gap above which high-SVI counties are
// flagged.
const equityConcernPct = 10

// ComputeDisparity splits merged at the median SVI. Percent differences are
// relative to the low group and are 0 when its mean is 0 or a group is empty.
func ComputeDisparity(merged Table) Disparity {
	median := Percentile(merged.Column(ColSVI), 50)
	high := merged.Filter(func(r Row) bool { return r.Num(ColSVI) >= median })
	low := merged.Filter(func(r Row) bool { return r.Num(ColSVI) < median })

	d := Disparity{
		MedianSVI: round(median, 3),
		HighCount: high.Len(),
		LowCount:  low.Len(),
	}
	if high.Len() == 0 || low.Len() == 0 {
		return d
	}
	d.HighOutageRate = round(high.Mean(ColOutageRate), 4)
	d.LowOutageRate = round(low.Mean(ColOutageRate), 4)
	d.RateDiffPct = round(pctDiff(high.Mean(ColOutageRate), low.Mean(ColOutageRate)), 1)
	d.HighAvgDuration = round(high.Mean(ColAvgDuration), 2)
	d.LowAvgDuration = round(low.Mean(ColAvgDuration), 2)
	d.DurationDiffPct = round(pctDiff(high.Mean(ColAvgDuration), low.Mean(ColAvgDuration)), 1)
	d.EquityConcern = d.RateDiffPct > equityConcernPct
	return d
}

func pctDiff(high, low float64) float64 {
	if low <= 0 {
		return 0
	}
	return (high - low) / low * 100
}

// Correlation summarizes how EJ burden tracks outage exposure.
type Correlation struct {
	SVIOutageRate     float64   `json:"svi_vs_outage_rate"`
	PovertyDuration   float64   `json:"poverty_vs_duration"`
	CompositeImpact   float64   `json:"composite_ej_vs_impact"`
	DisparityDetected bool      `json:"disparity_detected"`
	Disparity         Disparity `json:"disparity"`
	MostVulnerable    []string  `json:"most_vulnerable"`
	MostOutages       []string  `json:"most_outages"`
}

// disparityCorrelation is the SVI/outage-rate r above which a disparity is reported.
const disparityCorrelation = 0.15

// Correlate computes the correlation report over a merged table.
func Correlate(merged Table) Correlation {
	svi := merged.Column(ColSVI)
	rate := merged.Column(ColOutageRate)
	c := Correlation{
		SVIOutageRate:   round(Pearson(svi, rate), 3),
		PovertyDuration: round(Pearson(merged.Column(ColPovertyRate), merged.Column(ColAvgDuration)), 3),
		CompositeImpact: round(Pearson(merged.Column(ColCompositeEJ), merged.Column(ColImpactPerCapita)), 3),
		Disparity:       ComputeDisparity(merged),
		MostVulnerable:  topKeys(merged, ColCompositeEJ, 5),
		MostOutages:     topKeys(merged, ColEventCount, 5),
	}
	c.DisparityDetected = c.SVIOutageRate > disparityCorrelation
	return c
}

func topKeys(t Table, col string, n int) []string {
	sorted := t.SortedBy(col, true)
	keys := make([]string, 0, n)
	for i := 0; i < sorted.Len() && i < n; i++ {
		keys = append(keys, sorted.KeyOf(i))
	}
	return keys
}

// OutageInsights returns headline bullets for a county outage table.
func OutageInsights(outage Table) []string {
	if outage.Len() == 0 {
		return nil
	}
	busiest := outage.SortedBy(ColEventCount, true)
	events := outage.Sum(ColEventCount)
	var weightedDuration float64
	for _, r := range outage.Rows {
		weightedDuration += r.Num(ColAvgDuration) * r.Num(ColEventCount)
	}
	var meanDuration float64
	if events > 0 {
		meanDuration = weightedDuration / events
	}
	return []string{
		fmt.Sprintf("%s has the most outages (%s)", busiest.KeyOf(0), thousands(busiest.Rows[0].Num(ColEventCount))),
		fmt.Sprintf("Average duration: %.1f hours", meanDuration),
		fmt.Sprintf("%s events meet DOE 50K threshold", thousands(outage.Sum(ColDOEEvents))),
		fmt.Sprintf("%s PSPS events across %d counties", thousands(outage.Sum(ColPSPS)), outage.Len()),
		fmt.Sprintf("Total customers: %s", thousands(outage.Sum(ColTotalCustomers))),
	}
}

// EJInsights returns headline bullets for an EJ table.
func EJInsights(ej Table) []string {
	if ej.Len() == 0 {
		return nil
	}
	vulnerable := ej.Filter(func(r Row) bool { return r.Num(ColSVI) >= 0.5 })
	return []string{
		fmt.Sprintf("%d high-vulnerability counties", vulnerable.Len()),
		fmt.Sprintf("Top EJ burden: %s", strings.Join(topKeys(ej, ColCompositeEJ, 3), ", ")),
		fmt.Sprintf("Average SVI: %.3f", ej.Mean(ColSVI)),
	}
}

// CorrelationInsights returns headline bullets for a correlation report.
func CorrelationInsights(c Correlation) []string {
	verdict := "No major disparity"
	if c.DisparityDetected {
		verdict = "DISPARITY DETECTED"
	}
	return []string{
		fmt.Sprintf("SVI-Outage correlation: r = %.3f", c.SVIOutageRate),
		verdict,
	}
}

// thousands formats a whole number with comma separators.
func thousands(v float64) string {
	s := fmt.Sprintf("%d", int64(math.Round(v)))
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, ch := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
