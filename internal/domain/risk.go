package domain

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// RiskLevel is a quartile bucket for map markers.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
	RiskVeryHigh RiskLevel = "Very High"
)

// RiskLevels lists the buckets from least to most severe.
var RiskLevels = []RiskLevel{RiskLow, RiskModerate, RiskHigh, RiskVeryHigh}

// Color is the marker fill for the level.
func (l RiskLevel) Color() string {
	switch l {
	case RiskLow:
		return "#22c55e"
	case RiskModerate:
		return "#eab308"
	case RiskHigh:
		return "#f97316"
	case RiskVeryHigh:
		return "#ef4444"
	default:
		return "#9ca3af"
	}
}

// ErrUnknownMetric is returned when a risk metric names a column the table lacks.
var ErrUnknownMetric = errors.New("unknown metric")

// Percentile returns the p-th percentile (0–100) of values using linear
// interpolation between closest ranks. It returns 0 for no values.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	p = clamp(p, 0, 100)
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Quartiles holds the 25th, 50th, and 75th percentiles of a metric.
type Quartiles struct {
	Q25 float64 `json:"q25"`
	Q50 float64 `json:"q50"`
	Q75 float64 `json:"q75"`
}

// QuartilesOf computes the quartile cut points of values.
func QuartilesOf(values []float64) Quartiles {
	return Quartiles{
		Q25: Percentile(values, 25),
		Q50: Percentile(values, 50),
		Q75: Percentile(values, 75),
	}
}

// Classify buckets v against the cut points. Boundaries are inclusive on the
// lower bucket.
func (q Quartiles) Classify(v float64) RiskLevel {
	switch {
	case v <= q.Q25:
		return RiskLow
	case v <= q.Q50:
		return RiskModerate
	case v <= q.Q75:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}

// ClassifyNormalized buckets each value by its min-max normalized position
// using fixed 0.25/0.5/0.75 cut points. A constant series is all Low.
func ClassifyNormalized(values []float64) []RiskLevel {
	out := make([]RiskLevel, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := slices.Min(values), slices.Max(values)
	for i, v := range values {
		var norm float64
		if hi > lo {
			norm = (v - lo) / (hi - lo)
		}
		switch {
		case norm < 0.25:
			out[i] = RiskLow
		case norm < 0.5:
			out[i] = RiskModerate
		case norm < 0.75:
			out[i] = RiskHigh
		default:
			out[i] = RiskVeryHigh
		}
	}
	return out
}

// LevelShare is one row of a risk distribution.
type LevelShare struct {
	Level   RiskLevel `json:"level"`
	Color   string    `json:"color"`
	Count   int       `json:"count"`
	Percent float64   `json:"percent"`
}

// Distribution counts levels in severity order. Percentages are rounded to
// one decimal place and are 0 for an empty input.
func Distribution(levels []RiskLevel) []LevelShare {
	counts := make(map[RiskLevel]int, len(RiskLevels))
	for _, l := range levels {
		counts[l]++
	}
	out := make([]LevelShare, 0, len(RiskLevels))
	for _, l := range RiskLevels {
		share := LevelShare{Level: l, Color: l.Color(), Count: counts[l]}
		if len(levels) > 0 {
			share.Percent = round(float64(counts[l])/float64(len(levels))*100, 1)
		}
		out = append(out, share)
	}
	return out
}

// MarkerRadius sizes a county marker by population on a log scale with a
// floor of 6.
func MarkerRadius(population float64) float64 {
	if population < 0 {
		population = 0
	}
	return math.Max(6, math.Log10(population+1)*3)
}

// Marker is a county point on the risk map.
type Marker struct {
	County string    `json:"county"`
	Region string    `json:"region,omitempty"`
	Lat    float64   `json:"lat"`
	Lon    float64   `json:"lon"`
	Value  float64   `json:"value"`
	Level  RiskLevel `json:"level"`
	Color  string    `json:"color"`
	Radius float64   `json:"radius"`
}

// RiskMap is the quartile classification of one metric across a table.
type RiskMap struct {
	Metric       string       `json:"metric"`
	Quartiles    Quartiles    `json:"quartiles"`
	Markers      []Marker     `json:"markers"`
	Distribution []LevelShare `json:"distribution"`
}

// BuildRiskMap classifies every row of t by metric into quartile levels.
// Rows keep table order.
func BuildRiskMap(t Table, metric string) (RiskMap, error) {
	if !t.HasColumn(metric) {
		return RiskMap{}, fmt.Errorf("risk map %q: %w", metric, ErrUnknownMetric)
	}
	values := t.Column(metric)
	q := QuartilesOf(values)
	levels := make([]RiskLevel, len(values))
	for i, v := range values {
		levels[i] = q.Classify(v)
	}
	return riskMap(t, metric, q, values, levels), nil
}

// BuildNormalizedRiskMap is BuildRiskMap with min-max normalized cut points
// instead of quartiles.
func BuildNormalizedRiskMap(t Table, metric string) (RiskMap, error) {
	if !t.HasColumn(metric) {
		return RiskMap{}, fmt.Errorf("risk map %q: %w", metric, ErrUnknownMetric)
	}
	values := t.Column(metric)
	return riskMap(t, metric, QuartilesOf(values), values, ClassifyNormalized(values)), nil
}

func riskMap(t Table, metric string, q Quartiles, values []float64, levels []RiskLevel) RiskMap {
	markers := make([]Marker, 0, t.Len())
	for i, row := range t.Rows {
		markers = append(markers, Marker{
			County: t.KeyOf(i),
			Region: row.Str(ColRegion),
			Lat:    row.Num(ColLatitude),
			Lon:    row.Num(ColLongitude),
			Value:  values[i],
			Level:  levels[i],
			Color:  levels[i].Color(),
			Radius: round(MarkerRadius(row.Num(ColPopulation)), 2),
		})
	}
	return RiskMap{
		Metric:       metric,
		Quartiles:    q,
		Markers:      markers,
		Distribution: Distribution(levels),
	}
}
