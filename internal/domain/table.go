package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Column names shared by the outage, EJ, and merged tables.
const (
	ColCounty    = "county"
	ColRegion    = "region"
	ColLatitude  = "latitude"
	ColLongitude = "longitude"

	ColEventCount     = "event_count"
	ColWeather        = "weather"
	ColEquipment      = "equipment"
	ColPSPS           = "psps"
	ColVegetation     = "vegetation"
	ColOtherCause     = "other"
	ColAvgDuration    = "avg_duration"
	ColTotalCustomers = "total_customers"
	ColDOEEvents      = "doe_events"
	ColPopulation     = "population"
	ColResidential    = "residential"
	ColCommercial     = "commercial"
	ColIndustrial     = "industrial"

	ColCES             = "ces_score"
	ColPollutionBurden = "pollution_burden"
	ColPM25            = "pm25"
	ColOzone           = "ozone"
	ColSVI             = "svi_score"
	ColPovertyRate     = "poverty_rate"
	ColHealthBurden    = "health_burden"
	ColFireRisk        = "fire_risk"
	ColCompositeEJ     = "composite_ej_score"

	ColOutageRate      = "outage_rate_per_1000"
	ColImpactPerCapita = "impact_per_capita"

	ColMetric = "metric"
	ColValue  = "value"
)

// nonNegativeColumns may never hold negative values in a valid table.
var nonNegativeColumns = []string{
	ColEventCount, ColWeather, ColEquipment, ColPSPS, ColVegetation, ColOtherCause,
	ColAvgDuration, ColTotalCustomers, ColDOEEvents, ColPopulation,
}

// Row is one record of a Table. Categorical attributes live in Text and
// numeric attributes in Values; a column appears in at most one of them.
type Row struct {
	Text   map[string]string
	Values map[string]float64
}

// NewRow returns a Row with both maps allocated.
func NewRow() Row {
	return Row{Text: map[string]string{}, Values: map[string]float64{}}
}

// Str returns a categorical attribute, or "" when absent.
func (r Row) Str(col string) string { return r.Text[col] }

// Num returns a numeric attribute, or 0 when absent.
func (r Row) Num(col string) float64 { return r.Values[col] }

// MarshalJSON flattens the row into a single object keyed by column.
func (r Row) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Text)+len(r.Values))
	for k, v := range r.Text {
		flat[k] = v
	}
	for k, v := range r.Values {
		flat[k] = v
	}
	return json.Marshal(flat)
}

// UnmarshalJSON splits a flat object back into Text and Values.
func (r *Row) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	*r = NewRow()
	for k, v := range flat {
		switch val := v.(type) {
		case string:
			r.Text[k] = val
		case float64:
			r.Values[k] = val
		case bool:
			if val {
				r.Values[k] = 1
			} else {
				r.Values[k] = 0
			}
		}
	}
	return nil
}

// Table is an ordered collection of rows sharing a known schema. Key names
// the column whose values identify rows (county for every dataset here).
type Table struct {
	Key     string   `json:"key"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// HasColumn reports whether col is part of the table's schema.
func (t Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// KeyOf returns the key value of row i.
func (t Table) KeyOf(i int) string { return t.Rows[i].Str(t.Key) }

// Column returns every row's numeric value for col, in row order.
func (t Table) Column(col string) []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Num(col)
	}
	return out
}

// Select returns a table with the same schema holding the rows at idx, in
// the order given. Row maps are shared with t, not copied.
func (t Table) Select(idx []int) Table {
	rows := make([]Row, 0, len(idx))
	for _, i := range idx {
		rows = append(rows, t.Rows[i])
	}
	return Table{Key: t.Key, Columns: t.Columns, Rows: rows}
}

// Filter returns the rows for which keep is true, preserving order.
func (t Table) Filter(keep func(Row) bool) Table {
	idx := make([]int, 0, len(t.Rows))
	for i, r := range t.Rows {
		if keep(r) {
			idx = append(idx, i)
		}
	}
	return t.Select(idx)
}

// SortedBy returns a copy of t ordered by col. Ties keep their original order.
func (t Table) SortedBy(col string, descending bool) Table {
	idx := make([]int, len(t.Rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := t.Rows[idx[a]].Num(col), t.Rows[idx[b]].Num(col)
		if descending {
			return va > vb
		}
		return va < vb
	})
	return t.Select(idx)
}

// Sum adds up col over every row.
func (t Table) Sum(col string) float64 {
	var total float64
	for _, r := range t.Rows {
		total += r.Num(col)
	}
	return total
}

// Mean averages col over every row; 0 for an empty table.
func (t Table) Mean(col string) float64 {
	if len(t.Rows) == 0 {
		return 0
	}
	return t.Sum(col) / float64(len(t.Rows))
}

func sortedKeys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Find returns the index of the row whose key equals key, case-insensitively.
func (t Table) Find(key string) (int, bool) {
	for i := range t.Rows {
		if strings.EqualFold(t.KeyOf(i), key) {
			return i, true
		}
	}
	return -1, false
}

// Validate checks the table invariants: a key column that is part of the
// schema, unique non-empty keys, finite numbers, and no negative counts,
// durations, or populations. Every violation is reported.
func (t Table) Validate() error {
	var result *multierror.Error

	if t.Key == "" {
		result = multierror.Append(result, fmt.Errorf("table has no key column"))
	} else if !t.HasColumn(t.Key) {
		result = multierror.Append(result, fmt.Errorf("key column %q missing from schema", t.Key))
	}

	seen := make(map[string]int, len(t.Rows))
	for i, r := range t.Rows {
		key := r.Str(t.Key)
		if key == "" {
			result = multierror.Append(result, fmt.Errorf("row %d: empty %s", i, t.Key))
		} else if prev, dup := seen[strings.ToLower(key)]; dup {
			result = multierror.Append(result, fmt.Errorf("row %d: duplicate %s %q (first at row %d)", i, t.Key, key, prev))
		} else {
			seen[strings.ToLower(key)] = i
		}

		for _, col := range sortedKeys(r.Values) {
			if v := r.Values[col]; math.IsNaN(v) || math.IsInf(v, 0) {
				result = multierror.Append(result, fmt.Errorf("row %d (%s): non-finite %s %g", i, key, col, v))
			}
		}
		for _, col := range nonNegativeColumns {
			if v, ok := r.Values[col]; ok && v < 0 {
				result = multierror.Append(result, fmt.Errorf("row %d (%s): negative %s %g", i, key, col, v))
			}
		}
	}

	return result.ErrorOrNil()
}
