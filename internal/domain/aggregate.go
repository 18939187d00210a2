package domain

import (
	"math"
	"sort"
	"strings"
)

// OutageColumns is the schema of the per-county outage table.
var OutageColumns = []string{
	ColCounty, ColRegion, ColEventCount, ColWeather, ColEquipment, ColPSPS,
	ColVegetation, ColOtherCause, ColAvgDuration, ColTotalCustomers, ColDOEEvents,
	ColPopulation, ColResidential, ColCommercial, ColIndustrial,
	ColLatitude, ColLongitude,
}

type countyTotals struct {
	name          string
	events        int
	causes        map[string]int
	sectors       map[string]int
	totalDuration float64
	customers     int
	doeEvents     int
	geo           Geo
}

// CountyAggregator folds outage events into per-county totals. The zero
// value is not usable; call NewCountyAggregator. It is not safe for
// concurrent use.
type CountyAggregator struct {
	totals map[string]*countyTotals
	events int
}

// NewCountyAggregator returns an empty aggregator.
func NewCountyAggregator() *CountyAggregator {
	return &CountyAggregator{totals: make(map[string]*countyTotals)}
}

// Add folds one event into its county. County names compare without case;
// the first spelling seen is kept. Events without a county are ignored and
// reported as not added.
func (a *CountyAggregator) Add(e OutageEvent) bool {
	if e.County == "" {
		return false
	}
	key := strings.ToLower(e.County)
	t, ok := a.totals[key]
	if !ok {
		t = &countyTotals{
			name:    e.County,
			causes:  make(map[string]int),
			sectors: make(map[string]int),
			geo:     e.Geo,
		}
		a.totals[key] = t
	}
	t.events++
	t.causes[e.Cause]++
	if e.Sector != "" {
		t.sectors[e.Sector]++
	}
	t.totalDuration += e.DurationHours
	t.customers += e.MaxCustomers
	if e.MeetsDOE {
		t.doeEvents++
	}
	if t.geo.IsZero() {
		t.geo = e.Geo
	}
	a.events++
	return true
}

// Clone returns an independent copy.
func (a *CountyAggregator) Clone() *CountyAggregator {
	c := &CountyAggregator{totals: make(map[string]*countyTotals, len(a.totals)), events: a.events}
	for k, t := range a.totals {
		cp := *t
		cp.causes = make(map[string]int, len(t.causes))
		for cause, n := range t.causes {
			cp.causes[cause] = n
		}
		cp.sectors = make(map[string]int, len(t.sectors))
		for sector, n := range t.sectors {
			cp.sectors[sector] = n
		}
		c.totals[k] = &cp
	}
	return c
}

// Events returns how many events have been folded in.
func (a *CountyAggregator) Events() int { return a.events }

// Table renders one row per county, sorted by county name. Population and
// region come from the reference table; unknown counties get zero and "".
func (a *CountyAggregator) Table() Table {
	all := make([]*countyTotals, 0, len(a.totals))
	for _, t := range a.totals {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].name < all[j].name })

	rows := make([]Row, 0, len(all))
	for _, t := range all {
		r := NewRow()
		r.Text[ColCounty] = t.name

		n := float64(t.events)
		r.Values[ColEventCount] = n
		r.Values[ColWeather] = float64(t.causes[CauseWeather])
		r.Values[ColEquipment] = float64(t.causes[CauseEquipment])
		r.Values[ColPSPS] = float64(t.causes[CausePSPS])
		r.Values[ColVegetation] = float64(t.causes[CauseVegetation])
		r.Values[ColOtherCause] = float64(t.causes[CauseOther])
		r.Values[ColAvgDuration] = round(t.totalDuration/n, 2)
		r.Values[ColTotalCustomers] = float64(t.customers)
		r.Values[ColDOEEvents] = float64(t.doeEvents)
		r.Values[ColResidential] = float64(t.sectors[SectorResidential]) / n
		r.Values[ColCommercial] = float64(t.sectors[SectorCommercial]) / n
		r.Values[ColIndustrial] = float64(t.sectors[SectorIndustrial]) / n
		r.Values[ColLatitude] = t.geo.Lat
		r.Values[ColLongitude] = t.geo.Lon

		if c, ok := LookupCounty(t.name); ok {
			r.Text[ColRegion] = c.Region
			r.Values[ColPopulation] = float64(c.Population)
			r.Values[ColLatitude] = c.Lat
			r.Values[ColLongitude] = c.Lon
		} else {
			r.Text[ColRegion] = ""
			r.Values[ColPopulation] = 0
		}
		rows = append(rows, r)
	}

	return Table{Key: ColCounty, Columns: OutageColumns, Rows: rows}
}

// round rounds v to the given number of decimal places.
func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
