package query

import (
	"fmt"
	"strconv"

	"github.com/couchcryptid/outage-equity-service/internal/domain"
)

// Keyword maps query stems to the column they select.
type Keyword struct {
	Terms  []string
	Column string
}

// Op is a threshold comparison used by sector rules.
type Op string

const (
	OpAtLeast Op = ">="
	OpAbove   Op = ">"
	OpBelow   Op = "<"
)

func (o Op) holds(v, threshold float64) bool {
	switch o {
	case OpAtLeast:
		return v >= threshold
	case OpAbove:
		return v > threshold
	case OpBelow:
		return v < threshold
	default:
		return false
	}
}

// SectorRule is a fixed threshold filter selected by a sector or demographic
// keyword.
type SectorRule struct {
	Label     string
	Terms     []string
	Column    string
	Op        Op
	Threshold float64
}

// Vocabulary is the dataset-specific part of dispatching: which stems pick
// which column for each intent, the sector thresholds, and the summary shape.
// Keyword lists are scanned in order and the first hit wins.
type Vocabulary struct {
	Name string

	// Rank picks the column for top, bottom, average, and total queries.
	Rank []Keyword
	// Greater picks the column for greater-than and between queries.
	Greater []Keyword
	// Less picks the column for less-than queries.
	Less []Keyword
	// DefaultColumn is used when no keyword matches.
	DefaultColumn string

	Sectors []SectorRule
	Summary func(domain.Table) domain.Table
}

func (v Vocabulary) column(t text, keywords []Keyword) string {
	for _, k := range keywords {
		if t.mentionsAny(k.Terms) {
			return k.Column
		}
	}
	return v.DefaultColumn
}

// regions maps each region label to the phrases that select it.
var regions = []struct {
	label   string
	aliases []string
}{
	{domain.RegionBayArea, []string{"bay area", "san francisco bay"}},
	{domain.RegionSouthern, []string{"southern california", "socal", "southern"}},
	{domain.RegionCentralValley, []string{"central valley", "san joaquin valley"}},
	{domain.RegionCentralCoast, []string{"central coast"}},
	{domain.RegionNorthern, []string{"northern california", "norcal", "north coast", "northern"}},
	{domain.RegionSierra, []string{"sierra"}},
}

var (
	ruralRule = SectorRule{Label: "Rural", Terms: []string{"rural"}, Column: domain.ColPopulation, Op: OpBelow, Threshold: 100000}
	urbanRule = SectorRule{Label: "Urban", Terms: []string{"urban", "metro", "city", "cities"}, Column: domain.ColPopulation, Op: OpAbove, Threshold: 1000000}
)

var outageThreshold = []Keyword{
	{Terms: []string{"event"}, Column: domain.ColEventCount},
	{Terms: []string{"customer"}, Column: domain.ColTotalCustomers},
	{Terms: []string{"duration", "hour"}, Column: domain.ColAvgDuration},
	{Terms: []string{"psps"}, Column: domain.ColPSPS},
	{Terms: []string{"population"}, Column: domain.ColPopulation},
}

// OutageVocabulary serves the outage and merged tables.
var OutageVocabulary = Vocabulary{
	Name: "outage",
	Rank: []Keyword{
		{Terms: []string{"psps", "shutoff"}, Column: domain.ColPSPS},
		{Terms: []string{"weather", "storm"}, Column: domain.ColWeather},
		{Terms: []string{"equipment"}, Column: domain.ColEquipment},
		{Terms: []string{"vegetation", "tree"}, Column: domain.ColVegetation},
		{Terms: []string{"duration", "hour", "long"}, Column: domain.ColAvgDuration},
		{Terms: []string{"customer"}, Column: domain.ColTotalCustomers},
		{Terms: []string{"industrial"}, Column: domain.ColIndustrial},
		{Terms: []string{"commercial"}, Column: domain.ColCommercial},
		{Terms: []string{"residential"}, Column: domain.ColResidential},
		{Terms: []string{"population", "populous", "people"}, Column: domain.ColPopulation},
	},
	Greater: outageThreshold,
	// PSPS is not a less-than keyword; "fewer than 500 psps" ranks by events.
	Less:          withoutColumn(outageThreshold, domain.ColPSPS),
	DefaultColumn: domain.ColEventCount,
	Sectors: []SectorRule{
		{Label: "High industrial", Terms: []string{"industr"}, Column: domain.ColIndustrial, Op: OpAtLeast, Threshold: 0.15},
		{Label: "High commercial", Terms: []string{"commercial", "business"}, Column: domain.ColCommercial, Op: OpAtLeast, Threshold: 0.30},
		{Label: "Residential", Terms: []string{"residential", "housing"}, Column: domain.ColResidential, Op: OpAtLeast, Threshold: 0.60},
		ruralRule,
		urbanRule,
	},
	Summary: outageSummary,
}

var ejKeywords = []Keyword{
	{Terms: []string{"svi", "vulnerab", "social"}, Column: domain.ColSVI},
	{Terms: []string{"fire", "wildfire"}, Column: domain.ColFireRisk},
	{Terms: []string{"ces", "pollution", "calenviroscreen"}, Column: domain.ColCES},
	{Terms: []string{"pm25", "pm2.5", "particulate", "air"}, Column: domain.ColPM25},
	{Terms: []string{"poverty", "poor"}, Column: domain.ColPovertyRate},
	{Terms: []string{"health", "asthma"}, Column: domain.ColHealthBurden},
	{Terms: []string{"composite", "burden", "justice"}, Column: domain.ColCompositeEJ},
	{Terms: []string{"population", "populous", "people"}, Column: domain.ColPopulation},
}

// EJVocabulary serves the environmental-justice table.
var EJVocabulary = Vocabulary{
	Name:          "ej",
	Rank:          ejKeywords,
	Greater:       ejKeywords,
	Less:          ejKeywords,
	DefaultColumn: domain.ColCompositeEJ,
	Sectors: []SectorRule{
		{Label: "Vulnerable", Terms: []string{"vulnerab", "disadvantaged"}, Column: domain.ColSVI, Op: OpAtLeast, Threshold: 0.5},
		{Label: "High fire risk", Terms: []string{"fire", "wildfire"}, Column: domain.ColFireRisk, Op: OpAtLeast, Threshold: 50},
		{Label: "High pollution", Terms: []string{"pollut", "ces"}, Column: domain.ColCES, Op: OpAtLeast, Threshold: 50},
		{Label: "Poor air quality", Terms: []string{"poor air", "air quality", "smog"}, Column: domain.ColPM25, Op: OpAtLeast, Threshold: 15},
		ruralRule,
		urbanRule,
	},
	Summary: ejSummary,
}

func withoutColumn(keywords []Keyword, col string) []Keyword {
	out := make([]Keyword, 0, len(keywords))
	for _, k := range keywords {
		if k.Column != col {
			out = append(out, k)
		}
	}
	return out
}

// Summary metric names.
const (
	MetricTotalEvents     = "total_events"
	MetricTotalCustomers  = "total_customers"
	MetricMeanDuration    = "mean_duration"
	MetricCountyCount     = "county_count"
	MetricPSPSTotal       = "psps_total"
	MetricWeatherTotal    = "weather_total"
	MetricMeanSVI         = "mean_svi"
	MetricMeanCompositeEJ = "mean_composite_ej"
	MetricVulnerable      = "high_vulnerability_counties"
	MetricMeanPM25        = "mean_pm25"
	MetricPopulation      = "total_population"
)

func outageSummary(t domain.Table) domain.Table {
	return metricTable([]metric{
		{MetricTotalEvents, t.Sum(domain.ColEventCount)},
		{MetricTotalCustomers, t.Sum(domain.ColTotalCustomers)},
		{MetricMeanDuration, t.Mean(domain.ColAvgDuration)},
		{MetricCountyCount, float64(t.Len())},
		{MetricPSPSTotal, t.Sum(domain.ColPSPS)},
		{MetricWeatherTotal, t.Sum(domain.ColWeather)},
	})
}

func ejSummary(t domain.Table) domain.Table {
	vulnerable := t.Filter(func(r domain.Row) bool { return r.Num(domain.ColSVI) >= 0.5 })
	return metricTable([]metric{
		{MetricCountyCount, float64(t.Len())},
		{MetricMeanSVI, t.Mean(domain.ColSVI)},
		{MetricMeanCompositeEJ, t.Mean(domain.ColCompositeEJ)},
		{MetricVulnerable, float64(vulnerable.Len())},
		{MetricMeanPM25, t.Mean(domain.ColPM25)},
		{MetricPopulation, t.Sum(domain.ColPopulation)},
	})
}

type metric struct {
	name  string
	value float64
}

// metricTable renders name/value pairs as a two-column table keyed by metric.
func metricTable(metrics []metric) domain.Table {
	rows := make([]domain.Row, 0, len(metrics))
	for _, m := range metrics {
		r := domain.NewRow()
		r.Text[domain.ColMetric] = m.name
		r.Values[domain.ColValue] = m.value
		rows = append(rows, r)
	}
	return domain.Table{
		Key:     domain.ColMetric,
		Columns: []string{domain.ColMetric, domain.ColValue},
		Rows:    rows,
	}
}

func (r SectorRule) describe() string {
	return fmt.Sprintf("%s counties (%s %s %s)", r.Label, r.Column, r.Op, strconv.FormatFloat(r.Threshold, 'f', -1, 64))
}
