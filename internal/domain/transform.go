package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// EAGLE-I exports start times in this layout.
const startTimeLayout = "01/02/2006 15:04"

// DOEThresholdCustomers is the customer count at which an outage qualifies
// as a DOE major event.
const DOEThresholdCustomers = 50000

// Normalized outage causes.
const (
	CauseWeather    = "weather"
	CauseEquipment  = "equipment"
	CausePSPS       = "psps"
	CauseVegetation = "vegetation"
	CauseOther      = "other"
)

// Normalized customer sectors.
const (
	SectorResidential = "residential"
	SectorCommercial  = "commercial"
	SectorIndustrial  = "industrial"
)

// ParseRawEvent deserializes a RawEvent's value into an OutageEvent.
// Numeric fields that fail to parse become zero; only malformed JSON is an error.
func ParseRawEvent(raw RawEvent) (OutageEvent, error) {
	var rec RawOutageRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return OutageEvent{}, fmt.Errorf("parse raw event: %w", err)
	}

	county := strings.TrimSpace(rec.County)
	state := strings.ToUpper(strings.TrimSpace(rec.State))
	start := parseStartTime(rec.StartTime, raw.Timestamp)
	customers := int(parseFloatOrZero(rec.MaxCustomers))
	duration := parseFloatOrZero(rec.Duration)

	return OutageEvent{
		ID:            generateID(county, state, start, rec.Cause, customers),
		SourceID:      strings.TrimSpace(rec.EventID),
		County:        county,
		State:         state,
		RawCause:      strings.TrimSpace(rec.Cause),
		Sector:        strings.TrimSpace(rec.Sector),
		StartTime:     start,
		DurationHours: duration,
		MaxCustomers:  customers,
		Geo:           Geo{Lat: parseFloatOrZero(rec.Lat), Lon: parseFloatOrZero(rec.Lon)},

		RawPayload: raw.Value,
	}, nil
}

// parseFloatOrZero parses a string as float64, returning 0 on failure or for
// NaN and infinities. Thousands separators are tolerated ("50,000").
func parseFloatOrZero(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// parseStartTime accepts the EAGLE-I layout or RFC 3339 and falls back to the
// message timestamp.
func parseStartTime(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback.UTC()
	}
	if t, err := time.Parse(startTimeLayout, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return fallback.UTC()
}

// generateID produces a deterministic ID from the event's key fields so that
// replaying the same record yields the same ID.
func generateID(county, state string, start time.Time, cause string, customers int) string {
	input := fmt.Sprintf("%s|%s|%s|%s|%d", strings.ToLower(county), state, start.UTC().Format(time.RFC3339), strings.ToLower(cause), customers)
	hash := sha256.Sum256([]byte(input))
	return "outage-" + hex.EncodeToString(hash[:8])
}

// EnrichOutageEvent normalizes cause and sector, derives calendar fields and
// the DOE threshold flag, fills coordinates and region from the county
// reference table, and stamps ProcessedAt.
func EnrichOutageEvent(event OutageEvent) OutageEvent {
	event.Cause = normalizeCause(event.RawCause)
	event.Sector = normalizeSector(event.Sector)
	if event.State == "" {
		event.State = StateCA
	}
	if !event.StartTime.IsZero() {
		event.Year = event.StartTime.Year()
		event.Season = Season(event.StartTime.Month())
	}
	if event.DurationHours < 0 {
		event.DurationHours = 0
	}
	if event.MaxCustomers < 0 {
		event.MaxCustomers = 0
	}
	event.MeetsDOE = event.MaxCustomers >= DOEThresholdCustomers

	if c, ok := LookupCounty(event.County); ok {
		event.County = c.Name
		event.Region = c.Region
		if event.Geo.IsZero() {
			event.Geo = Geo{Lat: c.Lat, Lon: c.Lon}
			event.GeoSource = "reference"
		}
	}
	if event.GeoSource == "" && !event.Geo.IsZero() {
		event.GeoSource = "original"
	}

	event.ProcessedAt = clock.Now()
	return event
}

// normalizeCause folds the free-form cause labels seen across EAGLE-I exports
// into the five categories the county tables count.
func normalizeCause(cause string) string {
	c := strings.ToLower(strings.TrimSpace(cause))
	switch {
	case strings.Contains(c, "psps"), strings.Contains(c, "shutoff"):
		return CausePSPS
	case strings.Contains(c, "weather"), strings.Contains(c, "storm"), strings.Contains(c, "wind"):
		return CauseWeather
	case strings.Contains(c, "equipment"):
		return CauseEquipment
	case strings.Contains(c, "vegetation"), strings.Contains(c, "tree"):
		return CauseVegetation
	default:
		return CauseOther
	}
}

func normalizeSector(sector string) string {
	switch strings.ToLower(strings.TrimSpace(sector)) {
	case SectorResidential:
		return SectorResidential
	case SectorCommercial:
		return SectorCommercial
	case SectorIndustrial:
		return SectorIndustrial
	default:
		return ""
	}
}

// Season maps a month to its meteorological season.
func Season(m time.Month) string {
	switch m {
	case time.December, time.January, time.February:
		return "Winter"
	case time.March, time.April, time.May:
		return "Spring"
	case time.June, time.July, time.August:
		return "Summer"
	default:
		return "Fall"
	}
}
