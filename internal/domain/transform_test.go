package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCounty = "Los Angeles"

func TestParseRawEvent(t *testing.T) {
	msgTime := time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC)

	t.Run("EAGLE-I record", func(t *testing.T) {
		data := []byte(`{"event_id":"EAGLE-000042","county":"Los Angeles","state":"ca","start_time":"01/15/2020 14:30","duration":"3.25","max_customers":"52,310","cause":"Weather","sector":"Residential","lat":"34.05","lon":"-118.24"}`)
		raw := RawEvent{Value: data, Timestamp: msgTime}
		result, err := ParseRawEvent(raw)

		require.NoError(t, err)
		assert.Equal(t, "EAGLE-000042", result.SourceID)
		assert.Equal(t, testCounty, result.County)
		assert.Equal(t, "CA", result.State)
		assert.Equal(t, time.Date(2020, 1, 15, 14, 30, 0, 0, time.UTC), result.StartTime)
		assert.Equal(t, 3.25, result.DurationHours)
		assert.Equal(t, 52310, result.MaxCustomers)
		assert.Equal(t, "Weather", result.RawCause)
		assert.Equal(t, "Residential", result.Sector)
		assert.Equal(t, Geo{Lat: 34.05, Lon: -118.24}, result.Geo)
		assert.True(t, strings.HasPrefix(result.ID, "outage-"))
		assert.Equal(t, data, result.RawPayload)
		assert.True(t, result.ProcessedAt.IsZero())
	})

	t.Run("RFC 3339 start time", func(t *testing.T) {
		raw := RawEvent{Value: []byte(`{"county":"Kern","start_time":"2019-10-09T06:00:00-07:00"}`), Timestamp: msgTime}
		result, err := ParseRawEvent(raw)

		require.NoError(t, err)
		assert.Equal(t, time.Date(2019, 10, 9, 13, 0, 0, 0, time.UTC), result.StartTime)
	})

	t.Run("unparseable fields become zero", func(t *testing.T) {
		raw := RawEvent{Value: []byte(`{"county":"Kern","start_time":"yesterday","duration":"n/a","max_customers":"lots","lat":"","lon":"?"}`), Timestamp: msgTime}
		result, err := ParseRawEvent(raw)

		require.NoError(t, err)
		assert.Equal(t, msgTime, result.StartTime)
		assert.Zero(t, result.DurationHours)
		assert.Zero(t, result.MaxCustomers)
		assert.True(t, result.Geo.IsZero())
	})

	t.Run("non-finite numbers become zero", func(t *testing.T) {
		raw := RawEvent{Value: []byte(`{"county":"Fresno","duration":"NaN","max_customers":"+Inf","lat":"-Inf","lon":"nan"}`), Timestamp: msgTime}
		result, err := ParseRawEvent(raw)

		require.NoError(t, err)
		assert.Zero(t, result.DurationHours)
		assert.Zero(t, result.MaxCustomers)
		assert.True(t, result.Geo.IsZero())
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := ParseRawEvent(RawEvent{Value: []byte("{invalid json")})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse raw event")
	})

	t.Run("deterministic ID", func(t *testing.T) {
		raw := RawEvent{Value: []byte(`{"county":"Fresno","start_time":"07/04/2021 09:00","cause":"Equipment Failure","max_customers":"1200"}`)}

		first, err := ParseRawEvent(raw)
		require.NoError(t, err)
		second, err := ParseRawEvent(raw)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
	})
}

func TestGenerateID(t *testing.T) {
	start := time.Date(2020, 1, 15, 14, 30, 0, 0, time.UTC)

	id := generateID(testCounty, "CA", start, "Weather", 100)
	assert.Len(t, id, len("outage-")+16)
	assert.Equal(t, id, generateID("los angeles", "CA", start, "WEATHER", 100), "county and cause are case-insensitive")
	assert.NotEqual(t, id, generateID(testCounty, "CA", start, "Weather", 101))
	assert.NotEqual(t, id, generateID(testCounty, "CA", start.Add(time.Minute), "Weather", 100))
}

func TestParseFloatOrZero(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"12.5", 12.5},
		{" 7 ", 7},
		{"50,000", 50000},
		{"", 0},
		{"UNK", 0},
		{"NaN", 0},
		{"Inf", 0},
		{"+Inf", 0},
		{"-infinity", 0},
		{"1e400", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseFloatOrZero(tt.in))
		})
	}
}

func TestEnrichOutageEvent(t *testing.T) {
	fixedTime := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixedTime))
	defer SetClock(nil)

	t.Run("known county without coordinates", func(t *testing.T) {
		event := OutageEvent{
			County:        "los angeles county",
			RawCause:      "PSPS Shutoff",
			Sector:        "Industrial",
			StartTime:     time.Date(2019, 10, 9, 6, 0, 0, 0, time.UTC),
			DurationHours: 30,
			MaxCustomers:  75000,
		}

		result := EnrichOutageEvent(event)

		assert.Equal(t, testCounty, result.County)
		assert.Equal(t, RegionSouthern, result.Region)
		assert.Equal(t, StateCA, result.State)
		assert.Equal(t, CausePSPS, result.Cause)
		assert.Equal(t, SectorIndustrial, result.Sector)
		assert.Equal(t, 2019, result.Year)
		assert.Equal(t, "Fall", result.Season)
		assert.True(t, result.MeetsDOE)
		assert.Equal(t, Geo{Lat: 34.0522, Lon: -118.2437}, result.Geo)
		assert.Equal(t, "reference", result.GeoSource)
		assert.Equal(t, fixedTime, result.ProcessedAt)
	})

	t.Run("original coordinates are kept", func(t *testing.T) {
		event := OutageEvent{County: "Kern", State: "CA", Geo: Geo{Lat: 35.1, Lon: -119.0}}

		result := EnrichOutageEvent(event)

		assert.Equal(t, Geo{Lat: 35.1, Lon: -119.0}, result.Geo)
		assert.Equal(t, "original", result.GeoSource)
		assert.Equal(t, CauseOther, result.Cause)
	})

	t.Run("unknown county", func(t *testing.T) {
		result := EnrichOutageEvent(OutageEvent{County: "Atlantis"})

		assert.Equal(t, "Atlantis", result.County)
		assert.Empty(t, result.Region)
		assert.Empty(t, result.GeoSource)
	})

	t.Run("negative values are clamped", func(t *testing.T) {
		result := EnrichOutageEvent(OutageEvent{County: "Kern", DurationHours: -2, MaxCustomers: -10})

		assert.Zero(t, result.DurationHours)
		assert.Zero(t, result.MaxCustomers)
		assert.False(t, result.MeetsDOE)
	})

	t.Run("DOE threshold is inclusive", func(t *testing.T) {
		assert.True(t, EnrichOutageEvent(OutageEvent{MaxCustomers: DOEThresholdCustomers}).MeetsDOE)
		assert.False(t, EnrichOutageEvent(OutageEvent{MaxCustomers: DOEThresholdCustomers - 1}).MeetsDOE)
	})
}

func TestNormalizeCause(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Weather", CauseWeather},
		{"Winter Storm", CauseWeather},
		{"High Wind", CauseWeather},
		{"Equipment Failure", CauseEquipment},
		{"Wildfire/PSPS", CausePSPS},
		{"Public Safety Power Shutoff", CausePSPS},
		{"Vegetation", CauseVegetation},
		{"Tree contact", CauseVegetation},
		{"Vehicle Accident", CauseOther},
		{"", CauseOther},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeCause(tt.in))
		})
	}
}

func TestNormalizeSector(t *testing.T) {
	assert.Equal(t, SectorResidential, normalizeSector(" RESIDENTIAL "))
	assert.Equal(t, SectorCommercial, normalizeSector("commercial"))
	assert.Equal(t, SectorIndustrial, normalizeSector("Industrial"))
	assert.Empty(t, normalizeSector("agricultural"))
}

func TestSeason(t *testing.T) {
	tests := []struct {
		month time.Month
		want  string
	}{
		{time.December, "Winter"},
		{time.January, "Winter"},
		{time.March, "Spring"},
		{time.May, "Spring"},
		{time.June, "Summer"},
		{time.August, "Summer"},
		{time.September, "Fall"},
		{time.November, "Fall"},
	}
	for _, tt := range tests {
		t.Run(tt.month.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Season(tt.month))
		})
	}
}
