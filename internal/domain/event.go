package domain

import (
	"context"
	"time"
)

// RawOutageRecord is the flat JSON structure an upstream collector publishes
// for each EAGLE-I style outage row. Every field arrives as a string.
type RawOutageRecord struct {
	EventID      string `json:"event_id"`
	County       string `json:"county"`
	State        string `json:"state"`
	StartTime    string `json:"start_time"` // "01/02/2006 15:04"
	Duration     string `json:"duration"`   // hours
	MaxCustomers string `json:"max_customers"`
	Cause        string `json:"cause"`
	Sector       string `json:"sector"` // residential, commercial, industrial
	Lat          string `json:"lat"`
	Lon          string `json:"lon"`
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat,omitempty"`
	Lon float64 `json:"lon,omitempty"`
}

// IsZero reports whether no coordinates are set.
func (g Geo) IsZero() bool { return g.Lat == 0 && g.Lon == 0 }

// OutageEvent is the domain-rich representation of one outage after parsing.
type OutageEvent struct {
	ID            string    `json:"id"`
	SourceID      string    `json:"source_id,omitempty"`
	County        string    `json:"county"`
	State         string    `json:"state"`
	Region        string    `json:"region,omitempty"`
	RawCause      string    `json:"raw_cause,omitempty"`
	Cause         string    `json:"cause"`
	Sector        string    `json:"sector,omitempty"`
	StartTime     time.Time `json:"start_time"`
	DurationHours float64   `json:"duration_hours"`
	MaxCustomers  int       `json:"max_customers"`
	Year          int       `json:"year,omitempty"`
	Season        string    `json:"season,omitempty"`
	MeetsDOE      bool      `json:"meets_doe_threshold"`
	Geo           Geo       `json:"geo,omitempty"`

	// Geocoding enrichment fields.
	FormattedAddress string  `json:"formatted_address,omitempty"`
	GeoConfidence    float64 `json:"geo_confidence,omitempty"`
	GeoSource        string  `json:"geo_source,omitempty"` // "original", "reference", "forward", "reverse", "failed"

	RawPayload  []byte    `json:"-"`
	ProcessedAt time.Time `json:"processed_at"`
}
