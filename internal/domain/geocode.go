package domain

import (
	"context"
	"log/slog"
	"strings"
)

// EnrichWithGeocoding fills in what the county reference table could not.
// Events with a county but no coordinates are forward geocoded; events with
// coordinates but no county are reverse geocoded to a county. If geocoder is
// nil or the lookup fails, the event is returned with GeoSource set
// accordingly (graceful degradation).
func EnrichWithGeocoding(ctx context.Context, event OutageEvent, geocoder Geocoder, logger *slog.Logger) OutageEvent {
	if geocoder == nil {
		return event
	}

	hasCoords := !event.Geo.IsZero()
	hasCounty := event.County != ""

	if !hasCoords && hasCounty {
		result, err := geocoder.ForwardGeocode(ctx, event.County+" County", event.State)
		if err != nil {
			logger.Warn("forward geocoding failed",
				"event_id", event.ID,
				"county", event.County,
				"state", event.State,
				"error", err,
			)
			event.GeoSource = "failed"
			return event
		}
		if result.Lat != 0 || result.Lon != 0 {
			event.Geo = Geo{Lat: result.Lat, Lon: result.Lon}
			event.FormattedAddress = result.FormattedAddress
			event.GeoConfidence = result.Confidence
			event.GeoSource = "forward"
			return event
		}
		event.GeoSource = "original"
		return event
	}

	if hasCoords && !hasCounty {
		result, err := geocoder.ReverseGeocode(ctx, event.Geo.Lat, event.Geo.Lon)
		if err != nil {
			logger.Warn("reverse geocoding failed",
				"event_id", event.ID,
				"lat", event.Geo.Lat,
				"lon", event.Geo.Lon,
				"error", err,
			)
			event.GeoSource = "failed"
			return event
		}
		if name := strings.TrimSpace(strings.TrimSuffix(result.PlaceName, " County")); name != "" {
			event.County = name
			if c, ok := LookupCounty(name); ok {
				event.County = c.Name
				event.Region = c.Region
			}
			event.FormattedAddress = result.FormattedAddress
			event.GeoConfidence = result.Confidence
			event.GeoSource = "reverse"
			return event
		}
	}

	return event
}
