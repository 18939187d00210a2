package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/outage-equity-service/internal/domain"
)

// OutageTransformer implements Transformer: parse, enrich from the county
// reference table, then geocode whatever is still missing.
type OutageTransformer struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewTransformer creates an OutageTransformer. Pass a nil geocoder to disable
// geocoding enrichment.
func NewTransformer(geocoder domain.Geocoder, logger *slog.Logger) *OutageTransformer {
	return &OutageTransformer{
		geocoder: geocoder,
		logger:   logger,
	}
}

func (t *OutageTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutageEvent, error) {
	event, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.OutageEvent{}, err
	}

	event = domain.EnrichOutageEvent(event)
	event = domain.EnrichWithGeocoding(ctx, event, t.geocoder, t.logger)

	return event, nil
}
