package pipeline_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/outage-equity-service/internal/domain"
	"github.com/couchcryptid/outage-equity-service/internal/pipeline"
)

func TestOutageTransformer_WithGeneratedRecords(t *testing.T) {
	transformer := pipeline.NewTransformer(nil, slog.Default())
	records := domain.GenerateOutageRecords(7, 400)

	cases := []struct {
		name      string
		rawCauses []string
		cause     string
	}{
		{"weather", []string{"Weather"}, domain.CauseWeather},
		{"equipment", []string{"Equipment Failure"}, domain.CauseEquipment},
		{"psps", []string{"PSPS Shutoff"}, domain.CausePSPS},
		{"vegetation", []string{"Vegetation"}, domain.CauseVegetation},
		{"other", []string{"Wildfire", "Unknown", "Animal", "Vehicle Accident"}, domain.CauseOther},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			filtered := filterByCause(records, tc.rawCauses)
			require.NotEmpty(t, filtered)

			for _, rec := range filtered {
				out, err := transformer.Transform(context.Background(), rawEventFromRecord(t, rec))
				require.NoError(t, err)

				county, ok := domain.LookupCounty(rec.County)
				require.True(t, ok, rec.County)

				assert.Equal(t, tc.cause, out.Cause)
				assert.Equal(t, county.Name, out.County)
				assert.Equal(t, county.Region, out.Region)
				assert.Equal(t, domain.StateCA, out.State)
				assert.Equal(t, rec.EventID, out.SourceID)
				assert.Equal(t, "original", out.GeoSource)
				assert.False(t, out.Geo.IsZero())
				assert.Equal(t, out.MaxCustomers >= domain.DOEThresholdCustomers, out.MeetsDOE)
				assert.NotEmpty(t, out.Season)
				assert.GreaterOrEqual(t, out.Year, 2014)
				assert.LessOrEqual(t, out.Year, 2023)
				assert.Contains(t, []string{domain.SectorResidential, domain.SectorCommercial, domain.SectorIndustrial}, out.Sector)
			}
		})
	}
}

func filterByCause(records []domain.RawOutageRecord, causes []string) []domain.RawOutageRecord {
	out := make([]domain.RawOutageRecord, 0, len(records))
	for _, rec := range records {
		for _, c := range causes {
			if strings.EqualFold(rec.Cause, c) {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

func rawEventFromRecord(t *testing.T, rec domain.RawOutageRecord) domain.RawEvent {
	t.Helper()
	payload, err := json.Marshal(rec)
	require.NoError(t, err)

	return domain.RawEvent{
		Key:   []byte(rec.EventID),
		Value: payload,
		Topic: "raw-outage-events",
	}
}
