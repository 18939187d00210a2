package analysis

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/outage-equity-service/internal/domain"
	"github.com/couchcryptid/outage-equity-service/internal/observability"
	"github.com/couchcryptid/outage-equity-service/internal/query"
	"github.com/couchcryptid/outage-equity-service/internal/store"
)

type recordingAuditor struct {
	mu     sync.Mutex
	audits []domain.QueryAudit
	err    error
}

func (r *recordingAuditor) Publish(_ context.Context, a domain.QueryAudit) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, a)
	return nil
}

// seededStore loads a deterministic synthetic dataset the same way the
// service does at startup.
func seededStore(t *testing.T, metrics *observability.Metrics) *store.Store {
	t.Helper()
	st := store.New(slog.Default(), metrics)

	recs := domain.GenerateOutageRecords(42, 2000)
	events := make([]domain.OutageEvent, 0, len(recs))
	for _, rec := range recs {
		events = append(events, domain.EnrichOutageEvent(domain.OutageEvent{
			County:        rec.County,
			RawCause:      rec.Cause,
			Sector:        rec.Sector,
			DurationHours: 2,
			MaxCustomers:  100,
		}))
	}
	require.NoError(t, st.LoadBatch(context.Background(), events))
	require.NoError(t, st.SetEJ(domain.EJTable(domain.GenerateEJIndicators(42))))
	return st
}

func newTestService(t *testing.T, auditor Auditor) (*Service, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	return New(seededStore(t, metrics), auditor, slog.Default(), metrics), metrics
}

func TestService_QueryAudits(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { domain.SetClock(nil) })

	auditor := &recordingAuditor{}
	svc, metrics := newTestService(t, auditor)

	res, err := svc.Query(context.Background(), DatasetOutage, "top 3 psps counties")
	require.NoError(t, err)
	assert.Equal(t, query.RankTop, res.Intent)
	assert.Equal(t, domain.ColPSPS, res.Column)
	assert.Equal(t, 3, res.Table.Len())

	require.Len(t, auditor.audits, 1)
	a := auditor.audits[0]
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, DatasetOutage, a.Dataset)
	assert.Equal(t, "top 3 psps counties", a.Query)
	assert.Equal(t, string(query.RankTop), a.Intent)
	assert.Equal(t, 3, a.Rows)
	assert.Equal(t, res.Explanation, a.Explanation)
	assert.Equal(t, now, a.AnsweredAt)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Queries.WithLabelValues(DatasetOutage, string(query.RankTop))), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.AuditsWritten), 0)
}

func TestService_QueryDatasets(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	t.Run("empty dataset means outage", func(t *testing.T) {
		res, err := svc.Query(ctx, "", "summary")
		require.NoError(t, err)
		assert.Equal(t, query.Summary, res.Intent)
		i, ok := res.Table.Find(query.MetricTotalEvents)
		require.True(t, ok)
		assert.InDelta(t, 2000, res.Table.Rows[i].Num(domain.ColValue), 0)
	})

	t.Run("ej uses the ej vocabulary", func(t *testing.T) {
		res, err := svc.Query(ctx, DatasetEJ, "top 5 most vulnerable counties")
		require.NoError(t, err)
		assert.Equal(t, domain.ColSVI, res.Column)
		assert.Equal(t, 5, res.Table.Len())
	})

	t.Run("merged answers outage questions over ej rows", func(t *testing.T) {
		res, err := svc.Query(ctx, DatasetMerged, "top 4 by events")
		require.NoError(t, err)
		assert.Equal(t, domain.ColEventCount, res.Column)
		assert.Equal(t, 4, res.Table.Len())
		assert.True(t, res.Table.HasColumn(domain.ColSVI))
	})

	t.Run("unknown dataset", func(t *testing.T) {
		_, err := svc.Query(ctx, "weather", "top 5")
		require.ErrorIs(t, err, ErrUnknownDataset)
	})
}

func TestService_AuditFailureDoesNotFailQuery(t *testing.T) {
	svc, metrics := newTestService(t, &recordingAuditor{err: errors.New("broker down")})

	res, err := svc.Query(context.Background(), DatasetOutage, "Los Angeles")
	require.NoError(t, err)
	assert.Equal(t, query.CountyLookup, res.Intent)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.AuditErrors), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.AuditsWritten), 0)
}

func TestService_Table(t *testing.T) {
	svc, _ := newTestService(t, nil)

	for _, name := range svc.Datasets() {
		t.Run(name, func(t *testing.T) {
			tbl, err := svc.Table(name)
			require.NoError(t, err)
			assert.NotZero(t, tbl.Len())
			assert.NoError(t, tbl.Validate())
		})
	}

	merged, err := svc.Table(DatasetMerged)
	require.NoError(t, err)
	ej, err := svc.Table(DatasetEJ)
	require.NoError(t, err)
	assert.Equal(t, ej.Len(), merged.Len())
}

func TestService_RiskMap(t *testing.T) {
	svc, _ := newTestService(t, nil)

	rm, err := svc.RiskMap(DatasetEJ, "", "")
	require.NoError(t, err)
	assert.Equal(t, domain.ColCompositeEJ, rm.Metric)
	assert.Len(t, rm.Markers, 39)

	rm, err = svc.RiskMap(DatasetMerged, "", ScaleNormalized)
	require.NoError(t, err)
	assert.Equal(t, domain.ColOutageRate, rm.Metric)

	rm, err = svc.RiskMap("", domain.ColPSPS, ScaleQuartile)
	require.NoError(t, err)
	assert.Equal(t, domain.ColPSPS, rm.Metric)

	_, err = svc.RiskMap(DatasetOutage, "shoe_size", "")
	require.ErrorIs(t, err, domain.ErrUnknownMetric)

	_, err = svc.RiskMap(DatasetOutage, "", "log")
	require.ErrorIs(t, err, ErrUnknownScale)

	_, err = svc.RiskMap("nope", "", "")
	require.ErrorIs(t, err, ErrUnknownDataset)
}

func TestService_CorrelationAndInsights(t *testing.T) {
	svc, _ := newTestService(t, nil)

	c := svc.Correlation()
	assert.Len(t, c.MostVulnerable, 5)
	assert.Len(t, c.MostOutages, 5)
	assert.GreaterOrEqual(t, c.SVIOutageRate, -1.0)
	assert.LessOrEqual(t, c.SVIOutageRate, 1.0)

	outage, err := svc.Insights(DatasetOutage)
	require.NoError(t, err)
	assert.Len(t, outage, 5)
	assert.Contains(t, outage[4], "Total customers: 200,000")

	ej, err := svc.Insights(DatasetEJ)
	require.NoError(t, err)
	assert.Len(t, ej, 3)

	merged, err := svc.Insights(DatasetMerged)
	require.NoError(t, err)
	require.Len(t, merged, 2)
	assert.Contains(t, merged[0], "SVI-Outage correlation")

	_, err = svc.Insights("weather")
	assert.ErrorIs(t, err, ErrUnknownDataset)
}
