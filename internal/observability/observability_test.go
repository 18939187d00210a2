package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/outage-equity-service/internal/config"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := NewLogger(&config.Config{LogLevel: tt.level, LogFormat: "json"})
			ctx := context.Background()
			assert.True(t, logger.Enabled(ctx, tt.want))
			assert.False(t, logger.Enabled(ctx, tt.want-1))
			assert.Same(t, logger, slog.Default())
		})
	}
}

func TestMetrics_RegisterOnFreshRegistry(t *testing.T) {
	m := NewMetricsForTesting()
	reg := prometheus.NewRegistry()
	for _, c := range m.collectors() {
		require.NoError(t, reg.Register(c))
	}

	m.Queries.WithLabelValues("outage", "rank_top").Inc()
	m.Queries.WithLabelValues("outage", "rank_top").Inc()
	m.AuditErrors.Inc()

	assert.InDelta(t, 2, testutil.ToFloat64(m.Queries.WithLabelValues("outage", "rank_top")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AuditErrors), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.Queries))
}
