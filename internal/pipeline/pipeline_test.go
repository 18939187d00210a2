package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/outage-equity-service/internal/domain"
	"github.com/couchcryptid/outage-equity-service/internal/observability"
	"github.com/couchcryptid/outage-equity-service/internal/pipeline"
	"github.com/couchcryptid/outage-equity-service/internal/store"
)

// --- mocks ---

// mockExtractor hands out its batches in order, then blocks until the
// context ends.
type mockExtractor struct {
	mu      sync.Mutex
	batches [][]domain.RawEvent
	errs    []error
	calls   int
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	m.mu.Lock()
	i := m.calls
	m.calls++
	m.mu.Unlock()

	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.batches) {
		return m.batches[i], nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

type mockTransformer struct {
	failCounty string
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.OutageEvent, error) {
	county := string(raw.Key)
	if county == m.failCounty {
		return domain.OutageEvent{}, errors.New("bad data")
	}
	return domain.OutageEvent{ID: "evt-" + county, County: county, Cause: domain.CauseWeather}, nil
}

type mockLoader struct {
	mu     sync.Mutex
	loaded []domain.OutageEvent
	fails  atomic.Int32
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.OutageEvent) error {
	if m.fails.Load() > 0 {
		m.fails.Add(-1)
		return errors.New("load unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = append(m.loaded, events...)
	return nil
}

func (m *mockLoader) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loaded)
}

func rawFor(county string, commit func(context.Context) error) domain.RawEvent {
	return domain.RawEvent{Key: []byte(county), Topic: "raw-outage-events", Commit: commit}
}

func runFor(t *testing.T, p *pipeline.Pipeline, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{{rawFor("Fresno", nil), rawFor("Marin", nil)}}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), metrics, 10)

	require.Error(t, p.CheckReadiness(context.Background()))
	runFor(t, p, 300*time.Millisecond)

	assert.Equal(t, 2, ldr.count())
	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.MessagesConsumed), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.EventsLoaded), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{}
	ldr := &mockLoader{}
	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 0, ldr.count())
}

func TestPipeline_Run_TransformErrorSkipsAndCommits(t *testing.T) {
	var commits atomic.Int32
	commit := func(context.Context) error { commits.Add(1); return nil }

	ext := &mockExtractor{batches: [][]domain.RawEvent{{rawFor("Bad", commit), rawFor("Napa", commit)}}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(ext, &mockTransformer{failCounty: "Bad"}, ldr, slog.Default(), metrics, 10)

	runFor(t, p, 300*time.Millisecond)

	assert.Equal(t, 1, ldr.count())
	assert.Equal(t, int32(2), commits.Load(), "poison message and loaded message are both committed")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 0)
}

func TestPipeline_Run_AllTransformsFailNotReady(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{{rawFor("Bad", nil)}}}
	ldr := &mockLoader{}
	p := pipeline.New(ext, &mockTransformer{failCounty: "Bad"}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10)

	runFor(t, p, 300*time.Millisecond)

	assert.Equal(t, 0, ldr.count())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_CommitsOnlyAfterLoad(t *testing.T) {
	var commits atomic.Int32
	commit := func(context.Context) error { commits.Add(1); return nil }

	ext := &mockExtractor{batches: [][]domain.RawEvent{{rawFor("Inyo", commit)}}}
	ldr := &mockLoader{}
	ldr.fails.Store(1)
	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10)

	runFor(t, p, 500*time.Millisecond)

	assert.Equal(t, 0, ldr.count(), "failed load is not retried with the same batch")
	assert.Equal(t, int32(0), commits.Load())
}

func TestPipeline_Run_RecoversFromExtractError(t *testing.T) {
	ext := &mockExtractor{
		errs:    []error{errors.New("broker down")},
		batches: [][]domain.RawEvent{nil, {rawFor("Kern", nil)}},
	}
	ldr := &mockLoader{}
	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10)

	runFor(t, p, time.Second)

	assert.Equal(t, 1, ldr.count())
}

func TestPipeline_Run_LoadsIntoStore(t *testing.T) {
	var batch []domain.RawEvent
	for i, rec := range domain.GenerateOutageRecords(3, 40) {
		payload := fmt.Sprintf(`{"event_id":%q,"county":%q,"start_time":%q,"duration":%q,"max_customers":%q,"cause":%q,"sector":%q}`,
			rec.EventID, rec.County, rec.StartTime, rec.Duration, rec.MaxCustomers, rec.Cause, rec.Sector)
		batch = append(batch, domain.RawEvent{Value: []byte(payload), Offset: int64(i)})
	}
	batch = append(batch, domain.RawEvent{Value: []byte("not json")})

	metrics := observability.NewMetricsForTesting()
	st := store.New(slog.Default(), metrics)
	ext := &mockExtractor{batches: [][]domain.RawEvent{batch}}
	p := pipeline.New(ext, pipeline.NewTransformer(nil, slog.Default()), st, slog.Default(), metrics, len(batch))

	runFor(t, p, 300*time.Millisecond)

	require.NoError(t, st.CheckReadiness(context.Background()))
	tbl := st.OutageTable()
	require.NoError(t, tbl.Validate())
	assert.InDelta(t, 40, tbl.Sum(domain.ColEventCount), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 0)
}

type panickyTransformer struct {
	mockTransformer
}

func (m *panickyTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutageEvent, error) {
	if string(raw.Key) == "Boom" {
		panic("unexpected payload")
	}
	return m.mockTransformer.Transform(ctx, raw)
}

func TestPipeline_Run_TransformWorkersKeepOrder(t *testing.T) {
	counties := []string{"Alameda", "Butte", "Colusa", "Fresno", "Glenn", "Humboldt", "Imperial", "Inyo", "Kern", "Kings"}
	var batch []domain.RawEvent
	for _, c := range counties {
		batch = append(batch, rawFor(c, nil))
	}
	ext := &mockExtractor{batches: [][]domain.RawEvent{batch}}
	ldr := &mockLoader{}
	p := pipeline.New(ext, &mockTransformer{failCounty: "Glenn"}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10,
		pipeline.WithTransformWorkers(4))

	runFor(t, p, 300*time.Millisecond)

	ldr.mu.Lock()
	defer ldr.mu.Unlock()
	got := make([]string, 0, len(ldr.loaded))
	for _, e := range ldr.loaded {
		got = append(got, e.County)
	}
	assert.Equal(t, []string{"Alameda", "Butte", "Colusa", "Fresno", "Humboldt", "Imperial", "Inyo", "Kern", "Kings"}, got)
}

func TestPipeline_Run_TransformPanicIsSkipped(t *testing.T) {
	for _, workers := range []int{1, 2} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			var commits atomic.Int32
			commit := func(context.Context) error { commits.Add(1); return nil }

			ext := &mockExtractor{batches: [][]domain.RawEvent{{rawFor("Boom", commit), rawFor("Lake", commit)}}}
			ldr := &mockLoader{}
			metrics := observability.NewMetricsForTesting()
			p := pipeline.New(ext, &panickyTransformer{}, ldr, slog.Default(), metrics, 10, pipeline.WithTransformWorkers(workers))

			runFor(t, p, 300*time.Millisecond)

			assert.Equal(t, 1, ldr.count())
			assert.Equal(t, int32(2), commits.Load())
			assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 0)
		})
	}
}
