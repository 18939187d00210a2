// Package store holds the in-memory county tables the query service answers
// from. Outage events stream in through LoadBatch; the EJ table is replaced
// whole. Readers get snapshots that later loads never touch.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/outage-equity-service/internal/domain"
	"github.com/couchcryptid/outage-equity-service/internal/observability"
)

// Dataset names used for the table_rows gauge.
const (
	datasetOutage = "outage"
	datasetEJ     = "ej"
)

// ErrNotReady is returned by CheckReadiness until outage data has arrived.
var ErrNotReady = errors.New("no outage events loaded yet")

// Store is a thread-safe holder of the county aggregator and the EJ table.
// It implements pipeline.BatchLoader.
type Store struct {
	mu      sync.RWMutex
	agg     *domain.CountyAggregator
	outage  domain.Table
	ej      domain.Table
	skipped int

	logger  *slog.Logger
	metrics *observability.Metrics
}

// New returns an empty Store.
func New(logger *slog.Logger, metrics *observability.Metrics) *Store {
	return &Store{
		agg:     domain.NewCountyAggregator(),
		outage:  domain.Table{Key: domain.ColCounty, Columns: domain.OutageColumns},
		ej:      domain.Table{Key: domain.ColCounty, Columns: domain.EJColumns},
		logger:  logger,
		metrics: metrics,
	}
}

// LoadBatch folds events into the per-county outage table. Events without a
// county cannot be placed and are counted as skipped.
func (s *Store) LoadBatch(ctx context.Context, events []domain.OutageEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.agg.Clone()
	skipped := 0
	for i := range events {
		if !next.Add(events[i]) {
			skipped++
		}
	}

	tbl := next.Table()
	if err := tbl.Validate(); err != nil {
		return fmt.Errorf("rebuild outage table: %w", err)
	}
	s.agg = next
	s.skipped += skipped
	s.outage = tbl
	s.metrics.TableRows.WithLabelValues(datasetOutage).Set(float64(tbl.Len()))

	if skipped > 0 {
		s.logger.Warn("outage events without county skipped", "skipped", skipped, "batch_size", len(events))
	}
	s.logger.Debug("outage batch loaded",
		"loaded", len(events)-skipped,
		"counties", tbl.Len(),
		"total_events", s.agg.Events(),
	)
	return nil
}

// SetEJ replaces the environmental-justice table after validating it.
func (s *Store) SetEJ(t domain.Table) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("set ej table: %w", err)
	}

	s.mu.Lock()
	s.ej = t
	s.mu.Unlock()

	s.metrics.TableRows.WithLabelValues(datasetEJ).Set(float64(t.Len()))
	s.logger.Info("ej table loaded", "counties", t.Len())
	return nil
}

// OutageTable returns the current per-county outage table.
func (s *Store) OutageTable() domain.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outage
}

// EJTable returns the current environmental-justice table.
func (s *Store) EJTable() domain.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ej
}

// Stats reports how many events have been folded in and how many were
// skipped for lacking a county.
func (s *Store) Stats() (events, skipped int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agg.Events(), s.skipped
}

// CheckReadiness returns nil once the outage table has at least one county.
func (s *Store) CheckReadiness(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.outage.Len() == 0 {
		return ErrNotReady
	}
	return nil
}
