// Package analysis is the application layer over the county tables: it picks
// a table and vocabulary per dataset, dispatches free-text queries, audits
// them, and produces risk maps, correlation reports, and insights.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/outage-equity-service/internal/domain"
	"github.com/couchcryptid/outage-equity-service/internal/observability"
	"github.com/couchcryptid/outage-equity-service/internal/query"
)

// Dataset names.
const (
	DatasetOutage = "outage"
	DatasetEJ     = "ej"
	DatasetMerged = "merged"
)

// ErrUnknownDataset is returned for a dataset name other than the three above.
var ErrUnknownDataset = errors.New("unknown dataset")

// Tables supplies the current outage and EJ tables.
type Tables interface {
	OutageTable() domain.Table
	EJTable() domain.Table
}

// Auditor publishes a record of each answered query.
type Auditor interface {
	Publish(ctx context.Context, audit domain.QueryAudit) error
}

// Scale selects how risk levels are cut.
type Scale string

const (
	ScaleQuartile   Scale = "quartile"
	ScaleNormalized Scale = "normalized"
)

// ErrUnknownScale is returned by RiskMap for an unsupported scale.
var ErrUnknownScale = errors.New("unknown scale")

// defaultMetric is the risk map column used when none is requested.
var defaultMetric = map[string]string{
	DatasetOutage: domain.ColEventCount,
	DatasetEJ:     domain.ColCompositeEJ,
	DatasetMerged: domain.ColOutageRate,
}

// Service answers questions about the county tables.
type Service struct {
	tables      Tables
	auditor     Auditor
	dispatchers map[string]*query.Dispatcher
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// New creates a Service. auditor may be nil to disable audit publishing.
func New(tables Tables, auditor Auditor, logger *slog.Logger, metrics *observability.Metrics) *Service {
	outage := query.New(query.OutageVocabulary)
	return &Service{
		tables:  tables,
		auditor: auditor,
		dispatchers: map[string]*query.Dispatcher{
			DatasetOutage: outage,
			DatasetEJ:     query.New(query.EJVocabulary),
			DatasetMerged: outage,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Datasets lists the dataset names in a stable order.
func (s *Service) Datasets() []string {
	return []string{DatasetOutage, DatasetEJ, DatasetMerged}
}

// Table returns the current table for a dataset. The merged table is built
// on each call from the current outage and EJ tables.
func (s *Service) Table(dataset string) (domain.Table, error) {
	switch dataset {
	case DatasetOutage:
		return s.tables.OutageTable(), nil
	case DatasetEJ:
		return s.tables.EJTable(), nil
	case DatasetMerged:
		return domain.Merge(s.tables.EJTable(), s.tables.OutageTable()), nil
	default:
		return domain.Table{}, fmt.Errorf("%w: %q", ErrUnknownDataset, dataset)
	}
}

// Query answers a free-text question against a dataset. An empty dataset
// means outage. The only error is an unknown dataset; audit failures are
// logged and counted but never fail the query.
func (s *Service) Query(ctx context.Context, dataset, q string) (query.Result, error) {
	if dataset == "" {
		dataset = DatasetOutage
	}
	table, err := s.Table(dataset)
	if err != nil {
		return query.Result{}, err
	}

	start := time.Now()
	res := s.dispatchers[dataset].Dispatch(q, table)
	s.metrics.QueryDuration.WithLabelValues(dataset).Observe(time.Since(start).Seconds())
	s.metrics.Queries.WithLabelValues(dataset, string(res.Intent)).Inc()
	s.metrics.QueryRows.Observe(float64(res.Table.Len()))

	s.logger.Debug("query answered",
		"dataset", dataset,
		"query", q,
		"intent", res.Intent,
		"column", res.Column,
		"rows", res.Table.Len(),
	)

	s.audit(ctx, domain.NewQueryAudit(dataset, q, string(res.Intent), res.Column, res.Table.Len(), res.Explanation))
	return res, nil
}

func (s *Service) audit(ctx context.Context, a domain.QueryAudit) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Publish(ctx, a); err != nil {
		s.metrics.AuditErrors.Inc()
		s.logger.Warn("query audit publish failed", "audit_id", a.ID, "dataset", a.Dataset, "error", err)
		return
	}
	s.metrics.AuditsWritten.Inc()
}

// RiskMap classifies a dataset's counties by metric. Empty metric and scale
// select the dataset default and quartiles.
func (s *Service) RiskMap(dataset, metric string, scale Scale) (domain.RiskMap, error) {
	if dataset == "" {
		dataset = DatasetOutage
	}
	table, err := s.Table(dataset)
	if err != nil {
		return domain.RiskMap{}, err
	}
	if metric == "" {
		metric = defaultMetric[dataset]
	}

	switch scale {
	case "", ScaleQuartile:
		return domain.BuildRiskMap(table, metric)
	case ScaleNormalized:
		return domain.BuildNormalizedRiskMap(table, metric)
	default:
		return domain.RiskMap{}, fmt.Errorf("%w: %q", ErrUnknownScale, scale)
	}
}

// Correlation reports how outage burden tracks social vulnerability.
func (s *Service) Correlation() domain.Correlation {
	merged, _ := s.Table(DatasetMerged)
	return domain.Correlate(merged)
}

// Insights returns headline bullets for a dataset. For merged they describe
// the correlation report.
func (s *Service) Insights(dataset string) ([]string, error) {
	switch dataset {
	case "", DatasetOutage:
		return domain.OutageInsights(s.tables.OutageTable()), nil
	case DatasetEJ:
		return domain.EJInsights(s.tables.EJTable()), nil
	case DatasetMerged:
		return domain.CorrelationInsights(s.Correlation()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, dataset)
	}
}
