package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/outage-equity-service/internal/analysis"
	"github.com/couchcryptid/outage-equity-service/internal/domain"
	"github.com/couchcryptid/outage-equity-service/internal/query"
)

// maxQueryBody caps POST /api/v1/query request bodies.
const maxQueryBody = 64 << 10

const (
	defaultAuditLimit = 20
	maxAuditLimit     = 500
)

// Analyzer is the application surface the API serves. *analysis.Service
// implements it.
type Analyzer interface {
	Datasets() []string
	Table(dataset string) (domain.Table, error)
	Query(ctx context.Context, dataset, q string) (query.Result, error)
	RiskMap(dataset, metric string, scale analysis.Scale) (domain.RiskMap, error)
	Correlation() domain.Correlation
	Insights(dataset string) ([]string, error)
}

// AuditLister reads back recorded query audits, newest first.
type AuditLister interface {
	Recent(ctx context.Context, limit int) ([]domain.QueryAudit, error)
}

type queryRequest struct {
	Query   string `json:"query"`
	Dataset string `json:"dataset"`
}

type queryResponse struct {
	Dataset string `json:"dataset"`
	query.Result
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxQueryBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Dataset == "" {
		req.Dataset = analysis.DatasetOutage
	}

	res, err := s.api.Query(r.Context(), req.Dataset, req.Query)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, queryResponse{Dataset: req.Dataset, Result: res})
}

func (s *Server) handleDatasets(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string][]string{"datasets": s.api.Datasets()})
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	tbl, err := s.api.Table(r.PathValue("name"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, tbl)
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rm, err := s.api.RiskMap(q.Get("dataset"), q.Get("metric"), analysis.Scale(q.Get("scale")))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, rm)
}

func (s *Server) handleCorrelation(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.api.Correlation())
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	dataset := r.URL.Query().Get("dataset")
	insights, err := s.api.Insights(dataset)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if insights == nil {
		insights = []string{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string][]string{"insights": insights})
}

func (s *Server) handleAudits(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = min(n, maxAuditLimit)
	}
	audits, err := s.audits.Recent(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string][]domain.QueryAudit{"audits": audits})
}

// writeServiceError maps caller mistakes to 400 and anything else to 500.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analysis.ErrUnknownDataset),
		errors.Is(err, analysis.ErrUnknownScale),
		errors.Is(err, domain.ErrUnknownMetric):
		writeError(w, http.StatusBadRequest, err)
	default:
		s.logger.Error("api request failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}
