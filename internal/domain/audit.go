package domain

import (
	"time"

	"github.com/google/uuid"
)

// QueryAudit records one answered free-text query for downstream analysis.
type QueryAudit struct {
	ID          string    `json:"id"`
	Dataset     string    `json:"dataset"`
	Query       string    `json:"query"`
	Intent      string    `json:"intent"`
	Column      string    `json:"column,omitempty"`
	Rows        int       `json:"rows"`
	Explanation string    `json:"explanation"`
	AnsweredAt  time.Time `json:"answered_at"`
}

// NewQueryAudit stamps an audit record with a random ID and the current time.
func NewQueryAudit(dataset, query, intent, column string, rows int, explanation string) QueryAudit {
	return QueryAudit{
		ID:          uuid.NewString(),
		Dataset:     dataset,
		Query:       query,
		Intent:      intent,
		Column:      column,
		Rows:        rows,
		Explanation: explanation,
		AnsweredAt:  clock.Now().UTC(),
	}
}
