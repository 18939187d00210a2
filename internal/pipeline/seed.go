package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/couchcryptid/outage-equity-service/internal/domain"
)

// Seed pushes in-memory raw records through the same transform and load
// stages the Kafka pipeline uses, batchSize at a time. It returns how many
// events were loaded. Records that fail to transform are skipped.
func Seed(ctx context.Context, records []domain.RawOutageRecord, t Transformer, l BatchLoader, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = len(records)
	}
	loaded := 0
	batch := make([]domain.OutageEvent, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := l.LoadBatch(ctx, batch); err != nil {
			return fmt.Errorf("seed load: %w", err)
		}
		loaded += len(batch)
		batch = batch[:0]
		return nil
	}

	for i, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return loaded, fmt.Errorf("seed record %d: %w", i, err)
		}
		event, err := t.Transform(ctx, domain.RawEvent{Key: []byte(rec.EventID), Value: payload, Offset: int64(i)})
		if err != nil {
			continue
		}
		batch = append(batch, event)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return loaded, err
			}
		}
	}
	if err := flush(); err != nil {
		return loaded, err
	}
	return loaded, nil
}
