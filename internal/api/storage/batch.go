package storage

import (
	"context"
	"fmt"

	"github.com/doclayer-io/webhook-bridge/internal/api/model"
)

// UpsertBatchStarted inserts or updates a batch on a started event, keyed
// by the Doclayer batch identifier.
func (s *Storage) UpsertBatchStarted(ctx context.Context, batch *model.Batch) error {
	query := `
		INSERT INTO batches (
			doclayer_batch_id, total_documents, completed_documents,
			failed_documents, status, raw_payload, created_at, updated_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, NOW(), NOW()
		)
		ON CONFLICT (doclayer_batch_id) DO UPDATE SET
			total_documents = EXCLUDED.total_documents,
			status = CASE
				WHEN batches.status IN ('completed', 'failed', 'cancelled')
				THEN batches.status
				ELSE EXCLUDED.status
			END,
			raw_payload = EXCLUDED.raw_payload,
			updated_at  = NOW()
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		batch.DoclayerBatchID,
		batch.TotalDocuments,
		batch.CompletedDocuments,
		batch.FailedDocuments,
		batch.Status,
		batch.RawPayload,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert batch: %w", err)
	}

	return nil
}

// UpdateBatchProgress updates counters only, matched by the batch
// identifier. If no row exists the update silently affects zero rows; the
// batch may not have been created yet, a race this layer tolerates.
func (s *Storage) UpdateBatchProgress(ctx context.Context, batch *model.Batch) error {
	query := `
		UPDATE batches
		SET completed_documents = $1,
		    failed_documents    = $2,
		    updated_at          = NOW()
		WHERE doclayer_batch_id = $3
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		batch.CompletedDocuments,
		batch.FailedDocuments,
		batch.DoclayerBatchID,
	)

	if err != nil {
		return fmt.Errorf("failed to update batch progress: %w", err)
	}

	return nil
}

// UpsertBatchTerminal applies a completed or failed event to a batch,
// keyed by the Doclayer batch identifier.
func (s *Storage) UpsertBatchTerminal(ctx context.Context, batch *model.Batch) error {
	query := `
		INSERT INTO batches (
			doclayer_batch_id, total_documents, completed_documents,
			failed_documents, status, duration_ms, raw_payload,
			created_at, updated_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			NOW(), NOW()
		)
		ON CONFLICT (doclayer_batch_id) DO UPDATE SET
			total_documents     = EXCLUDED.total_documents,
			completed_documents = EXCLUDED.completed_documents,
			failed_documents    = EXCLUDED.failed_documents,
			status              = EXCLUDED.status,
			duration_ms         = EXCLUDED.duration_ms,
			raw_payload         = EXCLUDED.raw_payload,
			updated_at          = NOW()
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		batch.DoclayerBatchID,
		batch.TotalDocuments,
		batch.CompletedDocuments,
		batch.FailedDocuments,
		batch.Status,
		batch.DurationMS,
		batch.RawPayload,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert batch: %w", err)
	}

	return nil
}
