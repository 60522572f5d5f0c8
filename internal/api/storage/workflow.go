package storage

import (
	"context"
	"fmt"

	"github.com/doclayer-io/webhook-bridge/internal/api/model"
)

// UpsertWorkflowStarted inserts or updates a workflow run on a started
// event, keyed by the Doclayer workflow identifier.
func (s *Storage) UpsertWorkflowStarted(ctx context.Context, run *model.WorkflowRun) error {
	query := `
		INSERT INTO workflow_runs (
			doclayer_workflow_id, name, status, raw_payload,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			NOW(), NOW()
		)
		ON CONFLICT (doclayer_workflow_id) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, workflow_runs.name),
			status = CASE
				WHEN workflow_runs.status IN ('completed', 'failed', 'cancelled')
				THEN workflow_runs.status
				ELSE EXCLUDED.status
			END,
			raw_payload = EXCLUDED.raw_payload,
			updated_at  = NOW()
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		run.DoclayerWorkflowID,
		run.Name,
		run.Status,
		run.RawPayload,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert workflow run: %w", err)
	}

	return nil
}

// UpsertWorkflowTerminal applies a completed or failed event to a workflow
// run, recording the result payload on completion.
func (s *Storage) UpsertWorkflowTerminal(ctx context.Context, run *model.WorkflowRun) error {
	query := `
		INSERT INTO workflow_runs (
			doclayer_workflow_id, name, status, result, error_message,
			duration_ms, raw_payload, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, NOW(), NOW()
		)
		ON CONFLICT (doclayer_workflow_id) DO UPDATE SET
			name          = COALESCE(EXCLUDED.name, workflow_runs.name),
			status        = EXCLUDED.status,
			result        = EXCLUDED.result,
			error_message = EXCLUDED.error_message,
			duration_ms   = EXCLUDED.duration_ms,
			raw_payload   = EXCLUDED.raw_payload,
			updated_at    = NOW()
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		run.DoclayerWorkflowID,
		run.Name,
		run.Status,
		run.Result,
		run.ErrorMessage,
		run.DurationMS,
		run.RawPayload,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert workflow run: %w", err)
	}

	return nil
}
