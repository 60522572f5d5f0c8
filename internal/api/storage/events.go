package storage

import (
	"context"
	"fmt"

	"github.com/doclayer-io/webhook-bridge/internal/api/model"
)

// InsertWebhookEvent writes the audit record for an inbound delivery. This
// runs before routing, so the event log is the authoritative receipt
// independent of processing success.
func (s *Storage) InsertWebhookEvent(ctx context.Context, event *model.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (
			id, event_type, delivery_id, payload,
			signature_valid, processed, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, FALSE, NOW()
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		event.ID,
		event.EventType,
		event.DeliveryID,
		event.Payload,
		event.SignatureValid,
	)

	if err != nil {
		return fmt.Errorf("failed to insert webhook event: %w", err)
	}

	return nil
}

// MarkWebhookEventProcessed flags the audit record after routing completes.
// Lookup is by delivery identifier, not primary key; softErr carries a
// best-effort handler failure, empty on clean success.
func (s *Storage) MarkWebhookEventProcessed(ctx context.Context, deliveryID, softErr string) error {
	query := `
		UPDATE webhook_events
		SET processed    = TRUE,
		    processed_at = NOW(),
		    error        = NULLIF($1, '')
		WHERE delivery_id = $2
		  AND processed = FALSE
	`

	_, err := s.db.ExecContext(ctx, query, softErr, deliveryID)
	if err != nil {
		return fmt.Errorf("failed to mark webhook event processed: %w", err)
	}

	return nil
}

// RecordWebhookEventError stores the routing failure on the audit record
// without flagging it processed, so the replay worker can pick it up.
func (s *Storage) RecordWebhookEventError(ctx context.Context, deliveryID, errText string) error {
	query := `
		UPDATE webhook_events
		SET error = $1
		WHERE delivery_id = $2
		  AND processed = FALSE
	`

	_, err := s.db.ExecContext(ctx, query, errText, deliveryID)
	if err != nil {
		return fmt.Errorf("failed to record webhook event error: %w", err)
	}

	return nil
}

// ListFailedEvents returns unprocessed audit records whose routing failed,
// oldest first, for replay.
func (s *Storage) ListFailedEvents(ctx context.Context, limit int) ([]model.WebhookEvent, error) {
	query := `
		SELECT id, event_type, delivery_id, payload,
		       signature_valid, processed, processed_at, error, created_at
		FROM webhook_events
		WHERE processed = FALSE
		  AND error IS NOT NULL
		ORDER BY created_at ASC
		LIMIT $1
	`

	var events []model.WebhookEvent
	if err := s.db.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list failed events: %w", err)
	}

	return events, nil
}

// MarkWebhookEventProcessedByID is the replay path's variant of
// MarkWebhookEventProcessed: delivery identifiers are not unique (absent
// headers all fall back to "unknown"), so replays address rows by primary key.
func (s *Storage) MarkWebhookEventProcessedByID(ctx context.Context, id, softErr string) error {
	query := `
		UPDATE webhook_events
		SET processed    = TRUE,
		    processed_at = NOW(),
		    error        = NULLIF($1, '')
		WHERE id = $2
	`

	_, err := s.db.ExecContext(ctx, query, softErr, id)
	if err != nil {
		return fmt.Errorf("failed to mark webhook event processed: %w", err)
	}

	return nil
}

// UpdateWebhookEventErrorByID refreshes the error text after a failed
// replay. An empty errText clears the error, which drops the record out of
// the replay queue without flagging it processed.
func (s *Storage) UpdateWebhookEventErrorByID(ctx context.Context, id, errText string) error {
	query := `
		UPDATE webhook_events
		SET error = NULLIF($1, '')
		WHERE id = $2
	`

	_, err := s.db.ExecContext(ctx, query, errText, id)
	if err != nil {
		return fmt.Errorf("failed to update webhook event error: %w", err)
	}

	return nil
}
