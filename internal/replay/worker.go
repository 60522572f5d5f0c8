package replay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/doclayer-io/webhook-bridge/internal/api/model"
	"github.com/doclayer-io/webhook-bridge/internal/event"
)

// Store is the audit-log surface the replay worker reads and updates.
// Replays address rows by primary key because delivery identifiers are not
// unique.
type Store interface {
	ListFailedEvents(ctx context.Context, limit int) ([]model.WebhookEvent, error)
	MarkWebhookEventProcessedByID(ctx context.Context, id, softErr string) error
	UpdateWebhookEventErrorByID(ctx context.Context, id, errText string) error
}

// Config holds replay worker configuration
type Config struct {
	Logger    *slog.Logger
	Store     Store
	Router    *event.Router
	Interval  time.Duration
	BatchSize int
}

// Worker periodically re-dispatches audit-logged events whose routing
// failed, through the same router the webhook service uses. The audit log
// is the authoritative receipt; replaying from it is safe because every
// reconciliation handler is idempotent.
type Worker struct {
	logger    *slog.Logger
	store     Store
	router    *event.Router
	interval  time.Duration
	batchSize int
	wg        sync.WaitGroup
	stopChan  chan struct{}
}

// NewWorker creates a new replay worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:    cfg.Logger,
		store:     cfg.Store,
		router:    cfg.Router,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		stopChan:  make(chan struct{}),
	}
}

// Start runs the replay loop until the context is canceled or Stop is called.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting replay worker",
		slog.Duration("interval", w.interval),
		slog.Int("batch_size", w.batchSize),
	)

	w.wg.Add(1)
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Replay worker stopping - stopChan closed")
			return nil

		case <-ctx.Done():
			w.logger.Info("Replay worker stopping - context canceled")
			return nil

		case <-ticker.C:
			w.replayBatch(ctx)
		}
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping replay worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Replay worker stopped")
}

// replayBatch re-dispatches one batch of failed events, oldest first.
func (w *Worker) replayBatch(ctx context.Context) {
	events, err := w.store.ListFailedEvents(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("Failed to list events for replay",
			slog.String("error", err.Error()),
		)
		return
	}

	if len(events) == 0 {
		return
	}

	w.logger.Info("Replaying failed events",
		slog.Int("count", len(events)),
	)

	for _, rec := range events {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.replayEvent(ctx, &rec)
	}
}

// replayEvent re-parses one audit record and dispatches it again. The
// stored event type wins over whatever label sits inside the payload, the
// same precedence the live pipeline gives the event-type header.
func (w *Worker) replayEvent(ctx context.Context, rec *model.WebhookEvent) {
	env, err := event.Parse([]byte(rec.Payload), rec.EventType)
	if err != nil {
		w.logger.Error("Failed to re-parse stored event",
			slog.String("event_id", rec.ID),
			slog.String("error", err.Error()),
		)
		if updErr := w.store.UpdateWebhookEventErrorByID(ctx, rec.ID, err.Error()); updErr != nil {
			w.logger.Error("Failed to update event error",
				slog.String("event_id", rec.ID),
				slog.String("error", updErr.Error()),
			)
		}
		return
	}
	env.DeliveryID = rec.DeliveryID

	outcome, err := w.router.Dispatch(ctx, env)
	if err != nil {
		w.logger.Warn("Replay dispatch failed",
			slog.String("event_id", rec.ID),
			slog.String("event_type", env.EventType),
			slog.String("error", err.Error()),
		)
		if updErr := w.store.UpdateWebhookEventErrorByID(ctx, rec.ID, err.Error()); updErr != nil {
			w.logger.Error("Failed to update event error",
				slog.String("event_id", rec.ID),
				slog.String("error", updErr.Error()),
			)
		}
		return
	}

	if !outcome.Handled {
		// The event type is no longer (or never was) recognized. Clear the
		// error so the record drops out of the replay queue instead of being
		// retried forever; it stays unprocessed, matching the live pipeline.
		w.logger.Info("Replayed event no longer routed",
			slog.String("event_id", rec.ID),
			slog.String("event_type", env.EventType),
		)
		if updErr := w.store.UpdateWebhookEventErrorByID(ctx, rec.ID, ""); updErr != nil {
			w.logger.Error("Failed to clear event error",
				slog.String("event_id", rec.ID),
				slog.String("error", updErr.Error()),
			)
		}
		return
	}

	if err := w.store.MarkWebhookEventProcessedByID(ctx, rec.ID, outcome.SoftError); err != nil {
		w.logger.Error("Failed to mark replayed event processed",
			slog.String("event_id", rec.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	w.logger.Info("Event replayed successfully",
		slog.String("event_id", rec.ID),
		slog.String("event_type", env.EventType),
	)
}
