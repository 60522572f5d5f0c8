package handler

import (
	"context"
	"log/slog"

	"github.com/doclayer-io/webhook-bridge/internal/api/model"
	"github.com/doclayer-io/webhook-bridge/internal/event"
)

// EventStore is the audit-log surface the webhook handler writes through.
type EventStore interface {
	InsertWebhookEvent(ctx context.Context, event *model.WebhookEvent) error
	MarkWebhookEventProcessed(ctx context.Context, deliveryID, softErr string) error
	RecordWebhookEventError(ctx context.Context, deliveryID, errText string) error
}

// Publisher fans processed events out to downstream consumers. Publishing
// is best-effort; a failure never affects the request outcome.
type Publisher interface {
	Publish(ctx context.Context, eventType string, body []byte) error
}

// Dependencies holds everything the webhook handler needs, constructed once
// at process entry and passed down; handlers never read process environment.
type Dependencies struct {
	Logger *slog.Logger
	Events EventStore
	Router *event.Router

	// WebhookSecret enables signature verification when non-empty. An empty
	// secret skips verification entirely, an explicit operational trade-off.
	WebhookSecret string

	// Publisher is nil when fan-out is disabled.
	Publisher Publisher

	// HealthCheck verifies the database connection for the health endpoint.
	// Nil means the endpoint reports healthy unconditionally.
	HealthCheck func(ctx context.Context) error
}

// WebhookHandler hosts the webhook ingestion pipeline.
type WebhookHandler struct {
	logger    *slog.Logger
	events    EventStore
	router    *event.Router
	secret    string
	publisher Publisher
}

// NewWebhookHandler creates a new WebhookHandler instance
func NewWebhookHandler(deps *Dependencies) *WebhookHandler {
	return &WebhookHandler{
		logger:    deps.Logger,
		events:    deps.Events,
		router:    deps.Router,
		secret:    deps.WebhookSecret,
		publisher: deps.Publisher,
	}
}
