package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/doclayer-io/webhook-bridge/internal/api/model"
	"github.com/doclayer-io/webhook-bridge/internal/event"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// Webhook headers sent by Doclayer.
const (
	HeaderDelivery  = "X-Webhook-Delivery"
	HeaderEvent     = "X-Webhook-Event"
	HeaderSignature = "X-Webhook-Signature"
)

// UnknownDeliveryID is the audit placeholder for deliveries that arrive
// without a delivery header. It is explicitly non-unique.
const UnknownDeliveryID = "unknown"

// Receive handles POST /webhooks/doclayer.
//
// Steps run strictly in order for a single request: verify signature over
// the raw body, parse the envelope, write the audit record, dispatch to the
// reconciler, mark the audit record processed, respond. Concurrent
// deliveries for the same identifier are not mutually excluded here;
// correctness under races relies on the storage upserts being atomic per row.
func (h *WebhookHandler) Receive(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("Failed to read webhook body", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to read request body",
		})
		return
	}

	deliveryID := c.GetHeader(HeaderDelivery)
	if deliveryID == "" {
		deliveryID = UnknownDeliveryID
	}

	// Verification runs on the exact raw bytes, before any parsing.
	signatureValid := false
	if h.secret != "" {
		if !event.VerifySignature(body, c.GetHeader(HeaderSignature), h.secret) {
			h.logger.Warn("Webhook signature verification failed",
				slog.String("delivery_id", deliveryID),
			)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid signature",
			})
			return
		}
		signatureValid = true
	}

	env, err := event.Parse(body, c.GetHeader(HeaderEvent))
	if err != nil {
		h.logger.Error("Failed to parse webhook payload",
			slog.String("delivery_id", deliveryID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}
	env.DeliveryID = deliveryID

	record := &model.WebhookEvent{
		ID:             uuid.New().String(),
		EventType:      env.EventType,
		DeliveryID:     deliveryID,
		Payload:        types.JSONText(body),
		SignatureValid: signatureValid,
	}

	// The audit record is the authoritative receipt; if it cannot be
	// written, the sender must retry the delivery.
	if err := h.events.InsertWebhookEvent(ctx, record); err != nil {
		h.logger.Error("Failed to write webhook audit record",
			slog.String("delivery_id", deliveryID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to record webhook event",
		})
		return
	}

	outcome, err := h.router.Dispatch(ctx, env)
	if err != nil {
		h.logger.Error("Webhook event processing failed",
			slog.String("event_type", env.EventType),
			slog.String("delivery_id", deliveryID),
			slog.String("error", err.Error()),
		)

		if recErr := h.events.RecordWebhookEventError(ctx, deliveryID, err.Error()); recErr != nil {
			h.logger.Error("Failed to record webhook event error",
				slog.String("delivery_id", deliveryID),
				slog.String("error", recErr.Error()),
			)
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	// Unrecognized event types are acknowledged but never marked processed.
	if outcome.Handled {
		if err := h.events.MarkWebhookEventProcessed(ctx, deliveryID, outcome.SoftError); err != nil {
			h.logger.Error("Failed to mark webhook event processed",
				slog.String("delivery_id", deliveryID),
				slog.String("error", err.Error()),
			)
		}

		h.publishProcessed(c, env)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"event_type":  env.EventType,
		"delivery_id": deliveryID,
	})
}

// publishProcessed fans the routed envelope out to the message broker.
func (h *WebhookHandler) publishProcessed(c *gin.Context, env *event.Envelope) {
	if h.publisher == nil {
		return
	}

	if err := h.publisher.Publish(c.Request.Context(), env.EventType, env.Raw); err != nil {
		h.logger.Warn("Failed to publish processed event",
			slog.String("event_type", env.EventType),
			slog.String("delivery_id", env.DeliveryID),
			slog.String("error", err.Error()),
		)
	}
}
