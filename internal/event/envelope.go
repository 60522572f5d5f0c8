package event

import (
	"encoding/json"
	"fmt"
)

// Event types recognized by the router. Exact strings, case-sensitive.
const (
	TypeDocumentStarted   = "document.processing.started"
	TypeDocumentCompleted = "document.processing.completed"
	TypeDocumentFailed    = "document.processing.failed"

	TypeBatchStarted   = "batch.started"
	TypeBatchProgress  = "batch.progress"
	TypeBatchCompleted = "batch.completed"
	TypeBatchFailed    = "batch.failed"

	TypeCreditsLow       = "billing.credits.low"
	TypeCreditsExhausted = "billing.credits.exhausted"
	TypeUsageReport      = "billing.usage.report"

	TypeWorkflowStarted   = "workflow.started"
	TypeWorkflowCompleted = "workflow.completed"
	TypeWorkflowFailed    = "workflow.failed"

	// TypePing is acknowledged with no side effect, used for connectivity checks.
	TypePing = "test.ping"
)

// Envelope is the decoded wrapper around an inbound event's payload.
type Envelope struct {
	EventType string          `json:"event_type"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`

	// DeliveryID comes from the X-Webhook-Delivery header, not the body.
	DeliveryID string `json:"-"`

	// Raw holds the exact body bytes as received, retained for audit.
	Raw []byte `json:"-"`
}

// Parse decodes the raw request body into an Envelope. headerType is the
// X-Webhook-Event header value; when present it overrides the event_type
// field inside the body, so routing stays reliable even if the body's
// internal label is absent or stale.
//
// A body that is not a JSON object is a terminal error for the request.
func Parse(raw []byte, headerType string) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	if headerType != "" {
		env.EventType = headerType
	}
	env.Raw = raw

	return &env, nil
}
