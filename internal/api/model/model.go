package model

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Lifecycle statuses shared by document jobs, batches, and workflow runs.
// completed, failed, and cancelled are terminal: no further transition is
// expected once reached.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusRunning    = "running"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// IsTerminal reports whether a lifecycle status permits no further transitions.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// DocumentJob mirrors one row of document_jobs, keyed by the Doclayer-assigned
// job identifier. Later events for the same job identifier update, never
// duplicate.
type DocumentJob struct {
	ID                int64          `db:"id"`
	DoclayerJobID     string         `db:"doclayer_job_id"`
	DocumentID        sql.NullString `db:"document_id"`
	Filename          sql.NullString `db:"filename"`
	FileType          sql.NullString `db:"file_type"`
	FileSize          sql.NullInt64  `db:"file_size"`
	Checksum          sql.NullString `db:"checksum"`
	Status            string         `db:"status"`
	InsightsCount     int            `db:"insights_count"`
	ConfidenceMetrics types.JSONText `db:"confidence_metrics"`
	ErrorMessage      sql.NullString `db:"error_message"`
	ErrorType         sql.NullString `db:"error_type"`
	RawPayload        types.JSONText `db:"raw_payload"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

// Extraction is a child of a DocumentJob, created only as a side effect of a
// completion event and never updated in place.
type Extraction struct {
	ID             int64          `db:"id"`
	DocumentJobID  int64          `db:"document_job_id"`
	ExtractionType string         `db:"extraction_type"`
	Key            string         `db:"key"`
	Content        types.JSONText `db:"content"`
	Confidence     float64        `db:"confidence"`
	PageNumber     int            `db:"page_number"`
	SourceText     sql.NullString `db:"source_text"`
	CreatedAt      time.Time      `db:"created_at"`
}

// Batch mirrors one row of batches, keyed by the Doclayer batch identifier.
type Batch struct {
	ID                 int64          `db:"id"`
	DoclayerBatchID    string         `db:"doclayer_batch_id"`
	TotalDocuments     int            `db:"total_documents"`
	CompletedDocuments int            `db:"completed_documents"`
	FailedDocuments    int            `db:"failed_documents"`
	Status             string         `db:"status"`
	DurationMS         sql.NullInt64  `db:"duration_ms"`
	RawPayload         types.JSONText `db:"raw_payload"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

// BillingAlert is append-only: one row per alert occurrence, never deduplicated.
type BillingAlert struct {
	ID           int64          `db:"id"`
	AlertType    string         `db:"alert_type"`
	Balance      float64        `db:"balance"`
	Threshold    float64        `db:"threshold"`
	Currency     string         `db:"currency"`
	Acknowledged bool           `db:"acknowledged"`
	RawPayload   types.JSONText `db:"raw_payload"`
	CreatedAt    time.Time      `db:"created_at"`
}

// UsageReport is append-only: one row per reporting period received.
type UsageReport struct {
	ID                 int64          `db:"id"`
	PeriodStart        sql.NullString `db:"period_start"`
	PeriodEnd          sql.NullString `db:"period_end"`
	DocumentsProcessed int            `db:"documents_processed"`
	PagesProcessed     int            `db:"pages_processed"`
	CreditsUsed        float64        `db:"credits_used"`
	RawPayload         types.JSONText `db:"raw_payload"`
	CreatedAt          time.Time      `db:"created_at"`
}

// WorkflowRun mirrors one row of workflow_runs, keyed by the Doclayer
// workflow identifier, with a result payload recorded on completion.
type WorkflowRun struct {
	ID                 int64          `db:"id"`
	DoclayerWorkflowID string         `db:"doclayer_workflow_id"`
	Name               sql.NullString `db:"name"`
	Status             string         `db:"status"`
	Result             types.JSONText `db:"result"`
	ErrorMessage       sql.NullString `db:"error_message"`
	DurationMS         sql.NullInt64  `db:"duration_ms"`
	RawPayload         types.JSONText `db:"raw_payload"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

// WebhookEvent is the audit record for one inbound delivery. Deliveries are
// not deduplicated, even on retries; the delivery identifier may repeat.
type WebhookEvent struct {
	ID             string         `db:"id"`
	EventType      string         `db:"event_type"`
	DeliveryID     string         `db:"delivery_id"`
	Payload        types.JSONText `db:"payload"`
	SignatureValid bool           `db:"signature_valid"`
	Processed      bool           `db:"processed"`
	ProcessedAt    sql.NullTime   `db:"processed_at"`
	Error          sql.NullString `db:"error"`
	CreatedAt      time.Time      `db:"created_at"`
}
