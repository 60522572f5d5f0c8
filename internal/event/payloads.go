package event

import (
	"encoding/json"
	"fmt"
)

// Per-family payload types for the envelope's data field. Each family is
// decoded explicitly and validated for its natural identifier instead of
// being cast from an untyped map.

// DocumentPayload is the data field of document.processing.* events.
type DocumentPayload struct {
	JobID             string             `json:"job_id"`
	DocumentID        string             `json:"document_id"`
	Filename          string             `json:"filename"`
	FileType          string             `json:"file_type"`
	FileSize          int64              `json:"file_size"`
	Checksum          string             `json:"checksum"`
	InsightsCount     int                `json:"insights_count"`
	ConfidenceMetrics map[string]float64 `json:"confidence_metrics"`
	ErrorMessage      string             `json:"error_message"`
	ErrorType         string             `json:"error_type"`
}

// BatchPayload is the data field of batch.* events.
type BatchPayload struct {
	BatchID            string `json:"batch_id"`
	TotalDocuments     int    `json:"total_documents"`
	CompletedDocuments int    `json:"completed_documents"`
	FailedDocuments    int    `json:"failed_documents"`
	DurationMS         int64  `json:"duration_ms"`
	ErrorMessage       string `json:"error_message"`
}

// BillingPayload is the data field of billing.credits.* events.
type BillingPayload struct {
	AlertType string  `json:"alert_type"`
	Balance   float64 `json:"balance"`
	Threshold float64 `json:"threshold"`
	Currency  string  `json:"currency"`
}

// UsagePayload is the data field of billing.usage.report events.
type UsagePayload struct {
	PeriodStart        string  `json:"period_start"`
	PeriodEnd          string  `json:"period_end"`
	DocumentsProcessed int     `json:"documents_processed"`
	PagesProcessed     int     `json:"pages_processed"`
	CreditsUsed        float64 `json:"credits_used"`
}

// WorkflowPayload is the data field of workflow.* events.
type WorkflowPayload struct {
	WorkflowID   string          `json:"workflow_id"`
	Name         string          `json:"name"`
	Result       json.RawMessage `json:"result"`
	DurationMS   int64           `json:"duration_ms"`
	ErrorMessage string          `json:"error_message"`
}

// DocumentPayload decodes and validates the envelope data as a document event.
func (e *Envelope) DocumentPayload() (*DocumentPayload, error) {
	var p DocumentPayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return nil, fmt.Errorf("invalid document payload: %w", err)
	}
	if p.JobID == "" {
		return nil, fmt.Errorf("document payload missing job_id")
	}
	return &p, nil
}

// BatchPayload decodes and validates the envelope data as a batch event.
func (e *Envelope) BatchPayload() (*BatchPayload, error) {
	var p BatchPayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return nil, fmt.Errorf("invalid batch payload: %w", err)
	}
	if p.BatchID == "" {
		return nil, fmt.Errorf("batch payload missing batch_id")
	}
	return &p, nil
}

// BillingPayload decodes the envelope data as a billing alert. The alert
// type defaults from the event type when the payload omits it.
func (e *Envelope) BillingPayload() (*BillingPayload, error) {
	var p BillingPayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return nil, fmt.Errorf("invalid billing payload: %w", err)
	}
	if p.AlertType == "" {
		switch e.EventType {
		case TypeCreditsLow:
			p.AlertType = "credits_low"
		case TypeCreditsExhausted:
			p.AlertType = "credits_exhausted"
		}
	}
	return &p, nil
}

// UsagePayload decodes the envelope data as a usage report.
func (e *Envelope) UsagePayload() (*UsagePayload, error) {
	var p UsagePayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return nil, fmt.Errorf("invalid usage payload: %w", err)
	}
	return &p, nil
}

// WorkflowPayload decodes and validates the envelope data as a workflow event.
func (e *Envelope) WorkflowPayload() (*WorkflowPayload, error) {
	var p WorkflowPayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return nil, fmt.Errorf("invalid workflow payload: %w", err)
	}
	if p.WorkflowID == "" {
		return nil, fmt.Errorf("workflow payload missing workflow_id")
	}
	return &p, nil
}
