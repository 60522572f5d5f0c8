package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		headerType string
		wantType   string
		wantErr    bool
	}{
		{
			name:     "event type from body",
			raw:      `{"event_type":"document.processing.started","timestamp":"2025-06-01T12:00:00Z","data":{"job_id":"job_1"}}`,
			wantType: "document.processing.started",
		},
		{
			name:       "header overrides body",
			raw:        `{"event_type":"document.processing.started","data":{}}`,
			headerType: "document.processing.completed",
			wantType:   "document.processing.completed",
		},
		{
			name:       "header fills in missing body field",
			raw:        `{"data":{"job_id":"job_1"}}`,
			headerType: "document.processing.completed",
			wantType:   "document.processing.completed",
		},
		{
			name:    "invalid json",
			raw:     `{"event_type":`,
			wantErr: true,
		},
		{
			name:    "non-object body",
			raw:     `[1,2,3]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Parse([]byte(tt.raw), tt.headerType)

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, env)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantType, env.EventType)
			assert.Equal(t, []byte(tt.raw), env.Raw)
		})
	}
}

func TestEnvelope_DocumentPayload(t *testing.T) {
	env, err := Parse([]byte(`{
		"event_type": "document.processing.completed",
		"data": {
			"job_id": "job_1",
			"document_id": "doc_1",
			"filename": "invoice.pdf",
			"file_size": 20480,
			"insights_count": 3,
			"confidence_metrics": {"a": 0.9, "b": 0.75}
		}
	}`), "")
	require.NoError(t, err)

	p, err := env.DocumentPayload()
	require.NoError(t, err)

	assert.Equal(t, "job_1", p.JobID)
	assert.Equal(t, "doc_1", p.DocumentID)
	assert.Equal(t, "invoice.pdf", p.Filename)
	assert.Equal(t, int64(20480), p.FileSize)
	assert.Equal(t, 3, p.InsightsCount)
	assert.Equal(t, map[string]float64{"a": 0.9, "b": 0.75}, p.ConfidenceMetrics)
}

func TestEnvelope_DocumentPayload_MissingJobID(t *testing.T) {
	env, err := Parse([]byte(`{"data":{"document_id":"doc_1"}}`), TypeDocumentCompleted)
	require.NoError(t, err)

	_, err = env.DocumentPayload()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job_id")
}

func TestEnvelope_BatchPayload_MissingBatchID(t *testing.T) {
	env, err := Parse([]byte(`{"data":{"total_documents":5}}`), TypeBatchStarted)
	require.NoError(t, err)

	_, err = env.BatchPayload()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_id")
}

func TestEnvelope_BillingPayload_AlertTypeDefaults(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		data      string
		want      string
	}{
		{
			name:      "explicit alert type wins",
			eventType: TypeCreditsLow,
			data:      `{"alert_type":"payment_failed","balance":0}`,
			want:      "payment_failed",
		},
		{
			name:      "credits low derived from event type",
			eventType: TypeCreditsLow,
			data:      `{"balance":12.5,"threshold":50}`,
			want:      "credits_low",
		},
		{
			name:      "credits exhausted derived from event type",
			eventType: TypeCreditsExhausted,
			data:      `{"balance":0}`,
			want:      "credits_exhausted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Parse([]byte(`{"data":`+tt.data+`}`), tt.eventType)
			require.NoError(t, err)

			p, err := env.BillingPayload()
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.AlertType)
		})
	}
}

func TestEnvelope_WorkflowPayload(t *testing.T) {
	env, err := Parse([]byte(`{
		"data": {
			"workflow_id": "wf_1",
			"name": "invoice-pipeline",
			"result": {"documents": 4},
			"duration_ms": 5400
		}
	}`), TypeWorkflowCompleted)
	require.NoError(t, err)

	p, err := env.WorkflowPayload()
	require.NoError(t, err)

	assert.Equal(t, "wf_1", p.WorkflowID)
	assert.Equal(t, "invoice-pipeline", p.Name)
	assert.JSONEq(t, `{"documents": 4}`, string(p.Result))
	assert.Equal(t, int64(5400), p.DurationMS)
}
