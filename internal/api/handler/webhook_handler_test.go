package handler_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/doclayer-io/webhook-bridge/internal/api/handler"
	"github.com/doclayer-io/webhook-bridge/internal/api/model"
	"github.com/doclayer-io/webhook-bridge/internal/api/router"
	"github.com/doclayer-io/webhook-bridge/internal/event"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventStore struct {
	inserted   []*model.WebhookEvent
	processed  map[string]string // delivery id -> soft error
	errors     map[string]string // delivery id -> error text
	insertFail bool
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{
		processed: make(map[string]string),
		errors:    make(map[string]string),
	}
}

func (f *fakeEventStore) InsertWebhookEvent(ctx context.Context, rec *model.WebhookEvent) error {
	if f.insertFail {
		return errors.New("webhook_events insert failed")
	}
	f.inserted = append(f.inserted, rec)
	return nil
}

func (f *fakeEventStore) MarkWebhookEventProcessed(ctx context.Context, deliveryID, softErr string) error {
	f.processed[deliveryID] = softErr
	return nil
}

func (f *fakeEventStore) RecordWebhookEventError(ctx context.Context, deliveryID, errText string) error {
	f.errors[deliveryID] = errText
	return nil
}

type fakePublisher struct {
	published []string
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, eventType string, body []byte) error {
	f.published = append(f.published, eventType)
	return f.err
}

type testPipeline struct {
	engine    *gin.Engine
	events    *fakeEventStore
	documents map[string]string // job id -> status
}

func newTestPipeline(t *testing.T, secret string, publisher handler.Publisher) *testPipeline {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := newFakeEventStore()
	documents := make(map[string]string)

	eventRouter := event.NewRouter(logger)
	eventRouter.Handle(event.TypeDocumentCompleted, event.PolicyFatal, func(ctx context.Context, env *event.Envelope) error {
		p, err := env.DocumentPayload()
		if err != nil {
			return err
		}
		documents[p.JobID] = model.StatusCompleted
		return nil
	})
	eventRouter.Handle(event.TypeDocumentFailed, event.PolicyFatal, func(ctx context.Context, env *event.Envelope) error {
		return errors.New("document_jobs write failed")
	})
	eventRouter.Handle(event.TypeBatchCompleted, event.PolicyBestEffort, func(ctx context.Context, env *event.Envelope) error {
		return errors.New("batches table missing")
	})

	deps := &handler.Dependencies{
		Logger:        logger,
		Events:        events,
		Router:        eventRouter,
		WebhookSecret: secret,
		Publisher:     publisher,
	}

	return &testPipeline{
		engine:    router.SetupRouter(deps),
		events:    events,
		documents: documents,
	}
}

func (p *testPipeline) deliver(method, eventType, deliveryID, signature string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/webhooks/doclayer", bytes.NewReader(body))
	if eventType != "" {
		req.Header.Set(handler.HeaderEvent, eventType)
	}
	if deliveryID != "" {
		req.Header.Set(handler.HeaderDelivery, deliveryID)
	}
	if signature != "" {
		req.Header.Set(handler.HeaderSignature, signature)
	}

	w := httptest.NewRecorder()
	p.engine.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("healthy", func(t *testing.T) {
		engine := router.SetupRouter(&handler.Dependencies{
			Logger: logger,
			Events: newFakeEventStore(),
			Router: event.NewRouter(logger),
			HealthCheck: func(ctx context.Context) error {
				return nil
			},
		})

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	})

	t.Run("database unreachable", func(t *testing.T) {
		engine := router.SetupRouter(&handler.Dependencies{
			Logger: logger,
			Events: newFakeEventStore(),
			Router: event.NewRouter(logger),
			HealthCheck: func(ctx context.Context) error {
				return errors.New("database health check failed")
			},
		})

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"unhealthy"`)
	})
}

func TestReceive_NonPOSTRejected(t *testing.T) {
	p := newTestPipeline(t, "", nil)

	w := p.deliver(http.MethodGet, "", "", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Empty(t, p.events.inserted, "no audit row for transport-contract violations")
}

func TestReceive_SignatureRequired(t *testing.T) {
	body := []byte(`{"data":{}}`)
	p := newTestPipeline(t, "whsec_test", nil)

	t.Run("missing signature", func(t *testing.T) {
		w := p.deliver(http.MethodPost, event.TypePing, "d1", "", body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, p.events.inserted, "no audit row on signature failure")
	})

	t.Run("wrong signature", func(t *testing.T) {
		w := p.deliver(http.MethodPost, event.TypePing, "d1", "sha256=deadbeef", body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid signature", func(t *testing.T) {
		w := p.deliver(http.MethodPost, event.TypePing, "d1", event.Sign(body, "whsec_test"), body)
		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, p.events.inserted, 1)
		assert.True(t, p.events.inserted[0].SignatureValid)
	})
}

func TestReceive_NoSecretSkipsVerification(t *testing.T) {
	p := newTestPipeline(t, "", nil)

	w := p.deliver(http.MethodPost, event.TypePing, "d1", "", []byte(`{"data":{}}`))
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, p.events.inserted, 1)
	assert.False(t, p.events.inserted[0].SignatureValid)
}

func TestReceive_MalformedPayload(t *testing.T) {
	p := newTestPipeline(t, "", nil)

	w := p.deliver(http.MethodPost, "", "d1", "", []byte(`{"event_type":`))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, p.events.inserted)
}

func TestReceive_DocumentCompleted(t *testing.T) {
	p := newTestPipeline(t, "", nil)

	body := []byte(`{"data":{"job_id":"job_1","document_id":"doc_1","insights_count":3,"confidence_metrics":{"a":0.9}}}`)
	w := p.deliver(http.MethodPost, "document.processing.completed", "d1", "", body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"success":true,"event_type":"document.processing.completed","delivery_id":"d1"}`,
		w.Body.String())

	assert.Equal(t, model.StatusCompleted, p.documents["job_1"])

	require.Len(t, p.events.inserted, 1)
	rec := p.events.inserted[0]
	assert.Equal(t, "document.processing.completed", rec.EventType)
	assert.Equal(t, "d1", rec.DeliveryID)
	assert.JSONEq(t, string(body), string(rec.Payload))

	soft, ok := p.events.processed["d1"]
	require.True(t, ok, "audit row must be marked processed")
	assert.Empty(t, soft)
}

func TestReceive_UnknownEventType(t *testing.T) {
	p := newTestPipeline(t, "", nil)

	w := p.deliver(http.MethodPost, "document.archived", "d1", "", []byte(`{"data":{}}`))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, p.events.inserted, 1)

	_, marked := p.events.processed["d1"]
	assert.False(t, marked, "unknown events stay unprocessed")
	assert.Empty(t, p.documents)
}

func TestReceive_MissingDeliveryHeaderFallsBack(t *testing.T) {
	p := newTestPipeline(t, "", nil)

	w := p.deliver(http.MethodPost, event.TypePing, "", "", []byte(`{"data":{}}`))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, p.events.inserted, 1)
	assert.Equal(t, handler.UnknownDeliveryID, p.events.inserted[0].DeliveryID)
	assert.Contains(t, w.Body.String(), `"delivery_id":"unknown"`)
}

func TestReceive_FatalHandlerFailure(t *testing.T) {
	p := newTestPipeline(t, "", nil)

	w := p.deliver(http.MethodPost, "document.processing.failed", "d1", "", []byte(`{"data":{"job_id":"job_1"}}`))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	// The audit row was written before routing and keeps its receipt role.
	require.Len(t, p.events.inserted, 1)
	_, marked := p.events.processed["d1"]
	assert.False(t, marked, "no processed mark on fatal failure")
	assert.Equal(t, "document_jobs write failed", p.events.errors["d1"])
}

func TestReceive_BestEffortFailureStillSucceeds(t *testing.T) {
	p := newTestPipeline(t, "", nil)

	w := p.deliver(http.MethodPost, "batch.completed", "d1", "", []byte(`{"data":{"batch_id":"b1"}}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "batches table missing", p.events.processed["d1"])
}

func TestReceive_AuditInsertFailureAborts(t *testing.T) {
	p := newTestPipeline(t, "", nil)
	p.events.insertFail = true

	w := p.deliver(http.MethodPost, event.TypePing, "d1", "", []byte(`{"data":{}}`))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestReceive_PublishesProcessedEvents(t *testing.T) {
	t.Run("publishes after successful routing", func(t *testing.T) {
		pub := &fakePublisher{}
		p := newTestPipeline(t, "", pub)

		w := p.deliver(http.MethodPost, "document.processing.completed", "d1", "",
			[]byte(`{"data":{"job_id":"job_1"}}`))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"document.processing.completed"}, pub.published)
	})

	t.Run("publish failure never affects the response", func(t *testing.T) {
		pub := &fakePublisher{err: errors.New("broker down")}
		p := newTestPipeline(t, "", pub)

		w := p.deliver(http.MethodPost, "document.processing.completed", "d1", "",
			[]byte(`{"data":{"job_id":"job_1"}}`))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown events are not published", func(t *testing.T) {
		pub := &fakePublisher{}
		p := newTestPipeline(t, "", pub)

		w := p.deliver(http.MethodPost, "document.archived", "d1", "", []byte(`{"data":{}}`))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, pub.published)
	})
}
