package reconcile

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/doclayer-io/webhook-bridge/internal/api/model"
	"github.com/doclayer-io/webhook-bridge/internal/doclayer"
	"github.com/doclayer-io/webhook-bridge/internal/event"
	"github.com/jmoiron/sqlx/types"
)

// Store is the persistence surface the reconciler writes through. Every
// method maps to a single upsert, update, or insert keyed by the entity's
// natural identifier where one exists.
type Store interface {
	UpsertDocumentJobStarted(ctx context.Context, job *model.DocumentJob) error
	UpsertDocumentJobTerminal(ctx context.Context, job *model.DocumentJob) error
	LookupDocumentJobPK(ctx context.Context, doclayerJobID string) (int64, error)
	InsertExtractions(ctx context.Context, extractions []model.Extraction) error

	UpsertBatchStarted(ctx context.Context, batch *model.Batch) error
	UpdateBatchProgress(ctx context.Context, batch *model.Batch) error
	UpsertBatchTerminal(ctx context.Context, batch *model.Batch) error

	UpsertWorkflowStarted(ctx context.Context, run *model.WorkflowRun) error
	UpsertWorkflowTerminal(ctx context.Context, run *model.WorkflowRun) error

	InsertBillingAlert(ctx context.Context, alert *model.BillingAlert) error
	InsertUsageReport(ctx context.Context, report *model.UsageReport) error
}

// ExtractionFetcher pulls extended extraction results from the Doclayer API
// after a completion event.
type ExtractionFetcher interface {
	FetchExtractions(ctx context.Context, documentID string) ([]doclayer.Extraction, error)
}

// Reconciler applies idempotent state transitions to persistent records,
// one handler per event type.
type Reconciler struct {
	logger  *slog.Logger
	store   Store
	fetcher ExtractionFetcher // nil when no API key is configured
}

// New creates a Reconciler. fetcher may be nil; extraction enrichment is
// then skipped entirely.
func New(logger *slog.Logger, store Store, fetcher ExtractionFetcher) *Reconciler {
	return &Reconciler{
		logger:  logger,
		store:   store,
		fetcher: fetcher,
	}
}

// Register wires every recognized event type into the router with its
// failure policy. Document state is authoritative and must not silently
// drop; batch, workflow, and billing tracking is best-effort because the
// corresponding tables may not exist in every deployment.
func (r *Reconciler) Register(router *event.Router) {
	router.Handle(event.TypeDocumentStarted, event.PolicyFatal, r.handleDocumentStarted)
	router.Handle(event.TypeDocumentCompleted, event.PolicyFatal, r.handleDocumentCompleted)
	router.Handle(event.TypeDocumentFailed, event.PolicyFatal, r.handleDocumentFailed)

	router.Handle(event.TypeBatchStarted, event.PolicyBestEffort, r.handleBatchStarted)
	router.Handle(event.TypeBatchProgress, event.PolicyBestEffort, r.handleBatchProgress)
	router.Handle(event.TypeBatchCompleted, event.PolicyBestEffort, r.handleBatchCompleted)
	router.Handle(event.TypeBatchFailed, event.PolicyBestEffort, r.handleBatchFailed)

	router.Handle(event.TypeCreditsLow, event.PolicyBestEffort, r.handleBillingAlert)
	router.Handle(event.TypeCreditsExhausted, event.PolicyBestEffort, r.handleBillingAlert)
	router.Handle(event.TypeUsageReport, event.PolicyBestEffort, r.handleUsageReport)

	router.Handle(event.TypeWorkflowStarted, event.PolicyBestEffort, r.handleWorkflowStarted)
	router.Handle(event.TypeWorkflowCompleted, event.PolicyBestEffort, r.handleWorkflowCompleted)
	router.Handle(event.TypeWorkflowFailed, event.PolicyBestEffort, r.handleWorkflowFailed)
}

func (r *Reconciler) handleDocumentStarted(ctx context.Context, env *event.Envelope) error {
	p, err := env.DocumentPayload()
	if err != nil {
		return err
	}

	job := &model.DocumentJob{
		DoclayerJobID: p.JobID,
		DocumentID:    nullString(p.DocumentID),
		Filename:      nullString(p.Filename),
		FileType:      nullString(p.FileType),
		FileSize:      nullInt64(p.FileSize),
		Checksum:      nullString(p.Checksum),
		Status:        model.StatusProcessing,
		RawPayload:    types.JSONText(env.Raw),
	}

	return r.store.UpsertDocumentJobStarted(ctx, job)
}

func (r *Reconciler) handleDocumentCompleted(ctx context.Context, env *event.Envelope) error {
	p, err := env.DocumentPayload()
	if err != nil {
		return err
	}

	metrics, err := marshalMetrics(p.ConfidenceMetrics)
	if err != nil {
		return err
	}

	job := &model.DocumentJob{
		DoclayerJobID:     p.JobID,
		DocumentID:        nullString(p.DocumentID),
		Status:            model.StatusCompleted,
		InsightsCount:     p.InsightsCount,
		ConfidenceMetrics: metrics,
		RawPayload:        types.JSONText(env.Raw),
	}

	if err := r.store.UpsertDocumentJobTerminal(ctx, job); err != nil {
		return err
	}

	// Enrichment runs only after the authoritative completion update has
	// succeeded; its failure never rolls that update back.
	r.enrichExtractions(ctx, p)

	return nil
}

func (r *Reconciler) handleDocumentFailed(ctx context.Context, env *event.Envelope) error {
	p, err := env.DocumentPayload()
	if err != nil {
		return err
	}

	job := &model.DocumentJob{
		DoclayerJobID: p.JobID,
		DocumentID:    nullString(p.DocumentID),
		Status:        model.StatusFailed,
		ErrorMessage:  nullString(p.ErrorMessage),
		ErrorType:     nullString(p.ErrorType),
		RawPayload:    types.JSONText(env.Raw),
	}

	return r.store.UpsertDocumentJobTerminal(ctx, job)
}

func (r *Reconciler) handleBatchStarted(ctx context.Context, env *event.Envelope) error {
	p, err := env.BatchPayload()
	if err != nil {
		return err
	}

	batch := &model.Batch{
		DoclayerBatchID: p.BatchID,
		TotalDocuments:  p.TotalDocuments,
		Status:          model.StatusProcessing,
		RawPayload:      types.JSONText(env.Raw),
	}

	return r.store.UpsertBatchStarted(ctx, batch)
}

func (r *Reconciler) handleBatchProgress(ctx context.Context, env *event.Envelope) error {
	p, err := env.BatchPayload()
	if err != nil {
		return err
	}

	batch := &model.Batch{
		DoclayerBatchID:    p.BatchID,
		CompletedDocuments: p.CompletedDocuments,
		FailedDocuments:    p.FailedDocuments,
	}

	return r.store.UpdateBatchProgress(ctx, batch)
}

func (r *Reconciler) handleBatchCompleted(ctx context.Context, env *event.Envelope) error {
	return r.reconcileBatchTerminal(ctx, env, model.StatusCompleted)
}

func (r *Reconciler) handleBatchFailed(ctx context.Context, env *event.Envelope) error {
	return r.reconcileBatchTerminal(ctx, env, model.StatusFailed)
}

func (r *Reconciler) reconcileBatchTerminal(ctx context.Context, env *event.Envelope, status string) error {
	p, err := env.BatchPayload()
	if err != nil {
		return err
	}

	batch := &model.Batch{
		DoclayerBatchID:    p.BatchID,
		TotalDocuments:     p.TotalDocuments,
		CompletedDocuments: p.CompletedDocuments,
		FailedDocuments:    p.FailedDocuments,
		Status:             status,
		DurationMS:         nullInt64(p.DurationMS),
		RawPayload:         types.JSONText(env.Raw),
	}

	return r.store.UpsertBatchTerminal(ctx, batch)
}

func (r *Reconciler) handleBillingAlert(ctx context.Context, env *event.Envelope) error {
	p, err := env.BillingPayload()
	if err != nil {
		return err
	}

	alert := &model.BillingAlert{
		AlertType:  p.AlertType,
		Balance:    p.Balance,
		Threshold:  p.Threshold,
		Currency:   p.Currency,
		RawPayload: types.JSONText(env.Raw),
	}

	return r.store.InsertBillingAlert(ctx, alert)
}

func (r *Reconciler) handleUsageReport(ctx context.Context, env *event.Envelope) error {
	p, err := env.UsagePayload()
	if err != nil {
		return err
	}

	report := &model.UsageReport{
		PeriodStart:        nullString(p.PeriodStart),
		PeriodEnd:          nullString(p.PeriodEnd),
		DocumentsProcessed: p.DocumentsProcessed,
		PagesProcessed:     p.PagesProcessed,
		CreditsUsed:        p.CreditsUsed,
		RawPayload:         types.JSONText(env.Raw),
	}

	return r.store.InsertUsageReport(ctx, report)
}

func (r *Reconciler) handleWorkflowStarted(ctx context.Context, env *event.Envelope) error {
	p, err := env.WorkflowPayload()
	if err != nil {
		return err
	}

	run := &model.WorkflowRun{
		DoclayerWorkflowID: p.WorkflowID,
		Name:               nullString(p.Name),
		Status:             model.StatusRunning,
		RawPayload:         types.JSONText(env.Raw),
	}

	return r.store.UpsertWorkflowStarted(ctx, run)
}

func (r *Reconciler) handleWorkflowCompleted(ctx context.Context, env *event.Envelope) error {
	p, err := env.WorkflowPayload()
	if err != nil {
		return err
	}

	run := &model.WorkflowRun{
		DoclayerWorkflowID: p.WorkflowID,
		Name:               nullString(p.Name),
		Status:             model.StatusCompleted,
		Result:             types.JSONText(p.Result),
		DurationMS:         nullInt64(p.DurationMS),
		RawPayload:         types.JSONText(env.Raw),
	}

	return r.store.UpsertWorkflowTerminal(ctx, run)
}

func (r *Reconciler) handleWorkflowFailed(ctx context.Context, env *event.Envelope) error {
	p, err := env.WorkflowPayload()
	if err != nil {
		return err
	}

	run := &model.WorkflowRun{
		DoclayerWorkflowID: p.WorkflowID,
		Name:               nullString(p.Name),
		Status:             model.StatusFailed,
		ErrorMessage:       nullString(p.ErrorMessage),
		DurationMS:         nullInt64(p.DurationMS),
		RawPayload:         types.JSONText(env.Raw),
	}

	return r.store.UpsertWorkflowTerminal(ctx, run)
}

// enrichExtractions fetches extended extraction results and persists them as
// child rows of the document job. Every failure here is logged and
// swallowed: enrichment must never fail the primary completion update that
// already succeeded.
func (r *Reconciler) enrichExtractions(ctx context.Context, p *event.DocumentPayload) {
	if r.fetcher == nil || p.DocumentID == "" {
		return
	}

	results, err := r.fetcher.FetchExtractions(ctx, p.DocumentID)
	if err != nil {
		r.logger.Warn("Failed to fetch extractions",
			slog.String("job_id", p.JobID),
			slog.String("document_id", p.DocumentID),
			slog.String("error", err.Error()),
		)
		return
	}

	if len(results) == 0 {
		return
	}

	parentID, err := r.store.LookupDocumentJobPK(ctx, p.JobID)
	if err != nil {
		r.logger.Warn("Failed to resolve document job for extractions",
			slog.String("job_id", p.JobID),
			slog.String("error", err.Error()),
		)
		return
	}

	rows := make([]model.Extraction, len(results))
	for i, res := range results {
		rows[i] = model.Extraction{
			DocumentJobID:  parentID,
			ExtractionType: res.Type,
			Key:            res.Key,
			Content:        types.JSONText(res.Content),
			Confidence:     res.Confidence,
			PageNumber:     res.PageNumber,
			SourceText:     nullString(res.SourceText),
		}
	}

	if err := r.store.InsertExtractions(ctx, rows); err != nil {
		r.logger.Warn("Failed to insert extractions",
			slog.String("job_id", p.JobID),
			slog.Int("count", len(rows)),
			slog.String("error", err.Error()),
		)
		return
	}

	r.logger.Info("Extractions persisted",
		slog.String("job_id", p.JobID),
		slog.Int("count", len(rows)),
	)
}

func marshalMetrics(metrics map[string]float64) (types.JSONText, error) {
	if metrics == nil {
		return nil, nil
	}
	data, err := json.Marshal(metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal confidence metrics: %w", err)
	}
	return types.JSONText(data), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v > 0}
}
