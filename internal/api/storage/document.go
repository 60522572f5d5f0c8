package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doclayer-io/webhook-bridge/internal/api/model"
)

// ErrDocumentJobNotFound is returned when a natural job identifier resolves
// to no row.
var ErrDocumentJobNotFound = errors.New("document job not found")

// UpsertDocumentJobStarted inserts or updates a document job on a started
// event, keyed by the Doclayer job identifier. A row already in a terminal
// status keeps it; transitions are one-directional.
func (s *Storage) UpsertDocumentJobStarted(ctx context.Context, job *model.DocumentJob) error {
	query := `
		INSERT INTO document_jobs (
			doclayer_job_id, document_id, filename, file_type, file_size,
			checksum, status, raw_payload, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, NOW(), NOW()
		)
		ON CONFLICT (doclayer_job_id) DO UPDATE SET
			document_id = COALESCE(EXCLUDED.document_id, document_jobs.document_id),
			filename    = COALESCE(EXCLUDED.filename, document_jobs.filename),
			file_type   = COALESCE(EXCLUDED.file_type, document_jobs.file_type),
			file_size   = COALESCE(EXCLUDED.file_size, document_jobs.file_size),
			checksum    = COALESCE(EXCLUDED.checksum, document_jobs.checksum),
			status = CASE
				WHEN document_jobs.status IN ('completed', 'failed', 'cancelled')
				THEN document_jobs.status
				ELSE EXCLUDED.status
			END,
			raw_payload = EXCLUDED.raw_payload,
			updated_at  = NOW()
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.DoclayerJobID,
		job.DocumentID,
		job.Filename,
		job.FileType,
		job.FileSize,
		job.Checksum,
		job.Status,
		job.RawPayload,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert document job: %w", err)
	}

	return nil
}

// UpsertDocumentJobTerminal applies a completed or failed event, keyed by
// the Doclayer job identifier. A completion arriving without a prior
// started event still creates the row. Replaying an already-terminal event
// re-applies the same terminal fields.
func (s *Storage) UpsertDocumentJobTerminal(ctx context.Context, job *model.DocumentJob) error {
	query := `
		INSERT INTO document_jobs (
			doclayer_job_id, document_id, status, insights_count,
			confidence_metrics, error_message, error_type, raw_payload,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			NOW(), NOW()
		)
		ON CONFLICT (doclayer_job_id) DO UPDATE SET
			document_id        = COALESCE(EXCLUDED.document_id, document_jobs.document_id),
			status             = EXCLUDED.status,
			insights_count     = EXCLUDED.insights_count,
			confidence_metrics = EXCLUDED.confidence_metrics,
			error_message      = EXCLUDED.error_message,
			error_type         = EXCLUDED.error_type,
			raw_payload        = EXCLUDED.raw_payload,
			updated_at         = NOW()
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.DoclayerJobID,
		job.DocumentID,
		job.Status,
		job.InsightsCount,
		job.ConfidenceMetrics,
		job.ErrorMessage,
		job.ErrorType,
		job.RawPayload,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert document job: %w", err)
	}

	return nil
}

// LookupDocumentJobPK resolves the storage-assigned primary key of a
// document job by its natural job identifier.
func (s *Storage) LookupDocumentJobPK(ctx context.Context, doclayerJobID string) (int64, error) {
	var id int64
	query := `SELECT id FROM document_jobs WHERE doclayer_job_id = $1`

	err := s.db.GetContext(ctx, &id, query, doclayerJobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrDocumentJobNotFound
		}
		return 0, fmt.Errorf("failed to look up document job: %w", err)
	}

	return id, nil
}

// InsertExtractions bulk-inserts extraction rows for a document job.
func (s *Storage) InsertExtractions(ctx context.Context, extractions []model.Extraction) error {
	if len(extractions) == 0 {
		return nil
	}

	query := `
		INSERT INTO extractions (
			document_job_id, extraction_type, key, content,
			confidence, page_number, source_text, created_at
		) VALUES (
			:document_job_id, :extraction_type, :key, :content,
			:confidence, :page_number, :source_text, NOW()
		)
	`

	_, err := s.db.NamedExecContext(ctx, query, extractions)
	if err != nil {
		return fmt.Errorf("failed to insert extractions: %w", err)
	}

	return nil
}
