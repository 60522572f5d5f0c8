package storage

import (
	"context"
	"fmt"

	"github.com/doclayer-io/webhook-bridge/internal/api/model"
)

// InsertBillingAlert records one alert occurrence. Alerts have no natural
// identifier to upsert against; every occurrence is a new row.
func (s *Storage) InsertBillingAlert(ctx context.Context, alert *model.BillingAlert) error {
	query := `
		INSERT INTO billing_alerts (
			alert_type, balance, threshold, currency,
			acknowledged, raw_payload, created_at
		) VALUES (
			$1, $2, $3, $4,
			FALSE, $5, NOW()
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		alert.AlertType,
		alert.Balance,
		alert.Threshold,
		alert.Currency,
		alert.RawPayload,
	)

	if err != nil {
		return fmt.Errorf("failed to insert billing alert: %w", err)
	}

	return nil
}

// InsertUsageReport records one reporting period.
func (s *Storage) InsertUsageReport(ctx context.Context, report *model.UsageReport) error {
	query := `
		INSERT INTO usage_reports (
			period_start, period_end, documents_processed,
			pages_processed, credits_used, raw_payload, created_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, NOW()
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		report.PeriodStart,
		report.PeriodEnd,
		report.DocumentsProcessed,
		report.PagesProcessed,
		report.CreditsUsed,
		report.RawPayload,
	)

	if err != nil {
		return fmt.Errorf("failed to insert usage report: %w", err)
	}

	return nil
}
