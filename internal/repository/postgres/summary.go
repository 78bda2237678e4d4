package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/chatcrm/crm-backend/internal/models"
	"github.com/chatcrm/crm-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SummaryRepository implements repository.SummaryRepository using PostgreSQL
type SummaryRepository struct {
	db *sqlx.DB
}

// NewSummaryRepository creates a new PostgreSQL summary repository
func NewSummaryRepository(db *sqlx.DB) repository.SummaryRepository {
	return &SummaryRepository{db: db}
}

// Create appends a summary to the company's history
func (r *SummaryRepository) Create(ctx context.Context, summary *models.Summary) error {
	if summary.ID == "" {
		summary.ID = uuid.New().String()
	}
	if summary.GeneratedAt.IsZero() {
		summary.GeneratedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO summaries (id, company_id, period_type, content, source, generated_at)
		VALUES (:id, :company_id, :period_type, :content, :source, :generated_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, summary)
	return err
}

// Latest retrieves the most recent summary of a company
func (r *SummaryRepository) Latest(ctx context.Context, companyID string) (*models.Summary, error) {
	if !isUUID(companyID) {
		return nil, repository.ErrNotFound
	}

	var summary models.Summary
	query := `
		SELECT id, company_id, period_type, content, source, generated_at
		FROM summaries
		WHERE company_id = $1
		ORDER BY generated_at DESC
		LIMIT 1
	`

	if err := r.db.GetContext(ctx, &summary, query, companyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &summary, nil
}

// ListByCompany retrieves a company's summaries, newest first
func (r *SummaryRepository) ListByCompany(ctx context.Context, companyID string, limit int) ([]*models.Summary, error) {
	if limit <= 0 {
		limit = 20
	}

	var summaries []*models.Summary
	query := `
		SELECT id, company_id, period_type, content, source, generated_at
		FROM summaries
		WHERE company_id = $1
		ORDER BY generated_at DESC
		LIMIT $2
	`

	if err := r.db.SelectContext(ctx, &summaries, query, companyID, limit); err != nil {
		return nil, err
	}
	return summaries, nil
}
