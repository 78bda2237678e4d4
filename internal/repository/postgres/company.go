package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/chatcrm/crm-backend/internal/models"
	"github.com/chatcrm/crm-backend/internal/repository"
	"github.com/jmoiron/sqlx"
)

// CompanyRepository implements repository.CompanyRepository using PostgreSQL
type CompanyRepository struct {
	db *sqlx.DB
}

// NewCompanyRepository creates a new PostgreSQL company repository
func NewCompanyRepository(db *sqlx.DB) repository.CompanyRepository {
	return &CompanyRepository{db: db}
}

// Get retrieves a company by ID
func (r *CompanyRepository) Get(ctx context.Context, id string) (*models.Company, error) {
	if !isUUID(id) {
		return nil, repository.ErrNotFound
	}

	var company models.Company
	query := `SELECT id, name, created_at FROM companies WHERE id = $1`

	if err := r.db.GetContext(ctx, &company, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &company, nil
}

// ListWithRooms retrieves companies that own at least one chat room
func (r *CompanyRepository) ListWithRooms(ctx context.Context) ([]*models.Company, error) {
	var companies []*models.Company
	query := `
		SELECT c.id, c.name, c.created_at
		FROM companies c
		WHERE EXISTS (SELECT 1 FROM chat_rooms r WHERE r.company_id = c.id)
		ORDER BY c.name ASC
	`

	if err := r.db.SelectContext(ctx, &companies, query); err != nil {
		return nil, err
	}

	return companies, nil
}
