package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/chatcrm/crm-backend/internal/models"
	"github.com/chatcrm/crm-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const foreignKeyViolation = "23503"

const roomColumns = `id, company_id, chatwork_room_id, name, last_synced_at, created_at, updated_at`

// RoomRepository implements repository.RoomRepository using PostgreSQL
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository creates a new PostgreSQL chat room repository
func NewRoomRepository(db *sqlx.DB) repository.RoomRepository {
	return &RoomRepository{db: db}
}

// Get retrieves a room by ID
func (r *RoomRepository) Get(ctx context.Context, id string) (*models.ChatRoom, error) {
	if !isUUID(id) {
		return nil, repository.ErrNotFound
	}
	return getRoom(ctx, r.db, `SELECT `+roomColumns+` FROM chat_rooms WHERE id = $1`, id)
}

// GetByChatworkID retrieves a room by its Chatwork room ID
func (r *RoomRepository) GetByChatworkID(ctx context.Context, chatworkRoomID string) (*models.ChatRoom, error) {
	return getRoom(ctx, r.db, `SELECT `+roomColumns+` FROM chat_rooms WHERE chatwork_room_id = $1`, chatworkRoomID)
}

// ListByCompany retrieves the rooms linked to a company
func (r *RoomRepository) ListByCompany(ctx context.Context, companyID string) ([]*models.ChatRoom, error) {
	var rooms []*models.ChatRoom
	query := `SELECT ` + roomColumns + ` FROM chat_rooms WHERE company_id = $1 ORDER BY name ASC`

	if err := r.db.SelectContext(ctx, &rooms, query, companyID); err != nil {
		return nil, err
	}
	return rooms, nil
}

// ListLinked retrieves every room linked to some company
func (r *RoomRepository) ListLinked(ctx context.Context) ([]*models.ChatRoom, error) {
	var rooms []*models.ChatRoom
	query := `SELECT ` + roomColumns + ` FROM chat_rooms WHERE company_id IS NOT NULL ORDER BY last_synced_at ASC NULLS FIRST`

	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, err
	}
	return rooms, nil
}

// UpsertDiscovered inserts a newly discovered room or refreshes its name
func (r *RoomRepository) UpsertDiscovered(ctx context.Context, chatworkRoomID, name string) (*models.ChatRoom, error) {
	query := `
		INSERT INTO chat_rooms (id, chatwork_room_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (chatwork_room_id) DO UPDATE
		SET name = EXCLUDED.name, updated_at = CURRENT_TIMESTAMP
		RETURNING ` + roomColumns

	return getRoom(ctx, r.db, query, uuid.New().String(), chatworkRoomID, name)
}

// LinkCompany sets or clears the owning company of a room
func (r *RoomRepository) LinkCompany(ctx context.Context, id string, companyID *string) error {
	if !isUUID(id) || (companyID != nil && !isUUID(*companyID)) {
		return repository.ErrNotFound
	}
	query := `UPDATE chat_rooms SET company_id = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`

	var company sql.NullString
	if companyID != nil {
		company = sql.NullString{String: *companyID, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query, id, company)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return repository.ErrNotFound
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func getRoom(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*models.ChatRoom, error) {
	var room models.ChatRoom
	if err := sqlx.GetContext(ctx, q, &room, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

// isUUID guards lookups against ids Postgres would reject as malformed
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
