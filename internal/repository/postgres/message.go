package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chatcrm/crm-backend/internal/models"
	"github.com/chatcrm/crm-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// MessageRepository implements repository.MessageRepository and
// repository.ImportStore using PostgreSQL
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates a new PostgreSQL message repository
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

var (
	_ repository.MessageRepository = (*MessageRepository)(nil)
	_ repository.ImportStore       = (*MessageRepository)(nil)
)

// ListForRooms retrieves messages of several rooms, oldest first
func (r *MessageRepository) ListForRooms(ctx context.Context, roomIDs []string, since time.Time) ([]models.RoomMessage, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}

	var messages []models.RoomMessage
	query := `
		SELECT m.id, m.chat_room_id, m.chatwork_message_id, m.sender_name, m.sent_at,
		       m.body_text, m.created_at, r.name AS room_name
		FROM messages m
		JOIN chat_rooms r ON r.id = m.chat_room_id
		WHERE m.chat_room_id = ANY($1::uuid[]) AND m.sent_at >= $2
		ORDER BY m.sent_at ASC, m.id ASC
	`

	if err := r.db.SelectContext(ctx, &messages, query, pq.Array(roomIDs), since); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// GetRoom retrieves the room an import targets
func (r *MessageRepository) GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	if !isUUID(roomID) {
		return nil, repository.ErrNotFound
	}
	return getRoom(ctx, r.db, `SELECT `+roomColumns+` FROM chat_rooms WHERE id = $1`, roomID)
}

// RunInTx runs fn inside a transaction
func (r *MessageRepository) RunInTx(ctx context.Context, fn func(tx repository.ImportTx) error) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&importTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}

type importTx struct {
	tx *sqlx.Tx
}

func (t *importTx) InsertMessage(ctx context.Context, msg *models.Message) (bool, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	query := `
		INSERT INTO messages (id, chat_room_id, chatwork_message_id, sender_name, sent_at, body_text)
		VALUES (:id, :chat_room_id, :chatwork_message_id, :sender_name, :sent_at, :body_text)
		ON CONFLICT (chat_room_id, chatwork_message_id) DO NOTHING
	`

	res, err := t.tx.NamedExecContext(ctx, query, msg)
	if err != nil {
		return false, fmt.Errorf("failed to insert message %s: %w", msg.ChatworkMessageID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *importTx) AdvanceWatermark(ctx context.Context, roomID string, at time.Time) error {
	query := `
		UPDATE chat_rooms
		SET last_synced_at = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND (last_synced_at IS NULL OR last_synced_at < $2)
	`

	if _, err := t.tx.ExecContext(ctx, query, roomID, at); err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}
	return nil
}
