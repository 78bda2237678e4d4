package repository

import (
	"context"
	"errors"
	"time"

	"github.com/chatcrm/crm-backend/internal/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// CompanyRepository reads the companies the pipeline summarizes
type CompanyRepository interface {
	Get(ctx context.Context, id string) (*models.Company, error)
	// ListWithRooms returns companies that have at least one linked room
	ListWithRooms(ctx context.Context) ([]*models.Company, error)
}

// RoomRepository defines chat room storage operations
type RoomRepository interface {
	Get(ctx context.Context, id string) (*models.ChatRoom, error)
	GetByChatworkID(ctx context.Context, chatworkRoomID string) (*models.ChatRoom, error)
	ListByCompany(ctx context.Context, companyID string) ([]*models.ChatRoom, error)
	ListLinked(ctx context.Context) ([]*models.ChatRoom, error)
	// UpsertDiscovered creates the room or refreshes its name. Company link
	// and watermark are never touched.
	UpsertDiscovered(ctx context.Context, chatworkRoomID, name string) (*models.ChatRoom, error)
	// LinkCompany sets or clears (nil) the owning company
	LinkCompany(ctx context.Context, id string, companyID *string) error
}

// MessageRepository reads imported messages
type MessageRepository interface {
	// ListForRooms returns messages of the given rooms sent at or after since,
	// oldest first. A zero since returns everything.
	ListForRooms(ctx context.Context, roomIDs []string, since time.Time) ([]models.RoomMessage, error)
}

// ImportStore is the transactional surface the message importer writes through
type ImportStore interface {
	GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error)
	// RunInTx runs fn in one transaction, committing only when fn returns nil
	RunInTx(ctx context.Context, fn func(tx ImportTx) error) error
}

// ImportTx is the set of writes allowed inside an import transaction
type ImportTx interface {
	// InsertMessage inserts msg unless (room, external id) already exists.
	// It reports whether a row was written.
	InsertMessage(ctx context.Context, msg *models.Message) (bool, error)
	// AdvanceWatermark moves last_synced_at forward to at; it never moves back.
	AdvanceWatermark(ctx context.Context, roomID string, at time.Time) error
}

// SummaryRepository defines summary storage operations
type SummaryRepository interface {
	Create(ctx context.Context, summary *models.Summary) error
	Latest(ctx context.Context, companyID string) (*models.Summary, error)
	ListByCompany(ctx context.Context, companyID string, limit int) ([]*models.Summary, error)
}
