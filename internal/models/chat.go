package models

import (
	"database/sql"
	"time"
)

// Company is the customer account a room belongs to. Only the fields the
// chat pipeline reads are mapped.
type Company struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ChatRoom is a Chatwork room, optionally linked to a company
type ChatRoom struct {
	ID             string         `json:"id" db:"id"`
	CompanyID      sql.NullString `json:"-" db:"company_id"`
	ChatworkRoomID string         `json:"chatwork_room_id" db:"chatwork_room_id"`
	Name           string         `json:"name" db:"name"`
	LastSyncedAt   sql.NullTime   `json:"-" db:"last_synced_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// Watermark returns the last synced time, nil when the room was never synced
func (r *ChatRoom) Watermark() *time.Time {
	if !r.LastSyncedAt.Valid {
		return nil
	}
	t := r.LastSyncedAt.Time
	return &t
}

// Message is an imported Chatwork message. Rows are immutable once written.
type Message struct {
	ID                string    `json:"id" db:"id"`
	ChatRoomID        string    `json:"chat_room_id" db:"chat_room_id"`
	ChatworkMessageID string    `json:"chatwork_message_id" db:"chatwork_message_id"`
	SenderName        string    `json:"sender_name" db:"sender_name"`
	SentAt            time.Time `json:"sent_at" db:"sent_at"`
	BodyText          string    `json:"body_text" db:"body_text"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// RoomMessage is a message joined with the name of its room
type RoomMessage struct {
	Message
	RoomName string `json:"room_name" db:"room_name"`
}
