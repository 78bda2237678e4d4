package memory

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/chatcrm/crm-backend/internal/models"
	"github.com/chatcrm/crm-backend/internal/repository"
	"github.com/google/uuid"
)

var errInjected = errors.New("injected insert failure")

// RoomStore exposes the room half of a Store. Company and room lookups
// share the Get name, so rooms live behind their own view.
type RoomStore struct {
	s *Store
}

// Rooms returns the repository.RoomRepository view of s
func (s *Store) Rooms() *RoomStore {
	return &RoomStore{s: s}
}

var _ repository.RoomRepository = (*RoomStore)(nil)

// Get retrieves a room by ID
func (r *RoomStore) Get(ctx context.Context, id string) (*models.ChatRoom, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	room, ok := r.s.rooms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *room
	return &cp, nil
}

// GetByChatworkID retrieves a room by its Chatwork room ID
func (r *RoomStore) GetByChatworkID(ctx context.Context, chatworkRoomID string) (*models.ChatRoom, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, room := range r.s.rooms {
		if room.ChatworkRoomID == chatworkRoomID {
			cp := *room
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ListByCompany retrieves the rooms linked to a company
func (r *RoomStore) ListByCompany(ctx context.Context, companyID string) ([]*models.ChatRoom, error) {
	return r.list(func(room *models.ChatRoom) bool {
		return room.CompanyID.Valid && room.CompanyID.String == companyID
	}), nil
}

// ListLinked retrieves every room linked to some company
func (r *RoomStore) ListLinked(ctx context.Context) ([]*models.ChatRoom, error) {
	return r.list(func(room *models.ChatRoom) bool {
		return room.CompanyID.Valid
	}), nil
}

func (r *RoomStore) list(keep func(*models.ChatRoom) bool) []*models.ChatRoom {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*models.ChatRoom
	for _, room := range r.s.rooms {
		if keep(room) {
			cp := *room
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// UpsertDiscovered inserts a newly discovered room or refreshes its name
func (r *RoomStore) UpsertDiscovered(ctx context.Context, chatworkRoomID, name string) (*models.ChatRoom, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	for _, room := range r.s.rooms {
		if room.ChatworkRoomID == chatworkRoomID {
			room.Name = name
			room.UpdatedAt = now
			cp := *room
			return &cp, nil
		}
	}

	room := &models.ChatRoom{
		ID:             uuid.New().String(),
		ChatworkRoomID: chatworkRoomID,
		Name:           name,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.s.rooms[room.ID] = room
	cp := *room
	return &cp, nil
}

// LinkCompany sets or clears the owning company of a room
func (r *RoomStore) LinkCompany(ctx context.Context, id string, companyID *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	room, ok := r.s.rooms[id]
	if !ok {
		return repository.ErrNotFound
	}
	if companyID == nil {
		room.CompanyID = sql.NullString{}
		return nil
	}
	if _, ok := r.s.companies[*companyID]; !ok {
		return repository.ErrNotFound
	}
	room.CompanyID = sql.NullString{String: *companyID, Valid: true}
	return nil
}
