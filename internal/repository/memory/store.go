// Package memory is an in-process implementation of the repository
// interfaces. It honours the same uniqueness and watermark rules as the
// PostgreSQL store and backs the service and handler tests.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/chatcrm/crm-backend/internal/models"
	"github.com/chatcrm/crm-backend/internal/repository"
	"github.com/google/uuid"
)

type messageKey struct {
	roomID     string
	externalID string
}

// Store holds every entity behind one mutex
type Store struct {
	mu        sync.Mutex
	companies map[string]*models.Company
	rooms     map[string]*models.ChatRoom
	messages  map[messageKey]models.Message
	summaries []*models.Summary

	// FailInsertAfter makes the Nth InsertMessage of a transaction fail (1-based), for rollback tests
	FailInsertAfter int
}

// New creates an empty Store
func New() *Store {
	return &Store{
		companies: make(map[string]*models.Company),
		rooms:     make(map[string]*models.ChatRoom),
		messages:  make(map[messageKey]models.Message),
	}
}

var (
	_ repository.CompanyRepository = (*Store)(nil)
	_ repository.MessageRepository = (*Store)(nil)
	_ repository.ImportStore       = (*Store)(nil)
	_ repository.SummaryRepository = (*Store)(nil)
)

// AddCompany seeds a company
func (s *Store) AddCompany(name string) *models.Company {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &models.Company{ID: uuid.New().String(), Name: name, CreatedAt: time.Now().UTC()}
	s.companies[c.ID] = c
	return c
}

// AddRoom seeds a room, linked to companyID when it is not empty
func (s *Store) AddRoom(chatworkRoomID, name, companyID string) *models.ChatRoom {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &models.ChatRoom{
		ID:             uuid.New().String(),
		ChatworkRoomID: chatworkRoomID,
		Name:           name,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if companyID != "" {
		r.CompanyID = sql.NullString{String: companyID, Valid: true}
	}
	s.rooms[r.ID] = r
	return r
}

// MessageCount returns the number of stored messages of a room
func (s *Store) MessageCount(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.messages {
		if k.roomID == roomID {
			n++
		}
	}
	return n
}

// Get retrieves a company by ID
func (s *Store) Get(ctx context.Context, id string) (*models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companies[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// ListWithRooms retrieves companies with at least one linked room
func (s *Store) ListWithRooms(ctx context.Context) ([]*models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	linked := make(map[string]bool)
	for _, r := range s.rooms {
		if r.CompanyID.Valid {
			linked[r.CompanyID.String] = true
		}
	}

	var out []*models.Company
	for id := range linked {
		if c, ok := s.companies[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListForRooms retrieves messages of several rooms, oldest first
func (s *Store) ListForRooms(ctx context.Context, roomIDs []string, since time.Time) ([]models.RoomMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]bool, len(roomIDs))
	for _, id := range roomIDs {
		wanted[id] = true
	}

	var out []models.RoomMessage
	for k, m := range s.messages {
		if !wanted[k.roomID] || m.SentAt.Before(since) {
			continue
		}
		name := ""
		if r, ok := s.rooms[k.roomID]; ok {
			name = r.Name
		}
		out = append(out, models.RoomMessage{Message: m, RoomName: name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SentAt.Before(out[j].SentAt)
	})
	return out, nil
}

// GetRoom retrieves the room an import targets
func (s *Store) GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	return s.Rooms().Get(ctx, roomID)
}

// RunInTx stages writes and applies them only when fn succeeds
func (s *Store) RunInTx(ctx context.Context, fn func(tx repository.ImportTx) error) error {
	tx := &memTx{store: s, pending: make(map[messageKey]models.Message), watermarks: make(map[string]time.Time)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, m := range tx.pending {
		s.messages[k] = m
	}
	for roomID, at := range tx.watermarks {
		r, ok := s.rooms[roomID]
		if !ok {
			continue
		}
		if !r.LastSyncedAt.Valid || r.LastSyncedAt.Time.Before(at) {
			r.LastSyncedAt = sql.NullTime{Time: at, Valid: true}
		}
	}
	return nil
}

type memTx struct {
	store      *Store
	pending    map[messageKey]models.Message
	watermarks map[string]time.Time
	inserts    int
}

func (t *memTx) InsertMessage(ctx context.Context, msg *models.Message) (bool, error) {
	t.inserts++
	if t.store.FailInsertAfter > 0 && t.inserts >= t.store.FailInsertAfter {
		return false, errInjected
	}

	key := messageKey{roomID: msg.ChatRoomID, externalID: msg.ChatworkMessageID}
	if _, ok := t.pending[key]; ok {
		return false, nil
	}

	t.store.mu.Lock()
	_, exists := t.store.messages[key]
	t.store.mu.Unlock()
	if exists {
		return false, nil
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.CreatedAt = time.Now().UTC()
	t.pending[key] = *msg
	return true, nil
}

func (t *memTx) AdvanceWatermark(ctx context.Context, roomID string, at time.Time) error {
	if cur, ok := t.watermarks[roomID]; !ok || cur.Before(at) {
		t.watermarks[roomID] = at
	}
	return nil
}

// Create appends a summary
func (s *Store) Create(ctx context.Context, summary *models.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if summary.ID == "" {
		summary.ID = uuid.New().String()
	}
	if summary.GeneratedAt.IsZero() {
		summary.GeneratedAt = time.Now().UTC()
	}
	cp := *summary
	s.summaries = append(s.summaries, &cp)
	return nil
}

// Latest retrieves the most recent summary of a company
func (s *Store) Latest(ctx context.Context, companyID string) (*models.Summary, error) {
	list, _ := s.ListByCompany(ctx, companyID, 1)
	if len(list) == 0 {
		return nil, repository.ErrNotFound
	}
	return list[0], nil
}

// ListByCompany retrieves a company's summaries, newest first
func (s *Store) ListByCompany(ctx context.Context, companyID string, limit int) ([]*models.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Summary
	for _, sm := range s.summaries {
		if sm.CompanyID == companyID {
			cp := *sm
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].GeneratedAt.After(out[j].GeneratedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
