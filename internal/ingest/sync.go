// Package ingest drives the pipeline end to end: it pulls rooms and
// messages from Chatwork into the store and turns stored messages into
// persisted company summaries.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chatcrm/crm-backend/internal/apperr"
	"github.com/chatcrm/crm-backend/internal/chatwork"
	"github.com/chatcrm/crm-backend/internal/importer"
	"github.com/chatcrm/crm-backend/internal/metrics"
	"github.com/chatcrm/crm-backend/internal/models"
	"github.com/chatcrm/crm-backend/internal/repository"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ChatClient is the part of the Chatwork client the syncer needs
type ChatClient interface {
	ListRooms(ctx context.Context) ([]chatwork.Room, error)
	ListRoomMessages(ctx context.Context, roomID string, opts chatwork.ListOptions) ([]chatwork.Message, error)
}

// MessageImporter persists raw message batches
type MessageImporter interface {
	Import(ctx context.Context, roomID string, raw []importer.RawMessage) (*importer.Result, error)
}

// SyncResult reports one room sync
type SyncResult struct {
	RoomID       string     `json:"roomId"`
	Fetched      int        `json:"fetched"`
	Ignored      int        `json:"ignored"`
	Inserted     int        `json:"inserted"`
	Skipped      int        `json:"skipped"`
	LastSyncedAt *time.Time `json:"lastSyncedAt"`
}

// SyncReport summarizes a SyncAll run
type SyncReport struct {
	Rooms    []SyncResult      `json:"rooms"`
	Failures map[string]string `json:"failures,omitempty"`
}

// Syncer copies Chatwork history into the store
type Syncer struct {
	client   ChatClient
	rooms    repository.RoomRepository
	importer MessageImporter
	limiter  *rate.Limiter
	logger   logrus.FieldLogger
	metrics  *metrics.Metrics
}

// NewSyncer creates a new Syncer. A nil limiter disables throttling.
func NewSyncer(client ChatClient, rooms repository.RoomRepository, imp MessageImporter, limiter *rate.Limiter, logger logrus.FieldLogger, m *metrics.Metrics) *Syncer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Syncer{
		client:   client,
		rooms:    rooms,
		importer: imp,
		limiter:  limiter,
		logger:   logger,
		metrics:  m,
	}
}

// NewLimiter spreads perFiveMinutes requests evenly over five minutes, with
// a small burst. Non-positive values disable the limit.
func NewLimiter(perFiveMinutes int) *rate.Limiter {
	if perFiveMinutes <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := perFiveMinutes
	if burst > 10 {
		burst = 10
	}
	return rate.NewLimiter(rate.Every(5*time.Minute/time.Duration(perFiveMinutes)), burst)
}

// DiscoverRooms registers every room the token can see. Existing rooms get
// their name refreshed; company links and watermarks are left alone.
func (s *Syncer) DiscoverRooms(ctx context.Context) ([]*models.ChatRoom, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	remote, err := s.client.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	rooms := make([]*models.ChatRoom, 0, len(remote))
	for _, r := range remote {
		if r.RoomID == "" {
			continue
		}
		room, err := s.rooms.UpsertDiscovered(ctx, r.RoomID, r.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to store room %s: %w", r.RoomID, err)
		}
		rooms = append(rooms, room)
	}

	s.logger.WithField("rooms", len(rooms)).Info("discovered chat rooms")
	return rooms, nil
}

// LinkRoom sets or clears (empty companyID) the company of a room
func (s *Syncer) LinkRoom(ctx context.Context, roomID, companyID string) error {
	var target *string
	if companyID = strings.TrimSpace(companyID); companyID != "" {
		target = &companyID
	}
	if err := s.rooms.LinkCompany(ctx, roomID, target); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("chat room or company", roomID)
		}
		return fmt.Errorf("failed to link room: %w", err)
	}
	return nil
}

// SyncRoom fetches the room's messages from Chatwork and imports them.
// Without force Chatwork only returns messages not fetched by this token
// before.
func (s *Syncer) SyncRoom(ctx context.Context, roomID string, force bool) (*SyncResult, error) {
	result, err := s.syncRoom(ctx, roomID, force)
	s.metrics.ObserveRoomSync(err)
	return result, err
}

func (s *Syncer) syncRoom(ctx context.Context, roomID string, force bool) (*SyncResult, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("chat room", roomID)
		}
		return nil, fmt.Errorf("failed to load chat room: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	remote, err := s.client.ListRoomMessages(ctx, room.ChatworkRoomID, chatwork.ListOptions{Force: force})
	if err != nil {
		return nil, err
	}

	payload := ToImportPayload(remote)
	result := &SyncResult{
		RoomID:       room.ID,
		Fetched:      len(remote),
		Ignored:      len(remote) - len(payload),
		LastSyncedAt: room.Watermark(),
	}

	for start := 0; start < len(payload); start += importer.MaxBatchSize {
		end := start + importer.MaxBatchSize
		if end > len(payload) {
			end = len(payload)
		}

		res, err := s.importer.Import(ctx, room.ID, payload[start:end])
		if err != nil {
			return nil, err
		}
		result.Inserted += res.Inserted
		result.Skipped += res.Skipped
		result.LastSyncedAt = res.LastSyncedAt
	}

	s.logger.WithFields(logrus.Fields{
		"room_id":  room.ID,
		"chatwork": room.ChatworkRoomID,
		"fetched":  result.Fetched,
		"inserted": result.Inserted,
		"skipped":  result.Skipped,
		"force":    force,
	}).Info("synced chat room")

	return result, nil
}

// SyncAll syncs every room linked to a company. A failing room is logged
// and reported; the others still run.
func (s *Syncer) SyncAll(ctx context.Context, force bool) (*SyncReport, error) {
	rooms, err := s.rooms.ListLinked(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked rooms: %w", err)
	}

	report := &SyncReport{Rooms: []SyncResult{}}
	for _, room := range rooms {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, err := s.SyncRoom(ctx, room.ID, force)
		if err != nil {
			s.logger.WithError(err).WithField("room_id", room.ID).Warn("room sync failed")
			if report.Failures == nil {
				report.Failures = make(map[string]string)
			}
			report.Failures[room.ID] = err.Error()
			continue
		}
		report.Rooms = append(report.Rooms, *res)
	}

	return report, nil
}

// ToImportPayload converts Chatwork messages into importer input. Messages
// that could never pass validation (no id, no timestamp, empty body) are
// dropped so that one of them does not reject the whole batch; a missing
// sender name falls back to the account id.
func ToImportPayload(msgs []chatwork.Message) []importer.RawMessage {
	out := make([]importer.RawMessage, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.MessageID) == "" || m.SendTime.IsZero() || strings.TrimSpace(m.Body) == "" {
			continue
		}

		sender := strings.TrimSpace(m.Account.Name)
		if sender == "" {
			sender = "account " + m.Account.AccountID
		}

		out = append(out, importer.RawMessage{
			ChatworkMessageID: m.MessageID,
			SenderName:        sender,
			SentAt:            m.SendTime.UTC().Format(time.RFC3339),
			BodyText:          m.Body,
		})
	}
	return out
}
