// Package importer persists batches of Chatwork messages idempotently.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chatcrm/crm-backend/internal/apperr"
	"github.com/chatcrm/crm-backend/internal/metrics"
	"github.com/chatcrm/crm-backend/internal/models"
	"github.com/chatcrm/crm-backend/internal/repository"
	"github.com/sirupsen/logrus"
)

// MaxBatchSize is the largest batch a single Import call accepts
const MaxBatchSize = 500

// RawMessage is one element of an import payload. Unknown JSON fields are
// ignored.
type RawMessage struct {
	ChatworkMessageID string `json:"chatwork_message_id"`
	SenderName        string `json:"sender_name"`
	SentAt            string `json:"sent_at"`
	BodyText          string `json:"body_text"`
}

// Result reports what an Import call wrote
type Result struct {
	Inserted     int        `json:"inserted"`
	Skipped      int        `json:"skipped"`
	LastSyncedAt *time.Time `json:"lastSyncedAt"`
}

// Importer writes message batches into a room
type Importer struct {
	store   repository.ImportStore
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
}

// New creates a new Importer
func New(store repository.ImportStore, logger logrus.FieldLogger, m *metrics.Metrics) *Importer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Importer{
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

// Import validates raw and inserts the messages the room does not have yet.
// Validation failures reject the whole batch. Rows already stored for the
// same (room, external id) are counted as skipped, so re-importing a batch
// is a no-op.
func (i *Importer) Import(ctx context.Context, roomID string, raw []RawMessage) (*Result, error) {
	result, err := i.importBatch(ctx, roomID, raw)
	if err != nil {
		i.metrics.ObserveImportFailure(string(apperr.KindOf(err)))
		return nil, err
	}

	i.metrics.ObserveImport(result.Inserted, result.Skipped)
	i.logger.WithFields(logrus.Fields{
		"room_id":  roomID,
		"inserted": result.Inserted,
		"skipped":  result.Skipped,
	}).Info("imported chat messages")

	return result, nil
}

func (i *Importer) importBatch(ctx context.Context, roomID string, raw []RawMessage) (*Result, error) {
	if len(raw) > MaxBatchSize {
		return nil, apperr.BatchTooLarge(len(raw), MaxBatchSize)
	}

	room, err := i.store.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("chat room", roomID)
		}
		return nil, fmt.Errorf("failed to load chat room: %w", err)
	}

	messages, err := normalize(room.ID, raw)
	if err != nil {
		return nil, err
	}

	result := &Result{LastSyncedAt: room.Watermark()}
	if len(messages) == 0 {
		return result, nil
	}

	var (
		inserted int
		newest   time.Time
	)
	err = i.store.RunInTx(ctx, func(tx repository.ImportTx) error {
		for idx := range messages {
			ok, err := tx.InsertMessage(ctx, &messages[idx])
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			inserted++
			if messages[idx].SentAt.After(newest) {
				newest = messages[idx].SentAt
			}
		}

		if inserted == 0 {
			return nil
		}
		return tx.AdvanceWatermark(ctx, room.ID, newest)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import messages: %w", err)
	}

	result.Inserted = inserted
	result.Skipped = len(messages) - inserted
	if inserted > 0 && (result.LastSyncedAt == nil || newest.After(*result.LastSyncedAt)) {
		result.LastSyncedAt = &newest
	}

	return result, nil
}

// normalize validates every element before anything is written
func normalize(roomID string, raw []RawMessage) ([]models.Message, error) {
	messages := make([]models.Message, 0, len(raw))
	for idx, r := range raw {
		externalID := strings.TrimSpace(r.ChatworkMessageID)
		if externalID == "" {
			return nil, apperr.InvalidMessage(idx, "chatwork_message_id", "must not be empty")
		}
		sender := strings.TrimSpace(r.SenderName)
		if sender == "" {
			return nil, apperr.InvalidMessage(idx, "sender_name", "must not be empty")
		}
		body := strings.TrimSpace(r.BodyText)
		if body == "" {
			return nil, apperr.InvalidMessage(idx, "body_text", "must not be empty")
		}
		sentAt, ok := ParseSentAt(r.SentAt)
		if !ok {
			return nil, apperr.InvalidMessage(idx, "sent_at", fmt.Sprintf("%q is not a valid timestamp", r.SentAt))
		}

		messages = append(messages, models.Message{
			ChatRoomID:        roomID,
			ChatworkMessageID: externalID,
			SenderName:        sender,
			SentAt:            sentAt,
			BodyText:          body,
		})
	}
	return messages, nil
}

var sentAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// ParseSentAt parses an ISO-8601 timestamp. Values without a zone are read
// as UTC. The result is truncated to the microsecond precision the store
// keeps, so watermarks compare equal to stored rows.
func ParseSentAt(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range sentAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Microsecond), true
		}
	}
	return time.Time{}, false
}
