package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/chatcrm/crm-backend/internal/apperr"
	"github.com/chatcrm/crm-backend/internal/chatwork"
	"github.com/chatcrm/crm-backend/internal/importer"
	"github.com/chatcrm/crm-backend/internal/repository/memory"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	rooms    []chatwork.Room
	messages map[string][]chatwork.Message
	errs     map[string]error
	forced   []bool
}

func (f *fakeChat) ListRooms(ctx context.Context) ([]chatwork.Room, error) {
	return f.rooms, nil
}

func (f *fakeChat) ListRoomMessages(ctx context.Context, roomID string, opts chatwork.ListOptions) ([]chatwork.Message, error) {
	f.forced = append(f.forced, opts.Force)
	if err := f.errs[roomID]; err != nil {
		return nil, err
	}
	return f.messages[roomID], nil
}

func chatMessages(n int, start time.Time) []chatwork.Message {
	out := make([]chatwork.Message, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, chatwork.Message{
			MessageID: fmt.Sprintf("m%d", i),
			Account:   chatwork.Account{AccountID: "1", Name: "Taro"},
			Body:      fmt.Sprintf("hello %d", i),
			SendTime:  start.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

func newSyncer(chat *fakeChat) (*Syncer, *memory.Store) {
	store := memory.New()
	logger, _ := test.NewNullLogger()
	imp := importer.New(store, logger, nil)
	return NewSyncer(chat, store.Rooms(), imp, nil, logger, nil), store
}

func TestDiscoverRooms(t *testing.T) {
	chat := &fakeChat{rooms: []chatwork.Room{{RoomID: "11", Name: "Sales"}, {RoomID: "", Name: "broken"}, {RoomID: "12", Name: "Support"}}}
	syncer, store := newSyncer(chat)

	company := store.AddCompany("Acme")
	existing := store.AddRoom("11", "Old name", company.ID)

	rooms, err := syncer.DiscoverRooms(context.Background())
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	room, err := store.Rooms().Get(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sales", room.Name)
	assert.Equal(t, company.ID, room.CompanyID.String, "link preserved")

	_, err = store.Rooms().GetByChatworkID(context.Background(), "12")
	assert.NoError(t, err)
}

func TestSyncRoomImportsInChunks(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	chat := &fakeChat{messages: map[string][]chatwork.Message{"11": chatMessages(1203, start)}}
	syncer, store := newSyncer(chat)
	room := store.AddRoom("11", "Sales", "")

	result, err := syncer.SyncRoom(context.Background(), room.ID, true)
	require.NoError(t, err)

	assert.Equal(t, 1203, result.Fetched)
	assert.Equal(t, 1203, result.Inserted)
	assert.Equal(t, 0, result.Skipped)
	require.NotNil(t, result.LastSyncedAt)
	assert.Equal(t, start.Add(1202*time.Minute), *result.LastSyncedAt)
	assert.Equal(t, 1203, store.MessageCount(room.ID))
	assert.Equal(t, []bool{true}, chat.forced)

	again, err := syncer.SyncRoom(context.Background(), room.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Inserted)
	assert.Equal(t, 1203, again.Skipped)
}

func TestSyncRoomUnknown(t *testing.T) {
	syncer, _ := newSyncer(&fakeChat{})

	_, err := syncer.SyncRoom(context.Background(), "nope", false)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSyncRoomRemoteError(t *testing.T) {
	chat := &fakeChat{errs: map[string]error{"11": apperr.Timeout("chatwork request timed out", context.DeadlineExceeded)}}
	syncer, store := newSyncer(chat)
	room := store.AddRoom("11", "Sales", "")

	_, err := syncer.SyncRoom(context.Background(), room.ID, false)
	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(err))
	assert.Equal(t, 0, store.MessageCount(room.ID))
}

func TestSyncAllContinuesAfterFailure(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	chat := &fakeChat{
		messages: map[string][]chatwork.Message{"11": chatMessages(3, start), "13": chatMessages(2, start)},
		errs:     map[string]error{"12": errors.New("connection reset")},
	}
	syncer, store := newSyncer(chat)
	company := store.AddCompany("Acme")
	a := store.AddRoom("11", "A", company.ID)
	b := store.AddRoom("12", "B", company.ID)
	store.AddRoom("13", "C", company.ID)
	unlinked := store.AddRoom("14", "D", "")

	report, err := syncer.SyncAll(context.Background(), false)
	require.NoError(t, err)

	assert.Len(t, report.Rooms, 2)
	assert.Contains(t, report.Failures, b.ID)
	assert.NotContains(t, report.Failures, unlinked.ID)
	assert.Equal(t, 3, store.MessageCount(a.ID))
}

func TestLinkRoom(t *testing.T) {
	syncer, store := newSyncer(&fakeChat{})
	company := store.AddCompany("Acme")
	room := store.AddRoom("11", "Sales", "")

	require.NoError(t, syncer.LinkRoom(context.Background(), room.ID, company.ID))
	linked, _ := store.Rooms().Get(context.Background(), room.ID)
	assert.True(t, linked.CompanyID.Valid)

	require.NoError(t, syncer.LinkRoom(context.Background(), room.ID, ""))
	unlinked, _ := store.Rooms().Get(context.Background(), room.ID)
	assert.False(t, unlinked.CompanyID.Valid)

	err := syncer.LinkRoom(context.Background(), room.ID, "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestToImportPayload(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	payload := ToImportPayload([]chatwork.Message{
		{MessageID: "1", Account: chatwork.Account{AccountID: "7", Name: "Taro"}, Body: "hi", SendTime: at},
		{MessageID: "2", Account: chatwork.Account{AccountID: "8"}, Body: "no name", SendTime: at},
		{MessageID: "", Body: "no id", SendTime: at},
		{MessageID: "4", Body: "   ", SendTime: at},
		{MessageID: "5", Body: "no time"},
	})

	require.Len(t, payload, 2)
	assert.Equal(t, importer.RawMessage{ChatworkMessageID: "1", SenderName: "Taro", SentAt: "2024-05-01T09:30:00Z", BodyText: "hi"}, payload[0])
	assert.Equal(t, "account 8", payload[1].SenderName)
}

func TestNewLimiter(t *testing.T) {
	l := NewLimiter(300)
	assert.Equal(t, 10, l.Burst())
	assert.InDelta(t, 1.0, float64(l.Limit()), 0.001)

	assert.True(t, NewLimiter(0).Allow())
}
