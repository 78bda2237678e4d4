package chatwork

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chatcrm/crm-backend/internal/apperr"
	"github.com/chatcrm/crm-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, token string, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.ChatworkConfig{
		BaseURL:  srv.URL,
		APIToken: token,
		Timeout:  timeout,
	})
}

func TestListRooms(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rooms", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-ChatWorkToken"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"room_id": 123, "name": "Acme sales", "type": "group", "description": "deals"},
			{"room_id": 456, "name": "Globex", "type": "group"}]`))
	}, "secret", time.Second)

	rooms, err := client.ListRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, Room{RoomID: "123", Name: "Acme sales", Type: "group", Description: "deals"}, rooms[0])
	assert.Equal(t, "456", rooms[1].RoomID)
}

func TestListRoomMessages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rooms/123/messages", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("force"))
		w.Write([]byte(`[{"message_id": "5", "account": {"account_id": 99, "name": "Hanako"},
			"body": "Please send the quote", "send_time": 1700000000, "update_time": 0}]`))
	}, "secret", time.Second)

	messages, err := client.ListRoomMessages(context.Background(), "123", ListOptions{Force: true})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "5", messages[0].MessageID)
	assert.Equal(t, "Hanako", messages[0].Account.Name)
	assert.Equal(t, "99", messages[0].Account.AccountID)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), messages[0].SendTime)
}

func TestListRoomMessagesNoContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("force"))
		w.WriteHeader(http.StatusNoContent)
	}, "secret", time.Second)

	messages, err := client.ListRoomMessages(context.Background(), "123", ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestUnconfiguredFailsWithoutIO(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}, "", time.Second)

	_, err := client.ListRooms(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnconfigured, apperr.KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, apperr.StatusOf(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestEmptyRoomID(t *testing.T) {
	client := NewClient(config.ChatworkConfig{APIToken: "secret"})

	_, err := client.ListRoomMessages(context.Background(), "  ", ListOptions{})
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, "secret", 50*time.Millisecond)
	defer close(release)

	_, err := client.ListRooms(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(err))
	assert.Equal(t, http.StatusGatewayTimeout, apperr.StatusOf(err))
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(config.ChatworkConfig{BaseURL: url, APIToken: "secret", Timeout: time.Second})

	_, err := client.ListRooms(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnreachable, apperr.KindOf(err))
	assert.Equal(t, http.StatusBadGateway, apperr.StatusOf(err))
}

func TestRemoteRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors": ["Invalid API token"]}`))
	}, "bad", time.Second)

	_, err := client.ListRoomMessages(context.Background(), "1", ListOptions{})
	require.Error(t, err)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindRemoteRejected, appErr.Kind)
	assert.Equal(t, http.StatusUnauthorized, appErr.RemoteStatus)
	assert.Equal(t, ErrorResponse{Errors: []string{"Invalid API token"}}, appErr.RemoteBody)
}

func TestRemoteRejectedPlainBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("maintenance\n"))
	}, "secret", time.Second)

	_, err := client.ListRooms(context.Background())
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.Status)
	assert.Equal(t, "maintenance", appErr.RemoteBody)
}

func TestCallerCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, "secret", 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.ListRooms(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
