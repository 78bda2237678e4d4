package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindAndStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   Kind
		status int
	}{
		{"unconfigured", Unconfigured("token missing"), KindUnconfigured, http.StatusInternalServerError},
		{"timeout", Timeout("chatwork", context.DeadlineExceeded), KindTimeout, http.StatusGatewayTimeout},
		{"unreachable", Unreachable("chatwork", errors.New("dial tcp")), KindUnreachable, http.StatusBadGateway},
		{"remote rejected", RemoteRejected(http.StatusForbidden, nil), KindRemoteRejected, http.StatusForbidden},
		{"not found", NotFound("room", "r1"), KindNotFound, http.StatusNotFound},
		{"batch too large", BatchTooLarge(501, 500), KindBatchTooLarge, http.StatusRequestEntityTooLarge},
		{"invalid message", InvalidMessage(3, "body_text", "empty"), KindInvalidMessage, http.StatusBadRequest},
		{"wrapped", fmt.Errorf("sync: %w", NotFound("room", "r2")), KindNotFound, http.StatusNotFound},
		{"untyped", errors.New("boom"), KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.status, StatusOf(tt.err))
		})
	}
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("import: %w", InvalidMessage(0, "sent_at", "unparseable"))

	assert.True(t, errors.Is(err, ErrInvalidMessage))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestErrorMessage(t *testing.T) {
	err := InvalidMessage(7, "sender_name", "must not be empty")
	assert.Equal(t, "invalid message: must not be empty (index 7, field sender_name)", err.Error())

	wrapped := Timeout("request timed out", context.DeadlineExceeded)
	assert.ErrorIs(t, wrapped, context.DeadlineExceeded)
}
