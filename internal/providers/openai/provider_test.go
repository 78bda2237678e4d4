package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chatcrm/crm-backend/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderValidation(t *testing.T) {
	_, err := NewProvider(Config{Model: "gpt-4o-mini"})
	assert.Error(t, err)

	_, err = NewProvider(Config{APIKey: "k"})
	assert.Error(t, err)
}

func TestComplete(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"  - one\n- two  "},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	p, err := NewProvider(Config{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "gpt-4o-mini", p.Model())

	text, err := p.Complete(context.Background(), providers.CompletionRequest{
		System:    "be brief",
		Prompt:    "summarize",
		MaxTokens: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "- one\n- two", text)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.EqualValues(t, 100, body["max_tokens"])
	messages := body["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
	assert.Equal(t, "summarize", messages[1].(map[string]interface{})["content"])
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","choices":[]}`)
	}))
	defer srv.Close()

	p, err := NewProvider(Config{APIKey: "k", Model: "gpt-4o-mini", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), providers.CompletionRequest{Prompt: "x"})
	assert.ErrorIs(t, err, providers.ErrEmptyResponse)
}

func TestCompleteRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	p, err := NewProvider(Config{APIKey: "k", Model: "gpt-4o-mini", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), providers.CompletionRequest{Prompt: "x"})
	assert.Error(t, err)
}
