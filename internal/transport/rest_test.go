package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/handoff"
	"github.com/spec-kit/handoff-service/internal/strategy"
)

// stubStrategy points both endpoints at a test server.
type stubStrategy struct {
	base string
}

func (s stubStrategy) Provider() domain.ProviderType { return domain.ProviderZendesk }

func (s stubStrategy) FormatMessages(messages []domain.ChatMessage, conversationID string) []strategy.ProviderMessage {
	return nil
}

func (s stubStrategy) HandleChatEvent(raw strategy.RawEvent) strategy.Classification {
	return strategy.Classification{}
}

func (s stubStrategy) MessagesEndpoint(conversationID string) string {
	return s.base + "/conversations/" + conversationID + "/messages"
}

func (s stubStrategy) ConversationsEndpoint() string {
	return s.base + "/conversations"
}

func fastRetryClient() *SessionClient {
	policy := DefaultRetryPolicy()
	policy.Backoff = nil
	return NewSessionClient(nil, policy, zap.NewNop())
}

func TestCreateConversationReadsHeaderToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/conversations", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Contains(t, body, "messages")

		w.Header().Set("X-Auth-Token", "bearer-123")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"conversation":{"id":"conv-77"}}`))
	}))
	defer server.Close()

	client := fastRetryClient()
	result, err := client.CreateConversation(context.Background(), stubStrategy{base: server.URL}, handoff.CreateConversationRequest{})

	require.NoError(t, err)
	assert.Equal(t, "conv-77", result.ConversationID)
	assert.Equal(t, "bearer-123", result.AuthToken)
}

func TestCreateConversationIDFallbacks(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"top-level id", `{"id":"conv-a"}`, "conv-a"},
		{"salesforce key", `{"key":"conv-b"}`, "conv-b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			result, err := fastRetryClient().CreateConversation(context.Background(), stubStrategy{base: server.URL}, handoff.CreateConversationRequest{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.ConversationID)
		})
	}
}

func TestCreateConversationRejectsMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := fastRetryClient().CreateConversation(context.Background(), stubStrategy{base: server.URL}, handoff.CreateConversationRequest{})
	require.Error(t, err)
}

func TestDoRetriesRetryableStatuses(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"conv-1"}`))
	}))
	defer server.Close()

	result, err := fastRetryClient().CreateConversation(context.Background(), stubStrategy{base: server.URL}, handoff.CreateConversationRequest{})
	require.NoError(t, err)
	assert.Equal(t, "conv-1", result.ConversationID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := fastRetryClient().CreateConversation(context.Background(), stubStrategy{base: server.URL}, handoff.CreateConversationRequest{})
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Status)
	assert.Equal(t, int32(5), calls.Load())
}

func TestDoSkipsSleepOnFinalAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := fastRetryClient()
	var sleeps atomic.Int32
	client.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps.Add(1)
		return nil
	}

	_, err := client.CreateConversation(context.Background(), stubStrategy{base: server.URL}, handoff.CreateConversationRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(client.retry.MaxAttempts-1), sleeps.Load())
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := fastRetryClient().CreateConversation(context.Background(), stubStrategy{base: server.URL}, handoff.CreateConversationRequest{})
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendMessageCarriesBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "/conversations/conv-1/messages", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello agent", body["text"])
	}))
	defer server.Close()

	err := fastRetryClient().SendMessage(context.Background(), stubStrategy{base: server.URL}, "tok-1", "conv-1", "hello agent")
	require.NoError(t, err)
}

func TestEndConversationUsesDelete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/conversations/conv-1", r.URL.Path)
	}))
	defer server.Close()

	err := fastRetryClient().EndConversation(context.Background(), stubStrategy{base: server.URL}, "tok-1", "conv-1")
	require.NoError(t, err)
}

func TestCheckAvailability(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/conversations/availability", r.URL.Path)
		_, _ = w.Write([]byte(`{"available":true}`))
	}))
	defer server.Close()

	available, err := fastRetryClient().CheckAvailability(context.Background(), stubStrategy{base: server.URL})
	require.NoError(t, err)
	assert.True(t, available)
}
