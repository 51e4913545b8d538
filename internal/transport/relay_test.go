package transport

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/handoff-service/internal/domain"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignatureAcceptsFreshValidSignature(t *testing.T) {
	body := []byte(`{"events":[]}`)
	now := time.Now()

	err := VerifyWebhookSignature("topsecret", body, sign("topsecret", body), now.Add(-time.Minute), now)
	require.NoError(t, err)
}

func TestVerifyWebhookSignatureRejectsStaleTimestamp(t *testing.T) {
	body := []byte(`{"events":[]}`)
	now := time.Now()

	err := VerifyWebhookSignature("topsecret", body, sign("topsecret", body), now.Add(-6*time.Minute), now)
	assert.ErrorIs(t, err, ErrStaleWebhook)

	// Clock skew into the future is bounded the same way.
	err = VerifyWebhookSignature("topsecret", body, sign("topsecret", body), now.Add(6*time.Minute), now)
	assert.ErrorIs(t, err, ErrStaleWebhook)
}

func TestVerifyWebhookSignatureRejectsMismatch(t *testing.T) {
	body := []byte(`{"events":[]}`)
	now := time.Now()

	err := VerifyWebhookSignature("topsecret", body, sign("wrongsecret", body), now, now)
	assert.ErrorIs(t, err, ErrBadSignature)

	err = VerifyWebhookSignature("topsecret", []byte("tampered"), sign("topsecret", body), now, now)
	assert.ErrorIs(t, err, ErrBadSignature)

	err = VerifyWebhookSignature("topsecret", body, "not-hex!", now, now)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestBlockedEventFiltersProviderNoise(t *testing.T) {
	assert.True(t, BlockedEvent(domain.ProviderZendesk, "conversation:message:delivery:channel"))
	assert.True(t, BlockedEvent(domain.ProviderZendesk, "conversation:typing"))
	assert.True(t, BlockedEvent(domain.ProviderFront, "message_autoreply"))

	assert.False(t, BlockedEvent(domain.ProviderZendesk, "conversation:message"))
	assert.False(t, BlockedEvent(domain.ProviderFront, "message"))
	assert.False(t, BlockedEvent(domain.ProviderSalesforce, "ChatMessage"))
}

func TestChannelKeyLayout(t *testing.T) {
	key := ChannelKey(domain.ProviderZendesk, "conv-1", "wh-9", "ev-3")
	assert.Equal(t, "zendesk:conv-1:wh-9:ev-3", key)

	pattern := channelPattern(domain.ProviderZendesk, "conv-1")
	assert.Equal(t, "zendesk:conv-1:*", pattern)
}
