package transport

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/strategy"
)

// signatureFreshnessWindow bounds how old a signed webhook may be.
const signatureFreshnessWindow = 5 * time.Minute

// ErrStaleWebhook reports a webhook outside the freshness window.
var ErrStaleWebhook = errors.New("webhook timestamp outside freshness window")

// ErrBadSignature reports an HMAC mismatch.
var ErrBadSignature = errors.New("webhook signature mismatch")

// blockedEventTypes filters provider noise out of the relay before publish.
var blockedEventTypes = map[domain.ProviderType]map[string]struct{}{
	domain.ProviderZendesk: {
		"conversation:message:delivery:channel": {},
		"conversation:message:delivery:failure": {},
		"conversation:typing":                   {},
		"conversation:read":                     {},
	},
	domain.ProviderFront: {
		"message_autoreply": {},
		"conversation_seen": {},
	},
}

// BlockedEvent reports whether the provider event type is filtered.
func BlockedEvent(provider domain.ProviderType, eventType string) bool {
	_, ok := blockedEventTypes[provider][eventType]
	return ok
}

// VerifyWebhookSignature checks the hex HMAC-SHA256 of the raw body and a
// 5-minute freshness window on the signed timestamp.
func VerifyWebhookSignature(secret string, body []byte, signature string, signedAt, now time.Time) error {
	if now.Sub(signedAt) > signatureFreshnessWindow || signedAt.Sub(now) > signatureFreshnessWindow {
		return ErrStaleWebhook
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	decoded, err := hex.DecodeString(signature)
	if err != nil {
		return ErrBadSignature
	}
	expectedRaw, _ := hex.DecodeString(expected)
	if !hmac.Equal(decoded, expectedRaw) {
		return ErrBadSignature
	}
	return nil
}

// Relay fans provider webhook events out to per-conversation subscribers
// through Redis pub/sub. Publish and subscribe share one client pair held by
// the process-wide persistence layer; the relay never tears them down.
type Relay struct {
	client    *redis.Client
	logger    *zap.Logger
	keepAlive time.Duration
}

// NewRelay wraps the shared Redis client.
func NewRelay(client *redis.Client, keepAlive time.Duration, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	return &Relay{client: client, logger: logger, keepAlive: keepAlive}
}

// ChannelKey builds the keyed pub/sub channel for one webhook event.
func ChannelKey(provider domain.ProviderType, conversationID, webhookID, eventID string) string {
	return fmt.Sprintf("%s:%s:%s:%s", provider, conversationID, webhookID, eventID)
}

// channelPattern matches every event channel of one conversation.
func channelPattern(provider domain.ProviderType, conversationID string) string {
	return fmt.Sprintf("%s:%s:*", provider, conversationID)
}

// Publish republishes an accepted webhook event onto its keyed channel.
func (r *Relay) Publish(ctx context.Context, provider domain.ProviderType, conversationID, webhookID string, event strategy.RawEvent) error {
	if BlockedEvent(provider, event.Type) {
		return nil
	}
	encoded, err := json.Marshal(event)
	if err != nil {
		return err
	}
	channel := ChannelKey(provider, conversationID, webhookID, event.ID)
	return r.client.Publish(ctx, channel, encoded).Err()
}

// Subscribe streams events for one conversation until ctx is cancelled. The
// returned channel closes on cancellation. Keep-alive ticks are the SSE
// layer's concern; the relay only delivers events.
func (r *Relay) Subscribe(ctx context.Context, provider domain.ProviderType, conversationID string) (<-chan strategy.RawEvent, error) {
	pubsub := r.client.PSubscribe(ctx, channelPattern(provider, conversationID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan strategy.RawEvent)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event strategy.RawEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					r.logger.Warn("dropping malformed relay payload",
						zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// KeepAliveInterval is the idle period after which SSE writers should emit a
// comment frame.
func (r *Relay) KeepAliveInterval() time.Duration {
	return r.keepAlive
}
