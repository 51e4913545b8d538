package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/handoff-service/internal/domain"
)

func zendeskUnderTest() Strategy {
	cfg := validConfig(domain.ProviderZendesk)
	cfg.AppID = "app-42"
	return New("zendesk", cfg)
}

func TestZendeskNormalizesSecondsToMillis(t *testing.T) {
	strat := zendeskUnderTest()

	cls := strat.HandleChatEvent(RawEvent{
		Type: "conversation:message",
		ID:   "e1",
		Payload: []byte(`{"message":{"id":"m1","received":1717000000.5,
			"content":{"type":"text","text":"hello"},
			"author":{"type":"business","displayName":"Dana"}}}`),
	})

	require.NotNil(t, cls.Event)
	assert.Equal(t, int64(1717000000500), cls.Event.Timestamp)
	assert.Equal(t, domain.EventHandoffMessage, cls.Event.Kind)
	assert.Equal(t, "hello", cls.Event.Content)
	assert.Equal(t, "Dana", cls.AgentName)
}

func TestZendeskDropsUserEcho(t *testing.T) {
	strat := zendeskUnderTest()

	cls := strat.HandleChatEvent(RawEvent{
		Type: "conversation:message",
		ID:   "e1",
		Payload: []byte(`{"message":{"id":"m1","received":1717000000,
			"content":{"type":"text","text":"my own message"},
			"author":{"type":"user"}}}`),
	})

	assert.Nil(t, cls.Event)
	assert.Empty(t, cls.AgentName)
}

func TestZendeskDropsUndatedMessage(t *testing.T) {
	strat := zendeskUnderTest()

	cls := strat.HandleChatEvent(RawEvent{
		Type: "conversation:message",
		ID:   "e1",
		Payload: []byte(`{"message":{"id":"m1",
			"content":{"type":"text","text":"hi"},
			"author":{"type":"business"}}}`),
	})

	assert.Nil(t, cls.Event)
}

func TestZendeskConversationEnded(t *testing.T) {
	strat := zendeskUnderTest()

	cls := strat.HandleChatEvent(RawEvent{
		Type:    "conversation:ended",
		ID:      "e9",
		Payload: []byte(`{"message":{"received":1717000001}}`),
	})

	require.NotNil(t, cls.Event)
	assert.Equal(t, domain.EventChatEnded, cls.Event.Kind)
	assert.Equal(t, "e9", cls.Event.ID)
	assert.Equal(t, int64(1717000001000), cls.Event.Timestamp)
}

func TestZendeskUndatedConversationEndedStillEnds(t *testing.T) {
	strat := zendeskUnderTest()
	before := time.Now().UnixMilli()

	cls := strat.HandleChatEvent(RawEvent{
		Type:    "conversation:ended",
		ID:      "e10",
		Payload: []byte(`{"message":{}}`),
	})

	require.NotNil(t, cls.Event)
	assert.Equal(t, domain.EventChatEnded, cls.Event.Kind)
	assert.True(t, cls.Event.HasTimestamp())
	assert.GreaterOrEqual(t, cls.Event.Timestamp, before)
}

func TestZendeskFormatMessagesMapsAuthors(t *testing.T) {
	strat := zendeskUnderTest()

	out := strat.FormatMessages([]domain.ChatMessage{
		{Author: domain.AuthorUser, Content: "q"},
		{Author: domain.AuthorBot, Content: "a"},
	}, "conv-1")

	require.Len(t, out, 2)
	first, ok := out[0].(zendeskMessage)
	require.True(t, ok)
	assert.Equal(t, "user", first.Author.Type)
	second := out[1].(zendeskMessage)
	assert.Equal(t, "business", second.Author.Type)
	assert.Equal(t, "a", second.Content.Text)
}

func TestZendeskEndpoints(t *testing.T) {
	strat := zendeskUnderTest()
	assert.Equal(t, "https://api.smooch.io/v2/apps/app-42/conversations", strat.ConversationsEndpoint())
	assert.Equal(t, "https://api.smooch.io/v2/apps/app-42/conversations/c1/messages", strat.MessagesEndpoint("c1"))
}
