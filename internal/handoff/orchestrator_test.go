package handoff

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/strategy"
	apperrors "github.com/spec-kit/handoff-service/pkg/util"
)

type fakeStrategy struct{}

func (fakeStrategy) Provider() domain.ProviderType { return domain.ProviderZendesk }

func (fakeStrategy) FormatMessages(messages []domain.ChatMessage, conversationID string) []strategy.ProviderMessage {
	out := make([]strategy.ProviderMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, msg)
	}
	return out
}

// HandleChatEvent treats RawEvent.Type as a directive so tests can script the
// provider stream without real payloads.
func (fakeStrategy) HandleChatEvent(raw strategy.RawEvent) strategy.Classification {
	switch raw.Type {
	case "agent-message":
		return strategy.Classification{
			AgentName: "Robin",
			Event: &domain.ChatEvent{
				ID:        raw.ID,
				Kind:      domain.EventHandoffMessage,
				AgentName: "Robin",
				Content:   "from agent",
				Timestamp: time.Now().UnixMilli(),
			},
		}
	case "blank-agent-message":
		return strategy.Classification{
			Event: &domain.ChatEvent{
				ID:        raw.ID,
				Kind:      domain.EventHandoffMessage,
				Content:   "from agent",
				Timestamp: time.Now().UnixMilli(),
			},
		}
	case "undated":
		return strategy.Classification{Event: &domain.ChatEvent{ID: raw.ID, Kind: domain.EventHandoffMessage}}
	case "ended":
		return strategy.Classification{Event: &domain.ChatEvent{
			ID:        raw.ID,
			Kind:      domain.EventChatEnded,
			Timestamp: time.Now().UnixMilli(),
		}}
	default:
		return strategy.Classification{}
	}
}

func (fakeStrategy) MessagesEndpoint(conversationID string) string { return "http://example/messages" }
func (fakeStrategy) ConversationsEndpoint() string                 { return "http://example/conversations" }

type fakeSessionClient struct {
	mu           sync.Mutex
	createErr    error
	sendErr      error
	available    bool
	availErr     error
	createCalls  int
	sendCalls    int
	endCalls     int
	lastHistory  []strategy.ProviderMessage
	lastSendText string
}

func newFakeSessionClient() *fakeSessionClient {
	return &fakeSessionClient{available: true}
}

func (f *fakeSessionClient) CreateConversation(ctx context.Context, strat strategy.Strategy, req CreateConversationRequest) (*CreateConversationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastHistory = req.History
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &CreateConversationResult{ConversationID: "conv-1", AuthToken: "tok-1"}, nil
}

func (f *fakeSessionClient) SendMessage(ctx context.Context, strat strategy.Strategy, token, conversationID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	f.lastSendText = text
	return f.sendErr
}

func (f *fakeSessionClient) EndConversation(ctx context.Context, strat strategy.Strategy, token, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endCalls++
	return nil
}

func (f *fakeSessionClient) CheckAvailability(ctx context.Context, strat strategy.Strategy) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available, f.availErr
}

func (f *fakeSessionClient) counts() (create, send, end int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls, f.sendCalls, f.endCalls
}

type fakeStreamOpener struct {
	mu     sync.Mutex
	opens  int
	events chan strategy.RawEvent
	ctxs   []context.Context
}

func newFakeStreamOpener() *fakeStreamOpener {
	return &fakeStreamOpener{events: make(chan strategy.RawEvent, 16)}
}

func (f *fakeStreamOpener) OpenStream(ctx context.Context, strat strategy.Strategy, token, conversationID string) (<-chan strategy.RawEvent, error) {
	f.mu.Lock()
	f.opens++
	f.ctxs = append(f.ctxs, ctx)
	source := f.events
	f.mu.Unlock()

	out := make(chan strategy.RawEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-source:
				if !ok {
					return
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

func (f *fakeStreamOpener) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func (f *fakeStreamOpener) firstCtx() context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ctxs) == 0 {
		return nil
	}
	return f.ctxs[0]
}

func authedUser() *domain.UserProfile {
	return &domain.UserProfile{ID: "u1", IsAuthenticated: true}
}

func newTestOrchestrator(client *fakeSessionClient, opener *fakeStreamOpener, cfg domain.HandoffConfiguration) *Orchestrator {
	return New(Deps{
		Config:   cfg,
		OrgID:    "org-1",
		Strategy: fakeStrategy{},
		Sessions: client,
		Streams:  opener,
		Logger:   zap.NewNop(),
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestInitializeHandoffSuccess(t *testing.T) {
	client := newFakeSessionClient()
	opener := newFakeStreamOpener()
	o := newTestOrchestrator(client, opener, domain.HandoffConfiguration{})

	o.IngestBotMessage(domain.ChatMessage{Author: domain.AuthorUser, Content: "help", Timestamp: 100})
	o.IngestBotMessage(domain.ChatMessage{Author: domain.AuthorBot, Content: "escalating", Timestamp: 200})

	require.NoError(t, o.InitializeHandoff(context.Background(), authedUser()))

	session := o.Session()
	assert.Equal(t, domain.HandoffInitialized, session.Status)
	assert.Equal(t, "conv-1", session.ConversationID)
	assert.Equal(t, "tok-1", session.AuthToken)
	assert.NotEmpty(t, o.SessionID())
	assert.Len(t, client.lastHistory, 2)
	waitFor(t, func() bool { return opener.openCount() == 1 })
}

func TestInitializeHandoffRequiresIdentity(t *testing.T) {
	client := newFakeSessionClient()
	o := newTestOrchestrator(client, newFakeStreamOpener(), domain.HandoffConfiguration{})

	err := o.InitializeHandoff(context.Background(), nil)
	require.Error(t, err)

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "UNAUTHORIZED", domainErr.Code)

	creates, _, _ := client.counts()
	assert.Zero(t, creates, "no network call without usable identity")
	assert.Equal(t, domain.HandoffNotInitialized, o.Status())
}

func TestInitializeHandoffAllowsAnonymousWhenConfigured(t *testing.T) {
	client := newFakeSessionClient()
	o := newTestOrchestrator(client, newFakeStreamOpener(), domain.HandoffConfiguration{AllowAnonymousHandoff: true})

	require.NoError(t, o.InitializeHandoff(context.Background(), nil))
	assert.Equal(t, domain.HandoffInitialized, o.Status())
}

func TestInitializeHandoffFailureTransitionsToFailed(t *testing.T) {
	client := newFakeSessionClient()
	client.createErr = errors.New("status 500")
	opener := newFakeStreamOpener()
	o := newTestOrchestrator(client, opener, domain.HandoffConfiguration{})

	err := o.InitializeHandoff(context.Background(), authedUser())
	require.Error(t, err)

	assert.Equal(t, domain.HandoffFailed, o.Status())
	assert.Empty(t, o.Session().AuthToken)
	assert.Zero(t, opener.openCount())

	// FAILED allows a fresh attempt.
	client.mu.Lock()
	client.createErr = nil
	client.mu.Unlock()
	require.NoError(t, o.InitializeHandoff(context.Background(), authedUser()))
	assert.Equal(t, domain.HandoffInitialized, o.Status())
}

func TestInitializeHandoffRejectsConcurrentAttempt(t *testing.T) {
	client := newFakeSessionClient()
	o := newTestOrchestrator(client, newFakeStreamOpener(), domain.HandoffConfiguration{})

	require.NoError(t, o.InitializeHandoff(context.Background(), authedUser()))

	err := o.InitializeHandoff(context.Background(), authedUser())
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "CONFLICT", domainErr.Code)
}

func TestInitializeHandoffAvailabilityGate(t *testing.T) {
	client := newFakeSessionClient()
	client.available = false
	o := newTestOrchestrator(client, newFakeStreamOpener(), domain.HandoffConfiguration{EnableAvailabilityCheck: true})

	err := o.InitializeHandoff(context.Background(), authedUser())
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "AGENTS_UNAVAILABLE", domainErr.Code)

	creates, _, _ := client.counts()
	assert.Zero(t, creates)
	assert.Equal(t, domain.HandoffFailed, o.Status())
}

func TestAskHandoffRequiresActiveSession(t *testing.T) {
	o := newTestOrchestrator(newFakeSessionClient(), newFakeStreamOpener(), domain.HandoffConfiguration{})

	err := o.AskHandoff(context.Background(), "hello?")
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "CONFLICT", domainErr.Code)
}

func TestAskHandoffKeepsOptimisticAppendOnSendFailure(t *testing.T) {
	client := newFakeSessionClient()
	o := newTestOrchestrator(client, newFakeStreamOpener(), domain.HandoffConfiguration{})
	require.NoError(t, o.InitializeHandoff(context.Background(), authedUser()))

	client.mu.Lock()
	client.sendErr = errors.New("status 502")
	client.mu.Unlock()

	err := o.AskHandoff(context.Background(), "did you get this")
	require.Error(t, err)

	merged := o.MergedTimeline()
	require.Len(t, merged, 1)
	assert.Equal(t, domain.EventUserMessage, merged[0].Kind)
	assert.Equal(t, "did you get this", merged[0].Content)
}

func TestHandleEndHandoffIsIdempotent(t *testing.T) {
	client := newFakeSessionClient()
	o := newTestOrchestrator(client, newFakeStreamOpener(), domain.HandoffConfiguration{})
	require.NoError(t, o.InitializeHandoff(context.Background(), authedUser()))

	o.HandleEndHandoff()
	o.HandleEndHandoff()
	o.HandleEndHandoff()

	assert.Equal(t, domain.HandoffNotInitialized, o.Status())

	endedCount := 0
	for _, event := range o.MergedTimeline() {
		if event.Kind == domain.EventChatEnded {
			endedCount++
		}
	}
	assert.Equal(t, 1, endedCount)

	waitFor(t, func() bool {
		_, _, ends := client.counts()
		return ends == 1
	})
}

func TestReentryClearsPreviousHandoffEntries(t *testing.T) {
	client := newFakeSessionClient()
	o := newTestOrchestrator(client, newFakeStreamOpener(), domain.HandoffConfiguration{})

	o.IngestBotMessage(domain.ChatMessage{Author: domain.AuthorUser, Content: "first question", Timestamp: 100})
	require.NoError(t, o.InitializeHandoff(context.Background(), authedUser()))
	require.NoError(t, o.AskHandoff(context.Background(), "old session message"))
	o.HandleEndHandoff()

	require.NoError(t, o.InitializeHandoff(context.Background(), authedUser()))

	for _, event := range o.MergedTimeline() {
		assert.NotEqual(t, "old session message", event.Content)
		assert.NotEqual(t, domain.EventChatEnded, event.Kind)
	}
	// The AI conversation survives re-entry.
	require.Len(t, o.MergedTimeline(), 1)
	assert.Equal(t, "first question", o.MergedTimeline()[0].Content)
}

func TestConsumeLearnsAgentNameOnce(t *testing.T) {
	client := newFakeSessionClient()
	opener := newFakeStreamOpener()
	o := newTestOrchestrator(client, opener, domain.HandoffConfiguration{})
	require.NoError(t, o.InitializeHandoff(context.Background(), authedUser()))

	opener.events <- strategy.RawEvent{Type: "agent-message", ID: "m1"}
	waitFor(t, func() bool { return o.Session().AgentName == "Robin" })

	// A later event with no agent name must not clear the learned name.
	opener.events <- strategy.RawEvent{Type: "blank-agent-message", ID: "m2"}
	waitFor(t, func() bool { return len(o.MergedTimeline()) == 2 })
	assert.Equal(t, "Robin", o.Session().AgentName)
}

func TestConsumeDropsUndatedProviderEvents(t *testing.T) {
	client := newFakeSessionClient()
	opener := newFakeStreamOpener()
	o := newTestOrchestrator(client, opener, domain.HandoffConfiguration{})
	require.NoError(t, o.InitializeHandoff(context.Background(), authedUser()))

	opener.events <- strategy.RawEvent{Type: "undated", ID: "m1"}
	opener.events <- strategy.RawEvent{Type: "agent-message", ID: "m2"}

	waitFor(t, func() bool { return len(o.MergedTimeline()) == 1 })
	assert.Equal(t, "m2", o.MergedTimeline()[0].ID)
}

func TestProviderEndedTearsDownSession(t *testing.T) {
	client := newFakeSessionClient()
	opener := newFakeStreamOpener()
	o := newTestOrchestrator(client, opener, domain.HandoffConfiguration{})
	require.NoError(t, o.InitializeHandoff(context.Background(), authedUser()))

	opener.events <- strategy.RawEvent{Type: "ended", ID: "m9"}

	waitFor(t, func() bool { return o.Status() == domain.HandoffNotInitialized })

	// The provider event itself is the single CHAT_ENDED entry.
	endedCount := 0
	for _, event := range o.MergedTimeline() {
		if event.Kind == domain.EventChatEnded {
			endedCount++
		}
	}
	assert.Equal(t, 1, endedCount)
}

func TestReconnectReplacesOpenStream(t *testing.T) {
	client := newFakeSessionClient()
	opener := newFakeStreamOpener()
	o := newTestOrchestrator(client, opener, domain.HandoffConfiguration{})
	require.NoError(t, o.InitializeHandoff(context.Background(), authedUser()))
	waitFor(t, func() bool { return opener.openCount() == 1 })

	o.Reconnect()

	waitFor(t, func() bool { return opener.openCount() == 2 })
	first := opener.firstCtx()
	require.NotNil(t, first)
	assert.Error(t, first.Err(), "prior stream must be cancelled")
	assert.Equal(t, domain.HandoffInitialized, o.Status())
}

func TestReconnectIgnoredWithoutActiveSession(t *testing.T) {
	opener := newFakeStreamOpener()
	o := newTestOrchestrator(newFakeSessionClient(), opener, domain.HandoffConfiguration{})

	o.Reconnect()
	assert.Zero(t, opener.openCount())
}

func TestSubscribeTimelineReceivesAppends(t *testing.T) {
	client := newFakeSessionClient()
	o := newTestOrchestrator(client, newFakeStreamOpener(), domain.HandoffConfiguration{})
	require.NoError(t, o.InitializeHandoff(context.Background(), authedUser()))

	ch, cancel := o.SubscribeTimeline()
	defer cancel()

	require.NoError(t, o.AskHandoff(context.Background(), "ping"))

	select {
	case event := <-ch:
		assert.Equal(t, domain.EventUserMessage, event.Kind)
		assert.Equal(t, "ping", event.Content)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the appended entry")
	}

	cancel()
	_, open := <-ch
	assert.False(t, open, "cancel closes the subscription channel")
}
