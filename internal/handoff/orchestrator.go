package handoff

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/events"
	"github.com/spec-kit/handoff-service/internal/strategy"
	apperrors "github.com/spec-kit/handoff-service/pkg/util"
)

// CreateConversationRequest carries everything a provider needs to open a
// live-agent conversation.
type CreateConversationRequest struct {
	User             domain.UserProfile
	History          []strategy.ProviderMessage
	UserAgent        string
	ScreenResolution string
	Language         string
}

// CreateConversationResult is the provider's answer to a create call. The
// bearer token arrives via a dedicated response header, not the body.
type CreateConversationResult struct {
	ConversationID string
	AuthToken      string
}

// SessionClient performs provider REST lifecycle calls.
type SessionClient interface {
	CreateConversation(ctx context.Context, strat strategy.Strategy, req CreateConversationRequest) (*CreateConversationResult, error)
	SendMessage(ctx context.Context, strat strategy.Strategy, token, conversationID, text string) error
	EndConversation(ctx context.Context, strat strategy.Strategy, token, conversationID string) error
	CheckAvailability(ctx context.Context, strat strategy.Strategy) (bool, error)
}

// StreamOpener opens the provider's real-time event stream. The returned
// channel closes when ctx is cancelled or the provider terminates the stream.
type StreamOpener interface {
	OpenStream(ctx context.Context, strat strategy.Strategy, token, conversationID string) (<-chan strategy.RawEvent, error)
}

// BotSource is the AI conversational backend, treated as a black box.
type BotSource interface {
	Stream(ctx context.Context, question string) (<-chan domain.ChatMessage, error)
}

// Orchestrator owns one handoff session per widget instance: status
// transitions, the bearer token, the merged timeline, and the single open
// stream with its cancellation scope.
type Orchestrator struct {
	cfg        domain.HandoffConfiguration
	orgID      string
	strat      strategy.Strategy
	sessions   SessionClient
	streams    StreamOpener
	dispatcher events.Dispatcher
	logger     *zap.Logger
	timeline   *Timeline
	idle       *IdleMonitor
	now        func() time.Time

	mu           sync.Mutex
	session      domain.HandoffSession
	sessionID    string
	history      []domain.ChatMessage
	cancelStream context.CancelFunc
	streamDone   chan struct{}
	subscribers  map[int]chan domain.ChatEvent
	nextSubID    int
}

// Deps bundles orchestrator dependencies.
type Deps struct {
	Config      domain.HandoffConfiguration
	OrgID       string
	Strategy    strategy.Strategy
	Sessions    SessionClient
	Streams     StreamOpener
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	IdleTimeout time.Duration
	Now         func() time.Time
}

// New constructs an orchestrator in NOT_INITIALIZED.
func New(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	o := &Orchestrator{
		cfg:         deps.Config,
		orgID:       deps.OrgID,
		strat:       deps.Strategy,
		sessions:    deps.Sessions,
		streams:     deps.Streams,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		timeline:    NewTimeline(),
		now:         deps.Now,
		session:     domain.HandoffSession{Status: domain.HandoffNotInitialized},
		subscribers: make(map[int]chan domain.ChatEvent),
	}
	if deps.IdleTimeout > 0 && deps.Config.SurveyLink != "" {
		o.idle = NewIdleMonitor(deps.IdleTimeout, deps.Config.SurveyLink, o.injectSimulated)
	}
	return o
}

// Status returns the current lifecycle state.
func (o *Orchestrator) Status() domain.HandoffStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.Status
}

// Session returns a copy of the live session.
func (o *Orchestrator) Session() domain.HandoffSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// SessionID returns the persisted session record id, empty before init.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// MergedTimeline returns the timestamp-sorted union of both sources.
func (o *Orchestrator) MergedTimeline() []domain.ChatEvent {
	return o.timeline.Merged()
}

// IngestBotMessage records an AI-conversation message. It feeds both the
// merged timeline and the history handed to the provider on init.
func (o *Orchestrator) IngestBotMessage(msg domain.ChatMessage) {
	if msg.Timestamp <= 0 {
		msg.Timestamp = o.now().UnixMilli()
	}
	o.mu.Lock()
	o.history = append(o.history, msg)
	o.mu.Unlock()

	kind := domain.EventBotMessage
	if msg.Author == domain.AuthorUser {
		kind = domain.EventUserMessage
	}
	entry := domain.ChatEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Author:    string(msg.Author),
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}
	o.timeline.AppendBot(entry)
	o.notify(entry)
	if o.idle != nil {
		if msg.Author == domain.AuthorUser {
			o.idle.RecordUserMessage()
		} else {
			o.idle.RecordActivity()
		}
	}
}

// InitializeHandoff creates the provider conversation and opens its event
// stream. Guards are local: without a resolvable strategy or usable user
// identity no network call is made.
func (o *Orchestrator) InitializeHandoff(ctx context.Context, user *domain.UserProfile) error {
	if o.strat == nil {
		return apperrors.NewConfigurationError("handoff is not configured for this tenant", nil)
	}
	if (user == nil || !user.IsAuthenticated) && !o.cfg.AllowAnonymousHandoff {
		return apperrors.NewUnauthorized("authenticated user data required for handoff")
	}

	o.mu.Lock()
	next, err := Transition(o.session.Status, EventInitRequested)
	if err != nil {
		o.mu.Unlock()
		return apperrors.NewConflict("handoff already in progress", nil)
	}
	o.session.Status = next
	history := make([]domain.ChatMessage, len(o.history))
	copy(history, o.history)
	o.mu.Unlock()

	// Re-entry after a previous session: the handoff channel starts clean,
	// the AI conversation persists.
	o.timeline.ResetHandoff()

	if o.cfg.EnableAvailabilityCheck {
		available, err := o.sessions.CheckAvailability(ctx, o.strat)
		if err != nil {
			o.logger.Warn("availability check failed", zap.Error(err))
		} else if !available {
			o.failInit("no agents available")
			return apperrors.NewAgentsUnavailable()
		}
	}

	profile := domain.UserProfile{}
	if user != nil {
		profile = *user
	}
	result, err := o.sessions.CreateConversation(ctx, o.strat, CreateConversationRequest{
		User:    profile,
		History: o.strat.FormatMessages(history, ""),
	})
	if err != nil {
		o.failInit(err.Error())
		return apperrors.NewProviderUnavailable("failed to create provider conversation", err)
	}

	o.mu.Lock()
	next, err = Transition(o.session.Status, EventInitSucceeded)
	if err != nil {
		// Session was torn down while the create call was in flight.
		o.mu.Unlock()
		go o.notifyEnd(result.AuthToken, result.ConversationID)
		return apperrors.NewConflict("handoff ended during initialization", nil)
	}
	o.session = domain.HandoffSession{
		Status:         next,
		AuthToken:      result.AuthToken,
		ConversationID: result.ConversationID,
	}
	o.sessionID = uuid.NewString()
	sessionID := o.sessionID
	o.mu.Unlock()

	o.openStream(result.AuthToken, result.ConversationID)
	if o.idle != nil {
		o.idle.RecordActivity()
	}

	o.publish(events.EventHandoffInitialized, result.ConversationID, events.HandoffInitializedPayload{
		SessionID:       sessionID,
		IsAuthenticated: profile.IsAuthenticated,
	})
	return nil
}

// AskHandoff sends a user message to the live agent. The local append is
// optimistic and is not rolled back when the provider call fails.
func (o *Orchestrator) AskHandoff(ctx context.Context, text string) error {
	o.mu.Lock()
	if o.session.Status != domain.HandoffInitialized {
		o.mu.Unlock()
		return apperrors.NewConflict("no active handoff session", nil)
	}
	token := o.session.AuthToken
	conversationID := o.session.ConversationID
	sessionID := o.sessionID
	o.mu.Unlock()

	entry := domain.ChatEvent{
		ID:        uuid.NewString(),
		Kind:      domain.EventUserMessage,
		Author:    string(domain.AuthorUser),
		Content:   text,
		Timestamp: o.now().UnixMilli(),
	}
	o.timeline.AppendHandoff(entry)
	o.notify(entry)
	if o.idle != nil {
		o.idle.RecordUserMessage()
	}
	o.publish(events.EventTimelineAppended, conversationID, events.TimelineAppendedPayload{SessionID: sessionID, Entry: entry})

	if err := o.sessions.SendMessage(ctx, o.strat, token, conversationID, text); err != nil {
		return apperrors.NewProviderUnavailable("failed to deliver message to agent", err)
	}
	return nil
}

// HandleEndHandoff tears the session down. Idempotent: repeat calls are
// no-ops. The stream is cancelled synchronously; the provider end-session
// notification is fire-and-forget.
func (o *Orchestrator) HandleEndHandoff() {
	o.endSession("user", true)
}

func (o *Orchestrator) endSession(initiator string, appendEnded bool) {
	o.mu.Lock()
	if o.session.Status == domain.HandoffNotInitialized {
		o.mu.Unlock()
		return
	}
	token := o.session.AuthToken
	conversationID := o.session.ConversationID
	sessionID := o.sessionID
	cancel := o.cancelStream
	o.cancelStream = nil
	next, _ := Transition(o.session.Status, EventEnded)
	o.session = domain.HandoffSession{Status: next}
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if o.idle != nil {
		o.idle.Stop()
	}

	if appendEnded {
		entry := domain.ChatEvent{
			ID:        uuid.NewString(),
			Kind:      domain.EventChatEnded,
			Timestamp: o.now().UnixMilli(),
		}
		o.timeline.AppendHandoff(entry)
		o.notify(entry)
		o.publish(events.EventTimelineAppended, conversationID, events.TimelineAppendedPayload{SessionID: sessionID, Entry: entry})
	}

	if token != "" && conversationID != "" {
		go o.notifyEnd(token, conversationID)
	}
	o.publish(events.EventHandoffEnded, conversationID, events.HandoffEndedPayload{SessionID: sessionID, Initiator: initiator})
}

func (o *Orchestrator) notifyEnd(token, conversationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.sessions.EndConversation(ctx, o.strat, token, conversationID); err != nil {
		o.logger.Warn("best-effort end-session notification failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
	}
}

func (o *Orchestrator) failInit(reason string) {
	o.mu.Lock()
	next, err := Transition(o.session.Status, EventInitFailed)
	if err == nil {
		o.session = domain.HandoffSession{Status: next}
	}
	conversationID := o.session.ConversationID
	o.mu.Unlock()
	o.publish(events.EventHandoffFailed, conversationID, events.HandoffFailedPayload{Reason: reason})
}

// openStream cancels any prior stream before opening a new one: at most one
// open stream per session.
func (o *Orchestrator) openStream(token, conversationID string) {
	o.mu.Lock()
	if o.cancelStream != nil {
		cancel := o.cancelStream
		done := o.streamDone
		o.mu.Unlock()
		cancel()
		if done != nil {
			<-done
		}
		o.mu.Lock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	o.cancelStream = cancel
	o.streamDone = done
	o.mu.Unlock()

	ch, err := o.streams.OpenStream(ctx, o.strat, token, conversationID)
	if err != nil {
		close(done)
		o.logger.Error("failed to open handoff stream",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return
	}
	go o.consume(ch, done)
}

// Reconnect reopens the event stream for an INITIALIZED session, e.g. after
// a dropped SSE connection. Safe against the prior stream: it is cancelled
// first.
func (o *Orchestrator) Reconnect() {
	o.mu.Lock()
	if o.session.Status != domain.HandoffInitialized {
		o.mu.Unlock()
		return
	}
	token := o.session.AuthToken
	conversationID := o.session.ConversationID
	o.mu.Unlock()
	o.openStream(token, conversationID)
}

func (o *Orchestrator) consume(ch <-chan strategy.RawEvent, done chan struct{}) {
	defer close(done)
	for raw := range ch {
		cls := o.strat.HandleChatEvent(raw)
		if cls.AgentName != "" {
			o.mu.Lock()
			joined := o.session.AgentName == ""
			o.session.AgentName = cls.AgentName
			conversationID := o.session.ConversationID
			o.mu.Unlock()
			if joined {
				o.publish(events.EventAgentJoined, conversationID, events.AgentJoinedPayload{AgentName: cls.AgentName})
			}
		}
		if cls.Event == nil {
			continue
		}
		if !cls.Event.HasTimestamp() {
			continue
		}

		o.mu.Lock()
		conversationID := o.session.ConversationID
		sessionID := o.sessionID
		o.mu.Unlock()

		o.timeline.AppendHandoff(*cls.Event)
		o.notify(*cls.Event)
		o.publish(events.EventTimelineAppended, conversationID, events.TimelineAppendedPayload{SessionID: sessionID, Entry: *cls.Event})
		if o.idle != nil {
			o.idle.RecordActivity()
		}

		if cls.Event.Kind == domain.EventChatEnded {
			// Terminal provider event; the event itself is the ChatEnded entry.
			go o.endSession("provider", false)
			return
		}
	}
}

func (o *Orchestrator) injectSimulated(event domain.ChatEvent) {
	o.mu.Lock()
	conversationID := o.session.ConversationID
	sessionID := o.sessionID
	o.mu.Unlock()
	o.timeline.AppendHandoff(event)
	o.notify(event)
	o.publish(events.EventTimelineAppended, conversationID, events.TimelineAppendedPayload{SessionID: sessionID, Entry: event})
}

// SubscribeTimeline registers a listener for appended timeline entries, used
// by the SSE egress. Slow listeners drop entries rather than block ingestion;
// a reconnecting client re-syncs from the timeline snapshot.
func (o *Orchestrator) SubscribeTimeline() (<-chan domain.ChatEvent, func()) {
	ch := make(chan domain.ChatEvent, 64)
	o.mu.Lock()
	id := o.nextSubID
	o.nextSubID++
	o.subscribers[id] = ch
	o.mu.Unlock()

	cancel := func() {
		o.mu.Lock()
		if existing, ok := o.subscribers[id]; ok {
			delete(o.subscribers, id)
			close(existing)
		}
		o.mu.Unlock()
	}
	return ch, cancel
}

func (o *Orchestrator) notify(event domain.ChatEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, ch := range o.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (o *Orchestrator) publish(eventType events.EventType, conversationID string, payload interface{}) {
	if o.dispatcher == nil {
		return
	}
	provider := domain.ProviderType("")
	if o.strat != nil {
		provider = o.strat.Provider()
	}
	_ = o.dispatcher.Publish(context.Background(), events.Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		OrgID:          o.orgID,
		Provider:       provider,
		ConversationID: conversationID,
		Timestamp:      o.now(),
		Payload:        payload,
	})
}
