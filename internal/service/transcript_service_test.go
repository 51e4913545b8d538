package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/events"
	"github.com/spec-kit/handoff-service/internal/repository"
)

func TestTranscriptServiceWithoutDatabaseIgnoresEvents(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewTranscriptService(TranscriptDependencies{
		SessionRepo:    repository.NewSessionRepository(nil),
		TranscriptRepo: repository.NewTranscriptRepository(nil),
		Dispatcher:     dispatcher,
	}, zap.NewNop())
	svc.RegisterHandlers()

	publish := func() {
		err := dispatcher.Publish(context.Background(), events.Event{
			Type:           events.EventTimelineAppended,
			OrgID:          "org-1",
			Provider:       domain.ProviderZendesk,
			ConversationID: "conv-1",
			Payload: events.TimelineAppendedPayload{
				SessionID: "sess-1",
				Entry: domain.ChatEvent{
					ID:        "evt-1",
					Kind:      domain.EventHandoffMessage,
					Author:    "AGENT",
					Content:   "hello",
					Timestamp: 1716984000000,
				},
			},
		})
		require.NoError(t, err)
	}
	require.NotPanics(t, publish)
}

func TestNilPoolRepositoriesAreNil(t *testing.T) {
	assert.Nil(t, repository.NewSessionRepository(nil))
	assert.Nil(t, repository.NewTranscriptRepository(nil))
}
