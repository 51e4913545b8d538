package transport

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/strategy"
)

// Streams routes stream opening to the transport each provider supports:
// the Redis relay for push-based providers, the polling bridge for providers
// without a push mechanism.
type Streams struct {
	relay        *Relay
	pollInterval time.Duration
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewStreams builds the router.
func NewStreams(relay *Relay, pollInterval time.Duration, logger *zap.Logger) *Streams {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Streams{
		relay:        relay,
		pollInterval: pollInterval,
		httpClient:   &http.Client{Timeout: 45 * time.Second},
		logger:       logger,
	}
}

// OpenStream yields normalized raw provider events until ctx is cancelled.
func (s *Streams) OpenStream(ctx context.Context, strat strategy.Strategy, token, conversationID string) (<-chan strategy.RawEvent, error) {
	switch strat.Provider() {
	case domain.ProviderSalesforce, domain.ProviderSalesforceMessaging:
		base := strat.MessagesEndpoint(conversationID)
		if strat.Provider() == domain.ProviderSalesforce {
			// Live Agent reads from the System long-poll endpoint, not Chasitor.
			base = strings.Replace(base, "Chasitor/ChatMessage", "System/Messages", 1)
		}
		poll := MessagesPoller(s.httpClient, base, token)
		bridge := NewPollingBridge(poll, s.pollInterval, s.logger)
		out := make(chan strategy.RawEvent)
		go bridge.Run(ctx, out)
		return out, nil
	default:
		return s.relay.Subscribe(ctx, strat.Provider(), conversationID)
	}
}
