package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/handoff"
	"github.com/spec-kit/handoff-service/internal/strategy"
)

// authTokenHeader carries the session bearer token on create responses.
const authTokenHeader = "X-Auth-Token"

// SessionClient performs the stateless REST lifecycle calls every provider
// implements: create-session, send-message, end-session. Payload shapes come
// from the Strategy layer; scheduling and retries live here.
type SessionClient struct {
	client  *http.Client
	limiter *Limiter
	retry   RetryPolicy
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewSessionClient builds the client. A nil limiter disables rate limiting.
func NewSessionClient(limiter *Limiter, retry RetryPolicy, logger *zap.Logger) *SessionClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: limiter,
		retry:   retry,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

type createConversationBody struct {
	User     any                        `json:"user"`
	Messages []strategy.ProviderMessage `json:"messages"`
	Metadata map[string]string          `json:"metadata,omitempty"`
}

type sendMessageBody struct {
	Text string `json:"text"`
}

// CreateConversation opens a provider conversation, forwarding formatted
// history. The bearer token is read from a dedicated response header.
func (c *SessionClient) CreateConversation(ctx context.Context, strat strategy.Strategy, req handoff.CreateConversationRequest) (*handoff.CreateConversationResult, error) {
	metadata := map[string]string{}
	if req.UserAgent != "" {
		metadata["user_agent"] = req.UserAgent
	}
	if req.ScreenResolution != "" {
		metadata["screen_resolution"] = req.ScreenResolution
	}
	if req.Language != "" {
		metadata["language"] = req.Language
	}

	resp, err := c.do(ctx, http.MethodPost, strat.ConversationsEndpoint(), "", createConversationBody{
		User:     req.User,
		Messages: req.History,
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		ID           string `json:"id"`
		Key          string `json:"key"`
		Conversation struct {
			ID string `json:"id"`
		} `json:"conversation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode create-conversation response: %w", err)
	}

	conversationID := payload.Conversation.ID
	if conversationID == "" {
		conversationID = payload.ID
	}
	if conversationID == "" {
		conversationID = payload.Key
	}
	if conversationID == "" {
		return nil, errors.New("provider returned no conversation identifier")
	}

	return &handoff.CreateConversationResult{
		ConversationID: conversationID,
		AuthToken:      resp.Header.Get(authTokenHeader),
	}, nil
}

// SendMessage posts a user message using the session bearer token.
func (c *SessionClient) SendMessage(ctx context.Context, strat strategy.Strategy, token, conversationID, text string) error {
	resp, err := c.do(ctx, http.MethodPost, strat.MessagesEndpoint(conversationID), token, sendMessageBody{Text: text})
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// EndConversation notifies the provider that the session is over.
func (c *SessionClient) EndConversation(ctx context.Context, strat strategy.Strategy, token, conversationID string) error {
	url := fmt.Sprintf("%s/%s", strat.ConversationsEndpoint(), conversationID)
	resp, err := c.do(ctx, http.MethodDelete, url, token, nil)
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// CheckAvailability probes the provider for live-agent availability.
func (c *SessionClient) CheckAvailability(ctx context.Context, strat strategy.Strategy) (bool, error) {
	url := strat.ConversationsEndpoint() + "/availability"
	resp, err := c.do(ctx, http.MethodGet, url, "", nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var payload struct {
		Available bool `json:"available"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false, fmt.Errorf("decode availability response: %w", err)
	}
	return payload.Available, nil
}

// do issues a request through the two-tier limiter with the retry policy.
// Retries apply to network errors and retryable statuses only.
func (c *SessionClient) do(ctx context.Context, method, url, token string, body any) (*http.Response, error) {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var reader io.Reader
		if encoded != nil {
			reader = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, err
		}
		if encoded != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if attempt == c.retry.MaxAttempts-1 {
				break
			}
			if waitErr := c.sleep(ctx, c.retry.Delay(attempt, "")); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		retryAfter := resp.Header.Get("Retry-After")
		drain(resp)
		lastErr = &StatusError{Status: resp.StatusCode, RetryAfter: retryAfter}
		if !c.retry.Retryable(resp.StatusCode) {
			return nil, lastErr
		}
		// No point sleeping once the budget is spent.
		if attempt == c.retry.MaxAttempts-1 {
			break
		}
		c.logger.Debug("retrying provider request",
			zap.String("url", url), zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt+1))
		if waitErr := c.sleep(ctx, c.retry.Delay(attempt, retryAfter)); waitErr != nil {
			return nil, waitErr
		}
	}
	return nil, lastErr
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	_ = resp.Body.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
