package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/strategy"
)

// PollResult is one batch from a provider's "messages since offset" endpoint.
type PollResult struct {
	Events     []strategy.RawEvent
	NextOffset int
}

// PollFunc fetches the next batch. A *StatusError with Status 403 means the
// provider revoked the session.
type PollFunc func(ctx context.Context, offset int) (*PollResult, error)

// PollingBridge turns a request/response poll loop into an event stream for
// providers with no push mechanism. A 403 while the caller has already
// aborted is a normal closure; a 403 without an abort is an unexpected
// termination and is logged. Either way the stream closes gracefully.
type PollingBridge struct {
	poll     PollFunc
	interval time.Duration
	logger   *zap.Logger
}

// NewPollingBridge builds the bridge.
func NewPollingBridge(poll PollFunc, interval time.Duration, logger *zap.Logger) *PollingBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &PollingBridge{poll: poll, interval: interval, logger: logger}
}

// Run polls until ctx is cancelled or the provider terminates the session,
// forwarding each batch to out. It closes out before returning.
func (b *PollingBridge) Run(ctx context.Context, out chan<- strategy.RawEvent) {
	defer close(out)

	offset := 0
	for {
		result, err := b.poll(ctx, offset)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && statusErr.Status == http.StatusForbidden {
				if ctx.Err() == nil {
					b.logger.Error("polling session revoked by provider", zap.Error(err))
				}
				return
			}
			if ctx.Err() != nil {
				return
			}
			b.logger.Warn("poll iteration failed", zap.Error(err))
		} else {
			offset = result.NextOffset
			for _, event := range result.Events {
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(b.interval):
		}
	}
}

// MessagesPoller builds a PollFunc against a Salesforce-style long-poll
// messages endpoint, authenticated with the session bearer token.
func MessagesPoller(client *http.Client, baseURL, token string) PollFunc {
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}
	return func(ctx context.Context, offset int) (*PollResult, error) {
		url := fmt.Sprintf("%s?ack=%d", baseURL, offset)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNoContent {
			return &PollResult{NextOffset: offset}, nil
		}
		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
			return nil, &StatusError{Status: resp.StatusCode}
		}

		var payload struct {
			Messages []struct {
				Type    string          `json:"type"`
				ID      string          `json:"id"`
				Message json.RawMessage `json:"message"`
			} `json:"messages"`
			Sequence int `json:"sequence"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("decode poll response: %w", err)
		}

		events := make([]strategy.RawEvent, 0, len(payload.Messages))
		for _, msg := range payload.Messages {
			wrapped, err := json.Marshal(map[string]json.RawMessage{"message": msg.Message})
			if err != nil {
				continue
			}
			events = append(events, strategy.RawEvent{Type: msg.Type, ID: msg.ID, Payload: wrapped})
		}
		next := payload.Sequence
		if next == 0 {
			next = offset
		}
		return &PollResult{Events: events, NextOffset: next}, nil
	}
}
