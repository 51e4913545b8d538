package transport

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/handoff-service/internal/strategy"
)

func collect(t *testing.T, out <-chan strategy.RawEvent, want int) []strategy.RawEvent {
	t.Helper()
	events := make([]strategy.RawEvent, 0, want)
	timeout := time.After(2 * time.Second)
	for len(events) < want {
		select {
		case event, ok := <-out:
			if !ok {
				return events
			}
			events = append(events, event)
		case <-timeout:
			t.Fatalf("received %d of %d events", len(events), want)
		}
	}
	return events
}

func TestPollingBridgeForwardsBatches(t *testing.T) {
	var calls atomic.Int32
	poll := func(ctx context.Context, offset int) (*PollResult, error) {
		switch calls.Add(1) {
		case 1:
			assert.Equal(t, 0, offset)
			return &PollResult{
				Events:     []strategy.RawEvent{{Type: "ChatMessage", ID: "m1"}},
				NextOffset: 3,
			}, nil
		case 2:
			assert.Equal(t, 3, offset)
			return &PollResult{
				Events:     []strategy.RawEvent{{Type: "ChatMessage", ID: "m2"}},
				NextOffset: 5,
			}, nil
		default:
			return &PollResult{NextOffset: 5}, nil
		}
	}

	bridge := NewPollingBridge(poll, time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan strategy.RawEvent)
	go bridge.Run(ctx, out)

	events := collect(t, out, 2)
	assert.Equal(t, "m1", events[0].ID)
	assert.Equal(t, "m2", events[1].ID)
}

func TestPollingBridgeSilentOn403AfterAbort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	poll := func(ctx context.Context, offset int) (*PollResult, error) {
		cancel()
		return nil, &StatusError{Status: http.StatusForbidden}
	}

	core, logs := observer.New(zap.WarnLevel)
	bridge := NewPollingBridge(poll, time.Millisecond, zap.New(core))

	out := make(chan strategy.RawEvent)
	done := make(chan struct{})
	go func() {
		bridge.Run(ctx, out)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop")
	}
	assert.Zero(t, logs.Len(), "aborted 403 is a normal closure")
}

func TestPollingBridgeLogsUnexpected403(t *testing.T) {
	poll := func(ctx context.Context, offset int) (*PollResult, error) {
		return nil, &StatusError{Status: http.StatusForbidden}
	}

	core, logs := observer.New(zap.ErrorLevel)
	bridge := NewPollingBridge(poll, time.Millisecond, zap.New(core))

	out := make(chan strategy.RawEvent)
	done := make(chan struct{})
	go func() {
		bridge.Run(context.Background(), out)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop")
	}
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "revoked")
}

func TestPollingBridgeRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	poll := func(ctx context.Context, offset int) (*PollResult, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("connection reset")
		}
		return &PollResult{
			Events:     []strategy.RawEvent{{Type: "ChatMessage", ID: "m1"}},
			NextOffset: 1,
		}, nil
	}

	bridge := NewPollingBridge(poll, time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan strategy.RawEvent)
	go bridge.Run(ctx, out)

	events := collect(t, out, 1)
	assert.Equal(t, "m1", events[0].ID)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestPollingBridgeClosesOutputOnCancel(t *testing.T) {
	poll := func(ctx context.Context, offset int) (*PollResult, error) {
		return &PollResult{NextOffset: offset}, nil
	}

	bridge := NewPollingBridge(poll, time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	out := make(chan strategy.RawEvent)
	done := make(chan struct{})
	go func() {
		bridge.Run(ctx, out)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop on cancel")
	}
	_, open := <-out
	assert.False(t, open, "output channel must close")
}
