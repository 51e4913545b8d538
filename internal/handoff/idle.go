package handoff

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/handoff-service/internal/domain"
)

// IdleMonitor injects at most one simulated survey message after the user
// goes quiet. The timer resets on any new message or activity and is
// permanently disabled after firing.
type IdleMonitor struct {
	timeout    time.Duration
	surveyLink string
	inject     func(domain.ChatEvent)

	mu             sync.Mutex
	timer          *time.Timer
	fired          bool
	stopped        bool
	hasUserMessage bool
}

// NewIdleMonitor builds a monitor; the timer arms on the first recorded
// user message.
func NewIdleMonitor(timeout time.Duration, surveyLink string, inject func(domain.ChatEvent)) *IdleMonitor {
	return &IdleMonitor{
		timeout:    timeout,
		surveyLink: surveyLink,
		inject:     inject,
	}
}

// RecordUserMessage notes that the user has sent a message and resets the
// idle window.
func (m *IdleMonitor) RecordUserMessage() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasUserMessage = true
	m.resetLocked()
}

// RecordActivity resets the idle window without marking a user message.
func (m *IdleMonitor) RecordActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// Stop disables the monitor for the rest of the session.
func (m *IdleMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *IdleMonitor) resetLocked() {
	if m.fired || m.stopped || m.surveyLink == "" {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.timeout, m.fire)
}

func (m *IdleMonitor) fire() {
	m.mu.Lock()
	if m.fired || m.stopped || !m.hasUserMessage {
		m.mu.Unlock()
		return
	}
	m.fired = true
	m.timer = nil
	m.mu.Unlock()

	m.inject(domain.ChatEvent{
		ID:        uuid.NewString(),
		Kind:      domain.EventSimulatedMessage,
		Content:   m.surveyLink,
		Timestamp: time.Now().UnixMilli(),
	})
}
