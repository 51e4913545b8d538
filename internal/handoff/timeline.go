package handoff

import (
	"sort"
	"sync"

	"github.com/spec-kit/handoff-service/internal/domain"
)

// Timeline holds the two independent message sources of a widget instance:
// the AI conversation and the handoff channel. The merged view is recomputed
// on read; arrays only grow and the handoff side is reset wholesale when a
// new session starts.
type Timeline struct {
	mu      sync.Mutex
	bot     []domain.ChatEvent
	handoff []domain.ChatEvent
}

// NewTimeline returns an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{}
}

// AppendBot records an AI-conversation entry.
func (t *Timeline) AppendBot(event domain.ChatEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bot = append(t.bot, event)
}

// AppendHandoff records a handoff-channel entry in arrival order.
func (t *Timeline) AppendHandoff(event domain.ChatEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handoff = append(t.handoff, event)
}

// ResetHandoff clears the handoff channel, keeping the AI conversation.
func (t *Timeline) ResetHandoff() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handoff = nil
}

// HandoffLen reports how many handoff events have been recorded.
func (t *Timeline) HandoffLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handoff)
}

// Merged returns both sources merged into one timestamp-ascending view.
func (t *Timeline) Merged() []domain.ChatEvent {
	t.mu.Lock()
	combined := make([]domain.ChatEvent, 0, len(t.bot)+len(t.handoff))
	combined = append(combined, t.bot...)
	combined = append(combined, t.handoff...)
	t.mu.Unlock()
	return Merge(combined)
}

// Merge drops events without a timestamp and sorts the rest ascending. Equal
// timestamps keep their relative order so within-source ordering survives.
func Merge(events []domain.ChatEvent) []domain.ChatEvent {
	merged := make([]domain.ChatEvent, 0, len(events))
	for _, event := range events {
		if event.HasTimestamp() {
			merged = append(merged, event)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
