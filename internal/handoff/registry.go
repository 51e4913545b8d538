package handoff

import "sync"

// Registry tracks live orchestrators by conversation id. Each widget
// instance is single-consumer, so no per-orchestrator locking is needed
// beyond the orchestrator's own state mutex.
type Registry struct {
	mu             sync.RWMutex
	byConversation map[string]*Orchestrator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byConversation: make(map[string]*Orchestrator)}
}

// Put registers an orchestrator under its conversation id.
func (r *Registry) Put(conversationID string, o *Orchestrator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byConversation[conversationID] = o
}

// Get looks up an orchestrator.
func (r *Registry) Get(conversationID string) (*Orchestrator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.byConversation[conversationID]
	return o, ok
}

// Remove drops an orchestrator from the registry.
func (r *Registry) Remove(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byConversation, conversationID)
}
