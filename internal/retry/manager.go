package retry

import (
	"sort"
	"sync"
)

// RecordState tracks handling attempts for one record.
type RecordState struct {
	Key        string `json:"key"`
	Attempts   int    `json:"attempts"`
	MaxRetries int    `json:"max_retries"`
	LastError  string `json:"last_error,omitempty"`
	Succeeded  bool   `json:"succeeded,omitempty"`
}

// Manager tracks retry state per record key.
// It is safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	states map[string]*RecordState
}

// NewManager creates a new retry manager.
func NewManager() *Manager {
	return &Manager{
		states: make(map[string]*RecordState),
	}
}

// GetOrCreateState returns or creates the state for key.
func (m *Manager) GetOrCreateState(key string, maxRetries int) *RecordState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.states[key]
	if !exists {
		state = &RecordState{Key: key, MaxRetries: maxRetries}
		m.states[key] = state
	}
	return state
}

// GetState returns a copy of the state for key, or nil if not tracked.
func (m *Manager) GetState(key string) *RecordState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[key]
	if !ok {
		return nil
	}
	cp := *state
	return &cp
}

// RecordFailure counts a failed attempt for key and reports whether another
// attempt is allowed.
func (m *Manager) RecordFailure(key string, err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.states[key]
	if !exists {
		return false
	}
	state.Attempts++
	if err != nil {
		state.LastError = err.Error()
	}
	return state.Attempts <= state.MaxRetries
}

// RecordSuccess marks key as handled.
func (m *Manager) RecordSuccess(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, exists := m.states[key]; exists {
		state.Attempts++
		state.Succeeded = true
	}
}

// ExhaustedKeys returns, sorted, the keys that failed more times than their
// retry budget allows.
func (m *Manager) ExhaustedKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for key, state := range m.states {
		if !state.Succeeded && state.Attempts > state.MaxRetries {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Reset forgets all tracked state.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = make(map[string]*RecordState)
}
