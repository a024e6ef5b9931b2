package breaker

import (
	"log/slog"
	"sync"
	"time"
)

type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

const (
	// DefaultFailureThreshold is the number of consecutive failures that
	// trips a breaker from CLOSED to OPEN.
	DefaultFailureThreshold = 5

	// DefaultCooldown is how long an OPEN breaker blocks attempts before
	// allowing a single probe.
	DefaultCooldown = 5 * time.Minute
)

type sourceState struct {
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	probing         bool
}

// Registry tracks per-source breaker state. State is process-wide, survives
// across cycles, and resets to CLOSED on restart. The registry is injected
// into the orchestrator rather than held as a package singleton.
type Registry struct {
	failureThreshold int
	cooldown         time.Duration
	now              func() time.Time
	mu               sync.Mutex
	states           map[string]*sourceState
}

func NewRegistry(failureThreshold int, cooldown time.Duration) *Registry {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Registry{
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		now:              time.Now,
		states:           make(map[string]*sourceState),
	}
}

// CanAttempt reports whether the source may be attempted now. An OPEN
// breaker whose cooldown has elapsed moves to HALF_OPEN and grants exactly
// one probing attempt.
func (r *Registry) CanAttempt(sourceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.get(sourceID)

	switch s.state {
	case StateClosed:
		return true
	case StateOpen:
		if r.now().Sub(s.lastFailureTime) < r.cooldown {
			return false
		}
		s.state = StateHalfOpen
		s.probing = true
		slog.Debug("Breaker cooldown elapsed, probing", "source", sourceID)
		return true
	case StateHalfOpen:
		if s.probing {
			return false
		}
		s.probing = true
		return true
	}

	return true
}

// RecordSuccess resets the breaker to CLOSED.
func (r *Registry) RecordSuccess(sourceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.get(sourceID)
	if s.state != StateClosed {
		slog.Info("Breaker closed after successful attempt", "source", sourceID, "previous_state", string(s.state))
	}
	s.state = StateClosed
	s.failureCount = 0
	s.successCount++
	s.probing = false
}

// RecordFailure counts a failure. The breaker opens after the configured
// number of consecutive failures, or immediately when a HALF_OPEN probe
// fails.
func (r *Registry) RecordFailure(sourceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.get(sourceID)
	s.failureCount++
	s.lastFailureTime = r.now()
	s.probing = false

	if s.state == StateHalfOpen {
		s.state = StateOpen
		slog.Warn("Breaker reopened, probe failed", "source", sourceID)
		return
	}

	if s.state == StateClosed && s.failureCount >= r.failureThreshold {
		s.state = StateOpen
		slog.Warn("Breaker opened", "source", sourceID, "consecutive_failures", s.failureCount)
	}
}

// GetState returns the current state of the breaker for a source.
func (r *Registry) GetState(sourceID string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(sourceID).state
}

// Counts returns the success and failure counters for a source.
func (r *Registry) Counts(sourceID string) (successes, failures int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.get(sourceID)
	return s.successCount, s.failureCount
}

// States returns a snapshot of all tracked breakers.
func (r *Registry) States() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[string]State, len(r.states))
	for id, s := range r.states {
		snapshot[id] = s.state
	}
	return snapshot
}

func (r *Registry) get(sourceID string) *sourceState {
	s, ok := r.states[sourceID]
	if !ok {
		s = &sourceState{state: StateClosed}
		r.states[sourceID] = s
	}
	return s
}
