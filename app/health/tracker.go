package health

import (
	"sync"
	"time"
)

type Status string

const (
	StatusHealthy   Status = "HEALTHY"
	StatusUnhealthy Status = "UNHEALTHY"
	StatusUnknown   Status = "UNKNOWN"
)

// SourceHealth is a point-in-time summary of fetch outcomes for one source.
type SourceHealth struct {
	SourceID     string    `json:"source_id"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	SuccessRate  float64   `json:"success_rate"`
	Status       Status    `json:"status"`
	LastError    string    `json:"last_error,omitempty"`
	LastSampleAt time.Time `json:"last_sample_at"`
}

type sample struct {
	successes    int
	failures     int
	lastError    string
	lastSampleAt time.Time
}

// Tracker accumulates per-source fetch outcomes across cycles. Failures
// here are observability only and never affect the cycle itself.
type Tracker struct {
	mu      sync.RWMutex
	samples map[string]*sample
}

func NewTracker() *Tracker {
	return &Tracker{samples: make(map[string]*sample)}
}

func (t *Tracker) RecordSuccess(sourceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.get(sourceID)
	s.successes++
	s.lastError = ""
	s.lastSampleAt = time.Now()
}

func (t *Tracker) RecordFailure(sourceID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.get(sourceID)
	s.failures++
	if err != nil {
		s.lastError = err.Error()
	}
	s.lastSampleAt = time.Now()
}

// Report returns a health summary per tracked source. A source with no
// samples yet reports UNKNOWN; below 50% success rate reports UNHEALTHY.
func (t *Tracker) Report() []SourceHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()

	report := make([]SourceHealth, 0, len(t.samples))
	for id, s := range t.samples {
		total := s.successes + s.failures

		h := SourceHealth{
			SourceID:     id,
			SuccessCount: s.successes,
			FailureCount: s.failures,
			Status:       StatusUnknown,
			LastError:    s.lastError,
			LastSampleAt: s.lastSampleAt,
		}

		if total > 0 {
			h.SuccessRate = float64(s.successes) / float64(total)
			if h.SuccessRate >= 0.5 {
				h.Status = StatusHealthy
			} else {
				h.Status = StatusUnhealthy
			}
		}

		report = append(report, h)
	}

	return report
}

func (t *Tracker) get(sourceID string) *sample {
	s, ok := t.samples[sourceID]
	if !ok {
		s = &sample{}
		t.samples[sourceID] = s
	}
	return s
}
