package monitoring

import (
	"sync"
	"time"

	"smartserve/internal/clock"
)

// Snapshot is the latest set of figures reported for one scope.
type Snapshot struct {
	Figures   map[string]interface{} `json:"figures"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// Report is what the live metrics endpoint serves.
type Report struct {
	UptimeSeconds float64             `json:"uptimeSeconds"`
	Scopes        map[string]Snapshot `json:"scopes"`
}

// Monitor keeps the figures behind the manager's live view, grouped by scope
// ("kitchen" for the dashboard queues, "realtime" for open feeds).
type Monitor struct {
	mu      sync.RWMutex
	scopes  map[string]Snapshot
	clock   clock.Clock
	started time.Time
}

// NewMonitor creates a Monitor. A nil clock means wall time.
func NewMonitor(clk clock.Clock) *Monitor {
	if clk == nil {
		clk = clock.Wall{}
	}
	return &Monitor{
		scopes:  make(map[string]Snapshot),
		clock:   clk,
		started: clk.Now(),
	}
}

// RecordSnapshot replaces the figures of scope.
func (m *Monitor) RecordSnapshot(scope string, figures map[string]interface{}) {
	copied := make(map[string]interface{}, len(figures))
	for k, v := range figures {
		copied[k] = v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.scopes[scope] = Snapshot{Figures: copied, UpdatedAt: m.clock.Now()}
}

// Set updates a single figure and keeps the rest of the scope.
func (m *Monitor) Set(scope, name string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.scopes[scope]
	figures := make(map[string]interface{}, len(snap.Figures)+1)
	if ok {
		for k, v := range snap.Figures {
			figures[k] = v
		}
	}
	figures[name] = value
	m.scopes[scope] = Snapshot{Figures: figures, UpdatedAt: m.clock.Now()}
}

// Scope returns the current snapshot of scope.
func (m *Monitor) Scope(scope string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.scopes[scope]
	return snap, ok
}

// Report copies every scope. Callers may keep the result.
func (m *Monitor) Report() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scopes := make(map[string]Snapshot, len(m.scopes))
	for name, snap := range m.scopes {
		figures := make(map[string]interface{}, len(snap.Figures))
		for k, v := range snap.Figures {
			figures[k] = v
		}
		scopes[name] = Snapshot{Figures: figures, UpdatedAt: snap.UpdatedAt}
	}
	return Report{
		UptimeSeconds: m.clock.Now().Sub(m.started).Seconds(),
		Scopes:        scopes,
	}
}
