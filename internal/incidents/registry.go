package incidents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Registry stores manually raised incidents.
type Registry interface {
	// RaiseIncident stores in as active. An empty Key.Ref gets a fresh id.
	RaiseIncident(ctx context.Context, in Incident) (Incident, error)
	// ManualIncidents returns every manual incident, oldest first.
	ManualIncidents(ctx context.Context) ([]Incident, error)
	// ResolveIncident marks the manual incident ref as resolved.
	// Unknown refs fail with ErrUnknownIncident.
	ResolveIncident(ctx context.Context, ref string) error
}

// Resolve resolves the incident with the given dashboard id. Derived
// incidents are refused with ErrSelfClearing.
func Resolve(ctx context.Context, r Registry, id string) error {
	key, err := ParseKey(id)
	if err != nil {
		return err
	}
	if key.Derived() {
		return ErrSelfClearing
	}
	return r.ResolveIncident(ctx, key.Ref)
}

// Prepare validates a new manual incident and fills in defaults.
func Prepare(in Incident) (Incident, error) {
	in.Text = strings.TrimSpace(in.Text)
	if in.Text == "" {
		return Incident{}, fmt.Errorf("%w: text is required", ErrInvalidIncident)
	}
	if in.Type == "" {
		in.Type = TypeUrgent
	}
	if !ValidType(in.Type) {
		return Incident{}, fmt.Errorf("%w: unknown type %q", ErrInvalidIncident, in.Type)
	}
	if in.Table == "" {
		in.Table = "N/A"
	}
	if in.Key.Ref == "" {
		in.Key.Ref = uuid.NewString()
	}
	in.Key.Source = SourceManual
	in.Status = StatusActive
	return in, nil
}

// MemoryRegistry keeps manual incidents in process memory.
type MemoryRegistry struct {
	incidents map[string]Incident
	mu        sync.RWMutex
}

// NewMemoryRegistry creates a registry holding the given incidents.
func NewMemoryRegistry(seed ...Incident) *MemoryRegistry {
	r := &MemoryRegistry{incidents: make(map[string]Incident)}
	for _, in := range seed {
		in.Key.Source = SourceManual
		if in.Status == "" {
			in.Status = StatusActive
		}
		r.incidents[in.Key.Ref] = in
	}
	return r
}

// RaiseIncident implements Registry.
func (r *MemoryRegistry) RaiseIncident(_ context.Context, in Incident) (Incident, error) {
	in, err := Prepare(in)
	if err != nil {
		return Incident{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.incidents[in.Key.Ref]; ok {
		return existing, nil
	}
	r.incidents[in.Key.Ref] = in
	return in, nil
}

// ManualIncidents implements Registry.
func (r *MemoryRegistry) ManualIncidents(_ context.Context) ([]Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Incident, 0, len(r.incidents))
	for _, in := range r.incidents {
		out = append(out, in)
	}
	SortOldestFirst(out)
	return out, nil
}

// ResolveIncident implements Registry.
func (r *MemoryRegistry) ResolveIncident(_ context.Context, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	in, ok := r.incidents[ref]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIncident, ManualKey(ref))
	}
	in.Status = StatusResolved
	r.incidents[ref] = in
	return nil
}

// SortOldestFirst orders incidents by creation time, then by id.
func SortOldestFirst(in []Incident) {
	sort.SliceStable(in, func(i, j int) bool {
		if !in[i].CreatedAt.Equal(in[j].CreatedAt) {
			return in[i].CreatedAt.Before(in[j].CreatedAt)
		}
		return in[i].Key.Ref < in[j].Key.Ref
	})
}
