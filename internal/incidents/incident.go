// Package incidents derives the live operational alert feed for the kitchen
// dashboard and keeps the manually raised incidents.
package incidents

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrSelfClearing is returned when resolving a derived incident. Derived
	// incidents disappear once the order advances or the request is cleared.
	ErrSelfClearing = errors.New("automatic alert resolves when the order is advanced or the service request is cleared")
	// ErrUnknownIncident is returned for ids that name no incident.
	ErrUnknownIncident = errors.New("unknown incident")
	// ErrInvalidIncident is returned when a manual incident fails validation.
	ErrInvalidIncident = errors.New("invalid incident")
)

// Source tells where an incident comes from.
type Source string

const (
	SourceManual      Source = "manual"
	SourceLateOrder   Source = "late"
	SourceLateService Source = "service"
)

// Key identifies an incident. Ref is the order id for derived incidents and
// the registry id for manual ones.
type Key struct {
	Source Source
	Ref    string
}

// ManualKey builds the key of a manually raised incident.
func ManualKey(ref string) Key {
	return Key{Source: SourceManual, Ref: ref}
}

// Derived reports whether the incident is computed from order state.
func (k Key) Derived() bool {
	return k.Source == SourceLateOrder || k.Source == SourceLateService
}

func (k Key) String() string {
	return string(k.Source) + "_" + k.Ref
}

// MarshalText renders the key in its "<source>_<ref>" form.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the "<source>_<ref>" form.
func (k *Key) UnmarshalText(b []byte) error {
	parsed, err := ParseKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKey parses an incident id as shown on the dashboard.
func ParseKey(id string) (Key, error) {
	source, ref, ok := strings.Cut(id, "_")
	if !ok || ref == "" {
		return Key{}, fmt.Errorf("%w: %q", ErrUnknownIncident, id)
	}
	switch s := Source(source); s {
	case SourceManual, SourceLateOrder, SourceLateService:
		return Key{Source: s, Ref: ref}, nil
	default:
		return Key{}, fmt.Errorf("%w: %q", ErrUnknownIncident, id)
	}
}

// Type is the severity tag shown on the incident card.
type Type string

const (
	TypeUrgent   Type = "urgent"
	TypeSecurity Type = "security"
	TypeUpsell   Type = "upsell"
)

// Status of an incident.
type Status string

const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
)

// Incident is one entry of the dashboard feed.
type Incident struct {
	Key       Key       `json:"id"`
	Type      Type      `json:"type"`
	Text      string    `json:"text"`
	Table     string    `json:"table"`
	CreatedAt time.Time `json:"createdAt"`
	Status    Status    `json:"status"`
}

// ValidType reports whether t is a known incident type.
func ValidType(t Type) bool {
	switch t {
	case TypeUrgent, TypeSecurity, TypeUpsell:
		return true
	}
	return false
}
