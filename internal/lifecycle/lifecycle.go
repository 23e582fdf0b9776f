// Package lifecycle holds the order status machine:
//
//	PLACED -> ACCEPTED -> PREPARING -> READY -> SERVED
//
// Transitions only move forward; SERVED is terminal.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"smartserve/internal/models"
)

var (
	// ErrInvalidTransition is returned when advancing a terminal or unknown status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotPreparing is returned when a delay is declared outside PREPARING.
	ErrNotPreparing = errors.New("delay can only be declared while preparing")
	// ErrTerminal is returned when mutating an order that was already served.
	ErrTerminal = errors.New("order already served")
)

var transitions = map[models.Status]models.Status{
	models.StatusPlaced:    models.StatusAccepted,
	models.StatusAccepted:  models.StatusPreparing,
	models.StatusPreparing: models.StatusReady,
	models.StatusReady:     models.StatusServed,
}

var rank = map[models.Status]int{
	models.StatusPlaced:    1,
	models.StatusAccepted:  2,
	models.StatusPreparing: 3,
	models.StatusReady:     4,
	models.StatusServed:    5,
}

var labels = map[models.Status]string{
	models.StatusPlaced:    "Order Placed",
	models.StatusAccepted:  "Kitchen Accepted",
	models.StatusPreparing: "Cooking",
	models.StatusReady:     "Ready for You!",
	models.StatusServed:    "Enjoy!",
}

// Next returns the successor of s. ok is false for SERVED and unknown statuses.
func Next(s models.Status) (next models.Status, ok bool) {
	next, ok = transitions[s]
	return next, ok
}

// Rank orders statuses along the flow; unknown statuses rank 0.
func Rank(s models.Status) int {
	return rank[s]
}

// Valid reports whether s is one of the known statuses.
func Valid(s models.Status) bool {
	return rank[s] > 0
}

// IsTerminal reports whether s has no successor.
func IsTerminal(s models.Status) bool {
	return s == models.StatusServed
}

// Label returns the customer-facing caption for s.
func Label(s models.Status) string {
	return labels[s]
}

// Advance moves the order to its next status, stamping ReadyAt on READY and
// ServedAt on SERVED.
func Advance(o *models.Order, now time.Time) error {
	next, ok := Next(o.Status)
	if !ok {
		return fmt.Errorf("%w: %s has no successor", ErrInvalidTransition, o.Status)
	}
	o.Status = next
	switch next {
	case models.StatusReady:
		o.ReadyAt = &now
	case models.StatusServed:
		o.ServedAt = &now
	}
	return nil
}

// MarkServed closes out a bare service request.
func MarkServed(o *models.Order, now time.Time) {
	if o.Status == models.StatusServed {
		return
	}
	o.Status = models.StatusServed
	o.ServedAt = &now
}

// DeclareDelay annotates a preparing order with an extra wait; status is unchanged.
func DeclareDelay(o *models.Order, minutes int, now time.Time) error {
	if o.Status != models.StatusPreparing {
		return fmt.Errorf("%w: order is %s", ErrNotPreparing, o.Status)
	}
	if minutes <= 0 {
		return fmt.Errorf("delay must be a positive number of minutes, got %d", minutes)
	}
	o.DelayMinutes = minutes
	o.DelayDeclaredAt = &now
	return nil
}

// SetServiceRequest attaches a service request stamped at now.
func SetServiceRequest(o *models.Order, text string, now time.Time) error {
	if IsTerminal(o.Status) {
		return ErrTerminal
	}
	o.ServiceRequest = text
	o.ServiceRequestAt = &now
	return nil
}

// ClearServiceRequest empties the request. A bare service request has nothing
// left to do once cleared, so it is marked served.
func ClearServiceRequest(o *models.Order, now time.Time) {
	o.ServiceRequest = ""
	if o.IsServiceOnly() {
		MarkServed(o, now)
	}
}
