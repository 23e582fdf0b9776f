// Package store persists the menu, orders and manual incidents and pushes
// live snapshots of them to subscribers after every committed change.
package store

import (
	"context"
	"errors"

	"smartserve/internal/incidents"
	"smartserve/internal/inventory"
	"smartserve/internal/models"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a concurrent write won. Stores retry on
	// it internally and only surface it once retries are exhausted.
	ErrConflict = errors.New("write conflict")
	// ErrStaleWrite is returned when the document no longer matches the
	// state the caller expected, e.g. a second press of "advance".
	ErrStaleWrite = errors.New("stale write: order changed since it was read")
	// ErrSubscriptionClosed is reported by a subscription whose feed ended.
	ErrSubscriptionClosed = errors.New("subscription closed")
)

// DefaultOrderLimit bounds order listings when no limit is given.
const DefaultOrderLimit = 50

// OrderQuery selects orders, newest first. An empty CustomerID selects every
// order of the venue.
type OrderQuery struct {
	CustomerID string
	Limit      int
}

// EffectiveLimit returns Limit or DefaultOrderLimit.
func (q OrderQuery) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultOrderLimit
	}
	return q.Limit
}

// MenuStore holds the catalog.
type MenuStore interface {
	ListMenu(ctx context.Context) ([]models.MenuItem, error)
	GetMenuItem(ctx context.Context, id string) (models.MenuItem, error)
	// SaveMenuItem creates or replaces an item.
	SaveMenuItem(ctx context.Context, item models.MenuItem) error
	// SetStock overwrites the stock count outside of any reservation.
	SetStock(ctx context.Context, id string, stock int) (models.MenuItem, error)
	SubscribeMenu(ctx context.Context) (*Subscription[[]models.MenuItem], error)
}

// OrderStore holds customer orders.
type OrderStore interface {
	// CreateOrder stores o, assigning an id when empty and stamping the
	// placement time (and service request time, when a request is set)
	// from the store clock.
	CreateOrder(ctx context.Context, o models.Order) (models.Order, error)
	GetOrder(ctx context.Context, customerID, id string) (models.Order, error)
	// UpdateOrder applies fn to the current order and writes the result only
	// if no other write landed in between, retrying fn otherwise. An error
	// from fn aborts without writing.
	UpdateOrder(ctx context.Context, customerID, id string, fn func(o *models.Order) error) (models.Order, error)
	ListOrders(ctx context.Context, q OrderQuery) ([]models.Order, error)
	SubscribeOrders(ctx context.Context, q OrderQuery) (*Subscription[[]models.Order], error)
}

// Store is a complete backend.
type Store interface {
	MenuStore
	OrderStore
	inventory.Transactor
	incidents.Registry
	Close() error
}
