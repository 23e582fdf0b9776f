// Package inventory takes stock for a cart in a single atomic unit so that
// concurrent checkouts can never sell more units than exist.
package inventory

import (
	"context"
	"errors"
	"fmt"
)

// ErrOutOfStock matches every *OutOfStockError.
var ErrOutOfStock = errors.New("out of stock")

// OutOfStockError identifies the first cart item that could not be covered.
type OutOfStockError struct {
	ItemID   string
	ItemName string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("Sorry, %s just ran out of stock!", e.ItemName)
}

// Is makes errors.Is(err, ErrOutOfStock) hold.
func (e *OutOfStockError) Is(target error) bool {
	return target == ErrOutOfStock
}

// Line is one cart entry. Quantity defaults to 1.
type Line struct {
	ItemID   string
	ItemName string
	Quantity int
}

// Level is the stock view of a catalog item read inside a transaction.
type Level struct {
	Name  string
	Stock int
}

// Tx is the transactional handle a store hands to Reserve. Reads and writes
// made through it commit together or not at all.
type Tx interface {
	// Level returns the item's stock. found is false if the item does not exist.
	Level(ctx context.Context, itemID string) (level Level, found bool, err error)
	// SetStock writes the new count and the matching availability flag.
	SetStock(ctx context.Context, itemID string, stock int) error
}

// Transactor runs fn atomically. Stores retry fn on write conflicts, so fn
// must not have side effects outside tx. Firestore rejects reads issued after
// a write in the same transaction, so fn reads every level before writing.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type demand struct {
	itemID string
	name   string
	qty    int
}

// aggregate folds repeated lines for the same item so each unit is counted
// exactly once, keeping first-seen cart order.
func aggregate(lines []Line) []demand {
	index := make(map[string]int, len(lines))
	out := make([]demand, 0, len(lines))
	for _, l := range lines {
		qty := l.Quantity
		if qty <= 0 {
			qty = 1
		}
		if i, ok := index[l.ItemID]; ok {
			out[i].qty += qty
			continue
		}
		index[l.ItemID] = len(out)
		out = append(out, demand{itemID: l.ItemID, name: l.ItemName, qty: qty})
	}
	return out
}

// Reserve verifies that every line is covered and decrements stock for all of
// them, or fails with an *OutOfStockError leaving stock untouched.
func Reserve(ctx context.Context, t Transactor, lines []Line) error {
	wanted := aggregate(lines)
	return t.InTx(ctx, func(ctx context.Context, tx Tx) error {
		remaining := make([]int, len(wanted))
		for i, d := range wanted {
			level, found, err := tx.Level(ctx, d.itemID)
			if err != nil {
				return fmt.Errorf("read stock for %s: %w", d.itemID, err)
			}
			if !found || level.Stock < d.qty {
				name := d.name
				if found {
					name = level.Name
				}
				if name == "" {
					name = d.itemID
				}
				return &OutOfStockError{ItemID: d.itemID, ItemName: name}
			}
			remaining[i] = level.Stock - d.qty
		}
		for i, d := range wanted {
			if err := tx.SetStock(ctx, d.itemID, remaining[i]); err != nil {
				return fmt.Errorf("write stock for %s: %w", d.itemID, err)
			}
		}
		return nil
	})
}

// Release puts reserved units back, used when the order that consumed them
// could not be recorded.
func Release(ctx context.Context, t Transactor, lines []Line) error {
	returned := aggregate(lines)
	return t.InTx(ctx, func(ctx context.Context, tx Tx) error {
		restored := make([]int, len(returned))
		present := make([]bool, len(returned))
		for i, d := range returned {
			level, found, err := tx.Level(ctx, d.itemID)
			if err != nil {
				return fmt.Errorf("read stock for %s: %w", d.itemID, err)
			}
			present[i] = found
			restored[i] = level.Stock + d.qty
		}
		for i, d := range returned {
			if !present[i] {
				continue
			}
			if err := tx.SetStock(ctx, d.itemID, restored[i]); err != nil {
				return fmt.Errorf("write stock for %s: %w", d.itemID, err)
			}
		}
		return nil
	})
}
