package models

import (
	"fmt"
	"time"
)

// MenuItem represents a dish or drink on the venue menu
type MenuItem struct {
	ID          string     `json:"id" firestore:"id"`
	Name        string     `json:"name" firestore:"name"`
	Description string     `json:"description,omitempty" firestore:"description"`
	Category    string     `json:"category" firestore:"category"`
	Price       int        `json:"price" firestore:"price"`
	Stock       int        `json:"stock" firestore:"stock"`
	IsAvailable bool       `json:"isAvailable" firestore:"isAvailable"`
	FoodCost    int        `json:"foodCost" firestore:"foodCost"`
	Modifiers   []Modifier `json:"modifiers" firestore:"modifiers"`
	Tags        []string   `json:"tags" firestore:"tags"`
	UpdatedAt   time.Time  `json:"updatedAt" firestore:"updatedAt"`
}

// ModifierKind represents how many options of a modifier group may be picked
type ModifierKind string

const (
	ModifierSingle ModifierKind = "single-select"
	ModifierMulti  ModifierKind = "multi-select"
)

// Modifier is a named choice group belonging to a menu item
type Modifier struct {
	Label   string       `json:"label" firestore:"label"`
	Kind    ModifierKind `json:"kind" firestore:"kind"`
	Options []string     `json:"options" firestore:"options"`
}

// Selection maps a modifier label to the options chosen for it.
// Single-select groups carry at most one option.
type Selection map[string][]string

// SetStock updates the stock count and keeps availability in line with it
func (mi *MenuItem) SetStock(stock int) {
	mi.Stock = stock
	mi.IsAvailable = stock > 0
}

// Modifier returns the modifier group with the given label
func (mi *MenuItem) Modifier(label string) (Modifier, bool) {
	for _, m := range mi.Modifiers {
		if m.Label == label {
			return m, true
		}
	}
	return Modifier{}, false
}

// HasOption checks if the group offers the given option
func (m Modifier) HasOption(option string) bool {
	for _, o := range m.Options {
		if o == option {
			return true
		}
	}
	return false
}

// HasTag checks if the item carries a specific tag
func (mi *MenuItem) HasTag(tag string) bool {
	for _, t := range mi.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ValidateMenuItem validates a menu item
func ValidateMenuItem(item *MenuItem) error {
	if item.ID == "" {
		return fmt.Errorf("menu item id is required")
	}
	if item.Name == "" {
		return fmt.Errorf("menu item name is required")
	}
	if item.Price <= 0 {
		return fmt.Errorf("menu item price must be greater than 0")
	}
	if item.Stock < 0 {
		return fmt.Errorf("menu item stock must not be negative")
	}
	if item.IsAvailable != (item.Stock > 0) {
		return fmt.Errorf("menu item availability does not match stock")
	}
	for _, m := range item.Modifiers {
		if m.Kind != ModifierSingle && m.Kind != ModifierMulti {
			return fmt.Errorf("modifier %q has unknown kind %q", m.Label, m.Kind)
		}
	}
	return nil
}
