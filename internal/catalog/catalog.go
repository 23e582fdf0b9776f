// Package catalog holds the demo venue's seed data: the menu and the
// incidents already open when the dashboard starts.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"time"

	"gopkg.in/yaml.v3"

	"smartserve/internal/incidents"
	"smartserve/internal/models"
)

//go:embed menu.yaml
var seedYAML []byte

type seedFile struct {
	Items     []seedItem     `yaml:"items"`
	Incidents []seedIncident `yaml:"incidents"`
}

type seedItem struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Category    string         `yaml:"category"`
	Price       int            `yaml:"price"`
	Stock       int            `yaml:"stock"`
	FoodCost    int            `yaml:"food_cost"`
	Description string         `yaml:"description"`
	Tags        []string       `yaml:"tags"`
	Modifiers   []seedModifier `yaml:"modifiers"`
}

type seedModifier struct {
	Label   string   `yaml:"label"`
	Type    string   `yaml:"type"`
	Options []string `yaml:"options"`
}

type seedIncident struct {
	Ref   string `yaml:"ref"`
	Type  string `yaml:"type"`
	Text  string `yaml:"text"`
	Table string `yaml:"table"`
	Time  string `yaml:"time"`
}

var modifierKinds = map[string]models.ModifierKind{
	"select":      models.ModifierSingle,
	"multiselect": models.ModifierMulti,
}

func load() (seedFile, error) {
	var f seedFile
	if err := yaml.Unmarshal(seedYAML, &f); err != nil {
		return seedFile{}, fmt.Errorf("parse seed data: %w", err)
	}
	return f, nil
}

// Menu returns the seed menu in display order.
func Menu() ([]models.MenuItem, error) {
	f, err := load()
	if err != nil {
		return nil, err
	}

	items := make([]models.MenuItem, 0, len(f.Items))
	for _, si := range f.Items {
		item := models.MenuItem{
			ID:          si.ID,
			Name:        si.Name,
			Description: si.Description,
			Category:    si.Category,
			Price:       si.Price,
			FoodCost:    si.FoodCost,
			Tags:        si.Tags,
			Modifiers:   make([]models.Modifier, 0, len(si.Modifiers)),
		}
		if item.Tags == nil {
			item.Tags = []string{}
		}
		item.SetStock(si.Stock)
		for _, sm := range si.Modifiers {
			kind, ok := modifierKinds[sm.Type]
			if !ok {
				return nil, fmt.Errorf("item %s: modifier %q has unknown type %q", si.ID, sm.Label, sm.Type)
			}
			item.Modifiers = append(item.Modifiers, models.Modifier{Label: sm.Label, Kind: kind, Options: sm.Options})
		}
		if err := models.ValidateMenuItem(&item); err != nil {
			return nil, fmt.Errorf("item %s: %w", si.ID, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Incidents returns the opening incidents, timed on the given day.
func Incidents(day time.Time) ([]incidents.Incident, error) {
	f, err := load()
	if err != nil {
		return nil, err
	}

	y, m, d := day.Date()
	out := make([]incidents.Incident, 0, len(f.Incidents))
	for _, si := range f.Incidents {
		clock, err := time.Parse("15:04", si.Time)
		if err != nil {
			return nil, fmt.Errorf("incident %s: %w", si.Ref, err)
		}
		out = append(out, incidents.Incident{
			Key:       incidents.ManualKey(si.Ref),
			Type:      incidents.Type(si.Type),
			Text:      si.Text,
			Table:     si.Table,
			CreatedAt: time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, day.Location()),
			Status:    incidents.StatusActive,
		})
	}
	return out, nil
}

// Target is what Seed writes to.
type Target interface {
	SaveMenuItem(ctx context.Context, item models.MenuItem) error
	RaiseIncident(ctx context.Context, in incidents.Incident) (incidents.Incident, error)
}

// Seed writes the menu, overwriting items with the same id, and the
// opening incidents when withIncidents is set. Incidents already stored keep
// their status.
func Seed(ctx context.Context, t Target, day time.Time, withIncidents bool) error {
	menu, err := Menu()
	if err != nil {
		return err
	}
	for _, item := range menu {
		if err := t.SaveMenuItem(ctx, item); err != nil {
			return fmt.Errorf("seed %s: %w", item.ID, err)
		}
	}
	log.Printf("Seeded %d menu items", len(menu))

	if !withIncidents {
		return nil
	}
	opening, err := Incidents(day)
	if err != nil {
		return err
	}
	for _, in := range opening {
		if _, err := t.RaiseIncident(ctx, in); err != nil {
			return fmt.Errorf("seed incident %s: %w", in.Key, err)
		}
	}
	log.Printf("Seeded %d incidents", len(opening))
	return nil
}
