package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"smartserve/internal/incidents"
	"smartserve/internal/models"
)

// StringSlice represents a slice of strings stored as a JSON text column
type StringSlice []string

// Value converts the slice to a JSON string for storage
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan converts the database value back to a slice
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("unsupported type for StringSlice")
	}
}

type menuRecord struct {
	ID            string `gorm:"primary_key"`
	Position      int
	Name          string
	Description   string
	Category      string
	Price         int
	Stock         int
	IsAvailable   bool
	FoodCost      int
	ModifiersJSON string      `gorm:"type:text"`
	Tags          StringSlice `gorm:"type:text"`
	UpdatedAt     time.Time
}

func (menuRecord) TableName() string { return "menu_items" }

func newMenuRecord(item models.MenuItem) (menuRecord, error) {
	mods, err := json.Marshal(item.Modifiers)
	if err != nil {
		return menuRecord{}, fmt.Errorf("encode modifiers: %w", err)
	}
	return menuRecord{
		ID:            item.ID,
		Name:          item.Name,
		Description:   item.Description,
		Category:      item.Category,
		Price:         item.Price,
		Stock:         item.Stock,
		IsAvailable:   item.Stock > 0,
		FoodCost:      item.FoodCost,
		ModifiersJSON: string(mods),
		Tags:          StringSlice(item.Tags),
		UpdatedAt:     item.UpdatedAt,
	}, nil
}

func (r menuRecord) item() (models.MenuItem, error) {
	item := models.MenuItem{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Price:       r.Price,
		Stock:       r.Stock,
		IsAvailable: r.IsAvailable,
		FoodCost:    r.FoodCost,
		Tags:        []string(r.Tags),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	item.Modifiers = []models.Modifier{}
	if r.ModifiersJSON != "" {
		if err := json.Unmarshal([]byte(r.ModifiersJSON), &item.Modifiers); err != nil {
			return models.MenuItem{}, fmt.Errorf("decode modifiers of %s: %w", r.ID, err)
		}
	}
	return item, nil
}

type orderRecord struct {
	ID               string `gorm:"primary_key"`
	CustomerID       string `gorm:"index"`
	Status           string
	ItemsJSON        string `gorm:"type:text"`
	Total            int
	PlacedAt         time.Time `gorm:"index"`
	TableLabel       string
	OrderType        string
	ServerName       string
	PreparerName     string
	DelayMinutes     int
	DelayDeclaredAt  *time.Time
	ServiceRequest   string
	ServiceRequestAt *time.Time
	ReadyAt          *time.Time
	ServedAt         *time.Time
	FeedbackJSON     string `gorm:"type:text"`
	FeedbackSkipped  bool
	Revision         int
}

func (orderRecord) TableName() string { return "orders" }

func newOrderRecord(o models.Order) (orderRecord, error) {
	items := o.Items
	if items == nil {
		items = []models.OrderLine{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return orderRecord{}, fmt.Errorf("encode order items: %w", err)
	}
	rec := orderRecord{
		ID:               o.ID,
		CustomerID:       o.CustomerID,
		Status:           string(o.Status),
		ItemsJSON:        string(itemsJSON),
		Total:            o.Total,
		PlacedAt:         o.PlacedAt,
		TableLabel:       o.Table,
		OrderType:        string(o.OrderType),
		ServerName:       o.ServerName,
		PreparerName:     o.PreparerName,
		DelayMinutes:     o.DelayMinutes,
		DelayDeclaredAt:  o.DelayDeclaredAt,
		ServiceRequest:   o.ServiceRequest,
		ServiceRequestAt: o.ServiceRequestAt,
		ReadyAt:          o.ReadyAt,
		ServedAt:         o.ServedAt,
		FeedbackSkipped:  o.FeedbackSkipped,
	}
	if o.Feedback != nil {
		fb, err := json.Marshal(o.Feedback)
		if err != nil {
			return orderRecord{}, fmt.Errorf("encode feedback: %w", err)
		}
		rec.FeedbackJSON = string(fb)
	}
	return rec, nil
}

func (r orderRecord) order() (models.Order, error) {
	o := models.Order{
		ID:               r.ID,
		CustomerID:       r.CustomerID,
		Status:           models.Status(r.Status),
		Total:            r.Total,
		PlacedAt:         r.PlacedAt.UTC(),
		Table:            r.TableLabel,
		OrderType:        models.OrderType(r.OrderType),
		ServerName:       r.ServerName,
		PreparerName:     r.PreparerName,
		DelayMinutes:     r.DelayMinutes,
		DelayDeclaredAt:  utc(r.DelayDeclaredAt),
		ServiceRequest:   r.ServiceRequest,
		ServiceRequestAt: utc(r.ServiceRequestAt),
		ReadyAt:          utc(r.ReadyAt),
		ServedAt:         utc(r.ServedAt),
		FeedbackSkipped:  r.FeedbackSkipped,
	}
	o.Items = []models.OrderLine{}
	if r.ItemsJSON != "" {
		if err := json.Unmarshal([]byte(r.ItemsJSON), &o.Items); err != nil {
			return models.Order{}, fmt.Errorf("decode items of order %s: %w", r.ID, err)
		}
	}
	if r.FeedbackJSON != "" {
		var fb models.Feedback
		if err := json.Unmarshal([]byte(r.FeedbackJSON), &fb); err != nil {
			return models.Order{}, fmt.Errorf("decode feedback of order %s: %w", r.ID, err)
		}
		o.Feedback = &fb
	}
	return o, nil
}

// columns lists the mutable fields written by UpdateOrder.
func (r orderRecord) columns() map[string]interface{} {
	return map[string]interface{}{
		"status":             r.Status,
		"total":              r.Total,
		"table_label":        r.TableLabel,
		"order_type":         r.OrderType,
		"server_name":        r.ServerName,
		"preparer_name":      r.PreparerName,
		"delay_minutes":      r.DelayMinutes,
		"delay_declared_at":  r.DelayDeclaredAt,
		"service_request":    r.ServiceRequest,
		"service_request_at": r.ServiceRequestAt,
		"ready_at":           r.ReadyAt,
		"served_at":          r.ServedAt,
		"feedback_json":      r.FeedbackJSON,
		"feedback_skipped":   r.FeedbackSkipped,
		"revision":           r.Revision + 1,
	}
}

type incidentRecord struct {
	Ref        string `gorm:"primary_key"`
	Type       string
	Text       string
	TableLabel string
	CreatedAt  time.Time
	Status     string
}

func (incidentRecord) TableName() string { return "incidents" }

func newIncidentRecord(in incidents.Incident) incidentRecord {
	return incidentRecord{
		Ref:        in.Key.Ref,
		Type:       string(in.Type),
		Text:       in.Text,
		TableLabel: in.Table,
		CreatedAt:  in.CreatedAt,
		Status:     string(in.Status),
	}
}

func (r incidentRecord) incident() incidents.Incident {
	return incidents.Incident{
		Key:       incidents.ManualKey(r.Ref),
		Type:      incidents.Type(r.Type),
		Text:      r.Text,
		Table:     r.TableLabel,
		CreatedAt: r.CreatedAt.UTC(),
		Status:    incidents.Status(r.Status),
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
