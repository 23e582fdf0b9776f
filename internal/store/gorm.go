package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" // PostgreSQL dialect
	_ "github.com/jinzhu/gorm/dialects/sqlite"   // SQLite dialect

	"smartserve/internal/clock"
	"smartserve/internal/incidents"
	"smartserve/internal/inventory"
	"smartserve/internal/models"
)

// maxTxAttempts bounds retries of a transaction that lost a write conflict.
const maxTxAttempts = 8

// GormStore is the relational backend, on SQLite by default or PostgreSQL.
type GormStore struct {
	db    *gorm.DB
	clock clock.Clock
	hub   *hub
}

var _ Store = (*GormStore)(nil)

// OpenGorm opens the database and migrates its tables.
//
// SQLite is limited to one connection so writers queue instead of failing
// with SQLITE_BUSY.
func OpenGorm(driver, dsn string, clk clock.Clock) (*GormStore, error) {
	db, err := gorm.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == "sqlite3" {
		db.DB().SetMaxOpenConns(1)
		db.DB().SetMaxIdleConns(1)
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	if err := db.AutoMigrate(&menuRecord{}, &orderRecord{}, &incidentRecord{}).Error; err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	if clk == nil {
		clk = clock.Wall{}
	}
	return &GormStore{db: db, clock: clk, hub: newHub()}, nil
}

func applyPragmas(db *gorm.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close ends every live query and closes the database.
func (s *GormStore) Close() error {
	s.hub.close()
	return s.db.Close()
}

// Menu

func (s *GormStore) ListMenu(ctx context.Context) ([]models.MenuItem, error) {
	var recs []menuRecord
	if err := s.db.Order("position asc, id asc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list menu: %w", err)
	}
	items := make([]models.MenuItem, 0, len(recs))
	for _, r := range recs {
		item, err := r.item()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *GormStore) GetMenuItem(ctx context.Context, id string) (models.MenuItem, error) {
	var rec menuRecord
	if err := s.db.Where("id = ?", id).First(&rec).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return models.MenuItem{}, fmt.Errorf("menu item %s: %w", id, ErrNotFound)
		}
		return models.MenuItem{}, fmt.Errorf("get menu item %s: %w", id, err)
	}
	return rec.item()
}

func (s *GormStore) SaveMenuItem(ctx context.Context, item models.MenuItem) error {
	item.SetStock(item.Stock)
	if err := models.ValidateMenuItem(&item); err != nil {
		return err
	}
	rec, err := newMenuRecord(item)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var existing menuRecord
		err := tx.Where("id = ?", item.ID).First(&existing).Error
		switch {
		case err == nil:
			rec.Position = existing.Position
		case gorm.IsRecordNotFoundError(err):
			var count int
			if err := tx.Model(&menuRecord{}).Count(&count).Error; err != nil {
				return err
			}
			rec.Position = count
		default:
			return err
		}
		rec.UpdatedAt = s.clock.Now()
		return tx.Save(&rec).Error
	})
	if err != nil {
		return fmt.Errorf("save menu item %s: %w", item.ID, err)
	}
	s.hub.notify(topicMenu)
	return nil
}

func (s *GormStore) SetStock(ctx context.Context, id string, stock int) (models.MenuItem, error) {
	res := s.db.Model(&menuRecord{}).Where("id = ?", id).Updates(map[string]interface{}{
		"stock":        stock,
		"is_available": stock > 0,
		"updated_at":   s.clock.Now(),
	})
	if res.Error != nil {
		return models.MenuItem{}, fmt.Errorf("set stock of %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.MenuItem{}, fmt.Errorf("menu item %s: %w", id, ErrNotFound)
	}
	s.hub.notify(topicMenu)
	return s.GetMenuItem(ctx, id)
}

func (s *GormStore) SubscribeMenu(ctx context.Context) (*Subscription[[]models.MenuItem], error) {
	return liveQuery(ctx, s.hub, topicMenu, func() ([]models.MenuItem, error) {
		return s.ListMenu(ctx)
	})
}

// Stock transactions

// InTx implements inventory.Transactor. fn is retried when another
// transaction changed a stock count it read.
func (s *GormStore) InTx(ctx context.Context, fn func(ctx context.Context, tx inventory.Tx) error) error {
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := s.db.BeginTx(ctx, nil)
		if tx.Error != nil {
			return fmt.Errorf("begin transaction: %w", tx.Error)
		}

		err := fn(ctx, &stockTx{db: tx, seen: make(map[string]int), now: s.clock.Now()})
		if err != nil {
			tx.Rollback()
			if errors.Is(err, ErrConflict) {
				log.Printf("stock transaction conflict, retrying (attempt %d)", attempt)
				continue
			}
			return err
		}
		if err := tx.Commit().Error; err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		s.hub.notify(topicMenu)
		return nil
	}
	return ErrConflict
}

// stockTx writes stock conditionally on the value it read, so a concurrent
// change turns into ErrConflict instead of a lost update.
type stockTx struct {
	db   *gorm.DB
	seen map[string]int
	now  time.Time
}

func (t *stockTx) Level(ctx context.Context, itemID string) (inventory.Level, bool, error) {
	var rec menuRecord
	if err := t.db.Where("id = ?", itemID).First(&rec).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return inventory.Level{}, false, nil
		}
		return inventory.Level{}, false, err
	}
	t.seen[itemID] = rec.Stock
	return inventory.Level{Name: rec.Name, Stock: rec.Stock}, true, nil
}

func (t *stockTx) SetStock(ctx context.Context, itemID string, stock int) error {
	read, ok := t.seen[itemID]
	if !ok {
		return fmt.Errorf("stock of %s written before it was read", itemID)
	}
	res := t.db.Model(&menuRecord{}).Where("id = ? AND stock = ?", itemID, read).Updates(map[string]interface{}{
		"stock":        stock,
		"is_available": stock > 0,
		"updated_at":   t.now,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	t.seen[itemID] = stock
	return nil
}

// Orders

func (s *GormStore) CreateOrder(ctx context.Context, o models.Order) (models.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := s.clock.Now()
	o.PlacedAt = now
	if o.ServiceRequest != "" && o.ServiceRequestAt == nil {
		o.ServiceRequestAt = &now
	}

	rec, err := newOrderRecord(o)
	if err != nil {
		return models.Order{}, err
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return models.Order{}, fmt.Errorf("create order: %w", err)
	}
	s.hub.notify(topicOrders)
	return rec.order()
}

func (s *GormStore) getOrderRecord(customerID, id string) (orderRecord, error) {
	var rec orderRecord
	if err := s.db.Where("id = ? AND customer_id = ?", id, customerID).First(&rec).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return orderRecord{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		return orderRecord{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return rec, nil
}

func (s *GormStore) GetOrder(ctx context.Context, customerID, id string) (models.Order, error) {
	rec, err := s.getOrderRecord(customerID, id)
	if err != nil {
		return models.Order{}, err
	}
	return rec.order()
}

func (s *GormStore) UpdateOrder(ctx context.Context, customerID, id string, fn func(o *models.Order) error) (models.Order, error) {
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return models.Order{}, err
		}
		rec, err := s.getOrderRecord(customerID, id)
		if err != nil {
			return models.Order{}, err
		}
		o, err := rec.order()
		if err != nil {
			return models.Order{}, err
		}
		if err := fn(&o); err != nil {
			return models.Order{}, err
		}

		next, err := newOrderRecord(o)
		if err != nil {
			return models.Order{}, err
		}
		next.Revision = rec.Revision
		res := s.db.Model(&orderRecord{}).
			Where("id = ? AND customer_id = ? AND revision = ?", id, customerID, rec.Revision).
			Updates(next.columns())
		if res.Error != nil {
			return models.Order{}, fmt.Errorf("update order %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}
		s.hub.notify(topicOrders)
		return o, nil
	}
	return models.Order{}, fmt.Errorf("update order %s: %w", id, ErrConflict)
}

func (s *GormStore) ListOrders(ctx context.Context, q OrderQuery) ([]models.Order, error) {
	query := s.db.Order("placed_at desc, id desc").Limit(q.EffectiveLimit())
	if q.CustomerID != "" {
		query = query.Where("customer_id = ?", q.CustomerID)
	}
	var recs []orderRecord
	if err := query.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders := make([]models.Order, 0, len(recs))
	for _, r := range recs {
		o, err := r.order()
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (s *GormStore) SubscribeOrders(ctx context.Context, q OrderQuery) (*Subscription[[]models.Order], error) {
	return liveQuery(ctx, s.hub, topicOrders, func() ([]models.Order, error) {
		return s.ListOrders(ctx, q)
	})
}

// Manual incidents

// RaiseIncident stores in. An incident that already exists under the same
// ref is returned as stored, so reseeding keeps resolved incidents resolved.
func (s *GormStore) RaiseIncident(ctx context.Context, in incidents.Incident) (incidents.Incident, error) {
	in, err := incidents.Prepare(in)
	if err != nil {
		return incidents.Incident{}, err
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.clock.Now()
	}
	var rec incidentRecord
	err = s.db.Where(incidentRecord{Ref: in.Key.Ref}).Attrs(newIncidentRecord(in)).FirstOrCreate(&rec).Error
	if err != nil {
		return incidents.Incident{}, fmt.Errorf("raise incident: %w", err)
	}
	return rec.incident(), nil
}

func (s *GormStore) ManualIncidents(ctx context.Context) ([]incidents.Incident, error) {
	var recs []incidentRecord
	if err := s.db.Order("created_at asc, ref asc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	out := make([]incidents.Incident, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.incident())
	}
	return out, nil
}

func (s *GormStore) ResolveIncident(ctx context.Context, ref string) error {
	res := s.db.Model(&incidentRecord{}).Where("ref = ?", ref).Update("status", string(incidents.StatusResolved))
	if res.Error != nil {
		return fmt.Errorf("resolve incident %s: %w", ref, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", incidents.ErrUnknownIncident, incidents.ManualKey(ref))
	}
	return nil
}
