// Package fsstore is the Cloud Firestore backend. Documents live under
// artifacts/<venue>: the menu and manual incidents in public/data, orders in
// one collection per customer under users/<customer>/orders.
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"smartserve/internal/clock"
	"smartserve/internal/incidents"
	"smartserve/internal/inventory"
	"smartserve/internal/models"
	"smartserve/internal/store"
)

// Store implements store.Store on Firestore.
type Store struct {
	client  *firestore.Client
	venue   string
	clock   clock.Clock
	version atomic.Uint64
}

var _ store.Store = (*Store)(nil)

// orderDoc adds the venue to an order so the kitchen can query every
// customer's orders with one collection group query.
type orderDoc struct {
	models.Order
	Venue string `firestore:"venue"`
}

type incidentDoc struct {
	Type      string    `firestore:"type"`
	Text      string    `firestore:"text"`
	Table     string    `firestore:"table"`
	CreatedAt time.Time `firestore:"createdAt"`
	Status    string    `firestore:"status"`
}

func (d incidentDoc) incident(ref string) incidents.Incident {
	return incidents.Incident{
		Key:       incidents.ManualKey(ref),
		Type:      incidents.Type(d.Type),
		Text:      d.Text,
		Table:     d.Table,
		CreatedAt: d.CreatedAt.UTC(),
		Status:    incidents.Status(d.Status),
	}
}

// Open connects to the Firestore project. FIRESTORE_EMULATOR_HOST is honoured
// by the client.
func Open(ctx context.Context, projectID, venue string, clk clock.Clock) (*Store, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return New(client, venue, clk), nil
}

// New wraps an existing client.
func New(client *firestore.Client, venue string, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.Wall{}
	}
	return &Store{client: client, venue: venue, clock: clk}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) root() *firestore.DocumentRef {
	return s.client.Collection("artifacts").Doc(s.venue)
}

func (s *Store) menu() *firestore.CollectionRef {
	return s.root().Collection("public").Doc("data").Collection("menu")
}

func (s *Store) incidents() *firestore.CollectionRef {
	return s.root().Collection("public").Doc("data").Collection("incidents")
}

func (s *Store) orders(customerID string) *firestore.CollectionRef {
	return s.root().Collection("users").Doc(customerID).Collection("orders")
}

func notFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// Menu

func (s *Store) ListMenu(ctx context.Context) ([]models.MenuItem, error) {
	docs, err := s.menu().OrderBy("position", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list menu: %w", err)
	}
	return decodeMenu(docs)
}

func decodeMenu(docs []*firestore.DocumentSnapshot) ([]models.MenuItem, error) {
	items := make([]models.MenuItem, 0, len(docs))
	for _, doc := range docs {
		item, err := decodeMenuItem(doc)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func decodeMenuItem(doc *firestore.DocumentSnapshot) (models.MenuItem, error) {
	var d menuItemDoc
	if err := doc.DataTo(&d); err != nil {
		return models.MenuItem{}, fmt.Errorf("decode menu item %s: %w", doc.Ref.ID, err)
	}
	d.MenuItem.ID = doc.Ref.ID
	return d.MenuItem, nil
}

func (s *Store) GetMenuItem(ctx context.Context, id string) (models.MenuItem, error) {
	doc, err := s.menu().Doc(id).Get(ctx)
	if err != nil {
		if notFound(err) {
			return models.MenuItem{}, fmt.Errorf("menu item %s: %w", id, store.ErrNotFound)
		}
		return models.MenuItem{}, fmt.Errorf("get menu item %s: %w", id, err)
	}
	return decodeMenuItem(doc)
}

// menuItemDoc keeps the catalog position next to the item fields.
type menuItemDoc struct {
	models.MenuItem
	Position int `firestore:"position"`
}

func (s *Store) SaveMenuItem(ctx context.Context, item models.MenuItem) error {
	item.SetStock(item.Stock)
	if err := models.ValidateMenuItem(&item); err != nil {
		return err
	}
	item.UpdatedAt = s.clock.Now()

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := s.menu().Doc(item.ID)
		doc := menuItemDoc{MenuItem: item}

		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			if pos, err := snap.DataAt("position"); err == nil {
				if p, ok := pos.(int64); ok {
					doc.Position = int(p)
				}
			}
		case notFound(err):
			all, err := tx.Documents(s.menu()).GetAll()
			if err != nil {
				return err
			}
			doc.Position = len(all)
		default:
			return err
		}
		return tx.Set(ref, doc)
	})
}

func (s *Store) SetStock(ctx context.Context, id string, stock int) (models.MenuItem, error) {
	_, err := s.menu().Doc(id).Update(ctx, []firestore.Update{
		{Path: "stock", Value: stock},
		{Path: "isAvailable", Value: stock > 0},
		{Path: "updatedAt", Value: s.clock.Now()},
	})
	if err != nil {
		if notFound(err) {
			return models.MenuItem{}, fmt.Errorf("menu item %s: %w", id, store.ErrNotFound)
		}
		return models.MenuItem{}, fmt.Errorf("set stock of %s: %w", id, err)
	}
	return s.GetMenuItem(ctx, id)
}

func (s *Store) SubscribeMenu(ctx context.Context) (*store.Subscription[[]models.MenuItem], error) {
	q := s.menu().OrderBy("position", firestore.Asc)
	return watch(ctx, s, q, decodeMenu)
}

// Stock transactions

// InTx implements inventory.Transactor with a Firestore transaction, which
// the client retries when it loses a contention race.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx inventory.Tx) error) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, &stockTx{s: s, tx: tx, now: s.clock.Now()})
	})
}

type stockTx struct {
	s   *Store
	tx  *firestore.Transaction
	now time.Time
}

func (t *stockTx) Level(ctx context.Context, itemID string) (inventory.Level, bool, error) {
	snap, err := t.tx.Get(t.s.menu().Doc(itemID))
	if err != nil {
		if notFound(err) {
			return inventory.Level{}, false, nil
		}
		return inventory.Level{}, false, err
	}
	item, err := decodeMenuItem(snap)
	if err != nil {
		return inventory.Level{}, false, err
	}
	return inventory.Level{Name: item.Name, Stock: item.Stock}, true, nil
}

func (t *stockTx) SetStock(ctx context.Context, itemID string, stock int) error {
	return t.tx.Update(t.s.menu().Doc(itemID), []firestore.Update{
		{Path: "stock", Value: stock},
		{Path: "isAvailable", Value: stock > 0},
		{Path: "updatedAt", Value: t.now},
	})
}

// Orders

func (s *Store) CreateOrder(ctx context.Context, o models.Order) (models.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := s.clock.Now()
	o.PlacedAt = now
	if o.ServiceRequest != "" && o.ServiceRequestAt == nil {
		o.ServiceRequestAt = &now
	}
	if o.Items == nil {
		o.Items = []models.OrderLine{}
	}

	if _, err := s.orders(o.CustomerID).Doc(o.ID).Create(ctx, orderDoc{Order: o, Venue: s.venue}); err != nil {
		return models.Order{}, fmt.Errorf("create order: %w", err)
	}
	return o, nil
}

func decodeOrder(doc *firestore.DocumentSnapshot) (models.Order, error) {
	var d orderDoc
	if err := doc.DataTo(&d); err != nil {
		return models.Order{}, fmt.Errorf("decode order %s: %w", doc.Ref.ID, err)
	}
	d.Order.ID = doc.Ref.ID
	return d.Order, nil
}

func decodeOrders(docs []*firestore.DocumentSnapshot) ([]models.Order, error) {
	orders := make([]models.Order, 0, len(docs))
	for _, doc := range docs {
		o, err := decodeOrder(doc)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (s *Store) GetOrder(ctx context.Context, customerID, id string) (models.Order, error) {
	doc, err := s.orders(customerID).Doc(id).Get(ctx)
	if err != nil {
		if notFound(err) {
			return models.Order{}, fmt.Errorf("order %s: %w", id, store.ErrNotFound)
		}
		return models.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return decodeOrder(doc)
}

func (s *Store) UpdateOrder(ctx context.Context, customerID, id string, fn func(o *models.Order) error) (models.Order, error) {
	var updated models.Order
	ref := s.orders(customerID).Doc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if notFound(err) {
				return fmt.Errorf("order %s: %w", id, store.ErrNotFound)
			}
			return err
		}
		o, err := decodeOrder(snap)
		if err != nil {
			return err
		}
		if err := fn(&o); err != nil {
			return err
		}
		updated = o
		return tx.Set(ref, orderDoc{Order: o, Venue: s.venue})
	})
	if err != nil {
		return models.Order{}, err
	}
	return updated, nil
}

func (s *Store) orderQuery(q store.OrderQuery) firestore.Query {
	var base firestore.Query
	if q.CustomerID != "" {
		base = s.orders(q.CustomerID).Query
	} else {
		base = s.client.CollectionGroup("orders").Where("venue", "==", s.venue)
	}
	return base.OrderBy("placedAt", firestore.Desc).Limit(q.EffectiveLimit())
}

func (s *Store) ListOrders(ctx context.Context, q store.OrderQuery) ([]models.Order, error) {
	docs, err := s.orderQuery(q).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return decodeOrders(docs)
}

func (s *Store) SubscribeOrders(ctx context.Context, q store.OrderQuery) (*store.Subscription[[]models.Order], error) {
	return watch(ctx, s, s.orderQuery(q), decodeOrders)
}

// watch streams query snapshots into a subscription. The Firestore client
// reconnects on transient errors; anything else ends the subscription.
func watch[T any](ctx context.Context, s *Store, q firestore.Query, decode func([]*firestore.DocumentSnapshot) (T, error)) (*store.Subscription[T], error) {
	ctx, cancel := context.WithCancel(ctx)
	it := q.Snapshots(ctx)

	sub := store.NewSubscription[T]()
	sub.OnClose(cancel)

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled || ctx.Err() != nil {
					sub.Close()
					return
				}
				log.Printf("firestore listener failed: %v", err)
				sub.Fail(fmt.Errorf("%w: %v", store.ErrSubscriptionClosed, err))
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				log.Printf("firestore snapshot read failed: %v", err)
				continue
			}
			data, err := decode(docs)
			if err != nil {
				log.Printf("firestore snapshot decode failed: %v", err)
				continue
			}
			sub.Publish(store.Snapshot[T]{Version: s.version.Add(1), Data: data})
		}
	}()
	return sub, nil
}

// Manual incidents

func (s *Store) RaiseIncident(ctx context.Context, in incidents.Incident) (incidents.Incident, error) {
	in, err := incidents.Prepare(in)
	if err != nil {
		return incidents.Incident{}, err
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.clock.Now()
	}
	doc := incidentDoc{
		Type:      string(in.Type),
		Text:      in.Text,
		Table:     in.Table,
		CreatedAt: in.CreatedAt,
		Status:    string(in.Status),
	}
	ref := s.incidents().Doc(in.Key.Ref)
	if _, err := ref.Create(ctx, doc); err != nil {
		if status.Code(err) != codes.AlreadyExists {
			return incidents.Incident{}, fmt.Errorf("raise incident: %w", err)
		}
		snap, err := ref.Get(ctx)
		if err != nil {
			return incidents.Incident{}, fmt.Errorf("load incident %s: %w", in.Key.Ref, err)
		}
		var existing incidentDoc
		if err := snap.DataTo(&existing); err != nil {
			return incidents.Incident{}, fmt.Errorf("decode incident %s: %w", in.Key.Ref, err)
		}
		return existing.incident(in.Key.Ref), nil
	}
	return in, nil
}

func (s *Store) ManualIncidents(ctx context.Context) ([]incidents.Incident, error) {
	it := s.incidents().Documents(ctx)
	defer it.Stop()

	out := make([]incidents.Incident, 0)
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list incidents: %w", err)
		}
		var d incidentDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("decode incident %s: %w", snap.Ref.ID, err)
		}
		out = append(out, d.incident(snap.Ref.ID))
	}
	incidents.SortOldestFirst(out)
	return out, nil
}

func (s *Store) ResolveIncident(ctx context.Context, ref string) error {
	_, err := s.incidents().Doc(ref).Update(ctx, []firestore.Update{
		{Path: "status", Value: string(incidents.StatusResolved)},
	})
	if notFound(err) {
		return fmt.Errorf("%w: %s", incidents.ErrUnknownIncident, incidents.ManualKey(ref))
	}
	if err != nil {
		return fmt.Errorf("resolve incident %s: %w", ref, err)
	}
	return nil
}
