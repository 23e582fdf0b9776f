// Package ordering orchestrates the venue workflows on top of a store:
// checkout with stock reservation, kitchen status changes, service
// requests, feedback and manual restocking.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"smartserve/internal/clock"
	"smartserve/internal/feedback"
	"smartserve/internal/incidents"
	"smartserve/internal/inventory"
	"smartserve/internal/lifecycle"
	"smartserve/internal/models"
	"smartserve/internal/monitoring"
	"smartserve/internal/pricing"
	"smartserve/internal/store"
)

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrMissingTable   = errors.New("dine-in orders need a table")
	ErrInvalidType    = errors.New("unknown order type")
	ErrEmptyRequest   = errors.New("service request text is required")
	ErrActiveOrder    = errors.New("customer already has an active order")
	ErrFeedbackClosed = errors.New("feedback already submitted or skipped")
	ErrNotServed      = errors.New("feedback is only accepted once the order is served")
	ErrInvalidStock   = errors.New("stock must not be negative")
	ErrInvalidDelay   = errors.New("delay must be a positive number of minutes")
	ErrUnknownStatus  = errors.New("unknown order status")

	ErrInvalidRating = feedback.ErrInvalidRating
	ErrNotPreparing  = lifecycle.ErrNotPreparing
	ErrTerminal      = lifecycle.ErrTerminal
)

// Staff names used for bare service requests
const (
	GeneralServer  = "General Service"
	GeneralRequest = "General Assistance"
)

// Metrics receives workflow events. *monitoring.Collector implements it.
type Metrics interface {
	OrderPlaced(orderType models.OrderType)
	StockOut(itemID string)
	Transition(from, to models.Status)
	ServiceRequest(kind string)
	Feedback(outcome string)
	ActiveIncidents(bySource map[string]int)
	ReadyAfter(d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) OrderPlaced(models.OrderType)            {}
func (nopMetrics) StockOut(string)                         {}
func (nopMetrics) Transition(models.Status, models.Status) {}
func (nopMetrics) ServiceRequest(string)                   {}
func (nopMetrics) Feedback(string)                         {}
func (nopMetrics) ActiveIncidents(map[string]int)          {}
func (nopMetrics) ReadyAfter(time.Duration)                {}

// Options tunes a Service. Zero values fall back to the defaults below.
type Options struct {
	Timing        lifecycle.Timing
	Thresholds    incidents.Thresholds
	FeedbackDelay time.Duration
	OrderLimit    int
	ServerName    string
	PreparerName  string

	Metrics   Metrics
	Monitor   *monitoring.Monitor
	Insighter feedback.Insighter
}

// DefaultOptions mirrors the demo venue timings.
func DefaultOptions() Options {
	return Options{
		Timing:        lifecycle.Timing{BaseWait: 5 * time.Second, OrderLate: 10 * time.Second},
		Thresholds:    incidents.Thresholds{OrderLate: 10 * time.Second, ServiceLate: 5 * time.Second},
		FeedbackDelay: 5 * time.Second,
		OrderLimit:    store.DefaultOrderLimit,
		ServerName:    "John D.",
		PreparerName:  "Chef Michael",
	}
}

// Service runs the venue workflows.
type Service struct {
	store store.Store
	clock clock.Clock
	opts  Options
}

// New creates a Service over st.
func New(st store.Store, clk clock.Clock, opts Options) *Service {
	def := DefaultOptions()
	if opts.Timing.BaseWait <= 0 {
		opts.Timing.BaseWait = def.Timing.BaseWait
	}
	if opts.Timing.OrderLate <= 0 {
		opts.Timing.OrderLate = def.Timing.OrderLate
	}
	if opts.Thresholds.OrderLate <= 0 {
		opts.Thresholds.OrderLate = opts.Timing.OrderLate
	}
	if opts.Thresholds.ServiceLate <= 0 {
		opts.Thresholds.ServiceLate = def.Thresholds.ServiceLate
	}
	if opts.FeedbackDelay <= 0 {
		opts.FeedbackDelay = def.FeedbackDelay
	}
	if opts.OrderLimit <= 0 {
		opts.OrderLimit = def.OrderLimit
	}
	if opts.ServerName == "" {
		opts.ServerName = def.ServerName
	}
	if opts.PreparerName == "" {
		opts.PreparerName = def.PreparerName
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Insighter == nil {
		opts.Insighter = feedback.Heuristic{}
	}
	if clk == nil {
		clk = clock.Wall{}
	}
	if opts.Monitor == nil {
		opts.Monitor = monitoring.NewMonitor(clk)
	}
	return &Service{store: st, clock: clk, opts: opts}
}

// Options returns the effective options.
func (s *Service) Options() Options {
	return s.opts
}

// Now returns the service clock's time.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// CartLine is one configured item in a checkout request.
type CartLine struct {
	ItemID         string           `json:"id"`
	Modifiers      models.Selection `json:"modifiers,omitempty"`
	SpecialRequest string           `json:"specialRequest,omitempty"`
}

// PlaceRequest is a checkout.
type PlaceRequest struct {
	Lines     []CartLine       `json:"items"`
	Table     string           `json:"table"`
	OrderType models.OrderType `json:"orderType"`
}

// PlaceOrder prices the cart from the catalog, reserves stock for every line
// and creates the order as ACCEPTED. Nothing is written when any line is out
// of stock.
func (s *Service) PlaceOrder(ctx context.Context, customerID string, req PlaceRequest) (models.Order, error) {
	if len(req.Lines) == 0 {
		return models.Order{}, ErrEmptyCart
	}

	table := strings.TrimSpace(req.Table)
	switch req.OrderType {
	case models.OrderTypeTakeaway:
		table = models.TableTakeaway
	case models.OrderTypeDineIn, "":
		req.OrderType = models.OrderTypeDineIn
		if table == "" {
			return models.Order{}, ErrMissingTable
		}
	default:
		return models.Order{}, fmt.Errorf("%w: %q", ErrInvalidType, req.OrderType)
	}

	lines := make([]models.OrderLine, 0, len(req.Lines))
	reserve := make([]inventory.Line, 0, len(req.Lines))
	for _, cl := range req.Lines {
		item, err := s.store.GetMenuItem(ctx, cl.ItemID)
		if err != nil {
			return models.Order{}, fmt.Errorf("menu item %s: %w", cl.ItemID, err)
		}
		price, err := pricing.Quote(&item, cl.Modifiers)
		if err != nil {
			return models.Order{}, err
		}
		lines = append(lines, models.OrderLine{
			ItemID:         item.ID,
			Name:           item.Name,
			Price:          price,
			Modifiers:      cl.Modifiers,
			SpecialRequest: strings.TrimSpace(cl.SpecialRequest),
		})
		reserve = append(reserve, inventory.Line{ItemID: item.ID, ItemName: item.Name, Quantity: 1})
	}

	if err := inventory.Reserve(ctx, s.store, reserve); err != nil {
		var oos *inventory.OutOfStockError
		if errors.As(err, &oos) {
			s.opts.Metrics.StockOut(oos.ItemID)
		}
		return models.Order{}, err
	}

	order, err := s.store.CreateOrder(ctx, models.Order{
		CustomerID:   customerID,
		Status:       models.StatusAccepted,
		Items:        lines,
		Total:        models.LinesTotal(lines),
		Table:        table,
		OrderType:    req.OrderType,
		ServerName:   s.opts.ServerName,
		PreparerName: s.opts.PreparerName,
	})
	if err != nil {
		if rerr := inventory.Release(ctx, s.store, reserve); rerr != nil {
			log.Printf("Failed to release stock for customer %s: %v", customerID, rerr)
		}
		return models.Order{}, fmt.Errorf("create order: %w", err)
	}

	s.opts.Metrics.OrderPlaced(order.OrderType)
	log.Printf("Order %s placed by %s at table %s (%s)", order.ID, customerID, order.Table, pricing.FormatKSh(order.Total))
	return order, nil
}

// RequestGeneralService raises a bare service request for a customer with no
// active order. It is stored as an order without items.
func (s *Service) RequestGeneralService(ctx context.Context, customerID, text string) (models.Order, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = GeneralRequest
	}

	orders, err := s.store.ListOrders(ctx, store.OrderQuery{CustomerID: customerID, Limit: s.opts.OrderLimit})
	if err != nil {
		return models.Order{}, err
	}
	if active := lifecycle.ActiveOrder(orders); active != nil {
		return models.Order{}, fmt.Errorf("%w: %s", ErrActiveOrder, active.ID)
	}

	order, err := s.store.CreateOrder(ctx, models.Order{
		CustomerID:     customerID,
		Status:         models.StatusAccepted,
		Items:          []models.OrderLine{},
		Table:          models.TableGeneralRequest,
		OrderType:      models.OrderTypeDineIn,
		ServerName:     GeneralServer,
		ServiceRequest: text,
	})
	if err != nil {
		return models.Order{}, fmt.Errorf("create service request: %w", err)
	}
	s.opts.Metrics.ServiceRequest("general")
	return order, nil
}

// Advance moves an order one step along the status flow. expected is the
// status the caller saw; a mismatch means someone else already advanced it
// and yields store.ErrStaleWrite.
func (s *Service) Advance(ctx context.Context, customerID, id string, expected models.Status) (models.Order, error) {
	if !lifecycle.Valid(expected) {
		return models.Order{}, fmt.Errorf("%w: %q", ErrUnknownStatus, expected)
	}
	now := s.clock.Now()
	order, err := s.store.UpdateOrder(ctx, customerID, id, func(o *models.Order) error {
		if o.Status != expected {
			return fmt.Errorf("%w: order is %s, expected %s", store.ErrStaleWrite, o.Status, expected)
		}
		return lifecycle.Advance(o, now)
	})
	if err != nil {
		if errors.Is(err, lifecycle.ErrInvalidTransition) || errors.Is(err, store.ErrStaleWrite) {
			log.Printf("Ignoring advance of order %s: %v", id, err)
		}
		return models.Order{}, err
	}

	s.opts.Metrics.Transition(expected, order.Status)
	if order.Status == models.StatusReady && order.ReadyAt != nil {
		s.opts.Metrics.ReadyAfter(order.ReadyAt.Sub(order.PlacedAt))
	}
	return order, nil
}

// DeclareDelay adds a manual wait to a preparing order, replacing any
// previous one.
func (s *Service) DeclareDelay(ctx context.Context, customerID, id string, minutes int) (models.Order, error) {
	if minutes <= 0 {
		return models.Order{}, fmt.Errorf("%w: got %d", ErrInvalidDelay, minutes)
	}
	now := s.clock.Now()
	return s.store.UpdateOrder(ctx, customerID, id, func(o *models.Order) error {
		return lifecycle.DeclareDelay(o, minutes, now)
	})
}

// SetServiceRequest attaches a request to a live order.
func (s *Service) SetServiceRequest(ctx context.Context, customerID, id, text string) (models.Order, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Order{}, ErrEmptyRequest
	}
	now := s.clock.Now()
	order, err := s.store.UpdateOrder(ctx, customerID, id, func(o *models.Order) error {
		return lifecycle.SetServiceRequest(o, text, now)
	})
	if err != nil {
		return models.Order{}, err
	}
	s.opts.Metrics.ServiceRequest("order")
	return order, nil
}

// ClearServiceRequest empties the request. Clearing twice is harmless.
func (s *Service) ClearServiceRequest(ctx context.Context, customerID, id string) (models.Order, error) {
	now := s.clock.Now()
	var before models.Status
	order, err := s.store.UpdateOrder(ctx, customerID, id, func(o *models.Order) error {
		before = o.Status
		lifecycle.ClearServiceRequest(o, now)
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}
	if before != order.Status {
		s.opts.Metrics.Transition(before, order.Status)
	}
	return order, nil
}

// AttachFeedback stores the customer's ratings on a served order. Submitting
// and skipping are exclusive and happen at most once.
func (s *Service) AttachFeedback(ctx context.Context, customerID, id string, fb models.Feedback) (models.Order, error) {
	if err := feedback.Validate(fb); err != nil {
		return models.Order{}, err
	}
	fb.Comment = strings.TrimSpace(fb.Comment)
	now := s.clock.Now()

	order, err := s.store.UpdateOrder(ctx, customerID, id, func(o *models.Order) error {
		if err := feedbackOpen(o); err != nil {
			return err
		}
		fb.ServerName = o.ServerName
		fb.PreparerName = o.PreparerName
		fb.CreatedAt = now
		o.Feedback = &fb
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}
	s.opts.Metrics.Feedback("submitted")
	return order, nil
}

// SkipFeedback records that the customer declined to rate the order.
func (s *Service) SkipFeedback(ctx context.Context, customerID, id string) (models.Order, error) {
	order, err := s.store.UpdateOrder(ctx, customerID, id, func(o *models.Order) error {
		if err := feedbackOpen(o); err != nil {
			return err
		}
		o.FeedbackSkipped = true
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}
	s.opts.Metrics.Feedback("skipped")
	return order, nil
}

func feedbackOpen(o *models.Order) error {
	if o.FeedbackClosed() {
		return ErrFeedbackClosed
	}
	if o.Status != models.StatusServed {
		return fmt.Errorf("%w: order is %s", ErrNotServed, o.Status)
	}
	return nil
}

// AdjustStock overwrites an item's stock count, e.g. after a delivery.
func (s *Service) AdjustStock(ctx context.Context, itemID string, stock int) (models.MenuItem, error) {
	if stock < 0 {
		return models.MenuItem{}, fmt.Errorf("%w: %d", ErrInvalidStock, stock)
	}
	item, err := s.store.SetStock(ctx, itemID, stock)
	if err != nil {
		return models.MenuItem{}, err
	}
	log.Printf("Stock for %s set to %d", item.Name, stock)
	return item, nil
}

// Quote prices one configured line against the current catalog.
func (s *Service) Quote(ctx context.Context, itemID string, selected models.Selection) (int, error) {
	item, err := s.store.GetMenuItem(ctx, itemID)
	if err != nil {
		return 0, err
	}
	return pricing.Quote(&item, selected)
}

// Menu lists the catalog.
func (s *Service) Menu(ctx context.Context) ([]models.MenuItem, error) {
	return s.store.ListMenu(ctx)
}

// Orders lists a customer's orders, newest first. An empty customerID lists
// the whole venue.
func (s *Service) Orders(ctx context.Context, customerID string) ([]models.Order, error) {
	return s.store.ListOrders(ctx, store.OrderQuery{CustomerID: customerID, Limit: s.opts.OrderLimit})
}

// SubscribeOrders follows a customer's orders, or the venue's when
// customerID is empty.
func (s *Service) SubscribeOrders(ctx context.Context, customerID string) (*store.Subscription[[]models.Order], error) {
	return s.store.SubscribeOrders(ctx, store.OrderQuery{CustomerID: customerID, Limit: s.opts.OrderLimit})
}

// SubscribeMenu follows the catalog.
func (s *Service) SubscribeMenu(ctx context.Context) (*store.Subscription[[]models.MenuItem], error) {
	return s.store.SubscribeMenu(ctx)
}
