package ordering

import (
	"context"
	"time"

	"smartserve/internal/feedback"
	"smartserve/internal/incidents"
	"smartserve/internal/lifecycle"
	"smartserve/internal/models"
	"smartserve/internal/monitoring"
)

// PastOrderCount is how many served orders the customer view keeps.
const PastOrderCount = 5

// CustomerView is what the ordering screen renders.
type CustomerView struct {
	Orders          []models.Order          `json:"orders"`
	Active          *models.Order           `json:"activeOrder,omitempty"`
	ActiveLabel     string                  `json:"activeLabel,omitempty"`
	Wait            *lifecycle.WaitEstimate `json:"wait,omitempty"`
	Past            []models.Order          `json:"pastOrders"`
	PendingFeedback *models.Order           `json:"pendingFeedback,omitempty"`
}

// KitchenView is what the kitchen dashboard renders.
type KitchenView struct {
	Orders          []models.Order       `json:"orders"`
	Pending         []models.Order       `json:"pending"`
	ServiceRequests []models.Order       `json:"serviceRequests"`
	FeedbackOrders  []models.Order       `json:"feedbackOrders"`
	Incidents       []incidents.Incident `json:"incidents"`
	Ratings         feedback.Ratings     `json:"ratings"`
	GeneratedAt     time.Time            `json:"generatedAt"`
}

// BuildCustomerView derives the customer screen from their orders.
func (s *Service) BuildCustomerView(orders []models.Order, now time.Time) CustomerView {
	view := CustomerView{
		Orders: orders,
		Past:   lifecycle.PastOrders(orders, PastOrderCount),
	}
	if active := lifecycle.ActiveOrder(orders); active != nil {
		a := *active
		wait := lifecycle.Estimate(&a, now, s.opts.Timing)
		view.Active = &a
		view.ActiveLabel = lifecycle.Label(a.Status)
		view.Wait = &wait
	}
	if pending := feedback.Pending(orders, now, s.opts.FeedbackDelay); pending != nil {
		p := *pending
		view.PendingFeedback = &p
	}
	return view
}

// CustomerView loads and derives the customer screen.
func (s *Service) CustomerView(ctx context.Context, customerID string) (CustomerView, error) {
	orders, err := s.Orders(ctx, customerID)
	if err != nil {
		return CustomerView{}, err
	}
	return s.BuildCustomerView(orders, s.clock.Now()), nil
}

// BuildKitchenView derives the dashboard from the venue orders and the
// manual incidents, and records the resulting counts.
func (s *Service) BuildKitchenView(orders []models.Order, manual []incidents.Incident, now time.Time) KitchenView {
	view := KitchenView{
		Orders:          orders,
		Pending:         make([]models.Order, 0),
		ServiceRequests: make([]models.Order, 0),
		FeedbackOrders:  make([]models.Order, 0),
		Incidents:       incidents.Derive(orders, manual, now, s.opts.Thresholds),
		Ratings:         feedback.Aggregate(orders),
		GeneratedAt:     now,
	}
	for _, o := range orders {
		if o.Status != models.StatusReady && o.Status != models.StatusServed {
			view.Pending = append(view.Pending, o)
		}
		if o.ServiceRequest != "" && o.Status != models.StatusServed {
			view.ServiceRequests = append(view.ServiceRequests, o)
		}
		if o.Feedback != nil {
			view.FeedbackOrders = append(view.FeedbackOrders, o)
		}
	}

	bySource := incidents.CountBySource(view.Incidents)
	counts := map[string]int{
		string(incidents.SourceManual):      bySource[incidents.SourceManual],
		string(incidents.SourceLateOrder):   bySource[incidents.SourceLateOrder],
		string(incidents.SourceLateService): bySource[incidents.SourceLateService],
	}
	s.opts.Metrics.ActiveIncidents(counts)
	s.opts.Monitor.RecordSnapshot("kitchen", map[string]interface{}{
		"pending":          len(view.Pending),
		"service_requests": len(view.ServiceRequests),
		"incidents":        len(view.Incidents),
		"feedback":         view.Ratings.Count,
	})
	return view
}

// KitchenView loads and derives the kitchen dashboard.
func (s *Service) KitchenView(ctx context.Context) (KitchenView, error) {
	orders, err := s.Orders(ctx, "")
	if err != nil {
		return KitchenView{}, err
	}
	manual, err := s.store.ManualIncidents(ctx)
	if err != nil {
		return KitchenView{}, err
	}
	return s.BuildKitchenView(orders, manual, s.clock.Now()), nil
}

// ManualIncidents returns the stored active manual incidents.
func (s *Service) ManualIncidents(ctx context.Context) ([]incidents.Incident, error) {
	return s.store.ManualIncidents(ctx)
}

// Incidents returns the live feed: derived incidents then active manual ones.
func (s *Service) Incidents(ctx context.Context) ([]incidents.Incident, error) {
	view, err := s.KitchenView(ctx)
	if err != nil {
		return nil, err
	}
	return view.Incidents, nil
}

// RaiseIncident records a manual incident.
func (s *Service) RaiseIncident(ctx context.Context, in incidents.Incident) (incidents.Incident, error) {
	return s.store.RaiseIncident(ctx, in)
}

// ResolveIncident resolves a manual incident by its feed id. Derived ids are
// rejected with incidents.ErrSelfClearing.
func (s *Service) ResolveIncident(ctx context.Context, id string) error {
	return incidents.Resolve(ctx, s.store, id)
}

// Ratings aggregates the venue feedback.
func (s *Service) Ratings(ctx context.Context) (feedback.Ratings, error) {
	orders, err := s.Orders(ctx, "")
	if err != nil {
		return feedback.Ratings{}, err
	}
	return feedback.Aggregate(orders), nil
}

// Analytics builds the profit and staff report.
func (s *Service) Analytics(ctx context.Context) (feedback.Report, error) {
	orders, err := s.Orders(ctx, "")
	if err != nil {
		return feedback.Report{}, err
	}
	menu, err := s.store.ListMenu(ctx)
	if err != nil {
		return feedback.Report{}, err
	}
	return feedback.Analyze(orders, menu), nil
}

// Insights turns the venue feedback into operational hints.
func (s *Service) Insights(ctx context.Context) ([]feedback.OrderInsight, error) {
	orders, err := s.Orders(ctx, "")
	if err != nil {
		return nil, err
	}
	return feedback.Insights(ctx, s.opts.Insighter, orders)
}

// LiveMetrics reports the figures gathered by the dashboards and live feeds.
func (s *Service) LiveMetrics() monitoring.Report {
	return s.opts.Monitor.Report()
}

// Monitor exposes the monitor so the live feeds can report into it.
func (s *Service) Monitor() *monitoring.Monitor {
	return s.opts.Monitor
}
