package ordering

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"smartserve/internal/clock"
	"smartserve/internal/models"
	"smartserve/internal/monitoring"
	"smartserve/internal/store"
)

var epoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type recordedMetrics struct {
	mu          sync.Mutex
	placed      []models.OrderType
	stockOuts   []string
	transitions []string
	requests    []string
	feedback    []string
	incidents   map[string]int
	ready       []time.Duration
}

func (m *recordedMetrics) OrderPlaced(t models.OrderType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placed = append(m.placed, t)
}

func (m *recordedMetrics) StockOut(itemID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stockOuts = append(m.stockOuts, itemID)
}

func (m *recordedMetrics) Transition(from, to models.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, string(from)+">"+string(to))
}

func (m *recordedMetrics) ServiceRequest(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, kind)
}

func (m *recordedMetrics) Feedback(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback = append(m.feedback, outcome)
}

func (m *recordedMetrics) ActiveIncidents(bySource map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incidents = bySource
}

func (m *recordedMetrics) ReadyAfter(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = append(m.ready, d)
}

type fixture struct {
	svc     *Service
	store   *store.GormStore
	clock   *clock.Manual
	metrics *recordedMetrics
	monitor *monitoring.Monitor
}

func newFixture(t *testing.T, items ...models.MenuItem) *fixture {
	t.Helper()
	clk := clock.NewManual(epoch)
	st, err := store.OpenGorm("sqlite3", filepath.Join(t.TempDir(), "ordering.db"), clk)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	for _, item := range items {
		require.NoError(t, st.SaveMenuItem(context.Background(), item))
	}

	metrics := &recordedMetrics{}
	monitor := monitoring.NewMonitor(clk)
	svc := New(st, clk, Options{Metrics: metrics, Monitor: monitor})
	return &fixture{svc: svc, store: st, clock: clk, metrics: metrics, monitor: monitor}
}

func breakfast(stock int) models.MenuItem {
	return models.MenuItem{
		ID:       "b1",
		Name:     "Full English Breakfast",
		Category: "Breakfast",
		Price:    1360,
		Stock:    stock,
		FoodCost: 600,
		Modifiers: []models.Modifier{
			{Label: "Eggs", Kind: models.ModifierSingle, Options: []string{"Fried", "Scrambled", "No Eggs (- KSh 50)"}},
			{Label: "Extras", Kind: models.ModifierMulti, Options: []string{"Butter Glazed Toasted (+ KSh 30)", "Avocado (+ KSh 100)"}},
		},
	}
}

func coffee(stock int) models.MenuItem {
	return models.MenuItem{
		ID:       "d1",
		Name:     "Cappuccino",
		Category: "Drinks",
		Price:    350,
		Stock:    stock,
	}
}

func dineIn(lines ...CartLine) PlaceRequest {
	return PlaceRequest{Lines: lines, Table: "T4", OrderType: models.OrderTypeDineIn}
}

func stockOf(t *testing.T, f *fixture, id string) models.MenuItem {
	t.Helper()
	item, err := f.store.GetMenuItem(context.Background(), id)
	require.NoError(t, err)
	return item
}

// serve walks an order from ACCEPTED to SERVED.
func serve(t *testing.T, f *fixture, o models.Order) models.Order {
	t.Helper()
	ctx := context.Background()
	for _, s := range []models.Status{models.StatusAccepted, models.StatusPreparing, models.StatusReady} {
		var err error
		o, err = f.svc.Advance(ctx, o.CustomerID, o.ID, s)
		require.NoError(t, err)
	}
	return o
}
