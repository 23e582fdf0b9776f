package ordering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartserve/internal/inventory"
	"smartserve/internal/lifecycle"
	"smartserve/internal/models"
	"smartserve/internal/pricing"
	"smartserve/internal/store"
)

func TestNew_ZeroOptionsUseDefaults(t *testing.T) {
	def := DefaultOptions()

	opts := New(nil, nil, Options{}).Options()
	assert.Equal(t, def.Timing, opts.Timing)
	assert.Equal(t, def.Thresholds, opts.Thresholds)
	assert.Equal(t, def.FeedbackDelay, opts.FeedbackDelay)
	assert.Equal(t, def.OrderLimit, opts.OrderLimit)
	assert.Equal(t, def.ServerName, opts.ServerName)

	opts = New(nil, nil, Options{FeedbackDelay: -time.Second}).Options()
	assert.Equal(t, def.FeedbackDelay, opts.FeedbackDelay)
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t, breakfast(3), coffee(5))
	ctx := context.Background()

	order, err := f.svc.PlaceOrder(ctx, "cust-1", dineIn(
		CartLine{ItemID: "b1", Modifiers: models.Selection{
			"Eggs":   {"No Eggs (- KSh 50)"},
			"Extras": {"Butter Glazed Toasted (+ KSh 30)"},
		}},
		CartLine{ItemID: "d1", SpecialRequest: "  extra hot "},
	))
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, models.StatusAccepted, order.Status)
	assert.Equal(t, epoch, order.PlacedAt)
	assert.Equal(t, "T4", order.Table)
	assert.Equal(t, "John D.", order.ServerName)
	assert.Equal(t, "Chef Michael", order.PreparerName)
	require.Len(t, order.Items, 2)
	assert.Equal(t, 1340, order.Items[0].Price)
	assert.Equal(t, "extra hot", order.Items[1].SpecialRequest)
	assert.Equal(t, 1340+350, order.Total)

	assert.Equal(t, 2, stockOf(t, f, "b1").Stock)
	assert.Equal(t, 4, stockOf(t, f, "d1").Stock)
	assert.Equal(t, []models.OrderType{models.OrderTypeDineIn}, f.metrics.placed)
}

func TestPlaceOrder_Takeaway(t *testing.T) {
	f := newFixture(t, coffee(1))

	order, err := f.svc.PlaceOrder(context.Background(), "cust-1", PlaceRequest{
		Lines:     []CartLine{{ItemID: "d1"}},
		OrderType: models.OrderTypeTakeaway,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TableTakeaway, order.Table)

	item := stockOf(t, f, "d1")
	assert.Equal(t, 0, item.Stock)
	assert.False(t, item.IsAvailable)
}

func TestPlaceOrder_Rejected(t *testing.T) {
	f := newFixture(t, breakfast(3))
	ctx := context.Background()

	_, err := f.svc.PlaceOrder(ctx, "cust-1", dineIn())
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = f.svc.PlaceOrder(ctx, "cust-1", PlaceRequest{Lines: []CartLine{{ItemID: "b1"}}})
	assert.ErrorIs(t, err, ErrMissingTable)

	_, err = f.svc.PlaceOrder(ctx, "cust-1", PlaceRequest{Lines: []CartLine{{ItemID: "b1"}}, Table: "T1", OrderType: "DELIVERY"})
	assert.ErrorIs(t, err, ErrInvalidType)

	_, err = f.svc.PlaceOrder(ctx, "cust-1", dineIn(CartLine{ItemID: "b1", Modifiers: models.Selection{"Sauce": {"Chilli"}}}))
	assert.ErrorIs(t, err, pricing.ErrUnknownModifier)

	_, err = f.svc.PlaceOrder(ctx, "cust-1", dineIn(CartLine{ItemID: "nope"}))
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.Equal(t, 3, stockOf(t, f, "b1").Stock)
	orders, err := f.svc.Orders(ctx, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPlaceOrder_OutOfStockIsAllOrNothing(t *testing.T) {
	f := newFixture(t, breakfast(2), coffee(0))
	ctx := context.Background()

	_, err := f.svc.PlaceOrder(ctx, "cust-1", dineIn(CartLine{ItemID: "b1"}, CartLine{ItemID: "d1"}))
	require.ErrorIs(t, err, inventory.ErrOutOfStock)

	var oos *inventory.OutOfStockError
	require.True(t, errors.As(err, &oos))
	assert.Equal(t, "Cappuccino", oos.ItemName)
	assert.Equal(t, []string{"d1"}, f.metrics.stockOuts)

	assert.Equal(t, 2, stockOf(t, f, "b1").Stock)
	orders, err := f.svc.Orders(ctx, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPlaceOrder_ConcurrentBuyersForLastUnit(t *testing.T) {
	f := newFixture(t, coffee(1))
	ctx := context.Background()

	const buyers = 8
	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.PlaceOrder(ctx, fmt.Sprintf("cust-%d", i), dineIn(CartLine{ItemID: "d1"}))
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, inventory.ErrOutOfStock)
	}
	assert.Equal(t, 1, won)

	item := stockOf(t, f, "d1")
	assert.Equal(t, 0, item.Stock)
	assert.False(t, item.IsAvailable)

	orders, err := f.svc.Orders(ctx, "")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestAdvance(t *testing.T) {
	f := newFixture(t, coffee(5))
	ctx := context.Background()

	order, err := f.svc.PlaceOrder(ctx, "cust-1", dineIn(CartLine{ItemID: "d1"}))
	require.NoError(t, err)

	order, err = f.svc.Advance(ctx, "cust-1", order.ID, models.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreparing, order.Status)

	// a second press with the same expectation lands on a changed order
	_, err = f.svc.Advance(ctx, "cust-1", order.ID, models.StatusAccepted)
	assert.ErrorIs(t, err, store.ErrStaleWrite)

	f.clock.Advance(90 * time.Second)
	order, err = f.svc.Advance(ctx, "cust-1", order.ID, models.StatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, order.Status)
	require.NotNil(t, order.ReadyAt)
	assert.Equal(t, epoch.Add(90*time.Second), *order.ReadyAt)

	order, err = f.svc.Advance(ctx, "cust-1", order.ID, models.StatusReady)
	require.NoError(t, err)
	assert.Equal(t, models.StatusServed, order.Status)
	assert.NotNil(t, order.ServedAt)

	_, err = f.svc.Advance(ctx, "cust-1", order.ID, models.StatusServed)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	stored, err := f.store.GetOrder(ctx, "cust-1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusServed, stored.Status)

	assert.Equal(t, []string{"ACCEPTED>PREPARING", "PREPARING>READY", "READY>SERVED"}, f.metrics.transitions)
	assert.Equal(t, []time.Duration{90 * time.Second}, f.metrics.ready)
}

func TestAdvance_UnknownExpectedStatus(t *testing.T) {
	f := newFixture(t, coffee(5))
	ctx := context.Background()

	order, err := f.svc.PlaceOrder(ctx, "cust-1", dineIn(CartLine{ItemID: "d1"}))
	require.NoError(t, err)

	_, err = f.svc.Advance(ctx, "cust-1", order.ID, models.Status("COOKING"))
	assert.ErrorIs(t, err, ErrUnknownStatus)

	orders, err := f.svc.Orders(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, orders[0].Status)
}

func TestAdvance_UnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Advance(context.Background(), "cust-1", "missing", models.StatusAccepted)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeclareDelay(t *testing.T) {
	f := newFixture(t, coffee(5))
	ctx := context.Background()

	order, err := f.svc.PlaceOrder(ctx, "cust-1", dineIn(CartLine{ItemID: "d1"}))
	require.NoError(t, err)

	_, err = f.svc.DeclareDelay(ctx, "cust-1", order.ID, 10)
	assert.ErrorIs(t, err, ErrNotPreparing)

	_, err = f.svc.Advance(ctx, "cust-1", order.ID, models.StatusAccepted)
	require.NoError(t, err)

	_, err = f.svc.DeclareDelay(ctx, "cust-1", order.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidDelay)

	f.clock.Advance(5 * time.Second)
	order, err = f.svc.DeclareDelay(ctx, "cust-1", order.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreparing, order.Status)
	assert.Equal(t, 10, order.DelayMinutes)

	f.clock.Advance(59 * time.Second)
	view, err := f.svc.CustomerView(ctx, "cust-1")
	require.NoError(t, err)
	require.NotNil(t, view.Wait)
	assert.Equal(t, 541*time.Second, view.Wait.Remaining)
	assert.True(t, view.Wait.ManuallyDelayed)
	assert.False(t, view.Wait.AutoLate)

	order, err = f.svc.DeclareDelay(ctx, "cust-1", order.ID, 15)
	require.NoError(t, err)
	assert.Equal(t, 15, order.DelayMinutes)
}

func TestServiceRequest(t *testing.T) {
	f := newFixture(t, coffee(5))
	ctx := context.Background()

	order, err := f.svc.PlaceOrder(ctx, "cust-1", dineIn(CartLine{ItemID: "d1"}))
	require.NoError(t, err)

	_, err = f.svc.SetServiceRequest(ctx, "cust-1", order.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyRequest)

	f.clock.Advance(time.Minute)
	order, err = f.svc.SetServiceRequest(ctx, "cust-1", order.ID, "Need napkins")
	require.NoError(t, err)
	assert.Equal(t, "Need napkins", order.ServiceRequest)
	require.NotNil(t, order.ServiceRequestAt)
	assert.Equal(t, epoch.Add(time.Minute), *order.ServiceRequestAt)

	order, err = f.svc.ClearServiceRequest(ctx, "cust-1", order.ID)
	require.NoError(t, err)
	assert.Empty(t, order.ServiceRequest)
	assert.Equal(t, models.StatusAccepted, order.Status)

	// clearing again is harmless
	_, err = f.svc.ClearServiceRequest(ctx, "cust-1", order.ID)
	require.NoError(t, err)

	order = serve(t, f, order)
	_, err = f.svc.SetServiceRequest(ctx, "cust-1", order.ID, "Bill please")
	assert.ErrorIs(t, err, ErrTerminal)

	assert.Equal(t, []string{"order"}, f.metrics.requests)
}

func TestGeneralServiceRequest(t *testing.T) {
	f := newFixture(t, coffee(5))
	ctx := context.Background()

	order, err := f.svc.RequestGeneralService(ctx, "cust-1", "")
	require.NoError(t, err)
	assert.True(t, order.IsServiceOnly())
	assert.Equal(t, models.StatusAccepted, order.Status)
	assert.Equal(t, models.TableGeneralRequest, order.Table)
	assert.Equal(t, GeneralServer, order.ServerName)
	assert.Equal(t, GeneralRequest, order.ServiceRequest)
	require.NotNil(t, order.ServiceRequestAt)

	_, err = f.svc.RequestGeneralService(ctx, "cust-1", "Water")
	assert.ErrorIs(t, err, ErrActiveOrder)

	order, err = f.svc.ClearServiceRequest(ctx, "cust-1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusServed, order.Status)
	assert.NotNil(t, order.ServedAt)

	f.clock.Advance(time.Second)
	_, err = f.svc.RequestGeneralService(ctx, "cust-1", "Water")
	require.NoError(t, err)

	assert.Equal(t, []string{"general", "general"}, f.metrics.requests)
	assert.Equal(t, []string{"ACCEPTED>SERVED"}, f.metrics.transitions)
}

func TestFeedback(t *testing.T) {
	f := newFixture(t, coffee(5))
	ctx := context.Background()

	order, err := f.svc.PlaceOrder(ctx, "cust-1", dineIn(CartLine{ItemID: "d1"}))
	require.NoError(t, err)

	good := models.Feedback{ServiceRating: 5, FoodRating: 4, Comment: " lovely "}
	_, err = f.svc.AttachFeedback(ctx, "cust-1", order.ID, good)
	assert.ErrorIs(t, err, ErrNotServed)

	order = serve(t, f, order)

	_, err = f.svc.AttachFeedback(ctx, "cust-1", order.ID, models.Feedback{ServiceRating: 6, FoodRating: 4})
	assert.ErrorIs(t, err, ErrInvalidRating)

	f.clock.Advance(time.Minute)
	order, err = f.svc.AttachFeedback(ctx, "cust-1", order.ID, good)
	require.NoError(t, err)
	require.NotNil(t, order.Feedback)
	assert.Equal(t, "lovely", order.Feedback.Comment)
	assert.Equal(t, "John D.", order.Feedback.ServerName)
	assert.Equal(t, "Chef Michael", order.Feedback.PreparerName)
	assert.Equal(t, epoch.Add(time.Minute), order.Feedback.CreatedAt)

	_, err = f.svc.AttachFeedback(ctx, "cust-1", order.ID, good)
	assert.ErrorIs(t, err, ErrFeedbackClosed)
	_, err = f.svc.SkipFeedback(ctx, "cust-1", order.ID)
	assert.ErrorIs(t, err, ErrFeedbackClosed)

	assert.Equal(t, []string{"submitted"}, f.metrics.feedback)
}

func TestSkipFeedback(t *testing.T) {
	f := newFixture(t, coffee(5))
	ctx := context.Background()

	order, err := f.svc.PlaceOrder(ctx, "cust-1", dineIn(CartLine{ItemID: "d1"}))
	require.NoError(t, err)
	order = serve(t, f, order)

	order, err = f.svc.SkipFeedback(ctx, "cust-1", order.ID)
	require.NoError(t, err)
	assert.True(t, order.FeedbackSkipped)

	_, err = f.svc.AttachFeedback(ctx, "cust-1", order.ID, models.Feedback{ServiceRating: 3, FoodRating: 3})
	assert.ErrorIs(t, err, ErrFeedbackClosed)
	assert.Equal(t, []string{"skipped"}, f.metrics.feedback)
}

func TestAdjustStock(t *testing.T) {
	f := newFixture(t, coffee(0))
	ctx := context.Background()

	_, err := f.svc.AdjustStock(ctx, "d1", -1)
	assert.ErrorIs(t, err, ErrInvalidStock)

	item, err := f.svc.AdjustStock(ctx, "d1", 12)
	require.NoError(t, err)
	assert.Equal(t, 12, item.Stock)
	assert.True(t, item.IsAvailable)

	item, err = f.svc.AdjustStock(ctx, "d1", 0)
	require.NoError(t, err)
	assert.False(t, item.IsAvailable)

	_, err = f.svc.AdjustStock(ctx, "missing", 3)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestQuote(t *testing.T) {
	f := newFixture(t, breakfast(1))

	price, err := f.svc.Quote(context.Background(), "b1", models.Selection{
		"Eggs":   {"No Eggs (- KSh 50)"},
		"Extras": {"Butter Glazed Toasted (+ KSh 30)", "Avocado (+ KSh 100)"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1440, price)

	_, err = f.svc.Quote(context.Background(), "b1", models.Selection{"Eggs": {"Fried", "Scrambled"}})
	assert.ErrorIs(t, err, pricing.ErrTooManyOptions)
}
