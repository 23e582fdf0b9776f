package lifecycle

import (
	"encoding/json"
	"time"

	"smartserve/internal/models"
)

// Timing holds the thresholds behind the customer countdown.
type Timing struct {
	// BaseWait is the countdown shown before any manual delay.
	BaseWait time.Duration
	// OrderLate is how long an order may run before it is flagged late.
	OrderLate time.Duration
}

// WaitEstimate is the customer-facing view of how long an order still needs.
// On the wire Elapsed and Remaining are whole seconds.
type WaitEstimate struct {
	Elapsed         time.Duration
	Remaining       time.Duration
	ManuallyDelayed bool
	AutoLate        bool
}

type waitJSON struct {
	ElapsedSeconds   int64 `json:"elapsedSeconds"`
	RemainingSeconds int64 `json:"remainingSeconds"`
	ManuallyDelayed  bool  `json:"manuallyDelayed"`
	AutoLate         bool  `json:"autoLate"`
}

// MarshalJSON encodes the durations as seconds. A partial second left on the
// clock counts as a full one so the countdown only reads 0 once it is over.
func (w WaitEstimate) MarshalJSON() ([]byte, error) {
	remaining := w.Remaining / time.Second
	if w.Remaining%time.Second > 0 {
		remaining++
	}
	return json.Marshal(waitJSON{
		ElapsedSeconds:   int64(w.Elapsed / time.Second),
		RemainingSeconds: int64(remaining),
		ManuallyDelayed:  w.ManuallyDelayed,
		AutoLate:         w.AutoLate,
	})
}

func (w *WaitEstimate) UnmarshalJSON(data []byte) error {
	var raw waitJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*w = WaitEstimate{
		Elapsed:         time.Duration(raw.ElapsedSeconds) * time.Second,
		Remaining:       time.Duration(raw.RemainingSeconds) * time.Second,
		ManuallyDelayed: raw.ManuallyDelayed,
		AutoLate:        raw.AutoLate,
	}
	return nil
}

// Estimate computes the wait for o at now.
//
// With a manual delay the deadline is the declaration time (or placement plus
// BaseWait when no declaration time was recorded) plus the delay. Without one
// the deadline is placement plus BaseWait.
func Estimate(o *models.Order, now time.Time, timing Timing) WaitEstimate {
	elapsed := now.Sub(o.PlacedAt).Truncate(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	var remaining time.Duration
	if o.DelayMinutes > 0 {
		start := o.PlacedAt.Add(timing.BaseWait)
		if o.DelayDeclaredAt != nil {
			start = *o.DelayDeclaredAt
		}
		remaining = start.Add(time.Duration(o.DelayMinutes) * time.Minute).Sub(now)
	} else {
		remaining = timing.BaseWait - elapsed
	}
	if remaining < 0 {
		remaining = 0
	}

	delayed := o.DelayMinutes > 0 && o.Status == models.StatusPreparing && remaining > 0
	return WaitEstimate{
		Elapsed:         elapsed,
		Remaining:       remaining,
		ManuallyDelayed: delayed,
		AutoLate:        !delayed && elapsed > timing.OrderLate && Rank(o.Status) < Rank(models.StatusReady),
	}
}

// ActiveOrder returns the first order that has not been served.
func ActiveOrder(orders []models.Order) *models.Order {
	for i := range orders {
		if orders[i].Status != models.StatusServed {
			return &orders[i]
		}
	}
	return nil
}

// PastOrders returns up to n served orders, keeping their order.
func PastOrders(orders []models.Order, n int) []models.Order {
	past := make([]models.Order, 0, n)
	for _, o := range orders {
		if len(past) == n {
			break
		}
		if o.Status == models.StatusServed {
			past = append(past, o)
		}
	}
	return past
}
