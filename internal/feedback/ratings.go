// Package feedback reduces served orders into the numbers shown on the
// manager dashboards: rating averages, cost and margin, the staff leaderboard
// and per-feedback insights.
package feedback

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"smartserve/internal/models"
)

// NoData is reported in place of an average when nothing was rated.
const NoData = "N/A"

var ErrInvalidRating = errors.New("ratings must be between 1 and 5")

// Ratings is the averaged feedback over a set of orders.
type Ratings struct {
	AvgService string `json:"avgService"`
	AvgFood    string `json:"avgFood"`
	Count      int    `json:"count"`
}

// Aggregate averages service and food ratings over the orders carrying
// feedback, to one decimal place.
func Aggregate(orders []models.Order) Ratings {
	var service, food []int
	for i := range orders {
		if fb := orders[i].Feedback; fb != nil {
			service = append(service, fb.ServiceRating)
			food = append(food, fb.FoodRating)
		}
	}
	return Ratings{
		AvgService: Average(service),
		AvgFood:    Average(food),
		Count:      len(service),
	}
}

// Average returns the mean of values fixed to one decimal, or NoData.
func Average(values []int) string {
	if len(values) == 0 {
		return NoData
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromInt(int64(v)))
	}
	return sum.Div(decimal.NewFromInt(int64(len(values)))).StringFixed(1)
}

// Validate checks the ratings of a feedback record.
func Validate(fb models.Feedback) error {
	if !validRating(fb.ServiceRating) || !validRating(fb.FoodRating) {
		return ErrInvalidRating
	}
	for item, r := range fb.ItemRatings {
		if !validRating(r) {
			return fmt.Errorf("%w: item %q rated %d", ErrInvalidRating, item, r)
		}
	}
	return nil
}

func validRating(r int) bool {
	return r >= 1 && r <= 5
}

// Pending returns the first served order still waiting for feedback, once
// delay has passed since it was served. Orders without a serve time are
// offered immediately.
func Pending(orders []models.Order, now time.Time, delay time.Duration) *models.Order {
	for i := range orders {
		o := &orders[i]
		if o.Status != models.StatusServed || o.FeedbackClosed() {
			continue
		}
		if o.ServedAt != nil && now.Sub(*o.ServedAt) < delay {
			return nil
		}
		return o
	}
	return nil
}
