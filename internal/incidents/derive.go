package incidents

import (
	"fmt"
	"time"

	"smartserve/internal/models"
)

// Thresholds sets when orders and service requests count as late.
type Thresholds struct {
	OrderLate   time.Duration
	ServiceLate time.Duration
}

// Derive builds the live feed: late orders, then late service requests, then
// the active manual incidents. It keeps no state and is recomputed on every
// tick and every snapshot.
func Derive(orders []models.Order, manual []Incident, now time.Time, th Thresholds) []Incident {
	feed := make([]Incident, 0)

	for i := range orders {
		o := &orders[i]
		if o.Status != models.StatusPreparing || o.DelayMinutes > 0 {
			continue
		}
		if now.Sub(o.PlacedAt) <= th.OrderLate {
			continue
		}
		feed = append(feed, Incident{
			Key:       Key{Source: SourceLateOrder, Ref: o.ID},
			Type:      TypeUrgent,
			Text:      fmt.Sprintf("Order #%s is LATE!", o.ShortID(4)),
			Table:     o.Table,
			CreatedAt: o.PlacedAt,
			Status:    StatusActive,
		})
	}

	for i := range orders {
		o := &orders[i]
		if !o.HasServiceRequest() {
			continue
		}
		if now.Sub(*o.ServiceRequestAt) <= th.ServiceLate {
			continue
		}
		feed = append(feed, Incident{
			Key:       Key{Source: SourceLateService, Ref: o.ID},
			Type:      TypeUrgent,
			Text:      fmt.Sprintf("Service Request for %s is LATE!", o.ServiceRequest),
			Table:     o.Table,
			CreatedAt: *o.ServiceRequestAt,
			Status:    StatusActive,
		})
	}

	for _, in := range manual {
		if in.Status == StatusActive {
			feed = append(feed, in)
		}
	}
	return feed
}

// CountBySource tallies a feed per source.
func CountBySource(feed []Incident) map[Source]int {
	counts := map[Source]int{
		SourceManual:      0,
		SourceLateOrder:   0,
		SourceLateService: 0,
	}
	for _, in := range feed {
		counts[in.Key.Source]++
	}
	return counts
}
