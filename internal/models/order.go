package models

import (
	"time"
)

// Order represents a customer order, or a bare service request when Items is empty
type Order struct {
	ID               string      `json:"id" firestore:"-"`
	CustomerID       string      `json:"customerId" firestore:"customerId"`
	Status           Status      `json:"status" firestore:"status"`
	Items            []OrderLine `json:"items" firestore:"items"`
	Total            int         `json:"total" firestore:"total"`
	PlacedAt         time.Time   `json:"placedAt" firestore:"placedAt"`
	Table            string      `json:"table" firestore:"table"`
	OrderType        OrderType   `json:"orderType" firestore:"orderType"`
	ServerName       string      `json:"serverName,omitempty" firestore:"serverName"`
	PreparerName     string      `json:"preparerName,omitempty" firestore:"preparerName"`
	DelayMinutes     int         `json:"delayMinutes" firestore:"delayMinutes"`
	DelayDeclaredAt  *time.Time  `json:"delayDeclaredAt,omitempty" firestore:"delayDeclaredAt"`
	ServiceRequest   string      `json:"serviceRequest,omitempty" firestore:"serviceRequest"`
	ServiceRequestAt *time.Time  `json:"serviceRequestAt,omitempty" firestore:"serviceRequestAt"`
	ReadyAt          *time.Time  `json:"readyAt,omitempty" firestore:"readyAt"`
	ServedAt         *time.Time  `json:"servedAt,omitempty" firestore:"servedAt"`
	Feedback         *Feedback   `json:"feedback,omitempty" firestore:"feedback"`
	FeedbackSkipped  bool        `json:"feedbackSkipped" firestore:"feedbackSkipped"`
}

// OrderLine is a finalized cart line; immutable once the order is placed
type OrderLine struct {
	ItemID         string    `json:"id" firestore:"id"`
	Name           string    `json:"name" firestore:"name"`
	Price          int       `json:"price" firestore:"price"`
	Modifiers      Selection `json:"modifiers,omitempty" firestore:"modifiers"`
	SpecialRequest string    `json:"specialRequest,omitempty" firestore:"specialRequest"`
}

// Feedback is the customer's rating of a served order
type Feedback struct {
	ServiceRating int            `json:"serviceRating" firestore:"serviceRating"`
	FoodRating    int            `json:"foodRating" firestore:"foodRating"`
	ItemRatings   map[string]int `json:"itemRatings,omitempty" firestore:"itemRatings"`
	Comment       string         `json:"comment,omitempty" firestore:"comment"`
	ServerName    string         `json:"serverName,omitempty" firestore:"serverName"`
	PreparerName  string         `json:"preparerName,omitempty" firestore:"preparerName"`
	CreatedAt     time.Time      `json:"createdAt" firestore:"createdAt"`
}

// Status represents the lifecycle state of an order
type Status string

const (
	StatusPlaced    Status = "PLACED"
	StatusAccepted  Status = "ACCEPTED"
	StatusPreparing Status = "PREPARING"
	StatusReady     Status = "READY"
	StatusServed    Status = "SERVED"
)

// OrderType distinguishes dine-in from take-away orders
type OrderType string

const (
	OrderTypeDineIn   OrderType = "DINE_IN"
	OrderTypeTakeaway OrderType = "TAKEAWAY"
)

// Table markers used in place of a table number
const (
	TableTakeaway       = "TAKEAWAY"
	TableGeneralRequest = "General Request"
)

// IsServiceOnly reports whether the order is a bare service request
func (o *Order) IsServiceOnly() bool {
	return len(o.Items) == 0
}

// HasServiceRequest reports whether a service request is outstanding
func (o *Order) HasServiceRequest() bool {
	return o.ServiceRequest != "" && o.ServiceRequestAt != nil
}

// FeedbackClosed reports whether feedback was already submitted or skipped
func (o *Order) FeedbackClosed() bool {
	return o.Feedback != nil || o.FeedbackSkipped
}

// ShortID returns the leading characters of the id shown on tickets
func (o *Order) ShortID(n int) string {
	if len(o.ID) <= n {
		return o.ID
	}
	return o.ID[:n]
}

// LinesTotal sums the line prices
func LinesTotal(lines []OrderLine) int {
	total := 0
	for _, l := range lines {
		total += l.Price
	}
	return total
}
