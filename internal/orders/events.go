package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventProductCreated     = "ProductCreated"
	EventProductUpdated     = "ProductUpdated"
	EventProductDeleted     = "ProductDeleted"
	EventReviewSubmitted    = "ReviewSubmitted"
	EventReviewApproved     = "ReviewApproved"
	EventReviewRejected     = "ReviewRejected"
	EventReviewDeleted      = "ReviewDeleted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order or product id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload in a v1 envelope with a fresh event id.
func NewEnvelope(eventType, producer, traceID, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

type ItemPrice struct {
	ProductID string          `json:"product_id"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderPlacedPayload struct {
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id,omitempty"`
	Items      []ItemPrice     `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
	ActorID string `json:"actor_id,omitempty"`
}

type ProductChangedPayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Stock     *int   `json:"stock,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
}

type ReviewChangedPayload struct {
	ReviewID  string `json:"review_id"`
	ProductID string `json:"product_id"`
	UserID    string `json:"user_id,omitempty"`
	Rating    int    `json:"rating,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
}

func PlacedPayload(o *Order) OrderPlacedPayload {
	p := OrderPlacedPayload{OrderID: o.ID, TotalPrice: o.TotalPrice, Items: make([]ItemPrice, 0, len(o.Items))}
	if o.UserID != nil {
		p.UserID = *o.UserID
	}
	for _, it := range o.Items {
		p.Items = append(p.Items, ItemPrice{ProductID: it.ProductID, Qty: it.Quantity, UnitPrice: it.Price})
	}
	return p
}
