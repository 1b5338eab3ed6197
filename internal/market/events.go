package market

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated        = "OrderCreated"
	EventOrderStatusChanged  = "OrderStatusChanged"
	EventRentalCreated       = "RentalCreated"
	EventRentalStatusChanged = "RentalStatusChanged"
)

const (
	TopicOrderStatus  = "market.order.status"
	TopicRentalStatus = "market.rental.status"
)

// PartitionKey keys all events for one entity to the same partition so its
// lifecycle stays ordered.
func PartitionKey(entityID string) []byte { return []byte(entityID) }

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // entity id
	Payload       json.RawMessage `json:"payload"`
}

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

type OrderStatusPayload struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Status    string `json:"status"`
	ActorID   string `json:"actor_id,omitempty"`
}

type RentalStatusPayload struct {
	RentalID    string `json:"rental_id"`
	EquipmentID string `json:"equipment_id"`
	Status      string `json:"status"`
	ActorID     string `json:"actor_id,omitempty"`
}
