package orders

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Forward-only except cancellation; nothing cancels once shipped.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:   {StatusDelivered: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// ActorAllowed reports whether the actor holds the role required to drive
// the order onto target: the seller confirms and ships, the buyer accepts
// delivery, either party may cancel.
func ActorAllowed(o *Order, actorID string, target Status) bool {
	switch target {
	case StatusConfirmed, StatusShipped:
		return actorID == o.SellerID
	case StatusDelivered:
		return actorID == o.BuyerID
	case StatusCancelled:
		return actorID == o.BuyerID || actorID == o.SellerID
	}
	return false
}
