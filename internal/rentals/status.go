package rentals

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Cancellation is only open before the rental goes active.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusActive: true, StatusCancelled: true},
	StatusActive:    {StatusCompleted: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// ActorAllowed: the owner drives confirm, activate and complete; either
// party may cancel.
func ActorAllowed(rl *Rental, actorID string, target Status) bool {
	switch target {
	case StatusConfirmed, StatusActive, StatusCompleted:
		return actorID == rl.OwnerID
	case StatusCancelled:
		return actorID == rl.OwnerID || actorID == rl.RenterID
	}
	return false
}

// DaysBetween is the billable duration: whole days, any partial day rounded
// up.
func DaysBetween(start, end time.Time) int {
	d := end.Sub(start)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}
