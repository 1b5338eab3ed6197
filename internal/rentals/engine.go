package rentals

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/farmlink/marketplace/internal/catalog"
	"github.com/farmlink/marketplace/internal/market"
	"github.com/farmlink/marketplace/internal/money"
)

type Catalog interface {
	Equipment(ctx context.Context, id string) (*catalog.Equipment, error)
}

// Store is the durable rental store; status methods are conditional updates
// so raced transitions resolve to one winner, mirroring the order store.
type Store interface {
	Insert(ctx context.Context, rl *Rental) error
	Get(ctx context.Context, id string) (*Rental, error)
	// Confirm flips pending->confirmed and marks the equipment rented in one
	// atomic unit; equipment already rented out fails the whole unit.
	Confirm(ctx context.Context, rentalID string) (*Rental, error)
	// Release flips from->to and restores equipment availability in one
	// atomic unit (completion, or cancellation after confirm).
	Release(ctx context.Context, rentalID string, from, to Status, pay PaymentStatus) (*Rental, error)
	// SetStatus flips from->to with no equipment side effect.
	SetStatus(ctx context.Context, rentalID string, from, to Status, pay PaymentStatus) (*Rental, error)
	ByRenter(ctx context.Context, renterID string) ([]Rental, error)
	ByOwner(ctx context.Context, ownerID string) ([]Rental, error)
}

type CreateRequest struct {
	RenterID            string
	EquipmentID         string
	StartDate           time.Time
	EndDate             time.Time
	DeliveryRequired    bool
	DeliveryAddress     string
	SpecialInstructions string
	// SubmittedDays and SubmittedTotal, when present, are the client's
	// independently computed values and must match the server's.
	SubmittedDays  int
	SubmittedTotal *money.Cents
}

type Engine struct {
	Catalog Catalog
	Store   Store
}

// Create computes the billable duration from the date range, freezes the
// daily rate and deposit from the current equipment record, and persists the
// rental as pending. Equipment availability is only committed at
// confirmation.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*Rental, error) {
	if !req.EndDate.After(req.StartDate) {
		return nil, market.E(market.KindInvalidDateRange, "end date %s is not after start date %s",
			req.EndDate.Format("2006-01-02"), req.StartDate.Format("2006-01-02"))
	}
	days := DaysBetween(req.StartDate, req.EndDate)
	if req.SubmittedDays != 0 && req.SubmittedDays != days {
		return nil, market.E(market.KindInvalidRentalDuration, "submitted %d days, date range spans %d", req.SubmittedDays, days)
	}

	eq, err := e.Catalog.Equipment(ctx, req.EquipmentID)
	if err != nil {
		return nil, err
	}
	if eq.Status != catalog.EquipmentAvailable {
		return nil, market.E(market.KindResourceUnavailable, "equipment %s is %s", eq.ID, eq.Status)
	}
	if days < eq.MinRentalDays {
		return nil, market.E(market.KindInvalidRentalDuration, "%d days is below the %d-day minimum", days, eq.MinRentalDays)
	}
	if eq.MaxRentalDays > 0 && days > eq.MaxRentalDays {
		return nil, market.E(market.KindInvalidRentalDuration, "%d days exceeds the %d-day maximum", days, eq.MaxRentalDays)
	}
	if req.RenterID == eq.OwnerID {
		return nil, market.E(market.KindForbidden, "renter %s owns equipment %s", req.RenterID, eq.ID)
	}
	if req.DeliveryRequired && strings.TrimSpace(req.DeliveryAddress) == "" {
		return nil, market.E(market.KindMissingDeliveryAddress, "delivery requested without an address")
	}

	total := money.Total(eq.DailyRate, int64(days))
	if req.SubmittedTotal != nil {
		if err := money.VerifyTotal(total, *req.SubmittedTotal); err != nil {
			return nil, err
		}
	}

	rl := &Rental{
		ID:                  uuid.NewString(),
		EquipmentID:         eq.ID,
		RenterID:            req.RenterID,
		OwnerID:             eq.OwnerID,
		StartDate:           req.StartDate,
		EndDate:             req.EndDate,
		RentalDays:          days,
		DailyRate:           eq.DailyRate,
		TotalAmount:         total,
		SecurityDeposit:     eq.SecurityDeposit,
		DeliveryRequired:    req.DeliveryRequired,
		DeliveryAddress:     req.DeliveryAddress,
		SpecialInstructions: req.SpecialInstructions,
		Status:              StatusPending,
		PaymentStatus:       PaymentPending,
	}
	if err := e.Store.Insert(ctx, rl); err != nil {
		return nil, err
	}
	return rl, nil
}

// Transition applies a role-gated edge of the rental state machine.
// Confirming takes the equipment off the market; completing, or cancelling a
// confirmed rental, puts it back.
func (e *Engine) Transition(ctx context.Context, rentalID, actorID string, target Status) (*Rental, error) {
	rl, err := e.Store.Get(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if !ActorAllowed(rl, actorID, target) {
		return nil, market.E(market.KindForbidden, "actor %s may not mark rental %s %s", actorID, rentalID, target)
	}
	if !CanTransition(rl.Status, target) {
		return nil, market.E(market.KindInvalidTransition, "rental %s cannot go from %s to %s", rentalID, rl.Status, target)
	}

	switch {
	case target == StatusConfirmed:
		return e.Store.Confirm(ctx, rentalID)
	case target == StatusCompleted:
		// settlement happens at handoff back to the owner
		return e.Store.Release(ctx, rentalID, StatusActive, StatusCompleted, PaymentPaid)
	case target == StatusCancelled && rl.Status == StatusConfirmed:
		return e.Store.Release(ctx, rentalID, StatusConfirmed, StatusCancelled, cancelPayment(rl.PaymentStatus))
	case target == StatusCancelled:
		return e.Store.SetStatus(ctx, rentalID, rl.Status, StatusCancelled, cancelPayment(rl.PaymentStatus))
	default:
		return e.Store.SetStatus(ctx, rentalID, rl.Status, target, rl.PaymentStatus)
	}
}

func cancelPayment(p PaymentStatus) PaymentStatus {
	if p == PaymentPaid {
		return PaymentRefunded
	}
	return p
}

// Get returns a rental to one of its parties.
func (e *Engine) Get(ctx context.Context, rentalID, viewerID string) (*Rental, error) {
	rl, err := e.Store.Get(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if viewerID != rl.RenterID && viewerID != rl.OwnerID {
		return nil, market.E(market.KindForbidden, "actor %s is not a party to rental %s", viewerID, rentalID)
	}
	return rl, nil
}

// Rented lists rentals where the viewer is the renter.
func (e *Engine) Rented(ctx context.Context, renterID string) ([]Rental, error) {
	return e.Store.ByRenter(ctx, renterID)
}

// OwnedOut lists rentals against equipment the viewer owns.
func (e *Engine) OwnedOut(ctx context.Context, ownerID string) ([]Rental, error) {
	return e.Store.ByOwner(ctx, ownerID)
}
