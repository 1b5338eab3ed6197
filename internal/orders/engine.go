package orders

import (
	"context"

	"github.com/google/uuid"

	"github.com/farmlink/marketplace/internal/catalog"
	"github.com/farmlink/marketplace/internal/market"
	"github.com/farmlink/marketplace/internal/money"
)

// Catalog is the read side of the resource catalog.
type Catalog interface {
	Product(ctx context.Context, id string) (*catalog.Product, error)
}

// Store is the durable order store. The status-changing methods are
// conditional updates: they must only apply when the order still holds the
// expected current status, so concurrent transitions resolve to exactly one
// winner.
type Store interface {
	Insert(ctx context.Context, o *Order) error
	ByExternalID(ctx context.Context, externalID string) (*Order, error)
	Get(ctx context.Context, id string) (*Order, error)
	// Confirm flips pending->confirmed and decrements product stock in one
	// atomic unit. Insufficient stock fails the whole unit and the order
	// stays pending.
	Confirm(ctx context.Context, orderID string) (*Order, error)
	// CancelRestock flips confirmed->cancelled and re-credits the decremented
	// stock in one atomic unit.
	CancelRestock(ctx context.Context, orderID string, pay PaymentStatus) (*Order, error)
	// SetStatus flips from->to with no catalog side effect.
	SetStatus(ctx context.Context, orderID string, from, to Status, pay PaymentStatus) (*Order, error)
	BySeller(ctx context.Context, sellerID string) ([]Order, error)
	ByBuyer(ctx context.Context, buyerID string) ([]Order, error)
}

type CreateRequest struct {
	ExternalID          string
	BuyerID             string
	ProductID           string
	Quantity            int64
	DeliveryAddress     string
	SpecialInstructions string
	// SubmittedTotal, when present, is the client's independently computed
	// total and must match the frozen server total.
	SubmittedTotal *money.Cents
}

// Engine validates creation and transition requests and delegates the atomic
// mutations to the store. It holds no state of its own.
type Engine struct {
	Catalog Catalog
	Store   Store
}

// Create freezes seller, unit price and total from the current product record
// and persists the order as pending. Stock is not decremented yet; it is only
// committed at confirmation. Creation is idempotent by external id.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (o *Order, existed bool, err error) {
	if req.Quantity <= 0 {
		return nil, false, market.E(market.KindInvalidQuantity, "quantity must be positive, got %d", req.Quantity)
	}

	if req.ExternalID != "" {
		prev, err := e.Store.ByExternalID(ctx, req.ExternalID)
		if err == nil {
			return prev, true, nil
		}
		if market.Code(err) != market.KindNotFound {
			return nil, false, err
		}
	}

	p, err := e.Catalog.Product(ctx, req.ProductID)
	if err != nil {
		return nil, false, err
	}
	if p.Status != catalog.ProductAvailable {
		return nil, false, market.E(market.KindResourceUnavailable, "product %s is %s", p.ID, p.Status)
	}
	if req.Quantity > p.Quantity {
		return nil, false, market.E(market.KindInvalidQuantity, "quantity %d exceeds available stock %d", req.Quantity, p.Quantity)
	}
	if req.BuyerID == p.SellerID {
		return nil, false, market.E(market.KindForbidden, "buyer %s owns product %s", req.BuyerID, p.ID)
	}

	total := money.Total(p.Price, req.Quantity)
	if req.SubmittedTotal != nil {
		if err := money.VerifyTotal(total, *req.SubmittedTotal); err != nil {
			return nil, false, err
		}
	}

	o = &Order{
		ID:                  uuid.NewString(),
		ExternalID:          req.ExternalID,
		ProductID:           p.ID,
		BuyerID:             req.BuyerID,
		SellerID:            p.SellerID,
		Quantity:            req.Quantity,
		UnitPrice:           p.Price,
		TotalAmount:         total,
		Status:              StatusPending,
		PaymentStatus:       PaymentPending,
		DeliveryAddress:     req.DeliveryAddress,
		SpecialInstructions: req.SpecialInstructions,
	}
	if err := e.Store.Insert(ctx, o); err != nil {
		return nil, false, err
	}
	return o, false, nil
}

// Transition applies a role-gated edge of the order state machine. The store
// re-checks the current status under lock, so a raced transition loses
// cleanly with no side effects.
func (e *Engine) Transition(ctx context.Context, orderID, actorID string, target Status) (*Order, error) {
	o, err := e.Store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !ActorAllowed(o, actorID, target) {
		return nil, market.E(market.KindForbidden, "actor %s may not mark order %s %s", actorID, orderID, target)
	}
	if !CanTransition(o.Status, target) {
		return nil, market.E(market.KindInvalidTransition, "order %s cannot go from %s to %s", orderID, o.Status, target)
	}

	switch {
	case target == StatusConfirmed:
		return e.Store.Confirm(ctx, orderID)
	case target == StatusCancelled && o.Status == StatusConfirmed:
		return e.Store.CancelRestock(ctx, orderID, cancelPayment(o.PaymentStatus))
	case target == StatusCancelled:
		return e.Store.SetStatus(ctx, orderID, o.Status, StatusCancelled, cancelPayment(o.PaymentStatus))
	case target == StatusDelivered:
		// cash on delivery settles at handoff
		return e.Store.SetStatus(ctx, orderID, o.Status, StatusDelivered, PaymentPaid)
	default:
		return e.Store.SetStatus(ctx, orderID, o.Status, target, o.PaymentStatus)
	}
}

func cancelPayment(p PaymentStatus) PaymentStatus {
	if p == PaymentPaid {
		return PaymentRefunded
	}
	return p
}

// Get returns an order to one of its parties.
func (e *Engine) Get(ctx context.Context, orderID, viewerID string) (*Order, error) {
	o, err := e.Store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if viewerID != o.BuyerID && viewerID != o.SellerID {
		return nil, market.E(market.KindForbidden, "actor %s is not a party to order %s", viewerID, orderID)
	}
	return o, nil
}

// Sales lists orders where the viewer is the seller.
func (e *Engine) Sales(ctx context.Context, sellerID string) ([]Order, error) {
	return e.Store.BySeller(ctx, sellerID)
}

// Purchases lists orders where the viewer is the buyer.
func (e *Engine) Purchases(ctx context.Context, buyerID string) ([]Order, error) {
	return e.Store.ByBuyer(ctx, buyerID)
}
