// Package notify synthesizes the pending-action view a counterparty sees on
// each poll. Nothing here is persisted: every call recomputes the list from
// current entity state, so an item disappears as soon as the underlying
// order, rental or inquiry moves on. Keys are stable across polls so callers
// can dismiss items locally without a server acknowledgment.
package notify

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/farmlink/marketplace/internal/messaging"
	"github.com/farmlink/marketplace/internal/money"
	"github.com/farmlink/marketplace/internal/orders"
	"github.com/farmlink/marketplace/internal/rentals"
)

type Notification struct {
	Key         string       `json:"key"` // {kind}-{entity_id}
	Kind        string       `json:"kind"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Amount      *money.Cents `json:"amount,omitempty"`
	Status      string       `json:"status"`
	EntityID    string       `json:"entity_id"`
	CreatedAt   time.Time    `json:"created_at"`
}

type OrderSource interface {
	PendingBySeller(ctx context.Context, sellerID string) ([]orders.Order, error)
}

type RentalSource interface {
	PendingByOwner(ctx context.Context, ownerID string) ([]rentals.Rental, error)
}

type InquirySource interface {
	OpenBySeller(ctx context.Context, sellerID string) ([]messaging.InquirySummary, error)
}

// Projector is read-only by construction: transition actions taken from a
// notification go through the lifecycle engines, never through here.
type Projector struct {
	Orders    OrderSource
	Rentals   RentalSource
	Inquiries InquirySource
}

// Pending returns the viewer's actionable items, newest first, key as
// tiebreak so two polls over unchanged state produce identical sequences.
func (p *Projector) Pending(ctx context.Context, viewerID string) ([]Notification, error) {
	sales, err := p.Orders.PendingBySeller(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	requests, err := p.Rentals.PendingByOwner(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	inquiries, err := p.Inquiries.OpenBySeller(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(sales)+len(requests)+len(inquiries))
	for _, o := range sales {
		amount := o.TotalAmount
		out = append(out, Notification{
			Key:         fmt.Sprintf("order-%s", o.ID),
			Kind:        "order",
			Title:       "New order: " + orDefault(o.ProductName, o.ProductID),
			Description: fmt.Sprintf("buyer %s ordered %d units", o.BuyerID, o.Quantity),
			Amount:      &amount,
			Status:      string(o.Status),
			EntityID:    o.ID,
			CreatedAt:   o.CreatedAt,
		})
	}
	for _, rl := range requests {
		amount := rl.TotalAmount
		out = append(out, Notification{
			Key:         fmt.Sprintf("rental-%s", rl.ID),
			Kind:        "rental",
			Title:       "New rental request: " + orDefault(rl.EquipmentName, rl.EquipmentID),
			Description: fmt.Sprintf("renter %s requested %d days", rl.RenterID, rl.RentalDays),
			Amount:      &amount,
			Status:      string(rl.Status),
			EntityID:    rl.ID,
			CreatedAt:   rl.CreatedAt,
		})
	}
	for _, inq := range inquiries {
		out = append(out, Notification{
			Key:         fmt.Sprintf("inquiry-%s", inq.ID),
			Kind:        "inquiry",
			Title:       "Inquiry: " + inq.Subject,
			Description: fmt.Sprintf("%d unread message(s) from %s", inq.UnreadCount, inq.InquirerID),
			Status:      string(inq.Status),
			EntityID:    inq.ID,
			CreatedAt:   inq.CreatedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}
