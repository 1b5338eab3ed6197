package orders

import (
	"time"

	"github.com/farmlink/marketplace/internal/money"
)

// Order is a purchase of a product by a buyer from its seller. Everything but
// status, payment_status and updated_at is frozen at creation.
type Order struct {
	ID                  string        `json:"id"`
	ExternalID          string        `json:"external_id,omitempty"`
	ProductID           string        `json:"product_id"`
	ProductName         string        `json:"product_name,omitempty"` // filled on reads via join
	BuyerID             string        `json:"buyer_id"`
	SellerID            string        `json:"seller_id"`
	Quantity            int64         `json:"quantity"`
	UnitPrice           money.Cents   `json:"unit_price"`
	TotalAmount         money.Cents   `json:"total_amount"`
	Status              Status        `json:"status"`
	PaymentStatus       PaymentStatus `json:"payment_status"`
	DeliveryAddress     string        `json:"delivery_address,omitempty"`
	SpecialInstructions string        `json:"special_instructions,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}
