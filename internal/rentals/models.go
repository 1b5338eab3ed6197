package rentals

import (
	"time"

	"github.com/farmlink/marketplace/internal/money"
)

// Rental is a peer-to-peer equipment booking. daily_rate, security_deposit,
// rental_days and total_amount are frozen at creation from the equipment
// record and the requested date range.
type Rental struct {
	ID                  string        `json:"id"`
	EquipmentID         string        `json:"equipment_id"`
	EquipmentName       string        `json:"equipment_name,omitempty"` // filled on reads via join
	RenterID            string        `json:"renter_id"`
	OwnerID             string        `json:"owner_id"`
	StartDate           time.Time     `json:"start_date"`
	EndDate             time.Time     `json:"end_date"`
	RentalDays          int           `json:"rental_days"`
	DailyRate           money.Cents   `json:"daily_rate"`
	TotalAmount         money.Cents   `json:"total_amount"`
	SecurityDeposit     money.Cents   `json:"security_deposit"`
	DeliveryRequired    bool          `json:"delivery_required"`
	DeliveryAddress     string        `json:"delivery_address,omitempty"`
	SpecialInstructions string        `json:"special_instructions,omitempty"`
	Status              Status        `json:"status"`
	PaymentStatus       PaymentStatus `json:"payment_status"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}
