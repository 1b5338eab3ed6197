// Package catalog holds the read models for the resource catalog: products
// and equipment, each owned by one farmer. The lifecycle engines read this
// state and mutate stock/availability inside their own transactions; the
// catalog schema itself is owned elsewhere.
package catalog

import (
	"time"

	"github.com/farmlink/marketplace/internal/money"
)

type ProductStatus string

const (
	ProductAvailable ProductStatus = "available"
	ProductSold      ProductStatus = "sold"
	ProductReserved  ProductStatus = "reserved"
)

type Product struct {
	ID        string        `json:"id"`
	SellerID  string        `json:"seller_id"`
	Name      string        `json:"name"`
	Category  string        `json:"category"`
	Unit      string        `json:"unit"`
	Price     money.Cents   `json:"price"`
	Quantity  int64         `json:"quantity"`
	Status    ProductStatus `json:"status"`
	Location  string        `json:"location,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type EquipmentStatus string

const (
	EquipmentAvailable   EquipmentStatus = "available"
	EquipmentRented      EquipmentStatus = "rented"
	EquipmentMaintenance EquipmentStatus = "maintenance"
	EquipmentUnavailable EquipmentStatus = "unavailable"
)

type Equipment struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	Name          string          `json:"name"`
	EquipmentType string          `json:"equipment_type"`
	DailyRate     money.Cents     `json:"daily_rate"`
	// SecurityDeposit is zero when the owner asks for none.
	SecurityDeposit money.Cents     `json:"security_deposit"`
	MinRentalDays   int             `json:"min_rental_days"`
	MaxRentalDays   int             `json:"max_rental_days,omitempty"` // 0 = no cap
	Status          EquipmentStatus `json:"status"`
	Location        string          `json:"location,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
