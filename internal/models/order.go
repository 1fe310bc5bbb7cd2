package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderDraft       OrderStatus = "DRAFT"
	OrderPaid        OrderStatus = "PAID"
	OrderBlocked     OrderStatus = "BLOCKED"
	OrderHold        OrderStatus = "HOLD"
	OrderReadyToShip OrderStatus = "READY_TO_SHIP"
	OrderShipped     OrderStatus = "SHIPPED"
)

// Order rows are created by the creation saga only, mutated by the
// fulfillment saga only, and never deleted.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID                string          `bun:"id,pk" json:"id"`
	UserID            string          `bun:"user_id,nullzero" json:"user_id,omitempty"` // empty for guest checkout
	Status            OrderStatus     `bun:"status" json:"status"`
	Subtotal          decimal.Decimal `bun:"subtotal" json:"subtotal"`
	SalesTax          decimal.Decimal `bun:"sales_tax" json:"sales_tax"`
	ExciseTax         decimal.Decimal `bun:"excise_tax" json:"excise_tax"`
	Total             decimal.Decimal `bun:"total" json:"total"`
	ShippingAddressID string          `bun:"shipping_address_id" json:"shipping_address_id"`
	BillingAddressID  string          `bun:"billing_address_id" json:"billing_address_id"`
	StakeCallRequired bool            `bun:"stake_call_required" json:"stake_call_required"`
	Carrier           string          `bun:"carrier,nullzero" json:"carrier,omitempty"`
	TrackingNumber    string          `bun:"tracking_number,nullzero" json:"tracking_number,omitempty"`
	ShippedAt         *time.Time      `bun:"shipped_at,nullzero" json:"shipped_at,omitempty"`
	CreatedAt         time.Time       `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// OrderItem is an immutable price snapshot taken at order time. The unit
// price and weight are never re-read from the product afterwards.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID          string          `bun:"id,pk" json:"id"`
	OrderID     string          `bun:"order_id" json:"order_id"`
	ProductID   string          `bun:"product_id" json:"product_id"`
	SKU         string          `bun:"sku" json:"sku"`
	Quantity    int             `bun:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `bun:"unit_price" json:"unit_price"`
	NetWeightOz float64         `bun:"net_weight_oz" json:"net_weight_oz"`
}
