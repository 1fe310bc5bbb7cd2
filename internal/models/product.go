package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// FlavorTobacco is the unrestricted baseline flavor classification.
// Anything else counts as a characterizing flavor in flavor-ban states.
const FlavorTobacco = "TOBACCO"

// Product is owned by the catalog side of the shop; the order sagas only
// ever read it.
type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID                 string          `bun:"id,pk" json:"id"`
	SKU                string          `bun:"sku,unique" json:"sku"`
	Name               string          `bun:"name" json:"name"`
	Flavor             string          `bun:"flavor" json:"flavor"`
	NicotineMgML       float64         `bun:"nicotine_mg_ml" json:"nicotine_mg_ml"`
	NetWeightOz        float64         `bun:"net_weight_oz" json:"net_weight_oz"`
	Price              decimal.Decimal `bun:"price" json:"price"`
	CAApproved         bool            `bun:"ca_approved" json:"ca_approved"`
	RestrictedAdditive bool            `bun:"restricted_additive" json:"restricted_additive"`
	Active             bool            `bun:"active" json:"active"`
	CreatedAt          time.Time       `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}
