package models

import (
	"regexp"
	"time"

	"github.com/uptrace/bun"
)

type Address struct {
	bun.BaseModel `bun:"table:addresses"`

	ID         string    `bun:"id,pk" json:"id"`
	UserID     string    `bun:"user_id,nullzero" json:"user_id,omitempty"`
	FirstName  string    `bun:"first_name" json:"first_name"`
	LastName   string    `bun:"last_name" json:"last_name"`
	Street1    string    `bun:"street1" json:"street1"`
	Street2    string    `bun:"street2,nullzero" json:"street2,omitempty"`
	City       string    `bun:"city" json:"city"`
	State      string    `bun:"state" json:"state"`
	PostalCode string    `bun:"postal_code" json:"postal_code"`
	Country    string    `bun:"country" json:"country"`
	Phone      string    `bun:"phone,nullzero" json:"phone,omitempty"`
	CreatedAt  time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

var poBoxPattern = regexp.MustCompile(`(?i)^\s*(p\.?\s*o\.?\s*box|post\s+office\s+box)\b`)

// IsPOBox reports whether the street line targets a post office box.
// Carriers refuse adult-signature delivery to PO boxes, so this is checked
// both at order creation and again before a label is purchased.
func (a *Address) IsPOBox() bool {
	return poBoxPattern.MatchString(a.Street1)
}
