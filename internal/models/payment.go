package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentAuthorized PaymentStatus = "AUTHORIZED"
	PaymentCaptured   PaymentStatus = "CAPTURED"
	PaymentFailed     PaymentStatus = "FAILED"
)

// Payment holds only gateway references and AVS/CVV result codes.
// Raw card data is never persisted.
type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	ID                   string          `bun:"id,pk" json:"id"`
	OrderID              string          `bun:"order_id" json:"order_id"`
	Status               PaymentStatus   `bun:"status" json:"status"`
	Amount               decimal.Decimal `bun:"amount" json:"amount"`
	TransactionID        string          `bun:"transaction_id" json:"transaction_id"`
	CaptureTransactionID string          `bun:"capture_transaction_id,nullzero" json:"capture_transaction_id,omitempty"`
	AVSResult            string          `bun:"avs_result,nullzero" json:"avs_result,omitempty"`
	CVVResult            string          `bun:"cvv_result,nullzero" json:"cvv_result,omitempty"`
	CreatedAt            time.Time       `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	CapturedAt           *time.Time      `bun:"captured_at,nullzero" json:"captured_at,omitempty"`
}
