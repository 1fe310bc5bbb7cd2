// Package gateway defines the contracts for the external collaborators
// the order sagas depend on. Implementations live in subpackages; the
// sagas only ever see these interfaces.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ms-orderflow/internal/models"
)

// Error is the typed failure every gateway returns on decline, rejection
// or timeout. Code is a stable machine identifier from the provider.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway error %s: %s", e.Code, e.Message)
}

type Verification struct {
	Status      models.VerificationStatus
	ReferenceID string
	ReasonCode  string
}

// AgeVerifier checks a customer's identity and age against public
// records. A PASS still requires the caller's own computed-age check.
type AgeVerifier interface {
	Verify(ctx context.Context, firstName, lastName string, dob time.Time, addr models.Address) (*Verification, error)
}

type Card struct {
	Number   string
	ExpMonth int
	ExpYear  int
	CVC      string
}

type Authorization struct {
	TransactionID string
	AVSResult     string
	CVVResult     string
}

type Capture struct {
	TransactionID string
}

// PaymentGateway authorizes funds at order creation and captures them at
// fulfillment. Both calls return *Error on decline or provider failure.
type PaymentGateway interface {
	Authorize(ctx context.Context, amount decimal.Decimal, card Card, billing models.Address) (*Authorization, error)
	Capture(ctx context.Context, transactionID string, amount decimal.Decimal) (*Capture, error)
}

type Parcel struct {
	LengthIn float64
	WidthIn  float64
	HeightIn float64
	WeightOz float64
}

type Label struct {
	URL            string
	TrackingNumber string
	Carrier        string
	ServiceLevel   string
}

// LabelGateway purchases an adult-signature shipping label. It rejects
// PO-box destinations itself as defense in depth.
type LabelGateway interface {
	CreateLabel(ctx context.Context, from, to models.Address, parcel Parcel) (*Label, error)
}

type FileRef struct {
	Key         string
	Hash        string
	ContentType string
	SizeBytes   int64
}

// ObjectStore archives label artifacts (best-effort) and report
// artifacts (required).
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (*FileRef, error)
	Get(ctx context.Context, key string) ([]byte, error)
}
