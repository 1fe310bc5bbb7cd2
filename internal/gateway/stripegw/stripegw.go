// Package stripegw implements the payment gateway contract on Stripe.
// An authorization is a manual-capture PaymentIntent; the fulfillment
// saga captures it later.
package stripegw

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/paymentmethod"

	"ms-orderflow/internal/gateway"
	"ms-orderflow/internal/models"
)

type Gateway struct {
	currency string
}

// New configures the global Stripe client key and returns the gateway.
func New(secretKey string) *Gateway {
	stripe.Key = secretKey
	return &Gateway{currency: "usd"}
}

func (g *Gateway) Authorize(ctx context.Context, amount decimal.Decimal, card gateway.Card, billing models.Address) (*gateway.Authorization, error) {
	pmParams := &stripe.PaymentMethodParams{
		Type: stripe.String("card"),
		Card: &stripe.PaymentMethodCardParams{
			Number:   stripe.String(card.Number),
			ExpMonth: stripe.Int64(int64(card.ExpMonth)),
			ExpYear:  stripe.Int64(int64(card.ExpYear)),
			CVC:      stripe.String(card.CVC),
		},
		BillingDetails: &stripe.PaymentMethodBillingDetailsParams{
			Name: stripe.String(billing.FirstName + " " + billing.LastName),
			Address: &stripe.AddressParams{
				Line1:      stripe.String(billing.Street1),
				Line2:      stripe.String(billing.Street2),
				City:       stripe.String(billing.City),
				State:      stripe.String(billing.State),
				PostalCode: stripe.String(billing.PostalCode),
				Country:    stripe.String(billing.Country),
			},
		},
	}
	pmParams.Context = ctx

	pm, err := paymentmethod.New(pmParams)
	if err != nil {
		return nil, asGatewayError(err)
	}

	piParams := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toCents(amount)),
		Currency:      stripe.String(g.currency),
		PaymentMethod: stripe.String(pm.ID),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:       stripe.Bool(true),
	}
	piParams.Context = ctx

	intent, err := paymentintent.New(piParams)
	if err != nil {
		return nil, asGatewayError(err)
	}
	if intent.Status != stripe.PaymentIntentStatusRequiresCapture {
		return nil, &gateway.Error{Code: "authorization_incomplete", Message: "payment intent status " + string(intent.Status)}
	}

	auth := &gateway.Authorization{TransactionID: intent.ID}
	if intent.LatestCharge != nil && intent.LatestCharge.PaymentMethodDetails != nil &&
		intent.LatestCharge.PaymentMethodDetails.Card != nil &&
		intent.LatestCharge.PaymentMethodDetails.Card.Checks != nil {
		checks := intent.LatestCharge.PaymentMethodDetails.Card.Checks
		auth.AVSResult = string(checks.AddressLine1Check)
		auth.CVVResult = string(checks.CVCCheck)
	}
	return auth, nil
}

func (g *Gateway) Capture(ctx context.Context, transactionID string, amount decimal.Decimal) (*gateway.Capture, error) {
	params := &stripe.PaymentIntentCaptureParams{
		AmountToCapture: stripe.Int64(toCents(amount)),
	}
	params.Context = ctx

	intent, err := paymentintent.Capture(transactionID, params)
	if err != nil {
		return nil, asGatewayError(err)
	}
	return &gateway.Capture{TransactionID: intent.ID}, nil
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func asGatewayError(err error) error {
	if stripeErr, ok := err.(*stripe.Error); ok {
		code := string(stripeErr.Code)
		if code == "" {
			code = string(stripeErr.Type)
		}
		return &gateway.Error{Code: code, Message: stripeErr.Msg}
	}
	return &gateway.Error{Code: "gateway_unreachable", Message: err.Error()}
}
