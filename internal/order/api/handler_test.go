package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-orderflow/internal/order"
	"ms-orderflow/internal/report"
	"ms-orderflow/internal/saga"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		name string
		serr *saga.Error
		want int
	}{
		{"empty cart", &saga.Error{Code: order.CodeEmptyOrder}, http.StatusBadRequest},
		{"missing shipping address", &saga.Error{Code: order.CodeShippingAddressNotFound}, http.StatusNotFound},
		{"database failure", &saga.Error{Code: order.CodeDatabaseError}, http.StatusInternalServerError},
		{"blocked order", &saga.Error{Code: order.CodeOrderBlocked}, http.StatusUnprocessableEntity},
		{"declined authorization", &saga.Error{Code: order.CodePaymentAuthFailed}, http.StatusPaymentRequired},
		{"duplicate stake call", &saga.Error{Code: order.CodeStakeCallExists}, http.StatusConflict},
		{"invalid report range", &saga.Error{Code: report.CodeInvalidDateRange}, http.StatusBadRequest},
		// Label failures always follow a capture and carry the
		// reconciliation flag, so they map to 500, never 502.
		{"label failure after capture", &saga.Error{Code: order.CodeShippoError, Reconciliation: true}, http.StatusInternalServerError},
		{"persistence failure after auth", &saga.Error{Code: order.CodePersistenceFailed, Reconciliation: true}, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusFor(tc.serr))
		})
	}
}
