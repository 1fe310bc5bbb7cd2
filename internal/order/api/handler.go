// Package api holds the thin HTTP adapters in front of the sagas. They
// decode JSON, pull the authenticated actor off the request context, call
// the service and map structured error codes to status codes. All
// business logic lives in the services.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-orderflow/internal/models"
	"ms-orderflow/internal/order"
	"ms-orderflow/internal/report"
	"ms-orderflow/internal/saga"
	"ms-orderflow/internal/utils"
)

type Handler struct {
	OrderService  *order.Service
	ReportService *report.Service
}

type actorKey struct{}

// WithActor stores the authenticated principal on the request context.
// Authentication itself happens upstream; this package only consumes the
// result.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(r *http.Request) models.Actor {
	if actor, ok := r.Context().Value(actorKey{}).(models.Actor); ok {
		return actor
	}
	return models.SystemActor
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "BAD_REQUEST", nil))
		return
	}

	resp, err := h.OrderService.CreateOrder(r.Context(), actorFrom(r), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, utils.SuccessResponse("Order created", resp))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	ord, items, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Order", map[string]interface{}{
		"order": ord,
		"items": items,
	}))
}

func (h *Handler) ShipOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	resp, err := h.OrderService.ShipOrder(r.Context(), actorFrom(r), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Order shipped", resp))
}

func (h *Handler) LogStakeCall(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req models.StakeCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "BAD_REQUEST", nil))
		return
	}

	call, err := h.OrderService.LogStakeCall(r.Context(), actorFrom(r), orderID, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, utils.SuccessResponse("Stake call logged", call))
}

func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var req models.ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "BAD_REQUEST", nil))
		return
	}

	resp, err := h.ReportService.Generate(r.Context(), actorFrom(r), req.Jurisdiction, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Existing {
		status = http.StatusOK
	}
	writeJSON(w, status, utils.SuccessResponse("Report", resp))
}

func writeError(w http.ResponseWriter, err error) {
	var serr *saga.Error
	if !errors.As(err, &serr) {
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Internal error", "INTERNAL", nil))
		return
	}
	writeJSON(w, statusFor(serr), utils.ErrorResponse(serr.Message, serr.Code, serr.Reasons))
}

func statusFor(serr *saga.Error) int {
	if serr.Reconciliation {
		// Distinct from clean gateway failures: retrying blindly would
		// double-charge or double-ship. SHIPPO_ERROR is always flagged
		// this way, so label failures read as a server fault rather
		// than a retryable upstream one.
		return http.StatusInternalServerError
	}
	switch serr.Code {
	case order.CodeShippingAddressNotFound,
		order.CodeBillingAddressNotFound,
		order.CodeProductsNotFound,
		order.CodeOrderNotFound:
		return http.StatusNotFound
	case order.CodeEmptyOrder,
		order.CodeInvalidProductPrice,
		order.CodeInvalidQuantity,
		order.CodeInvalidStakeCall,
		report.CodeInvalidDateRange:
		return http.StatusBadRequest
	case order.CodeOrderBlocked,
		order.CodeAgeVerificationFailed,
		order.CodeShippingNotAllowed:
		return http.StatusUnprocessableEntity
	case order.CodeStakeCallExists,
		order.CodeOrderLocked:
		return http.StatusConflict
	case order.CodePaymentAuthFailed,
		order.CodePaymentCaptureFailed:
		return http.StatusPaymentRequired
	case report.CodeNoOrdersFound, report.CodeNoDataFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
