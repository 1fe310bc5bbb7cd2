package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"ms-orderflow/internal/gateway"
	"ms-orderflow/internal/models"
	"ms-orderflow/internal/order/db"
	"ms-orderflow/internal/saga"
)

type shipState struct {
	actor   models.Actor
	orderID string

	order    *models.Order
	snapshot *models.ComplianceSnapshot
	payment  *models.Payment
	shipping *models.Address
	call     *models.StakeCall

	capture  *gateway.Capture
	label    *gateway.Label
	labelRef *gateway.FileRef
}

// ShipOrder runs the fulfillment saga. Every precondition is re-checked
// at call time; nothing is trusted from creation time. Once the capture
// is acknowledged the saga runs to a terminal state: a later failure is
// flagged for reconciliation, never silently retried.
func (s *Service) ShipOrder(ctx context.Context, actor models.Actor, orderID string) (*models.ShipOrderResponse, error) {
	token := uuid.NewString()
	ok, err := s.deps.Lock.LockOrder(orderID, token)
	if err != nil {
		return nil, &saga.Error{Code: CodeOrderLocked, Message: "order lock unavailable", Err: err}
	}
	if !ok {
		return nil, &saga.Error{Code: CodeOrderLocked, Message: "order is being processed by another request"}
	}
	defer s.deps.Lock.UnlockOrder(orderID, token)

	st := &shipState{actor: actor, orderID: orderID}

	steps := []saga.Step[shipState]{
		{Name: "load_order", Run: s.loadShipmentState},
		{Name: "preconditions", Run: s.checkShippingPreconditions},
		{Name: "capture_payment", Run: s.capturePayment},
		{Name: "purchase_label", Run: s.purchaseLabel},
		{Name: "archive_label", Run: s.archiveLabel},
		{Name: "mark_shipped", Run: s.markShipped},
	}

	serr := saga.Run(ctx, st, steps, func(step string, serr *saga.Error) {
		s.deps.Logger.Warn("SAGA", fmt.Sprintf("[SHIP_ORDER] %s failed at %s: %v", orderID, step, serr))
		s.recordFailure(actor, "SHIP_ORDER", orderID, serr)
	})
	if serr != nil {
		return nil, serr
	}

	if err := s.deps.Notifier.PublishOrderShipped(*st.order); err != nil {
		s.deps.Logger.Warn("KAFKA", fmt.Sprintf("order shipped event for %s not published: %v", orderID, err))
	}
	s.deps.Audit.Record(models.AuditEvent{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "SHIP_ORDER",
		EntityType: "order",
		EntityID:   orderID,
		Result:     models.AuditSuccess,
		Detail: fmt.Sprintf("carrier=%s tracking=%s capture=%s",
			st.label.Carrier, st.label.TrackingNumber, st.capture.TransactionID),
	})

	s.deps.Logger.Info("ORDER", fmt.Sprintf("order %s shipped via %s (%s)", orderID, st.label.Carrier, st.label.TrackingNumber))

	resp := &models.ShipOrderResponse{
		OrderID:              orderID,
		TrackingNumber:       st.label.TrackingNumber,
		Carrier:              st.label.Carrier,
		LabelURL:             st.label.URL,
		CaptureTransactionID: st.capture.TransactionID,
	}
	if st.labelRef != nil {
		resp.LabelFileKey = st.labelRef.Key
	}
	return resp, nil
}

func (s *Service) loadShipmentState(ctx context.Context, st *shipState) *saga.Error {
	ord, err := s.deps.DB.GetOrderByID(ctx, st.orderID)
	if err != nil {
		if err == db.ErrNotFound {
			return &saga.Error{Code: CodeOrderNotFound, Message: "order not found"}
		}
		return &saga.Error{Code: CodeOrderNotFound, Message: "order could not be loaded", Err: err}
	}
	st.order = ord

	// Absence of snapshot or payment is a precondition failure, not a
	// load failure; record nil and let the precondition check report it.
	if snap, err := s.deps.DB.GetSnapshotByOrder(ctx, st.orderID); err == nil {
		st.snapshot = snap
	} else if err != db.ErrNotFound {
		return &saga.Error{Code: CodeShippingNotAllowed, Message: "compliance snapshot could not be loaded", Reasons: []string{ReasonComplianceNotAllowed}, Err: err}
	}

	if pay, err := s.deps.DB.GetPaymentByOrder(ctx, st.orderID); err == nil {
		st.payment = pay
	} else if err != db.ErrNotFound {
		return &saga.Error{Code: CodeShippingNotAllowed, Message: "payment could not be loaded", Reasons: []string{ReasonPaymentNotAuthorized}, Err: err}
	}

	addr, err := s.deps.DB.GetAddressByID(ctx, ord.ShippingAddressID)
	if err != nil {
		return &saga.Error{Code: CodeShippingAddressNotFound, Message: "shipping address could not be resolved", Err: err}
	}
	st.shipping = addr

	call, err := s.deps.DB.GetStakeCallByOrder(ctx, st.orderID)
	if err != nil {
		return &saga.Error{Code: CodeShippingNotAllowed, Message: "stake call lookup failed", Reasons: []string{ReasonStakeCallMissing}, Err: err}
	}
	st.call = call
	return nil
}

// checkShippingPreconditions collects every violated precondition before
// refusing, so the caller sees the complete list rather than the first.
func (s *Service) checkShippingPreconditions(ctx context.Context, st *shipState) *saga.Error {
	var reasons []string

	if st.order.Status != models.OrderPaid {
		reasons = append(reasons, fmt.Sprintf("%s:%s", ReasonOrderNotPaid, st.order.Status))
	}
	if st.snapshot == nil || st.snapshot.Decision != models.DecisionAllow {
		reasons = append(reasons, ReasonComplianceNotAllowed)
	}
	if st.shipping.IsPOBox() {
		reasons = append(reasons, ReasonPOBoxNotAllowed)
	}
	if st.payment == nil || st.payment.Status != models.PaymentAuthorized {
		reasons = append(reasons, ReasonPaymentNotAuthorized)
	}
	if st.order.StakeCallRequired && st.call == nil {
		reasons = append(reasons, ReasonStakeCallMissing)
	}

	if len(reasons) > 0 {
		return &saga.Error{Code: CodeShippingNotAllowed, Message: "order is not eligible for shipment", Reasons: reasons}
	}
	return nil
}

// capturePayment charges the amount stored on the order row. Current
// product prices are never consulted. A failure leaves the payment
// AUTHORIZED and the order PAID, so the whole saga is safe to retry.
func (s *Service) capturePayment(ctx context.Context, st *shipState) *saga.Error {
	amount := st.order.Subtotal.Add(st.order.SalesTax).Add(st.order.ExciseTax)

	cap, err := s.deps.Payments.Capture(ctx, st.payment.TransactionID, amount)
	if err != nil {
		reason := "GATEWAY_ERROR"
		if gwErr, ok := err.(*gateway.Error); ok {
			reason = gwErr.Code
		}
		return &saga.Error{Code: CodePaymentCaptureFailed, Message: "payment capture failed", Reasons: []string{reason}, Err: err}
	}
	st.capture = cap

	if err := s.deps.DB.MarkPaymentCaptured(ctx, st.payment.ID, cap.TransactionID, s.now().UTC()); err != nil {
		// The gateway applied the capture but our row still says
		// AUTHORIZED; retrying would capture twice.
		return &saga.Error{
			Code:           CodePersistenceFailed,
			Message:        "capture succeeded but payment row update failed",
			Reasons:        []string{"capture " + cap.TransactionID + " requires reconciliation"},
			Reconciliation: true,
			Err:            err,
		}
	}
	return nil
}

// purchaseLabel happens after the capture, so its failure is a
// reconciliation condition: money has moved and no automatic refund is
// issued. An operator resolves it (retry the saga is NOT safe).
func (s *Service) purchaseLabel(ctx context.Context, st *shipState) *saga.Error {
	label, err := s.deps.Labels.CreateLabel(ctx, s.deps.Warehouse, *st.shipping, s.deps.Parcel)
	if err != nil {
		reason := "CARRIER_ERROR"
		if gwErr, ok := err.(*gateway.Error); ok {
			reason = gwErr.Code
		}
		return &saga.Error{
			Code:           CodeShippoError,
			Message:        "label purchase failed after payment capture",
			Reasons:        []string{reason},
			Reconciliation: true,
			Err:            err,
		}
	}
	st.label = label
	return nil
}

// archiveLabel is best-effort. The carrier's label URL stays usable, so
// a download or storage failure is logged and the saga continues.
func (s *Service) archiveLabel(ctx context.Context, st *shipState) *saga.Error {
	pdf, err := s.fetchLabel(ctx, st.label.URL)
	if err != nil {
		s.deps.Logger.Warn("ORDER", fmt.Sprintf("label download for %s failed: %v", st.orderID, err))
		return nil
	}

	ref, err := s.deps.Store.Put(ctx, "labels/"+st.orderID+".pdf", pdf, "application/pdf")
	if err != nil {
		s.deps.Logger.Warn("ORDER", fmt.Sprintf("label archive for %s failed: %v", st.orderID, err))
		return nil
	}
	st.labelRef = ref

	// Packing-slip QR with the tracking number for the warehouse floor.
	if png, err := qrcode.Encode(st.label.TrackingNumber, qrcode.Medium, 256); err == nil {
		if _, err := s.deps.Store.Put(ctx, "labels/"+st.orderID+"-qr.png", png, "image/png"); err != nil {
			s.deps.Logger.Warn("ORDER", fmt.Sprintf("packing slip QR for %s not stored: %v", st.orderID, err))
		}
	}
	return nil
}

func (s *Service) markShipped(ctx context.Context, st *shipState) *saga.Error {
	shippedAt := s.now().UTC()
	if err := s.deps.DB.MarkOrderShipped(ctx, st.orderID, st.label.Carrier, st.label.TrackingNumber, shippedAt); err != nil {
		return &saga.Error{
			Code:           CodePersistenceFailed,
			Message:        "capture and label succeeded but order row update failed",
			Reasons:        []string{"order " + st.orderID + " requires reconciliation"},
			Reconciliation: true,
			Err:            err,
		}
	}
	st.order.Status = models.OrderShipped
	st.order.Carrier = st.label.Carrier
	st.order.TrackingNumber = st.label.TrackingNumber
	st.order.ShippedAt = &shippedAt
	return nil
}
