// Package order hosts the two sagas of the order lifecycle: creation
// (cart submission through payment authorization and the compliance
// snapshot) and fulfillment (capture, label purchase, ship). Both are
// explicit ordered step lists with audit-on-failure in one place.
package order

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ms-orderflow/internal/audit"
	"ms-orderflow/internal/compliance"
	"ms-orderflow/internal/gateway"
	"ms-orderflow/internal/logger"
	"ms-orderflow/internal/models"
	"ms-orderflow/internal/order/db"
	"ms-orderflow/internal/saga"
	"ms-orderflow/internal/tax"
)

type DBLayer interface {
	GetAddressByID(ctx context.Context, id string) (*models.Address, error)
	GetActiveProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	HasShippedToState(ctx context.Context, userID, state string) (bool, error)
	CreateOrderBundle(ctx context.Context, order *models.Order, items []models.OrderItem,
		payment *models.Payment, snapshot *models.ComplianceSnapshot, verification *models.AgeVerification) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error)
	GetPaymentByOrder(ctx context.Context, orderID string) (*models.Payment, error)
	GetSnapshotByOrder(ctx context.Context, orderID string) (*models.ComplianceSnapshot, error)
	GetStakeCallByOrder(ctx context.Context, orderID string) (*models.StakeCall, error)
	CreateStakeCall(ctx context.Context, call *models.StakeCall) error
	MarkPaymentCaptured(ctx context.Context, paymentID, captureTransactionID string, capturedAt time.Time) error
	MarkOrderShipped(ctx context.Context, orderID, carrier, trackingNumber string, shippedAt time.Time) error
}

type OrderLock interface {
	LockOrder(orderID, token string) (bool, error)
	UnlockOrder(orderID, token string) error
}

type Notifier interface {
	PublishOrderCreated(order models.Order) error
	PublishOrderShipped(order models.Order) error
}

// Deps carries everything a Service needs; gateways are injected so the
// sagas run against fakes in tests.
type Deps struct {
	DB          DBLayer
	Lock        OrderLock
	Notifier    Notifier
	AgeVerifier gateway.AgeVerifier
	Payments    gateway.PaymentGateway
	Labels      gateway.LabelGateway
	Store       gateway.ObjectStore
	Audit       audit.Sink
	Warehouse   models.Address
	Parcel      gateway.Parcel
	Logger      logger.Log
}

type Service struct {
	deps Deps

	// fetchLabel downloads the purchased label PDF; swapped in tests.
	fetchLabel func(ctx context.Context, url string) ([]byte, error)
	now        func() time.Time
}

func NewService(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &Service{
		deps:       deps,
		fetchLabel: fetchURL,
		now:        time.Now,
	}
}

func fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("label download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// recordFailure writes the audit event for a failed saga step. Audit
// writes are best-effort: the sink never blocks and never errors.
func (s *Service) recordFailure(actor models.Actor, action, entityID string, serr *saga.Error) {
	result := models.AuditFail
	switch {
	case serr.Reconciliation:
		result = models.AuditError
	case serr.Code == CodeOrderBlocked || serr.Code == CodeShippingNotAllowed:
		result = models.AuditBlocked
	}
	s.deps.Audit.Record(models.AuditEvent{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "order",
		EntityID:   entityID,
		Result:     result,
		ReasonCode: serr.Code,
		Detail:     serr.ReasonString(),
	})
}

// ---------------- ORDER CREATION SAGA ----------------

type createState struct {
	actor   models.Actor
	req     models.CreateOrderRequest
	orderID string

	shipping  *models.Address
	billing   *models.Address
	products  map[string]models.Product
	firstTime bool

	verification *gateway.Verification
	comp         compliance.Result

	items     []models.OrderItem
	subtotal  decimal.Decimal
	salesTax  decimal.Decimal
	exciseTax decimal.Decimal
	total     decimal.Decimal

	auth     *gateway.Authorization
	order    *models.Order
	snapshot *models.ComplianceSnapshot
}

// CreateOrder runs the creation saga: resolve inputs, verify age, gate
// on compliance, price, authorize payment, persist atomically. No order
// row exists until the final step commits. Double submission of the same
// cart is not deduplicated; each call is a new order attempt.
func (s *Service) CreateOrder(ctx context.Context, actor models.Actor, req models.CreateOrderRequest) (*models.CreateOrderResponse, error) {
	st := &createState{
		actor:   actor,
		req:     req,
		orderID: uuid.NewString(),
	}

	token := uuid.NewString()
	if ok, err := s.deps.Lock.LockOrder(st.orderID, token); err != nil || !ok {
		return nil, &saga.Error{Code: CodeOrderLocked, Message: "could not acquire order lock", Err: err}
	}
	defer s.deps.Lock.UnlockOrder(st.orderID, token)

	steps := []saga.Step[createState]{
		{Name: "resolve_inputs", Run: s.resolveInputs},
		{Name: "verify_age", Run: s.verifyAge},
		{Name: "compliance_gate", Run: s.complianceGate},
		{Name: "price_and_tax", Run: s.priceAndTax},
		{Name: "authorize_payment", Run: s.authorizePayment},
		{Name: "persist_order", Run: s.persistOrder},
	}

	serr := saga.Run(ctx, st, steps, func(step string, serr *saga.Error) {
		s.deps.Logger.Warn("SAGA", fmt.Sprintf("[CREATE_ORDER] %s failed at %s: %v", st.orderID, step, serr))
		s.recordFailure(actor, "CREATE_ORDER", st.orderID, serr)
	})
	if serr != nil {
		return nil, serr
	}

	// Side effects are non-blocking: the order already exists.
	if err := s.deps.Notifier.PublishOrderCreated(*st.order); err != nil {
		s.deps.Logger.Warn("KAFKA", fmt.Sprintf("order created event for %s not published: %v", st.orderID, err))
	}
	s.deps.Audit.Record(models.AuditEvent{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "CREATE_ORDER",
		EntityType: "order",
		EntityID:   st.orderID,
		Result:     models.AuditSuccess,
		Detail:     "total=" + st.total.StringFixed(2),
	})

	s.deps.Logger.Info("ORDER", fmt.Sprintf("order %s created (total %s, stake call %v)", st.orderID, st.total.StringFixed(2), st.order.StakeCallRequired))

	return &models.CreateOrderResponse{
		OrderID:           st.orderID,
		Status:            st.order.Status,
		StakeCallRequired: st.order.StakeCallRequired,
		SnapshotID:        st.snapshot.ID,
		TransactionID:     st.auth.TransactionID,
	}, nil
}

// resolveInputs loads both addresses and all products concurrently; they
// are independent reads.
func (s *Service) resolveInputs(ctx context.Context, st *createState) *saga.Error {
	if len(st.req.Items) == 0 {
		return &saga.Error{Code: CodeEmptyOrder, Message: "order must contain at least one item"}
	}

	var (
		wg       sync.WaitGroup
		shipErr  error
		billErr  error
		prodErr  error
		products []models.Product
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		st.shipping, shipErr = s.deps.DB.GetAddressByID(ctx, st.req.ShippingAddressID)
	}()
	go func() {
		defer wg.Done()
		st.billing, billErr = s.deps.DB.GetAddressByID(ctx, st.req.BillingAddressID)
	}()
	go func() {
		defer wg.Done()
		ids := make([]string, 0, len(st.req.Items))
		for _, it := range st.req.Items {
			ids = append(ids, it.ProductID)
		}
		products, prodErr = s.deps.DB.GetActiveProductsByIDs(ctx, ids)
	}()
	wg.Wait()

	// A missing row is a correctable input error; anything else from the
	// database is an infrastructure failure and is reported as one.
	if shipErr != nil {
		if shipErr == db.ErrNotFound {
			return &saga.Error{Code: CodeShippingAddressNotFound, Message: "shipping address could not be resolved", Err: shipErr}
		}
		return &saga.Error{Code: CodeDatabaseError, Message: "shipping address lookup failed", Err: shipErr}
	}
	if billErr != nil {
		if billErr == db.ErrNotFound {
			return &saga.Error{Code: CodeBillingAddressNotFound, Message: "billing address could not be resolved", Err: billErr}
		}
		return &saga.Error{Code: CodeDatabaseError, Message: "billing address lookup failed", Err: billErr}
	}
	if prodErr != nil {
		return &saga.Error{Code: CodeDatabaseError, Message: "product lookup failed", Err: prodErr}
	}

	st.products = make(map[string]models.Product, len(products))
	for _, p := range products {
		st.products[p.ID] = p
	}

	var missing []string
	for _, it := range st.req.Items {
		if _, ok := st.products[it.ProductID]; !ok {
			missing = append(missing, it.ProductID)
		}
	}
	if len(missing) > 0 {
		return &saga.Error{Code: CodeProductsNotFound, Message: "requested products not found or inactive", Reasons: missing}
	}
	return nil
}

// verifyAge calls the provider and fails closed on any error or timeout.
// A provider PASS is not sufficient: the computed age must also clear the
// minimum, even if the provider approved.
func (s *Service) verifyAge(ctx context.Context, st *createState) *saga.Error {
	v, err := s.deps.AgeVerifier.Verify(ctx, st.req.CustomerFirstName, st.req.CustomerLastName, st.req.DateOfBirth, *st.shipping)
	if err != nil {
		reason := "PROVIDER_ERROR"
		if gwErr, ok := err.(*gateway.Error); ok {
			reason = gwErr.Code
		}
		return &saga.Error{Code: CodeAgeVerificationFailed, Message: "age verification unavailable", Reasons: []string{reason}, Err: err}
	}
	st.verification = v

	if v.Status != models.VerificationPass {
		reason := v.ReasonCode
		if reason == "" {
			reason = "PROVIDER_FAIL"
		}
		return &saga.Error{Code: CodeAgeVerificationFailed, Message: "age verification failed", Reasons: []string{reason}}
	}

	if yearsBetween(st.req.DateOfBirth, s.now()) < MinimumAge {
		return &saga.Error{Code: CodeAgeVerificationFailed, Message: "customer is under the minimum age", Reasons: []string{ReasonUnderMinimumAge}}
	}
	return nil
}

func (s *Service) complianceGate(ctx context.Context, st *createState) *saga.Error {
	shipped, err := s.deps.DB.HasShippedToState(ctx, st.req.UserID, st.shipping.State)
	if err != nil {
		// Fail closed: treat the recipient as first-time so the stake
		// call requirement cannot be skipped on a read failure.
		s.deps.Logger.Warn("DATABASE", fmt.Sprintf("first-shipment lookup failed for %s: %v", st.orderID, err))
		shipped = false
	}
	st.firstTime = !shipped

	in := compliance.Input{
		State:                st.shipping.State,
		IsPOBox:              st.shipping.IsPOBox(),
		IsFirstTimeRecipient: st.firstTime,
		AgeVerified:          true,
	}
	for _, reqItem := range st.req.Items {
		p := st.products[reqItem.ProductID]
		in.Items = append(in.Items, compliance.Item{
			SKU:                p.SKU,
			Flavor:             p.Flavor,
			JurisdictionOK:     p.CAApproved,
			RestrictedAdditive: p.RestrictedAdditive,
			Quantity:           reqItem.Quantity,
		})
	}

	st.comp = compliance.Evaluate(in)
	if st.comp.Decision == models.DecisionBlock {
		// Blocked carts never become order rows; no payment is attempted.
		return &saga.Error{Code: CodeOrderBlocked, Message: "order blocked by compliance rules", Reasons: st.comp.Reasons}
	}
	return nil
}

// priceAndTax snapshots unit prices, validates every line and computes
// the money fields. Each component is rounded to two decimals before the
// total is summed; the total is never rounded again.
func (s *Service) priceAndTax(ctx context.Context, st *createState) *saga.Error {
	subtotal := decimal.Zero
	var weighted []tax.WeightedLine

	for _, reqItem := range st.req.Items {
		p := st.products[reqItem.ProductID]
		if !p.Price.IsPositive() {
			return &saga.Error{Code: CodeInvalidProductPrice, Message: "product has a non-positive price", Reasons: []string{p.SKU}}
		}
		if reqItem.Quantity < 1 {
			return &saga.Error{Code: CodeInvalidQuantity, Message: "line quantity must be at least 1", Reasons: []string{p.SKU}}
		}

		st.items = append(st.items, models.OrderItem{
			ID:          uuid.NewString(),
			OrderID:     st.orderID,
			ProductID:   p.ID,
			SKU:         p.SKU,
			Quantity:    reqItem.Quantity,
			UnitPrice:   p.Price,
			NetWeightOz: p.NetWeightOz,
		})
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(reqItem.Quantity))))
		weighted = append(weighted, tax.WeightedLine{NetWeightOz: p.NetWeightOz, Quantity: reqItem.Quantity})
	}

	st.subtotal = tax.Round(subtotal)
	st.salesTax, st.exciseTax = tax.Calculate(st.subtotal, st.shipping.State, weighted)
	st.total = st.subtotal.Add(st.salesTax).Add(st.exciseTax)
	return nil
}

func (s *Service) authorizePayment(ctx context.Context, st *createState) *saga.Error {
	auth, err := s.deps.Payments.Authorize(ctx, st.total, gateway.Card{
		Number:   st.req.Card.Number,
		ExpMonth: st.req.Card.ExpMonth,
		ExpYear:  st.req.Card.ExpYear,
		CVC:      st.req.Card.CVC,
	}, *st.billing)
	if err != nil {
		reason := "GATEWAY_ERROR"
		if gwErr, ok := err.(*gateway.Error); ok {
			reason = gwErr.Code
		}
		return &saga.Error{Code: CodePaymentAuthFailed, Message: "payment authorization declined or failed", Reasons: []string{reason}, Err: err}
	}
	st.auth = auth
	return nil
}

// persistOrder is the commit point. A failure here happens after a
// successful authorization, so it is flagged for reconciliation instead
// of being retried: re-running the saga would authorize the card twice.
func (s *Service) persistOrder(ctx context.Context, st *createState) *saga.Error {
	now := s.now().UTC()

	st.order = &models.Order{
		ID:                st.orderID,
		UserID:            st.req.UserID,
		Status:            models.OrderPaid,
		Subtotal:          st.subtotal,
		SalesTax:          st.salesTax,
		ExciseTax:         st.exciseTax,
		Total:             st.total,
		ShippingAddressID: st.shipping.ID,
		BillingAddressID:  st.billing.ID,
		StakeCallRequired: st.comp.StakeCallRequired,
		CreatedAt:         now,
	}

	payment := &models.Payment{
		ID:            uuid.NewString(),
		OrderID:       st.orderID,
		Status:        models.PaymentAuthorized,
		Amount:        st.total,
		TransactionID: st.auth.TransactionID,
		AVSResult:     st.auth.AVSResult,
		CVVResult:     st.auth.CVVResult,
		CreatedAt:     now,
	}

	st.snapshot = &models.ComplianceSnapshot{
		ID:                uuid.NewString(),
		OrderID:           st.orderID,
		Decision:          st.comp.Decision,
		ReasonCodes:       st.comp.Reasons,
		AgeRulePassed:     !st.comp.Violated(compliance.ReasonAgeVerificationFailed),
		FlavorRulePassed:  !st.comp.Violated(compliance.ReasonCAFlavorBan),
		SensoryRulePassed: !st.comp.Violated(compliance.ReasonCASensoryBan),
		UTLRulePassed:     !st.comp.Violated(compliance.ReasonCAUTLRequired),
		POBoxRulePassed:   !st.comp.Violated(compliance.ReasonPOBoxNotAllowed),
		StakeCallRequired: st.comp.StakeCallRequired,
		CreatedAt:         now,
	}

	verification := &models.AgeVerification{
		ID:          uuid.NewString(),
		OrderID:     st.orderID,
		ProviderRef: st.verification.ReferenceID,
		Status:      st.verification.Status,
		ReasonCode:  st.verification.ReasonCode,
		CreatedAt:   now,
	}

	if err := s.deps.DB.CreateOrderBundle(ctx, st.order, st.items, payment, st.snapshot, verification); err != nil {
		return &saga.Error{
			Code:           CodePersistenceFailed,
			Message:        "order persistence failed after payment authorization",
			Reasons:        []string{"authorization " + st.auth.TransactionID + " requires reconciliation"},
			Reconciliation: true,
			Err:            err,
		}
	}
	return nil
}

// ---------------- READS ----------------

func (s *Service) GetOrder(ctx context.Context, id string) (*models.Order, []models.OrderItem, error) {
	ord, err := s.deps.DB.GetOrderByID(ctx, id)
	if err != nil {
		if err == db.ErrNotFound {
			return nil, nil, &saga.Error{Code: CodeOrderNotFound, Message: "order not found"}
		}
		return nil, nil, err
	}
	items, err := s.deps.DB.GetItemsByOrder(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return ord, items, nil
}

func yearsBetween(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}
