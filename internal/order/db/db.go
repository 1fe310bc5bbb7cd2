package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-orderflow/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ErrNotFound is returned when a single-row lookup matches nothing.
var ErrNotFound = errors.New("not found")

// ---------------- LOOKUPS ----------------

func (d *DB) GetAddressByID(ctx context.Context, id string) (*models.Address, error) {
	var addr models.Address
	err := d.Bun.NewSelect().
		Model(&addr).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// GetActiveProductsByIDs returns only active products; callers diff the
// result against the requested ids to detect missing ones.
func (d *DB) GetActiveProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := d.Bun.NewSelect().
		Model(&products).
		Where("id IN (?)", bun.In(ids)).
		Where("active = ?", true).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return products, nil
}

// HasShippedToState reports whether the user already has a paid or
// shipped order going to the given state. Guest orders have no user id
// and are always treated as first-time recipients.
func (d *DB) HasShippedToState(ctx context.Context, userID, state string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	count, err := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Join("JOIN addresses a ON a.id = \"order\".shipping_address_id").
		Where("\"order\".user_id = ?", userID).
		Where("a.state = ?", state).
		Where("\"order\".status IN (?)", bun.In([]models.OrderStatus{models.OrderPaid, models.OrderShipped})).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ---------------- ORDERS ----------------

func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := d.Bun.NewSelect().
		Model(&items).
		Where("order_id = ?", orderID).
		Order("sku").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// CreateOrderBundle is the creation saga's commit point: order, line
// items, authorized payment, compliance snapshot and age verification
// land in one transaction or not at all.
func (d *DB) CreateOrderBundle(ctx context.Context, order *models.Order, items []models.OrderItem,
	payment *models.Payment, snapshot *models.ComplianceSnapshot, verification *models.AgeVerification) error {

	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(payment).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(snapshot).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(verification).Exec(ctx); err != nil {
			return err
		}
		return nil
	})
}

func (d *DB) MarkOrderShipped(ctx context.Context, orderID, carrier, trackingNumber string, shippedAt time.Time) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.OrderShipped).
		Set("carrier = ?", carrier).
		Set("tracking_number = ?", trackingNumber).
		Set("shipped_at = ?", shippedAt).
		Where("id = ?", orderID).
		Exec(ctx)
	return err
}

// ---------------- PAYMENTS ----------------

// GetPaymentByOrder returns the most recent payment for the order, or
// ErrNotFound when none exists.
func (d *DB) GetPaymentByOrder(ctx context.Context, orderID string) (*models.Payment, error) {
	var payment models.Payment
	err := d.Bun.NewSelect().
		Model(&payment).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkPaymentCaptured moves an AUTHORIZED payment forward to CAPTURED.
// The transition never reverts.
func (d *DB) MarkPaymentCaptured(ctx context.Context, paymentID, captureTransactionID string, capturedAt time.Time) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Payment)(nil)).
		Set("status = ?", models.PaymentCaptured).
		Set("capture_transaction_id = ?", captureTransactionID).
		Set("captured_at = ?", capturedAt).
		Where("id = ?", paymentID).
		Where("status = ?", models.PaymentAuthorized).
		Exec(ctx)
	return err
}

// ---------------- COMPLIANCE ----------------

func (d *DB) GetSnapshotByOrder(ctx context.Context, orderID string) (*models.ComplianceSnapshot, error) {
	var snap models.ComplianceSnapshot
	err := d.Bun.NewSelect().
		Model(&snap).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetStakeCallByOrder returns (nil, nil) when no call has been logged;
// absence is a normal state, not an error.
func (d *DB) GetStakeCallByOrder(ctx context.Context, orderID string) (*models.StakeCall, error) {
	var call models.StakeCall
	err := d.Bun.NewSelect().
		Model(&call).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &call, nil
}

func (d *DB) CreateStakeCall(ctx context.Context, call *models.StakeCall) error {
	_, err := d.Bun.NewInsert().Model(call).Exec(ctx)
	return err
}

// ---------------- AUDIT ----------------

func (d *DB) InsertAuditEvent(ctx context.Context, ev *models.AuditEvent) error {
	_, err := d.Bun.NewInsert().Model(ev).Exec(ctx)
	return err
}
