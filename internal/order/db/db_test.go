package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-orderflow/internal/models"
	"ms-orderflow/internal/order/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	// Connect to an in-memory SQLite DB for testing
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	db.Migrate(bunDB)

	return &db.DB{Bun: bunDB}, bunDB
}

func seedAddress(t *testing.T, bunDB *bun.DB, id, userID, state, street string) *models.Address {
	addr := &models.Address{
		ID:         id,
		UserID:     userID,
		FirstName:  "Dana",
		LastName:   "Reyes",
		Street1:    street,
		City:       "Sacramento",
		State:      state,
		PostalCode: "95814",
		Country:    "US",
		CreatedAt:  time.Now().UTC(),
	}
	_, err := bunDB.NewInsert().Model(addr).Exec(context.Background())
	require.NoError(t, err)
	return addr
}

func seedProduct(t *testing.T, bunDB *bun.DB, id string, active bool) models.Product {
	p := models.Product{
		ID:          id,
		SKU:         "SKU-" + id,
		Name:        "Classic Tobacco Pods",
		Flavor:      models.FlavorTobacco,
		NetWeightOz: 1.7,
		Price:       decimal.RequireFromString("19.99"),
		CAApproved:  true,
		Active:      active,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := bunDB.NewInsert().Model(&p).Exec(context.Background())
	require.NoError(t, err)
	return p
}

func testBundle(orderID, userID, shippingAddressID string) (*models.Order, []models.OrderItem, *models.Payment, *models.ComplianceSnapshot, *models.AgeVerification) {
	now := time.Now().UTC()
	order := &models.Order{
		ID:                orderID,
		UserID:            userID,
		Status:            models.OrderPaid,
		Subtotal:          decimal.RequireFromString("19.99"),
		SalesTax:          decimal.RequireFromString("1.45"),
		ExciseTax:         decimal.RequireFromString("0.48"),
		Total:             decimal.RequireFromString("21.92"),
		ShippingAddressID: shippingAddressID,
		BillingAddressID:  shippingAddressID,
		CreatedAt:         now,
	}
	items := []models.OrderItem{{
		ID:          uuid.New().String(),
		OrderID:     orderID,
		ProductID:   "prod-1",
		SKU:         "SKU-prod-1",
		Quantity:    1,
		UnitPrice:   decimal.RequireFromString("19.99"),
		NetWeightOz: 1.7,
	}}
	payment := &models.Payment{
		ID:            uuid.New().String(),
		OrderID:       orderID,
		Status:        models.PaymentAuthorized,
		Amount:        decimal.RequireFromString("21.92"),
		TransactionID: "pi_" + orderID,
		CreatedAt:     now,
	}
	snapshot := &models.ComplianceSnapshot{
		ID:                uuid.New().String(),
		OrderID:           orderID,
		Decision:          models.DecisionAllow,
		AgeRulePassed:     true,
		FlavorRulePassed:  true,
		SensoryRulePassed: true,
		UTLRulePassed:     true,
		POBoxRulePassed:   true,
		CreatedAt:         now,
	}
	verification := &models.AgeVerification{
		ID:          uuid.New().String(),
		OrderID:     orderID,
		ProviderRef: "av_" + orderID,
		Status:      models.VerificationPass,
		CreatedAt:   now,
	}
	return order, items, payment, snapshot, verification
}

func TestCreateOrderBundleAndReadBack(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	seedAddress(t, bunDB, "addr-1", "user-1", "CA", "812 Mission St")
	orderID := uuid.New().String()
	order, items, payment, snapshot, verification := testBundle(orderID, "user-1", "addr-1")

	err := orderDB.CreateOrderBundle(ctx, order, items, payment, snapshot, verification)
	require.NoError(t, err)

	got, err := orderDB.GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, got.Status)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("21.92")))

	gotItems, err := orderDB.GetItemsByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, gotItems, 1)
	assert.Equal(t, "SKU-prod-1", gotItems[0].SKU)

	gotPay, err := orderDB.GetPaymentByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentAuthorized, gotPay.Status)

	gotSnap, err := orderDB.GetSnapshotByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAllow, gotSnap.Decision)
	assert.True(t, gotSnap.AgeRulePassed)
}

func TestGetOrderByIDNotFound(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	_, err := orderDB.GetOrderByID(context.Background(), "nope")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestGetActiveProductsByIDsSkipsInactive(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	seedProduct(t, bunDB, "prod-1", true)
	seedProduct(t, bunDB, "prod-2", false)

	products, err := orderDB.GetActiveProductsByIDs(ctx, []string{"prod-1", "prod-2"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "prod-1", products[0].ID)
}

func TestHasShippedToState(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	seedAddress(t, bunDB, "addr-1", "user-1", "CA", "812 Mission St")

	// Guest checkout has no history by definition.
	shipped, err := orderDB.HasShippedToState(ctx, "", "CA")
	require.NoError(t, err)
	assert.False(t, shipped)

	shipped, err = orderDB.HasShippedToState(ctx, "user-1", "CA")
	require.NoError(t, err)
	assert.False(t, shipped)

	orderID := uuid.New().String()
	order, items, payment, snapshot, verification := testBundle(orderID, "user-1", "addr-1")
	require.NoError(t, orderDB.CreateOrderBundle(ctx, order, items, payment, snapshot, verification))

	shipped, err = orderDB.HasShippedToState(ctx, "user-1", "CA")
	require.NoError(t, err)
	assert.True(t, shipped)

	// A different state still counts as first-time.
	shipped, err = orderDB.HasShippedToState(ctx, "user-1", "TX")
	require.NoError(t, err)
	assert.False(t, shipped)
}

func TestMarkPaymentCapturedOnlyFromAuthorized(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	seedAddress(t, bunDB, "addr-1", "user-1", "CA", "812 Mission St")
	orderID := uuid.New().String()
	order, items, payment, snapshot, verification := testBundle(orderID, "user-1", "addr-1")
	require.NoError(t, orderDB.CreateOrderBundle(ctx, order, items, payment, snapshot, verification))

	capturedAt := time.Now().UTC()
	require.NoError(t, orderDB.MarkPaymentCaptured(ctx, payment.ID, "ch_1", capturedAt))

	got, err := orderDB.GetPaymentByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCaptured, got.Status)
	assert.Equal(t, "ch_1", got.CaptureTransactionID)

	// Re-running the update must not overwrite the capture transaction:
	// the WHERE clause only matches AUTHORIZED rows.
	require.NoError(t, orderDB.MarkPaymentCaptured(ctx, payment.ID, "ch_2", capturedAt))
	got, err = orderDB.GetPaymentByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, "ch_1", got.CaptureTransactionID)
}

func TestMarkOrderShipped(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	seedAddress(t, bunDB, "addr-1", "user-1", "CA", "812 Mission St")
	orderID := uuid.New().String()
	order, items, payment, snapshot, verification := testBundle(orderID, "user-1", "addr-1")
	require.NoError(t, orderDB.CreateOrderBundle(ctx, order, items, payment, snapshot, verification))

	shippedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, orderDB.MarkOrderShipped(ctx, orderID, "UPS", "1Z999", shippedAt))

	got, err := orderDB.GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderShipped, got.Status)
	assert.Equal(t, "UPS", got.Carrier)
	assert.Equal(t, "1Z999", got.TrackingNumber)
	require.NotNil(t, got.ShippedAt)
}

func TestStakeCallLifecycle(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	call, err := orderDB.GetStakeCallByOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Nil(t, call, "absence of a stake call is a normal state")

	err = orderDB.CreateStakeCall(ctx, &models.StakeCall{
		ID:       uuid.New().String(),
		OrderID:  "ord-1",
		ActorID:  "ops-7",
		Notes:    "confirmed recipient by phone",
		CalledAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	call, err = orderDB.GetStakeCallByOrder(ctx, "ord-1")
	require.NoError(t, err)
	require.NotNil(t, call)
	assert.Equal(t, "ops-7", call.ActorID)
}

func TestInsertAuditEvent(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	err := orderDB.InsertAuditEvent(ctx, &models.AuditEvent{
		ID:         uuid.New().String(),
		ActorID:    "system",
		ActorRole:  "system",
		Action:     "CREATE_ORDER",
		EntityType: "order",
		EntityID:   "ord-1",
		Result:     models.AuditFail,
		ReasonCode: "ORDER_BLOCKED",
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)

	count, err := bunDB.NewSelect().Model((*models.AuditEvent)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
