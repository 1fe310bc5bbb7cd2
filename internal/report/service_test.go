package report

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-orderflow/internal/gateway"
	"ms-orderflow/internal/models"
	"ms-orderflow/internal/saga"
)

type MockReportStore struct {
	mock.Mock
}

func (m *MockReportStore) FindReportContaining(ctx context.Context, jurisdiction string, start, end time.Time) (*models.RegulatoryReport, error) {
	args := m.Called(jurisdiction, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RegulatoryReport), args.Error(1)
}

func (m *MockReportStore) CreateReport(ctx context.Context, rep *models.RegulatoryReport) error {
	args := m.Called(rep)
	return args.Error(0)
}

func (m *MockReportStore) ShippedOrdersInPeriod(ctx context.Context, jurisdiction string, start, end time.Time) ([]ShippedOrder, error) {
	args := m.Called(jurisdiction, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ShippedOrder), args.Error(1)
}

func (m *MockReportStore) ItemsByOrderIDs(ctx context.Context, orderIDs []string) (map[string][]models.OrderItem, error) {
	args := m.Called(orderIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]models.OrderItem), args.Error(1)
}

// memoryStore records every Put so tests can count artifact writes.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (s *memoryStore) Put(ctx context.Context, key string, data []byte, contentType string) (*gateway.FileRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.puts++
	return &gateway.FileRef{Key: key, Hash: "hash-" + key, ContentType: contentType, SizeBytes: int64(len(data))}, nil
}

func (s *memoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key], nil
}

type nopSink struct{}

func (nopSink) Record(models.AuditEvent) {}

func shippedFixture(orderID string, shippedAt time.Time) ShippedOrder {
	return ShippedOrder{
		Order: models.Order{
			ID:                orderID,
			Status:            models.OrderShipped,
			ShippingAddressID: "addr-1",
			Carrier:           "UPS",
			TrackingNumber:    "1Z999",
			ShippedAt:         &shippedAt,
		},
		Address: models.Address{
			ID:         "addr-1",
			FirstName:  "Dana",
			LastName:   "Reyes",
			Street1:    "812 Mission St",
			City:       "San Francisco",
			State:      "CA",
			PostalCode: "94103",
		},
	}
}

func lineItems(orderID string) []models.OrderItem {
	return []models.OrderItem{{
		ID:          "item-1",
		OrderID:     orderID,
		ProductID:   "prod-1",
		SKU:         "POD-TOB-17",
		Quantity:    2,
		UnitPrice:   decimal.RequireFromString("19.99"),
		NetWeightOz: 1.7,
	}}
}

var (
	periodStart = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)
)

func TestGenerateReport(t *testing.T) {
	store := new(MockReportStore)
	objects := newMemoryStore()
	svc := NewService(store, objects, nopSink{}, nil)

	shippedAt := time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)
	store.On("FindReportContaining", "CA", periodStart, periodEnd).Return(nil, nil)
	store.On("ShippedOrdersInPeriod", "CA", periodStart, periodEnd).
		Return([]ShippedOrder{shippedFixture("ord-1", shippedAt)}, nil)
	store.On("ItemsByOrderIDs", []string{"ord-1"}).
		Return(map[string][]models.OrderItem{"ord-1": lineItems("ord-1")}, nil)
	store.On("CreateReport", mock.MatchedBy(func(rep *models.RegulatoryReport) bool {
		return rep.Jurisdiction == "CA" && rep.OrderCount == 1 && rep.RowCount == 1
	})).Return(nil)

	resp, err := svc.Generate(context.Background(), models.SystemActor, "CA", periodStart, periodEnd)

	require.NoError(t, err)
	assert.False(t, resp.Existing)
	assert.Equal(t, 1, resp.OrderCount)
	assert.Equal(t, 1, resp.RowCount)
	assert.Equal(t, "pact/CA/2026-01-01_2026-01-31.csv", resp.FileKey)

	csvText := string(objects.objects[resp.FileKey])
	lines := strings.Split(strings.TrimSpace(csvText), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "order_id")
	assert.Contains(t, lines[1], "ord-1")
	assert.Contains(t, lines[1], "Dana Reyes")
	assert.Contains(t, lines[1], "3.40", "weight must be quantity times unit weight")
	assert.Contains(t, lines[1], "1Z999")

	store.AssertExpectations(t)
}

func TestGenerateReportIsIdempotent(t *testing.T) {
	store := new(MockReportStore)
	objects := newMemoryStore()
	svc := NewService(store, objects, nopSink{}, nil)

	existing := &models.RegulatoryReport{
		ID:           "rep-1",
		Jurisdiction: "CA",
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
		FileKey:      "pact/CA/2026-01-01_2026-01-31.csv",
		FileHash:     "deadbeef",
		OrderCount:   3,
		RowCount:     7,
	}
	store.On("FindReportContaining", "CA", periodStart, periodEnd).Return(existing, nil)

	resp, err := svc.Generate(context.Background(), models.SystemActor, "CA", periodStart, periodEnd)

	require.NoError(t, err)
	assert.True(t, resp.Existing)
	assert.Equal(t, "rep-1", resp.ReportID)
	assert.Equal(t, "deadbeef", resp.FileHash)

	// Serving an existing report performs no recomputation and no writes.
	assert.Equal(t, 0, objects.puts)
	store.AssertNotCalled(t, "ShippedOrdersInPeriod", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "CreateReport", mock.Anything)
}

func TestGenerateReportInvalidDateRange(t *testing.T) {
	svc := NewService(new(MockReportStore), newMemoryStore(), nopSink{}, nil)

	_, err := svc.Generate(context.Background(), models.SystemActor, "CA", periodEnd, periodStart)

	var serr *saga.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeInvalidDateRange, serr.Code)
}

func TestGenerateReportNoOrders(t *testing.T) {
	store := new(MockReportStore)
	svc := NewService(store, newMemoryStore(), nopSink{}, nil)

	store.On("FindReportContaining", "CA", periodStart, periodEnd).Return(nil, nil)
	store.On("ShippedOrdersInPeriod", "CA", periodStart, periodEnd).Return(nil, nil)

	_, err := svc.Generate(context.Background(), models.SystemActor, "CA", periodStart, periodEnd)

	var serr *saga.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeNoOrdersFound, serr.Code)
}

func TestGenerateReportSkipsIncompleteShippingData(t *testing.T) {
	store := new(MockReportStore)
	svc := NewService(store, newMemoryStore(), nopSink{}, nil)

	shippedAt := time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)
	incomplete := shippedFixture("ord-2", shippedAt)
	incomplete.Order.TrackingNumber = ""

	store.On("FindReportContaining", "CA", periodStart, periodEnd).Return(nil, nil)
	store.On("ShippedOrdersInPeriod", "CA", periodStart, periodEnd).
		Return([]ShippedOrder{incomplete}, nil)
	store.On("ItemsByOrderIDs", mock.Anything).Return(map[string][]models.OrderItem{}, nil)

	_, err := svc.Generate(context.Background(), models.SystemActor, "CA", periodStart, periodEnd)

	// The only shipped order is missing its tracking number, so nothing
	// is reportable.
	var serr *saga.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeNoDataFound, serr.Code)
}
