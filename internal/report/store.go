package report

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-orderflow/internal/models"
)

// Store runs the cross-table queries the report generator needs. Like
// the analytics side of the shop it reads orders, addresses and line
// items directly rather than going through the order repository.
type Store struct {
	Bun *bun.DB
}

// FindReportContaining returns a stored report whose period fully
// contains the requested window, or nil when none exists.
func (s *Store) FindReportContaining(ctx context.Context, jurisdiction string, start, end time.Time) (*models.RegulatoryReport, error) {
	var rep models.RegulatoryReport
	err := s.Bun.NewSelect().
		Model(&rep).
		Where("jurisdiction = ?", jurisdiction).
		Where("period_start <= ?", start).
		Where("period_end >= ?", end).
		Order("created_at ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (s *Store) CreateReport(ctx context.Context, rep *models.RegulatoryReport) error {
	_, err := s.Bun.NewInsert().Model(rep).Exec(ctx)
	return err
}

// ShippedOrder pairs an order with its shipping destination.
type ShippedOrder struct {
	Order   models.Order
	Address models.Address
}

// ShippedOrdersInPeriod returns all SHIPPED orders for the jurisdiction
// whose ship date falls inside the period, ordered by ship date.
func (s *Store) ShippedOrdersInPeriod(ctx context.Context, jurisdiction string, start, end time.Time) ([]ShippedOrder, error) {
	var orders []models.Order
	err := s.Bun.NewSelect().
		Model(&orders).
		Join("JOIN addresses a ON a.id = \"order\".shipping_address_id").
		Where("a.state = ?", jurisdiction).
		Where("\"order\".status = ?", models.OrderShipped).
		Where("\"order\".shipped_at >= ?", start).
		Where("\"order\".shipped_at <= ?", end).
		Order("shipped_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	addrIDs := make([]string, 0, len(orders))
	for _, o := range orders {
		addrIDs = append(addrIDs, o.ShippingAddressID)
	}
	var addrs []models.Address
	err = s.Bun.NewSelect().
		Model(&addrs).
		Where("id IN (?)", bun.In(addrIDs)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	addrByID := make(map[string]models.Address, len(addrs))
	for _, a := range addrs {
		addrByID[a.ID] = a
	}

	result := make([]ShippedOrder, 0, len(orders))
	for _, o := range orders {
		result = append(result, ShippedOrder{Order: o, Address: addrByID[o.ShippingAddressID]})
	}
	return result, nil
}

// ItemsByOrderIDs returns line items grouped by order id.
func (s *Store) ItemsByOrderIDs(ctx context.Context, orderIDs []string) (map[string][]models.OrderItem, error) {
	if len(orderIDs) == 0 {
		return map[string][]models.OrderItem{}, nil
	}
	var items []models.OrderItem
	err := s.Bun.NewSelect().
		Model(&items).
		Where("order_id IN (?)", bun.In(orderIDs)).
		Order("order_id", "sku").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]models.OrderItem)
	for _, it := range items {
		grouped[it.OrderID] = append(grouped[it.OrderID], it)
	}
	return grouped, nil
}
