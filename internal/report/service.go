// Package report produces PACT-style jurisdiction shipment reports,
// exactly once per (jurisdiction, period). A repeat request is served
// from the stored artifact with no recomputation and no new writes.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"ms-orderflow/internal/audit"
	"ms-orderflow/internal/gateway"
	"ms-orderflow/internal/logger"
	"ms-orderflow/internal/models"
	"ms-orderflow/internal/saga"
)

const (
	CodeInvalidDateRange    = "INVALID_DATE_RANGE"
	CodeNoOrdersFound       = "NO_ORDERS_FOUND"
	CodeNoDataFound         = "NO_DATA_FOUND"
	CodeReportStorageFailed = "REPORT_STORAGE_FAILED"
)

type ReportStore interface {
	FindReportContaining(ctx context.Context, jurisdiction string, start, end time.Time) (*models.RegulatoryReport, error)
	CreateReport(ctx context.Context, rep *models.RegulatoryReport) error
	ShippedOrdersInPeriod(ctx context.Context, jurisdiction string, start, end time.Time) ([]ShippedOrder, error)
	ItemsByOrderIDs(ctx context.Context, orderIDs []string) (map[string][]models.OrderItem, error)
}

type Service struct {
	DB    ReportStore
	Store gateway.ObjectStore
	Audit audit.Sink

	logger logger.Log
	now    func() time.Time
}

func NewService(db ReportStore, store gateway.ObjectStore, sink audit.Sink, log logger.Log) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{DB: db, Store: store, Audit: sink, logger: log, now: time.Now}
}

// row is one report line: one order line item with its shipment data.
type row struct {
	orderID    string
	recipient  string
	street     string
	city       string
	state      string
	postalCode string
	sku        string
	productID  string
	quantity   int
	weightOz   float64
	shippedAt  time.Time
	carrier    string
	tracking   string
}

// Generate builds the report for (jurisdiction, start, end), or re-serves
// an existing one covering that window. The storage key is derived from
// the arguments, so a racing retry overwrites with byte-identical content.
func (s *Service) Generate(ctx context.Context, actor models.Actor, jurisdiction string, start, end time.Time) (*models.ReportResponse, error) {
	if start.After(end) {
		return nil, &saga.Error{Code: CodeInvalidDateRange, Message: "period start must not be after period end"}
	}

	existing, err := s.DB.FindReportContaining(ctx, jurisdiction, start, end)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Info("REPORT", fmt.Sprintf("[%s] serving existing report %s", jurisdiction, existing.ID))
		return &models.ReportResponse{
			ReportID:   existing.ID,
			FileKey:    existing.FileKey,
			FileHash:   existing.FileHash,
			OrderCount: existing.OrderCount,
			RowCount:   existing.RowCount,
			Existing:   true,
		}, nil
	}

	shipped, err := s.DB.ShippedOrdersInPeriod(ctx, jurisdiction, start, end)
	if err != nil {
		return nil, err
	}
	if len(shipped) == 0 {
		return nil, s.fail(actor, jurisdiction, &saga.Error{Code: CodeNoOrdersFound, Message: "no shipped orders in the requested period"})
	}

	// Orders missing carrier, tracking or ship date are silently
	// excluded: incomplete shipping data stays out of the legal report.
	var complete []ShippedOrder
	orderIDs := make([]string, 0, len(shipped))
	for _, so := range shipped {
		if so.Order.Carrier == "" || so.Order.TrackingNumber == "" || so.Order.ShippedAt == nil {
			continue
		}
		complete = append(complete, so)
		orderIDs = append(orderIDs, so.Order.ID)
	}

	itemsByOrder, err := s.DB.ItemsByOrderIDs(ctx, orderIDs)
	if err != nil {
		return nil, err
	}

	var rows []row
	for _, so := range complete {
		for _, it := range itemsByOrder[so.Order.ID] {
			rows = append(rows, row{
				orderID:    so.Order.ID,
				recipient:  so.Address.FirstName + " " + so.Address.LastName,
				street:     so.Address.Street1,
				city:       so.Address.City,
				state:      so.Address.State,
				postalCode: so.Address.PostalCode,
				sku:        it.SKU,
				productID:  it.ProductID,
				quantity:   it.Quantity,
				weightOz:   it.NetWeightOz * float64(it.Quantity),
				shippedAt:  *so.Order.ShippedAt,
				carrier:    so.Order.Carrier,
				tracking:   so.Order.TrackingNumber,
			})
		}
	}
	if len(rows) == 0 {
		return nil, s.fail(actor, jurisdiction, &saga.Error{Code: CodeNoDataFound, Message: "shipped orders produced no reportable rows"})
	}

	artifact, err := serializeRows(rows)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("pact/%s/%s_%s.csv", jurisdiction, start.Format("2006-01-02"), end.Format("2006-01-02"))
	ref, err := s.Store.Put(ctx, key, artifact, "text/csv")
	if err != nil {
		// Storage failure is fatal here, unlike label archival.
		return nil, s.fail(actor, jurisdiction, &saga.Error{Code: CodeReportStorageFailed, Message: "report artifact could not be stored", Err: err})
	}

	rep := &models.RegulatoryReport{
		ID:           uuid.NewString(),
		Jurisdiction: jurisdiction,
		PeriodStart:  start,
		PeriodEnd:    end,
		FileKey:      ref.Key,
		FileHash:     ref.Hash,
		ContentType:  ref.ContentType,
		SizeBytes:    ref.SizeBytes,
		OrderCount:   len(complete),
		RowCount:     len(rows),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.DB.CreateReport(ctx, rep); err != nil {
		return nil, err
	}

	s.Audit.Record(models.AuditEvent{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "GENERATE_REPORT",
		EntityType: "regulatory_report",
		EntityID:   rep.ID,
		Result:     models.AuditSuccess,
		Detail:     fmt.Sprintf("jurisdiction=%s orders=%d rows=%d", jurisdiction, rep.OrderCount, rep.RowCount),
	})
	s.logger.Info("REPORT", fmt.Sprintf("[%s] generated report %s (%d orders, %d rows)", jurisdiction, rep.ID, rep.OrderCount, rep.RowCount))

	return &models.ReportResponse{
		ReportID:   rep.ID,
		FileKey:    rep.FileKey,
		FileHash:   rep.FileHash,
		OrderCount: rep.OrderCount,
		RowCount:   rep.RowCount,
	}, nil
}

func (s *Service) fail(actor models.Actor, jurisdiction string, serr *saga.Error) *saga.Error {
	s.Audit.Record(models.AuditEvent{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "GENERATE_REPORT",
		EntityType: "regulatory_report",
		Result:     models.AuditFail,
		ReasonCode: serr.Code,
		Detail:     "jurisdiction=" + jurisdiction,
	})
	return serr
}

// serializeRows writes a deterministic CSV: fixed header, rows already
// ordered by ship date from the store, then order id and SKU.
func serializeRows(rows []row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"order_id", "recipient", "street", "city", "state", "postal_code",
		"sku", "product_id", "quantity", "total_weight_oz",
		"ship_date", "carrier", "tracking_number",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, r := range rows {
		record := []string{
			r.orderID,
			r.recipient,
			r.street,
			r.city,
			r.state,
			r.postalCode,
			r.sku,
			r.productID,
			strconv.Itoa(r.quantity),
			strconv.FormatFloat(r.weightOz, 'f', 2, 64),
			r.shippedAt.UTC().Format("2006-01-02"),
			r.carrier,
			r.tracking,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
