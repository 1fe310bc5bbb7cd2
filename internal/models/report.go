package models

import (
	"time"

	"github.com/uptrace/bun"
)

// RegulatoryReport is a PACT-style shipment report, write-once per
// (jurisdiction, period) key. A second request for a covered period is
// served from the stored artifact.
type RegulatoryReport struct {
	bun.BaseModel `bun:"table:regulatory_reports"`

	ID           string    `bun:"id,pk" json:"id"`
	Jurisdiction string    `bun:"jurisdiction" json:"jurisdiction"`
	PeriodStart  time.Time `bun:"period_start" json:"period_start"`
	PeriodEnd    time.Time `bun:"period_end" json:"period_end"`
	FileKey      string    `bun:"file_key" json:"file_key"`
	FileHash     string    `bun:"file_hash" json:"file_hash"`
	ContentType  string    `bun:"content_type" json:"content_type"`
	SizeBytes    int64     `bun:"size_bytes" json:"size_bytes"`
	OrderCount   int       `bun:"order_count" json:"order_count"`
	RowCount     int       `bun:"row_count" json:"row_count"`
	CreatedAt    time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}
