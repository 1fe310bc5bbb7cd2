package db

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"ms-orderflow/internal/models"
)

// Migrate creates the order lifecycle tables. Catalog tables (products,
// addresses) are owned by the storefront side; they are created here too
// so a fresh database can serve the sagas in development.
func Migrate(db *bun.DB) {
	ctx := context.Background()

	tables := []any{
		(*models.Address)(nil),
		(*models.Product)(nil),
		(*models.Order)(nil),
		(*models.OrderItem)(nil),
		(*models.Payment)(nil),
		(*models.ComplianceSnapshot)(nil),
		(*models.AgeVerification)(nil),
		(*models.StakeCall)(nil),
		(*models.AuditEvent)(nil),
		(*models.RegulatoryReport)(nil),
	}

	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			log.Fatalf("create table failed: %v", err)
		}
	}

	log.Println("order lifecycle tables ready")
}
