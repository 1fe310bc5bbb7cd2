package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AuditResult string

const (
	AuditSuccess AuditResult = "SUCCESS"
	AuditFail    AuditResult = "FAIL"
	AuditBlocked AuditResult = "BLOCKED"
	AuditError   AuditResult = "ERROR"
)

// Actor is the already-authenticated principal handed to the sagas by the
// API layer. System-initiated work uses SystemActor.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

var SystemActor = Actor{ID: "system", Role: "system"}

// AuditEvent is append-only. Rows are never mutated or deleted, and a
// failed insert must never propagate to the caller.
type AuditEvent struct {
	bun.BaseModel `bun:"table:audit_events"`

	ID         string      `bun:"id,pk" json:"id"`
	ActorID    string      `bun:"actor_id" json:"actor_id"`
	ActorRole  string      `bun:"actor_role" json:"actor_role"`
	Action     string      `bun:"action" json:"action"`
	EntityType string      `bun:"entity_type" json:"entity_type"`
	EntityID   string      `bun:"entity_id,nullzero" json:"entity_id,omitempty"`
	Result     AuditResult `bun:"result" json:"result"`
	ReasonCode string      `bun:"reason_code,nullzero" json:"reason_code,omitempty"`
	Detail     string      `bun:"detail,nullzero" json:"detail,omitempty"`
	CreatedAt  time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}
