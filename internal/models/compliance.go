package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ComplianceDecision string

const (
	DecisionAllow ComplianceDecision = "ALLOW"
	DecisionBlock ComplianceDecision = "BLOCK"
)

// ComplianceSnapshot is the legal record of why an order was allowed to
// exist. It is written exactly once, inside the creation saga's commit
// transaction, and never updated.
type ComplianceSnapshot struct {
	bun.BaseModel `bun:"table:compliance_snapshots"`

	ID                string             `bun:"id,pk" json:"id"`
	OrderID           string             `bun:"order_id,unique" json:"order_id"`
	Decision          ComplianceDecision `bun:"decision" json:"decision"`
	ReasonCodes       []string           `bun:"reason_codes,array" json:"reason_codes"`
	AgeRulePassed     bool               `bun:"age_rule_passed" json:"age_rule_passed"`
	FlavorRulePassed  bool               `bun:"flavor_rule_passed" json:"flavor_rule_passed"`
	SensoryRulePassed bool               `bun:"sensory_rule_passed" json:"sensory_rule_passed"`
	UTLRulePassed     bool               `bun:"utl_rule_passed" json:"utl_rule_passed"`
	POBoxRulePassed   bool               `bun:"po_box_rule_passed" json:"po_box_rule_passed"`
	StakeCallRequired bool               `bun:"stake_call_required" json:"stake_call_required"`
	CreatedAt         time.Time          `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

type VerificationStatus string

const (
	VerificationPass VerificationStatus = "PASS"
	VerificationFail VerificationStatus = "FAIL"
)

// AgeVerification records the provider outcome for one order. Write-once.
type AgeVerification struct {
	bun.BaseModel `bun:"table:age_verifications"`

	ID          string             `bun:"id,pk" json:"id"`
	OrderID     string             `bun:"order_id,unique" json:"order_id"`
	ProviderRef string             `bun:"provider_ref" json:"provider_ref"`
	Status      VerificationStatus `bun:"status" json:"status"`
	ReasonCode  string             `bun:"reason_code,nullzero" json:"reason_code,omitempty"`
	CreatedAt   time.Time          `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// StakeCall is the operator-logged verification call for first-time
// recipients in jurisdictions that require one. Its presence alone
// satisfies the fulfillment gate; notes are free-form.
type StakeCall struct {
	bun.BaseModel `bun:"table:stake_calls"`

	ID       string    `bun:"id,pk" json:"id"`
	OrderID  string    `bun:"order_id,unique" json:"order_id"`
	ActorID  string    `bun:"actor_id" json:"actor_id"`
	Notes    string    `bun:"notes" json:"notes"`
	CalledAt time.Time `bun:"called_at,nullzero,default:current_timestamp" json:"called_at"`
}
