// Package compliance evaluates a cart against jurisdiction rules.
// Evaluate is a pure function: no I/O, no clock, no randomness.
package compliance

import "ms-orderflow/internal/models"

const (
	ReasonAgeVerificationFailed = "AGE_VERIFICATION_FAILED"
	ReasonCAFlavorBan           = "CA_FLAVOR_BAN"
	ReasonCASensoryBan          = "CA_SENSORY_BAN"
	ReasonCAUTLRequired         = "CA_UTL_REQUIRED"
	ReasonPOBoxNotAllowed       = "PO_BOX_NOT_ALLOWED"
)

// Jurisdiction rule tables. California is currently the only state with
// flavor, sensory-additive and pre-approval (Unflavored Tobacco List)
// restrictions, and the only one requiring verification calls for
// first-time recipients.
var (
	flavorBanStates  = map[string]bool{"CA": true}
	sensoryBanStates = map[string]bool{"CA": true}
	utlStates        = map[string]bool{"CA": true}
	stakeCallStates  = map[string]bool{"CA": true}
)

type Item struct {
	SKU                string
	Flavor             string
	JurisdictionOK     bool
	RestrictedAdditive bool
	Quantity           int
}

type Input struct {
	State                string
	IsPOBox              bool
	Items                []Item
	IsFirstTimeRecipient bool
	AgeVerified          bool
}

type Result struct {
	Decision          models.ComplianceDecision
	Reasons           []string
	StakeCallRequired bool
}

// Evaluate runs every rule and reports all violations, ordered and
// de-duplicated. The decision is BLOCK iff at least one reason fired.
func Evaluate(in Input) Result {
	var reasons []string
	add := func(code string) {
		for _, r := range reasons {
			if r == code {
				return
			}
		}
		reasons = append(reasons, code)
	}

	if !in.AgeVerified {
		add(ReasonAgeVerificationFailed)
	}

	if flavorBanStates[in.State] {
		for _, it := range in.Items {
			if it.Flavor != models.FlavorTobacco {
				add(ReasonCAFlavorBan)
			}
		}
	}

	if sensoryBanStates[in.State] {
		for _, it := range in.Items {
			if it.RestrictedAdditive {
				add(ReasonCASensoryBan)
			}
		}
	}

	if utlStates[in.State] {
		for _, it := range in.Items {
			if !it.JurisdictionOK {
				add(ReasonCAUTLRequired)
			}
		}
	}

	if in.IsPOBox {
		add(ReasonPOBoxNotAllowed)
	}

	res := Result{Reasons: reasons}
	if len(reasons) > 0 {
		res.Decision = models.DecisionBlock
	} else {
		res.Decision = models.DecisionAllow
		// A blocked order never ships, so it never needs a call.
		res.StakeCallRequired = stakeCallStates[in.State] && in.IsFirstTimeRecipient
	}
	return res
}

// Violated reports whether a given reason code fired in the result.
// The snapshot builder uses it to derive per-rule PASS/FAIL columns.
func (r Result) Violated(code string) bool {
	for _, c := range r.Reasons {
		if c == code {
			return true
		}
	}
	return false
}
