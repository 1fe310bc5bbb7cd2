package compliance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-orderflow/internal/compliance"
	"ms-orderflow/internal/models"
)

func cleanItem() compliance.Item {
	return compliance.Item{
		SKU:            "VAPE-001",
		Flavor:         models.FlavorTobacco,
		JurisdictionOK: true,
		Quantity:       1,
	}
}

func TestEvaluateAllowsCleanCart(t *testing.T) {
	res := compliance.Evaluate(compliance.Input{
		State:       "NY",
		Items:       []compliance.Item{cleanItem(), cleanItem()},
		AgeVerified: true,
	})

	assert.Equal(t, models.DecisionAllow, res.Decision)
	assert.Empty(t, res.Reasons)
	assert.False(t, res.StakeCallRequired)
}

func TestEvaluateRules(t *testing.T) {
	fruity := cleanItem()
	fruity.Flavor = "FRUIT"

	additive := cleanItem()
	additive.RestrictedAdditive = true

	unlisted := cleanItem()
	unlisted.JurisdictionOK = false

	tests := []struct {
		name    string
		in      compliance.Input
		reasons []string
	}{
		{
			name: "age verification failed",
			in: compliance.Input{
				State: "NY", Items: []compliance.Item{cleanItem()}, AgeVerified: false,
			},
			reasons: []string{compliance.ReasonAgeVerificationFailed},
		},
		{
			name: "flavor ban in CA",
			in: compliance.Input{
				State: "CA", Items: []compliance.Item{fruity}, AgeVerified: true,
			},
			reasons: []string{compliance.ReasonCAFlavorBan},
		},
		{
			name: "flavored item allowed outside ban states",
			in: compliance.Input{
				State: "TX", Items: []compliance.Item{fruity}, AgeVerified: true,
			},
			reasons: nil,
		},
		{
			name: "sensory additive in CA",
			in: compliance.Input{
				State: "CA", Items: []compliance.Item{additive}, AgeVerified: true,
			},
			reasons: []string{compliance.ReasonCASensoryBan},
		},
		{
			name: "unapproved product in CA",
			in: compliance.Input{
				State: "CA", Items: []compliance.Item{unlisted}, AgeVerified: true,
			},
			reasons: []string{compliance.ReasonCAUTLRequired},
		},
		{
			name: "po box destination",
			in: compliance.Input{
				State: "NY", IsPOBox: true, Items: []compliance.Item{cleanItem()}, AgeVerified: true,
			},
			reasons: []string{compliance.ReasonPOBoxNotAllowed},
		},
		{
			name: "multiple violations all reported",
			in: compliance.Input{
				State: "CA", IsPOBox: true,
				Items:       []compliance.Item{fruity, additive, unlisted},
				AgeVerified: false,
			},
			reasons: []string{
				compliance.ReasonAgeVerificationFailed,
				compliance.ReasonCAFlavorBan,
				compliance.ReasonCASensoryBan,
				compliance.ReasonCAUTLRequired,
				compliance.ReasonPOBoxNotAllowed,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compliance.Evaluate(tt.in)
			assert.Equal(t, tt.reasons, res.Reasons)
			if len(tt.reasons) > 0 {
				assert.Equal(t, models.DecisionBlock, res.Decision)
			} else {
				assert.Equal(t, models.DecisionAllow, res.Decision)
			}
		})
	}
}

func TestEvaluateDeduplicatesReasons(t *testing.T) {
	fruity := cleanItem()
	fruity.Flavor = "FRUIT"
	minty := cleanItem()
	minty.Flavor = "MENTHOL"

	res := compliance.Evaluate(compliance.Input{
		State:       "CA",
		Items:       []compliance.Item{fruity, minty},
		AgeVerified: true,
	})

	assert.Equal(t, []string{compliance.ReasonCAFlavorBan}, res.Reasons)
}

func TestStakeCallRequired(t *testing.T) {
	// First shipment into a stake-call state requires a call.
	res := compliance.Evaluate(compliance.Input{
		State:                "CA",
		Items:                []compliance.Item{cleanItem()},
		IsFirstTimeRecipient: true,
		AgeVerified:          true,
	})
	assert.Equal(t, models.DecisionAllow, res.Decision)
	assert.True(t, res.StakeCallRequired)

	// Repeat recipients do not.
	res = compliance.Evaluate(compliance.Input{
		State:       "CA",
		Items:       []compliance.Item{cleanItem()},
		AgeVerified: true,
	})
	assert.False(t, res.StakeCallRequired)

	// A blocked order never requires a call, first-time or not.
	res = compliance.Evaluate(compliance.Input{
		State:                "CA",
		IsPOBox:              true,
		Items:                []compliance.Item{cleanItem()},
		IsFirstTimeRecipient: true,
		AgeVerified:          true,
	})
	assert.Equal(t, models.DecisionBlock, res.Decision)
	assert.False(t, res.StakeCallRequired)
}

func TestEvaluateIsPure(t *testing.T) {
	in := compliance.Input{
		State:                "CA",
		IsPOBox:              true,
		Items:                []compliance.Item{cleanItem()},
		IsFirstTimeRecipient: true,
		AgeVerified:          false,
	}

	first := compliance.Evaluate(in)
	second := compliance.Evaluate(in)
	assert.Equal(t, first, second)
}
