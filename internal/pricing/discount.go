package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DiscountEngine resolves the soft volume discount for an order. It never
// applies the policy ceiling; EnforceLimits owns that so the audit trail has a
// single source.
type DiscountEngine struct {
	brackets []DiscountBracket
	factors  map[CustomerTier]decimal.Decimal
}

// NewDiscountEngine copies the policy and orders its brackets from the largest
// quantity threshold down.
func NewDiscountEngine(policy DiscountPolicy) DiscountEngine {
	brackets := make([]DiscountBracket, len(policy.Brackets))
	copy(brackets, policy.Brackets)
	sort.SliceStable(brackets, func(i, j int) bool {
		return brackets[i].MinQuantity > brackets[j].MinQuantity
	})
	factors := make(map[CustomerTier]decimal.Decimal, len(policy.CustomerFactors))
	for tier, factor := range policy.CustomerFactors {
		factors[tier] = factor
	}
	return DiscountEngine{brackets: brackets, factors: factors}
}

// BasePct returns the bracket discount for a quantity; the largest matching
// bracket wins.
func (d DiscountEngine) BasePct(quantity int) decimal.Decimal {
	for _, b := range d.brackets {
		if quantity >= b.MinQuantity {
			return b.Pct
		}
	}
	return zeroDecimal
}

// CustomerFactor returns the multiplier for a customer tier. Unknown tiers get 1.0.
func (d DiscountEngine) CustomerFactor(tier CustomerTier) decimal.Decimal {
	if f, ok := d.factors[tier]; ok {
		return f
	}
	return one
}

// VolumeDiscountPct is the soft discount fraction for quantity and customer tier.
func (d DiscountEngine) VolumeDiscountPct(quantity int, tier CustomerTier) decimal.Decimal {
	base := d.BasePct(quantity)
	if base.IsZero() {
		return zeroDecimal
	}
	return base.Mul(d.CustomerFactor(tier))
}
