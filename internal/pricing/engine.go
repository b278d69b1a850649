package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PricingResult is the complete outcome of one calculation.
type PricingResult struct {
	Cost              CostBreakdown            `json:"cost"`
	Tiers             map[TierName]PricingTier `json:"tiers"`
	TierOrder         []TierName               `json:"tierOrder"`
	BestTier          TierName                 `json:"bestTier"`
	EstimatedWeightKg decimal.Decimal          `json:"estimatedWeightKg"`
	Quantity          int                      `json:"quantity"`
	Adjustments       []LimitAdjustment        `json:"adjustments"`
}

// Best returns the cheapest finalized tier.
func (r PricingResult) Best() PricingTier {
	return r.Tiers[r.BestTier]
}

// Engine runs the full pricing pipeline. The zero value is ready to use and
// safe for concurrent calls.
type Engine struct {
	// OnExplainError is called when the explanation cannot be built. The
	// result is still returned, with a nil explanation.
	OnExplainError func(error)
}

// Calculate prices a specification in every tier against the given snapshots.
func (e Engine) Calculate(spec PartSpecification, costs CostDataProvider, cfg PricingConfigProvider, limits PricingLimits) (PricingResult, *PricingExplanation, error) {
	if costs == nil {
		return PricingResult{}, nil, missing("snapshot", "cost data")
	}
	if cfg == nil {
		return PricingResult{}, nil, missing("snapshot", "pricing config")
	}
	if err := limits.Validate(); err != nil {
		return PricingResult{}, nil, err
	}
	policy := cfg.DiscountPolicy()
	if err := policy.Validate(); err != nil {
		return PricingResult{}, nil, err
	}
	tierConfigs, err := orderedTierConfigs(cfg)
	if err != nil {
		return PricingResult{}, nil, err
	}

	cost, err := ComputeCost(spec, costs, cfg)
	if err != nil {
		return PricingResult{}, nil, err
	}
	weight, err := EstimateWeightKg(spec, costs)
	if err != nil {
		return PricingResult{}, nil, err
	}
	discountPct := NewDiscountEngine(policy).VolumeDiscountPct(spec.Quantity(), spec.CustomerTier())

	result := PricingResult{
		Cost:              cost,
		Tiers:             make(map[TierName]PricingTier, len(tierConfigs)),
		TierOrder:         make([]TierName, 0, len(tierConfigs)),
		EstimatedWeightKg: weight,
		Quantity:          spec.Quantity(),
	}
	outcomes := make([]TierOutcome, 0, len(tierConfigs))
	for _, tc := range tierConfigs {
		priced, err := PriceTier(TierInput{
			Spec:        spec,
			Cost:        cost,
			Config:      tc,
			DiscountPct: discountPct,
			WeightKg:    weight,
			Shipping:    cfg.ShippingRates(),
			Complexity:  cfg.ComplexitySurcharge(),
			Handling:    cfg.SpecialHandling(),
		})
		if err != nil {
			return PricingResult{}, nil, err
		}
		final, adjustments := EnforceLimits(priced, limits)
		if err := checkFinalized(final, limits); err != nil {
			return PricingResult{}, nil, err
		}
		result.Tiers[final.TierName] = final
		result.TierOrder = append(result.TierOrder, final.TierName)
		result.Adjustments = append(result.Adjustments, adjustments...)
		outcomes = append(outcomes, TierOutcome{Tier: final, Adjustments: adjustments})
	}
	result.BestTier = BestTier(outcomes)

	explanation, err := explainSafely(cost, outcomes, result.BestTier)
	if err != nil {
		if e.OnExplainError != nil {
			e.OnExplainError(err)
		}
		explanation = nil
	}
	return result, explanation, nil
}

// BestTier returns the tier with the lowest final price. Ties keep the
// earlier tier.
func BestTier(outcomes []TierOutcome) TierName {
	var best TierName
	var bestPrice decimal.Decimal
	for i, o := range outcomes {
		if i == 0 || o.Tier.FinalPrice.LessThan(bestPrice) {
			best = o.Tier.TierName
			bestPrice = o.Tier.FinalPrice
		}
	}
	return best
}

// explainBuilder is swapped in tests to exercise failure handling.
var explainBuilder = BuildExplanation

func explainSafely(cost CostBreakdown, outcomes []TierOutcome, best TierName) (exp *PricingExplanation, err error) {
	defer func() {
		if r := recover(); r != nil {
			exp = nil
			err = fmt.Errorf("pricing: explanation panicked: %v", r)
		}
	}()
	return explainBuilder(cost, outcomes, best)
}
