package pricing

import (
	"github.com/shopspring/decimal"
)

// Reasons a part earns the special handling fee.
const (
	HandlingSpecialRequirements = "special_requirements"
	HandlingPrecisionTolerance  = "precision_tolerance"
	HandlingRushOrder           = "rush_order"
	HandlingHighComplexity      = "high_complexity"
)

// TierBasis records the rates a tier was priced from.
type TierBasis struct {
	WeightKg           decimal.Decimal `json:"weightKg"`
	ShippingBase       decimal.Decimal `json:"shippingBase"`
	ShippingMultiplier decimal.Decimal `json:"shippingMultiplier"`
	PerKgRate          decimal.Decimal `json:"perKgRate"`
	ZoneMultiplier     decimal.Decimal `json:"zoneMultiplier"`
	ShippingZone       int             `json:"shippingZone"`
	SurchargeRate      decimal.Decimal `json:"surchargeRate"`
	SurchargeApplied   bool            `json:"surchargeApplied"`
	HandlingReasons    []string        `json:"handlingReasons,omitempty"`
	CustomerTier       CustomerTier    `json:"customerTier"`
}

// PricingTier is the priced outcome of one tier. Values are immutable once
// returned; EnforceLimits produces a new value rather than editing one.
type PricingTier struct {
	TierName            TierName        `json:"tierName"`
	BaseCost            decimal.Decimal `json:"baseCost"`
	MarginPct           decimal.Decimal `json:"marginPct"`
	MarginAmount        decimal.Decimal `json:"marginAmount"`
	ShippingCost        decimal.Decimal `json:"shippingCost"`
	VolumeDiscountPct   decimal.Decimal `json:"volumeDiscountPct"`
	ComplexitySurcharge decimal.Decimal `json:"complexitySurcharge"`
	SpecialHandlingFee  decimal.Decimal `json:"specialHandlingFee"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	FinalDiscountPct    decimal.Decimal `json:"finalDiscountPct"`
	FinalDiscountAmount decimal.Decimal `json:"finalDiscountAmount"`
	FinalPrice          decimal.Decimal `json:"finalPrice"`
	PricePerUnit        decimal.Decimal `json:"pricePerUnit"`
	Quantity            int             `json:"quantity"`
	LeadTimeDays        int             `json:"leadTimeDays"`
	Basis               TierBasis       `json:"basis"`
}

// TierInput bundles everything PriceTier reads. All values are snapshots.
type TierInput struct {
	Spec        PartSpecification
	Cost        CostBreakdown
	Config      PricingTierConfig
	DiscountPct decimal.Decimal
	WeightKg    decimal.Decimal
	Shipping    ShippingRates
	Complexity  ComplexitySurcharge
	Handling    SpecialHandlingPolicy
}

// EstimateWeightKg converts the part volume and material density into the
// shipped weight of the whole order. Density is g/cm³, which equals kg/dm³.
func EstimateWeightKg(spec PartSpecification, costs CostDataProvider) (decimal.Decimal, error) {
	density, ok := costs.MaterialDensity(spec.Material())
	if !ok {
		return decimal.Decimal{}, missing("material density", spec.Material())
	}
	litres := spec.VolumeMM3().Div(million)
	weight := litres.Mul(density).Mul(decimal.NewFromInt(int64(spec.Quantity())))
	return weight.Round(weightPlaces), nil
}

// HandlingReasons lists why a specification needs special handling, in a fixed order.
func HandlingReasons(spec PartSpecification, policy SpecialHandlingPolicy) []string {
	var reasons []string
	if len(spec.SpecialRequirements()) > 0 {
		reasons = append(reasons, HandlingSpecialRequirements)
	}
	if tol, ok := spec.ToleranceMM(); ok && tol.LessThanOrEqual(policy.PrecisionToleranceMM) {
		reasons = append(reasons, HandlingPrecisionTolerance)
	}
	if spec.RushOrder() {
		reasons = append(reasons, HandlingRushOrder)
	}
	if spec.ComplexityScore().GreaterThanOrEqual(policy.ComplexityTrigger) {
		reasons = append(reasons, HandlingHighComplexity)
	}
	return reasons
}

// PriceTier prices one tier before limits are enforced.
func PriceTier(in TierInput) (PricingTier, error) {
	zone := in.Spec.ShippingZone()
	zoneMultiplier, ok := in.Shipping.ZoneMultipliers[zone]
	if !ok {
		return PricingTier{}, missing("shipping zone multiplier", decimal.NewFromInt(int64(zone)).String())
	}

	totalCost := in.Cost.TotalCost()
	margin := Money(totalCost.Mul(in.Config.MarginPct))
	shipping := Money(in.Config.ShippingBase.Add(
		in.WeightKg.Mul(in.Shipping.PerKgRate).Mul(in.Config.ShippingMultiplier).Mul(zoneMultiplier),
	))

	surcharge := zeroDecimal
	surchargeApplied := in.Complexity.Applies(in.Spec.ComplexityScore())
	if surchargeApplied {
		surcharge = Money(totalCost.Mul(in.Complexity.Rate))
	}

	reasons := HandlingReasons(in.Spec, in.Handling)
	fee := zeroDecimal
	if len(reasons) > 0 {
		fee = Money(in.Handling.Fee)
	}

	tier := PricingTier{
		TierName:            in.Config.Name,
		BaseCost:            totalCost,
		MarginPct:           in.Config.MarginPct,
		MarginAmount:        margin,
		ShippingCost:        shipping,
		VolumeDiscountPct:   in.DiscountPct,
		ComplexitySurcharge: surcharge,
		SpecialHandlingFee:  fee,
		FinalDiscountPct:    in.DiscountPct,
		Quantity:            in.Spec.Quantity(),
		LeadTimeDays:        in.Config.LeadTimeDays,
		Basis: TierBasis{
			WeightKg:           in.WeightKg,
			ShippingBase:       in.Config.ShippingBase,
			ShippingMultiplier: in.Config.ShippingMultiplier,
			PerKgRate:          in.Shipping.PerKgRate,
			ZoneMultiplier:     zoneMultiplier,
			ShippingZone:       zone,
			SurchargeRate:      in.Complexity.Rate,
			SurchargeApplied:   surchargeApplied,
			HandlingReasons:    reasons,
			CustomerTier:       in.Spec.CustomerTier(),
		},
	}
	tier = tier.withSubtotal().withDiscount()

	if err := requireNonNegative("tier "+string(tier.TierName), []namedValue{
		{"baseCost", tier.BaseCost},
		{"marginAmount", tier.MarginAmount},
		{"shippingCost", tier.ShippingCost},
		{"complexitySurcharge", tier.ComplexitySurcharge},
		{"specialHandlingFee", tier.SpecialHandlingFee},
		{"subtotal", tier.Subtotal},
		{"finalPrice", tier.FinalPrice},
	}); err != nil {
		return PricingTier{}, err
	}
	return tier, nil
}

// withSubtotal recomputes the subtotal from its components.
func (t PricingTier) withSubtotal() PricingTier {
	t.Subtotal = t.BaseCost.
		Add(t.MarginAmount).
		Add(t.ShippingCost).
		Add(t.ComplexitySurcharge).
		Add(t.SpecialHandlingFee)
	return t
}

// withDiscount recomputes discount amount, final price and unit price from
// the subtotal and the current final discount percentage.
func (t PricingTier) withDiscount() PricingTier {
	t.FinalDiscountAmount = Money(t.Subtotal.Mul(t.FinalDiscountPct))
	t.FinalPrice = t.Subtotal.Sub(t.FinalDiscountAmount)
	t.PricePerUnit = UnitPrice(t.FinalPrice, t.Quantity)
	return t
}
