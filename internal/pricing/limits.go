package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Field names reported in LimitAdjustment.FieldName.
const (
	FieldFinalDiscountPct = "finalDiscountPct"
	FieldMarginPct        = "marginPct"
	FieldPricePerUnit     = "pricePerUnit"
	FieldFinalPrice       = "finalPrice"
)

// LimitAdjustment records one change EnforceLimits made to a tier.
type LimitAdjustment struct {
	TierName      TierName        `json:"tierName"`
	FieldName     string          `json:"fieldName"`
	OriginalValue decimal.Decimal `json:"originalValue"`
	AdjustedValue decimal.Decimal `json:"adjustedValue"`
	Reason        string          `json:"reason"`
}

// EnforceLimits applies the hard policy limits to a priced tier. Rules run in
// a fixed order: discount cap, margin floor, per-unit floor, total floor.
// Running it again on its own output yields no adjustments.
func EnforceLimits(tier PricingTier, limits PricingLimits) (PricingTier, []LimitAdjustment) {
	var adjustments []LimitAdjustment
	record := func(field string, from, to decimal.Decimal, reason string) {
		adjustments = append(adjustments, LimitAdjustment{
			TierName:      tier.TierName,
			FieldName:     field,
			OriginalValue: from,
			AdjustedValue: to,
			Reason:        reason,
		})
	}

	if tier.FinalDiscountPct.GreaterThan(limits.MaxDiscountPct) {
		from := tier.FinalDiscountPct
		tier.FinalDiscountPct = limits.MaxDiscountPct
		tier = tier.withDiscount()
		record(FieldFinalDiscountPct, from, limits.MaxDiscountPct,
			fmt.Sprintf("Discount capped from %s to %s per policy", FormatPct(from), FormatPct(limits.MaxDiscountPct)))
	}

	if tier.MarginPct.LessThan(limits.MinMarginPct) {
		from := tier.MarginPct
		tier.MarginPct = limits.MinMarginPct
		tier.MarginAmount = Money(tier.BaseCost.Mul(limits.MinMarginPct))
		tier = tier.withSubtotal().withDiscount()
		record(FieldMarginPct, from, limits.MinMarginPct,
			fmt.Sprintf("Margin raised from %s to %s to meet the minimum margin", FormatPct(from), FormatPct(limits.MinMarginPct)))
	}

	if floor := unitFloorTotal(tier.Quantity, limits); tier.FinalPrice.LessThan(floor) {
		from := tier.PricePerUnit
		tier.FinalPrice = floor
		tier.PricePerUnit = limits.MinPricePerUnit
		record(FieldPricePerUnit, from, limits.MinPricePerUnit,
			fmt.Sprintf("Price per unit raised from %s to %s to meet the per-unit minimum", FormatUnitPrice(from), FormatMoney(limits.MinPricePerUnit)))
	}

	if tier.FinalPrice.LessThan(limits.MinTotalPrice) {
		from := tier.FinalPrice
		tier.FinalPrice = limits.MinTotalPrice
		tier.PricePerUnit = UnitPrice(tier.FinalPrice, tier.Quantity)
		record(FieldFinalPrice, from, limits.MinTotalPrice,
			fmt.Sprintf("Final price raised from %s to %s to meet the order minimum", FormatMoney(from), FormatMoney(limits.MinTotalPrice)))
	}

	return tier, adjustments
}

// checkFinalized verifies that a tier coming out of EnforceLimits honours
// every limit and that its per-unit price reproduces the total.
func checkFinalized(tier PricingTier, limits PricingLimits) error {
	stage := "limits " + string(tier.TierName)
	switch {
	case tier.FinalPrice.IsNegative():
		return integrity(stage, "final price is negative (%s)", tier.FinalPrice)
	case tier.FinalPrice.LessThan(limits.MinTotalPrice):
		return integrity(stage, "final price %s below minimum %s", tier.FinalPrice, limits.MinTotalPrice)
	case tier.PricePerUnit.LessThan(limits.MinPricePerUnit), tier.FinalPrice.LessThan(unitFloorTotal(tier.Quantity, limits)):
		return integrity(stage, "price per unit %s below minimum %s", tier.PricePerUnit, limits.MinPricePerUnit)
	case tier.MarginPct.LessThan(limits.MinMarginPct):
		return integrity(stage, "margin %s below minimum %s", tier.MarginPct, limits.MinMarginPct)
	case tier.FinalDiscountPct.GreaterThan(limits.MaxDiscountPct):
		return integrity(stage, "discount %s above maximum %s", tier.FinalDiscountPct, limits.MaxDiscountPct)
	}
	if UnitPriceGap(tier.PricePerUnit, tier.Quantity, tier.FinalPrice).GreaterThan(oneCent) {
		return integrity(stage, "price per unit %s does not reproduce final price %s", tier.PricePerUnit, tier.FinalPrice)
	}
	return nil
}

// unitFloorTotal is the smallest order total the per-unit minimum allows.
func unitFloorTotal(quantity int, limits PricingLimits) decimal.Decimal {
	return Money(limits.MinPricePerUnit.Mul(decimal.NewFromInt(int64(quantity))))
}
