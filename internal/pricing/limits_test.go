package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func pricedTier(base, marginPct, shipping, discountPct string, qty int) PricingTier {
	tier := PricingTier{
		TierName:            TierStandard,
		BaseCost:            d(base),
		MarginPct:           d(marginPct),
		MarginAmount:        Money(d(base).Mul(d(marginPct))),
		ShippingCost:        d(shipping),
		ComplexitySurcharge: zeroDecimal,
		SpecialHandlingFee:  zeroDecimal,
		VolumeDiscountPct:   d(discountPct),
		FinalDiscountPct:    d(discountPct),
		Quantity:            qty,
	}
	return tier.withSubtotal().withDiscount()
}

func TestEnforceLimitsCapsDiscount(t *testing.T) {
	tier := pricedTier("3740.00", "0.35", "99.38", "0.20", 100)
	final, adjustments := EnforceLimits(tier, testLimits())

	require.Len(t, adjustments, 1)
	adj := adjustments[0]
	require.Equal(t, FieldFinalDiscountPct, adj.FieldName)
	require.Equal(t, TierStandard, adj.TierName)
	requireDecimal(t, "0.20", adj.OriginalValue)
	requireDecimal(t, "0.15", adj.AdjustedValue)
	require.Equal(t, "Discount capped from 20.0% to 15.0% per policy", adj.Reason)

	requireDecimal(t, "0.20", final.VolumeDiscountPct)
	requireDecimal(t, "0.15", final.FinalDiscountPct)
	requireDecimal(t, "772.26", final.FinalDiscountAmount)
	requireDecimal(t, "4376.12", final.FinalPrice)
	requireDecimal(t, "43.7612", final.PricePerUnit)
}

func TestEnforceLimitsStacksRulesInOrder(t *testing.T) {
	tier := pricedTier("10.00", "0.10", "2.00", "0.20", 2)
	final, adjustments := EnforceLimits(tier, testLimits())

	fields := make([]string, 0, len(adjustments))
	for _, a := range adjustments {
		fields = append(fields, a.FieldName)
	}
	require.Equal(t, []string{FieldFinalDiscountPct, FieldMarginPct, FieldFinalPrice}, fields)

	requireDecimal(t, "0.15", final.MarginPct)
	requireDecimal(t, "1.50", final.MarginAmount)
	requireDecimal(t, "13.50", final.Subtotal)
	requireDecimal(t, "2.03", final.FinalDiscountAmount)
	requireDecimal(t, "11.47", adjustments[2].OriginalValue)
	requireDecimal(t, "50.00", final.FinalPrice)
	requireDecimal(t, "25.00", final.PricePerUnit)
	require.NoError(t, checkFinalized(final, testLimits()))
}

func TestEnforceLimitsPerUnitFloor(t *testing.T) {
	tier := pricedTier("100.00", "0.35", "10.00", "0", 100)
	requireDecimal(t, "1.45", tier.PricePerUnit)

	final, adjustments := EnforceLimits(tier, testLimits())
	require.Len(t, adjustments, 1)
	require.Equal(t, FieldPricePerUnit, adjustments[0].FieldName)
	require.Equal(t, "Price per unit raised from 1.4500 to 5.00 to meet the per-unit minimum", adjustments[0].Reason)
	requireDecimal(t, "500.00", final.FinalPrice)
	requireDecimal(t, "5.00", final.PricePerUnit)
	require.NoError(t, checkFinalized(final, testLimits()))
}

func TestEnforceLimitsPerUnitFloorCatchesRoundedUnitPrice(t *testing.T) {
	// 4999.96 across 1000 units sits a fraction of a cent under 5.00 each.
	tier := pricedTier("3999.97", "0.25", "0", "0", 1000)
	requireDecimal(t, "4999.96", tier.FinalPrice)

	final, adjustments := EnforceLimits(tier, testLimits())
	require.Len(t, adjustments, 1)
	require.Equal(t, FieldPricePerUnit, adjustments[0].FieldName)
	requireDecimal(t, "4.99996", adjustments[0].OriginalValue)
	require.Equal(t, "Price per unit raised from 4.99996 to 5.00 to meet the per-unit minimum", adjustments[0].Reason)
	requireDecimal(t, "5000.00", final.FinalPrice)
	requireDecimal(t, "5.00", final.PricePerUnit)
	require.NoError(t, checkFinalized(final, testLimits()))

	require.Error(t, checkFinalized(tier, testLimits()))
}

func TestUnitPriceReproducesTotalWithinACent(t *testing.T) {
	for _, tc := range []struct {
		total string
		qty   int
	}{
		{"116271.71", 3000},
		{"4999.96", 1000},
		{"98765.43", 12347},
		{"100.00", 3},
		{"7.01", 999999},
	} {
		ppu := UnitPrice(d(tc.total), tc.qty)
		gap := UnitPriceGap(ppu, tc.qty, d(tc.total))
		require.Truef(t, gap.LessThanOrEqual(d("0.01")), "%s / %d -> %s, gap %s", tc.total, tc.qty, ppu, gap)
	}
	requireDecimal(t, "48.9096", UnitPrice(d("4890.96"), 100))
	require.Equal(t, "48.9096", FormatUnitPrice(UnitPrice(d("4890.96"), 100)))
	require.Equal(t, "33.3333", FormatUnitPrice(UnitPrice(d("100.00"), 3)))
}

func TestEnforceLimitsIdempotent(t *testing.T) {
	tiers := []PricingTier{
		pricedTier("3740.00", "0.35", "99.38", "0.05", 100),
		pricedTier("3740.00", "0.35", "99.38", "0.20", 100),
		pricedTier("10.00", "0.10", "2.00", "0.20", 2),
		pricedTier("100.00", "0.35", "10.00", "0", 100),
		pricedTier("0.50", "0.05", "0", "0", 1),
		pricedTier("3999.97", "0.25", "0", "0", 1000),
	}
	for _, tier := range tiers {
		once, _ := EnforceLimits(tier, testLimits())
		twice, adjustments := EnforceLimits(once, testLimits())
		require.Empty(t, adjustments)
		require.Equal(t, once, twice)
	}
}

func TestEnforceLimitsCompliantTierUntouched(t *testing.T) {
	tier := pricedTier("3740.00", "0.35", "99.38", "0.05", 100)
	final, adjustments := EnforceLimits(tier, testLimits())
	require.Empty(t, adjustments)
	require.Equal(t, tier, final)
}

func TestPricingLimitsValidate(t *testing.T) {
	require.NoError(t, testLimits().Validate())

	bad := testLimits()
	bad.MaxDiscountPct = d("1.5")
	bad.MinTotalPrice = d("-1")
	bad.MinPricePerUnit = d("0.001")
	err := bad.Validate()
	require.ErrorIs(t, err, ErrValidation)
	require.Len(t, err.(*ValidationError).Fields, 3)
}
