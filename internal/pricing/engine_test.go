package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCalculateWorkedScenario(t *testing.T) {
	result, explanation, err := Engine{}.Calculate(mustSpec(t, workedInput()), testTables(), testConfig(), testLimits())
	require.NoError(t, err)
	require.NotNil(t, explanation)

	requireDecimal(t, "3740.00", result.Cost.TotalCost())
	requireDecimal(t, "33.75", result.EstimatedWeightKg)
	require.Equal(t, TierOrder(), result.TierOrder)
	require.Len(t, result.Tiers, 4)

	std := result.Tiers[TierStandard]
	requireDecimal(t, "3740.00", std.BaseCost)
	requireDecimal(t, "1309.00", std.MarginAmount)
	requireDecimal(t, "99.38", std.ShippingCost)
	requireDecimal(t, "0", std.ComplexitySurcharge)
	requireDecimal(t, "0", std.SpecialHandlingFee)
	requireDecimal(t, "5148.38", std.Subtotal)
	requireDecimal(t, "0.05", std.VolumeDiscountPct)
	requireDecimal(t, "0.05", std.FinalDiscountPct)
	requireDecimal(t, "257.42", std.FinalDiscountAmount)
	requireDecimal(t, "4890.96", std.FinalPrice)
	requireDecimal(t, "48.9096", std.PricePerUnit)
	require.Equal(t, 7, std.LeadTimeDays)

	requireDecimal(t, "5335.91", result.Tiers[TierExpedited].FinalPrice)
	requireDecimal(t, "4510.87", result.Tiers[TierEconomy].FinalPrice)
	requireDecimal(t, "4319.30", result.Tiers[TierDomesticEconomy].FinalPrice)
	require.Equal(t, TierDomesticEconomy, result.BestTier)
	require.Equal(t, TierDomesticEconomy, explanation.BestTier)

	require.Empty(t, result.Adjustments)
	require.False(t, explanation.LimitsApplied)
}

func TestCalculateQuantityBelowDiscountThresholds(t *testing.T) {
	for _, tier := range []string{"standard", "premium", "enterprise"} {
		in := workedInput()
		in.Quantity = 40
		in.CustomerTier = tier
		result, _, err := Engine{}.Calculate(mustSpec(t, in), testTables(), testConfig(), testLimits())
		require.NoError(t, err)
		for _, name := range result.TierOrder {
			require.True(t, result.Tiers[name].VolumeDiscountPct.IsZero())
			require.True(t, result.Tiers[name].FinalDiscountAmount.IsZero())
		}
	}
}

func TestCalculateDiscountCappedPerTier(t *testing.T) {
	cfg := testConfig()
	cfg.Discounts = DiscountPolicy{
		Brackets:        []DiscountBracket{{MinQuantity: 100, Pct: d("0.20")}},
		CustomerFactors: map[CustomerTier]decimal.Decimal{CustomerStandard: d("1.0")},
	}
	result, explanation, err := Engine{}.Calculate(mustSpec(t, workedInput()), testTables(), cfg, testLimits())
	require.NoError(t, err)
	require.True(t, explanation.LimitsApplied)
	require.Len(t, result.Adjustments, 4)

	for _, name := range TierOrder() {
		tierExp, ok := explanation.Tier(name)
		require.True(t, ok)
		require.Len(t, tierExp.Adjustments, 1)
		adj := tierExp.Adjustments[0]
		require.Equal(t, FieldFinalDiscountPct, adj.FieldName)
		requireDecimal(t, "0.20", adj.OriginalValue)
		requireDecimal(t, "0.15", adj.AdjustedValue)

		tier := result.Tiers[name]
		requireDecimal(t, "0.20", tier.VolumeDiscountPct)
		requireDecimal(t, "0.15", tier.FinalDiscountPct)
	}
	requireDecimal(t, "4376.12", result.Tiers[TierStandard].FinalPrice)
}

func TestCalculatePostLimitProperties(t *testing.T) {
	inputs := []SpecInput{
		workedInput(),
		{Material: "steel", Process: "laser_cutting", LengthMM: 5, WidthMM: 5, HeightMM: 1, ComplexityScore: 1, Quantity: 1, ShippingZone: 1},
		{Material: "steel", Process: "laser_cutting", LengthMM: 5, WidthMM: 5, HeightMM: 1, ComplexityScore: 1, Quantity: 3000, CustomerTier: "enterprise", ShippingZone: 3},
		{Material: "titanium", Process: "cnc_milling", LengthMM: 210.5, WidthMM: 33.3, HeightMM: 17.25, ComplexityScore: 4.9, Quantity: 777, CustomerTier: "premium", ShippingZone: 4, RushOrder: true},
		{Material: "aluminum", Process: "cnc_milling", LengthMM: 12.7, WidthMM: 9.1, HeightMM: 3.3, ComplexityScore: 1.7, Quantity: 7, ShippingZone: 2, SpecialRequirements: []string{"passivate"}},
		{Material: "aluminum", Process: "cnc_milling", LengthMM: 100, WidthMM: 50, HeightMM: 25, ComplexityScore: 2.5, Quantity: 3000, CustomerTier: "enterprise", ShippingZone: 1},
		{Material: "titanium", Process: "cnc_milling", LengthMM: 41.3, WidthMM: 17.9, HeightMM: 6.1, ComplexityScore: 3.3, Quantity: 12347, CustomerTier: "premium", ShippingZone: 2},
	}
	limits := testLimits()
	for _, in := range inputs {
		result, explanation, err := Engine{}.Calculate(mustSpec(t, in), testTables(), testConfig(), limits)
		require.NoError(t, err)
		require.NotNil(t, explanation)
		for _, name := range result.TierOrder {
			tier := result.Tiers[name]
			require.False(t, tier.FinalPrice.IsNegative())
			require.True(t, tier.FinalPrice.GreaterThanOrEqual(limits.MinTotalPrice))
			require.True(t, tier.PricePerUnit.GreaterThanOrEqual(limits.MinPricePerUnit))
			require.True(t, tier.MarginPct.GreaterThanOrEqual(limits.MinMarginPct))
			require.True(t, tier.FinalDiscountPct.LessThanOrEqual(limits.MaxDiscountPct))

			gap := UnitPriceGap(tier.PricePerUnit, tier.Quantity, tier.FinalPrice)
			require.True(t, gap.LessThanOrEqual(d("0.01")), "%s q=%d gap %s", name, tier.Quantity, gap)

			again, adjustments := EnforceLimits(tier, limits)
			require.Empty(t, adjustments)
			require.Equal(t, tier, again)
		}
	}
}

func TestCalculateFloorsSmallOrder(t *testing.T) {
	in := SpecInput{Material: "steel", Process: "laser_cutting", LengthMM: 5, WidthMM: 5, HeightMM: 1, ComplexityScore: 1, Quantity: 1, ShippingZone: 1}
	result, explanation, err := Engine{}.Calculate(mustSpec(t, in), testTables(), testConfig(), testLimits())
	require.NoError(t, err)
	require.True(t, explanation.LimitsApplied)
	for _, name := range result.TierOrder {
		requireDecimal(t, "50.00", result.Tiers[name].FinalPrice)
	}
	// Every tier ties at the floor, so declaration order decides.
	require.Equal(t, TierExpedited, result.BestTier)
}

func TestCalculateSpecialHandling(t *testing.T) {
	tol := 0.02
	in := workedInput()
	in.RushOrder = true
	in.ToleranceMM = &tol
	in.SpecialRequirements = []string{"anodize"}
	result, _, err := Engine{}.Calculate(mustSpec(t, in), testTables(), testConfig(), testLimits())
	require.NoError(t, err)

	std := result.Tiers[TierStandard]
	requireDecimal(t, "75.00", std.SpecialHandlingFee)
	require.Equal(t, []string{HandlingSpecialRequirements, HandlingPrecisionTolerance, HandlingRushOrder}, std.Basis.HandlingReasons)
	requireDecimal(t, "5223.38", std.Subtotal)
}

func TestCalculateHighComplexity(t *testing.T) {
	in := workedInput()
	in.ComplexityScore = 4.5
	result, _, err := Engine{}.Calculate(mustSpec(t, in), testTables(), testConfig(), testLimits())
	require.NoError(t, err)

	std := result.Tiers[TierStandard]
	requireDecimal(t, "7460.00", std.BaseCost)
	requireDecimal(t, "1492.00", std.ComplexitySurcharge)
	requireDecimal(t, "75.00", std.SpecialHandlingFee)
	require.Equal(t, []string{HandlingHighComplexity}, std.Basis.HandlingReasons)
}

func TestCalculateDataUnavailable(t *testing.T) {
	t.Run("density", func(t *testing.T) {
		tables := testTables()
		delete(tables.MaterialDensities, "aluminum")
		_, _, err := Engine{}.Calculate(mustSpec(t, workedInput()), tables, testConfig(), testLimits())
		require.ErrorIs(t, err, ErrDataUnavailable)
	})
	t.Run("zone multiplier", func(t *testing.T) {
		cfg := testConfig()
		cfg.Shipping.ZoneMultipliers = map[int]decimal.Decimal{1: d("1.0")}
		in := workedInput()
		in.ShippingZone = 3
		_, _, err := Engine{}.Calculate(mustSpec(t, in), testTables(), cfg, testLimits())
		var dataErr *DataUnavailableError
		require.True(t, errors.As(err, &dataErr))
		require.Equal(t, "shipping zone multiplier", dataErr.Kind)
		require.Equal(t, "3", dataErr.Key)
	})
	t.Run("tier config", func(t *testing.T) {
		cfg := testConfig()
		cfg.Tiers = cfg.Tiers[:3]
		_, _, err := Engine{}.Calculate(mustSpec(t, workedInput()), testTables(), cfg, testLimits())
		require.ErrorIs(t, err, ErrDataUnavailable)
	})
	t.Run("nil snapshot", func(t *testing.T) {
		_, _, err := Engine{}.Calculate(mustSpec(t, workedInput()), nil, testConfig(), testLimits())
		require.ErrorIs(t, err, ErrDataUnavailable)
	})
}

func TestCalculateRejectsInvalidLimits(t *testing.T) {
	limits := testLimits()
	limits.MaxDiscountPct = d("-0.1")
	_, _, err := Engine{}.Calculate(mustSpec(t, workedInput()), testTables(), testConfig(), limits)
	require.ErrorIs(t, err, ErrValidation)
}

func TestBestTierPrefersDeclarationOrderOnTie(t *testing.T) {
	outcomes := []TierOutcome{
		{Tier: PricingTier{TierName: TierExpedited, FinalPrice: d("120.00")}},
		{Tier: PricingTier{TierName: TierStandard, FinalPrice: d("100.00")}},
		{Tier: PricingTier{TierName: TierEconomy, FinalPrice: d("100.00")}},
		{Tier: PricingTier{TierName: TierDomesticEconomy, FinalPrice: d("100.000")}},
	}
	require.Equal(t, TierStandard, BestTier(outcomes))
}

func TestCalculateExplanationFailureStillReturnsResult(t *testing.T) {
	original := explainBuilder
	t.Cleanup(func() { explainBuilder = original })
	explainBuilder = func(CostBreakdown, []TierOutcome, TierName) (*PricingExplanation, error) {
		panic("boom")
	}

	var reported error
	engine := Engine{OnExplainError: func(err error) { reported = err }}
	result, explanation, err := engine.Calculate(mustSpec(t, workedInput()), testTables(), testConfig(), testLimits())
	require.NoError(t, err)
	require.Nil(t, explanation)
	require.Error(t, reported)
	require.Contains(t, reported.Error(), "boom")
	requireDecimal(t, "4890.96", result.Tiers[TierStandard].FinalPrice)
}

func TestPriceTierRejectsDiscountAboveSubtotal(t *testing.T) {
	spec := mustSpec(t, workedInput())
	cfg := testConfig()
	cost, err := ComputeCost(spec, testTables(), cfg)
	require.NoError(t, err)
	weight, err := EstimateWeightKg(spec, testTables())
	require.NoError(t, err)

	in := TierInput{
		Spec:        spec,
		Cost:        cost,
		Config:      cfg.Tiers[1],
		DiscountPct: d("1.35"),
		WeightKg:    weight,
		Shipping:    cfg.Shipping,
		Complexity:  cfg.Complexity,
		Handling:    cfg.Handling,
	}
	_, err = PriceTier(in)
	require.ErrorIs(t, err, ErrCalculationIntegrity)
	require.Contains(t, err.Error(), "finalPrice")

	in.DiscountPct = d("0.20")
	tier, err := PriceTier(in)
	require.NoError(t, err)
	require.False(t, tier.FinalPrice.IsNegative())
}
