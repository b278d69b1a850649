package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "expected %s, got %s %v", want, got.String(), msgAndArgs)
}

func testTables() CostTables {
	return CostTables{
		MaterialUnitCosts: map[string]decimal.Decimal{"aluminum": d("2.00"), "steel": d("1.20"), "titanium": d("9.50")},
		LaborRates:        map[string]decimal.Decimal{"cnc_milling": d("12.00"), "laser_cutting": d("4.00")},
		SetupCosts:        map[string]decimal.Decimal{"cnc_milling": d("150.00"), "laser_cutting": d("0")},
		MaterialDensities: map[string]decimal.Decimal{"aluminum": d("2.70"), "steel": d("7.85"), "titanium": d("4.43")},
	}
}

func testConfig() PricingConfig {
	return PricingConfig{
		Tiers: []PricingTierConfig{
			{Name: TierExpedited, MarginPct: d("0.45"), ShippingBase: d("25.00"), ShippingMultiplier: d("2.0"), LeadTimeDays: 3},
			{Name: TierStandard, MarginPct: d("0.35"), ShippingBase: d("15.00"), ShippingMultiplier: d("1.0"), LeadTimeDays: 7},
			{Name: TierEconomy, MarginPct: d("0.25"), ShippingBase: d("10.00"), ShippingMultiplier: d("0.75"), LeadTimeDays: 14},
			{Name: TierDomesticEconomy, MarginPct: d("0.20"), ShippingBase: d("8.00"), ShippingMultiplier: d("0.6"), LeadTimeDays: 10},
		},
		Complexity: ComplexitySurcharge{Threshold: d("4.0"), Rate: d("0.20")},
		Overhead:   d("0.10"),
		Shipping: ShippingRates{
			PerKgRate:       d("2.50"),
			ZoneMultipliers: map[int]decimal.Decimal{1: d("1.0"), 2: d("1.25"), 3: d("1.5"), 4: d("2.0")},
		},
		Discounts: DefaultDiscountPolicy(),
		Handling:  SpecialHandlingPolicy{Fee: d("75.00"), ComplexityTrigger: d("4.0"), PrecisionToleranceMM: d("0.05")},
	}
}

func testLimits() PricingLimits {
	return PricingLimits{
		MinPricePerUnit: d("5.00"),
		MinTotalPrice:   d("50.00"),
		MinMarginPct:    d("0.15"),
		MaxDiscountPct:  d("0.15"),
	}
}

// workedInput is the 100x50x25 mm aluminium part ordered 100 times.
func workedInput() SpecInput {
	return SpecInput{
		Material:        "aluminum",
		Process:         "cnc_milling",
		LengthMM:        100,
		WidthMM:         50,
		HeightMM:        25,
		ComplexityScore: 2.5,
		Quantity:        100,
		CustomerTier:    "standard",
		ShippingZone:    1,
	}
}

func mustSpec(t *testing.T, in SpecInput) PartSpecification {
	t.Helper()
	spec, err := NewPartSpecification(in)
	require.NoError(t, err)
	return spec
}
