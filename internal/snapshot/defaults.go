package snapshot

import (
	"bytes"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/partquote/internal/pricing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// DefaultCosts are the built-in cost tables. Unit costs are per cm³ and
// densities are g/cm³.
func DefaultCosts() pricing.CostTables {
	return pricing.CostTables{
		MaterialUnitCosts: map[string]decimal.Decimal{
			"aluminum":        dec("2.00"),
			"steel":           dec("1.20"),
			"stainless_steel": dec("2.40"),
			"titanium":        dec("9.50"),
			"brass":           dec("3.10"),
			"abs":             dec("0.45"),
			"nylon":           dec("0.60"),
		},
		LaborRates: map[string]decimal.Decimal{
			"cnc_milling":       dec("12.00"),
			"cnc_turning":       dec("10.00"),
			"laser_cutting":     dec("4.00"),
			"sheet_metal":       dec("6.00"),
			"injection_molding": dec("2.00"),
			"additive":          dec("8.00"),
		},
		SetupCosts: map[string]decimal.Decimal{
			"cnc_milling":       dec("150.00"),
			"cnc_turning":       dec("120.00"),
			"laser_cutting":     dec("40.00"),
			"sheet_metal":       dec("90.00"),
			"injection_molding": dec("1500.00"),
			"additive":          dec("25.00"),
		},
		MaterialDensities: map[string]decimal.Decimal{
			"aluminum":        dec("2.70"),
			"steel":           dec("7.85"),
			"stainless_steel": dec("8.00"),
			"titanium":        dec("4.43"),
			"brass":           dec("8.50"),
			"abs":             dec("1.04"),
			"nylon":           dec("1.15"),
		},
	}
}

// DefaultConfig is the built-in pricing policy.
func DefaultConfig() pricing.PricingConfig {
	return pricing.PricingConfig{
		Tiers: []pricing.PricingTierConfig{
			{Name: pricing.TierExpedited, MarginPct: dec("0.45"), ShippingBase: dec("25.00"), ShippingMultiplier: dec("2.0"), LeadTimeDays: 3},
			{Name: pricing.TierStandard, MarginPct: dec("0.35"), ShippingBase: dec("15.00"), ShippingMultiplier: dec("1.0"), LeadTimeDays: 7},
			{Name: pricing.TierEconomy, MarginPct: dec("0.25"), ShippingBase: dec("10.00"), ShippingMultiplier: dec("0.75"), LeadTimeDays: 14},
			{Name: pricing.TierDomesticEconomy, MarginPct: dec("0.20"), ShippingBase: dec("8.00"), ShippingMultiplier: dec("0.6"), LeadTimeDays: 10},
		},
		Complexity: pricing.ComplexitySurcharge{Threshold: dec("4.0"), Rate: dec("0.20")},
		Overhead:   dec("0.10"),
		Shipping: pricing.ShippingRates{
			PerKgRate: dec("2.50"),
			ZoneMultipliers: map[int]decimal.Decimal{
				1: dec("1.0"),
				2: dec("1.25"),
				3: dec("1.5"),
				4: dec("2.0"),
			},
		},
		Discounts: pricing.DefaultDiscountPolicy(),
		Handling: pricing.SpecialHandlingPolicy{
			Fee:                  dec("75.00"),
			ComplexityTrigger:    dec("4.0"),
			PrecisionToleranceMM: dec("0.05"),
		},
		Limits: pricing.PricingLimits{
			MinPricePerUnit: dec("5.00"),
			MinTotalPrice:   dec("50.00"),
			MinMarginPct:    dec("0.15"),
			MaxDiscountPct:  dec("0.15"),
		},
	}
}

// Default returns the built-in snapshot. Its version is derived from the
// encoded content so it changes whenever the defaults do.
func Default() *Snapshot {
	snap := &Snapshot{
		Source:   "builtin",
		LoadedAt: time.Now().UTC(),
		Costs:    DefaultCosts(),
		Config:   DefaultConfig(),
	}
	var buf bytes.Buffer
	if err := Write(&buf, snap); err != nil {
		panic(err)
	}
	snap.Version = versionOf(buf.Bytes())
	return snap
}
