package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// TierName identifies one of the four fixed pricing strategies.
type TierName string

const (
	TierExpedited       TierName = "expedited"
	TierStandard        TierName = "standard"
	TierEconomy         TierName = "economy"
	TierDomesticEconomy TierName = "domestic_economy"
)

// TierOrder is the fixed declaration order of tiers. Ties for the best tier
// resolve to the earlier entry.
func TierOrder() []TierName {
	return []TierName{TierExpedited, TierStandard, TierEconomy, TierDomesticEconomy}
}

// PricingTierConfig is the static margin and shipping profile of a tier.
type PricingTierConfig struct {
	Name               TierName        `json:"name" yaml:"name"`
	MarginPct          decimal.Decimal `json:"marginPct" yaml:"marginPct"`
	ShippingBase       decimal.Decimal `json:"shippingBase" yaml:"shippingBase"`
	ShippingMultiplier decimal.Decimal `json:"shippingMultiplier" yaml:"shippingMultiplier"`
	LeadTimeDays       int             `json:"leadTimeDays" yaml:"leadTimeDays"`
}

// PricingLimits are the hard floors and ceilings no finalized tier may violate.
type PricingLimits struct {
	MinPricePerUnit decimal.Decimal `json:"minPricePerUnit" yaml:"minPricePerUnit"`
	MinTotalPrice   decimal.Decimal `json:"minTotalPrice" yaml:"minTotalPrice"`
	MinMarginPct    decimal.Decimal `json:"minMarginPct" yaml:"minMarginPct"`
	MaxDiscountPct  decimal.Decimal `json:"maxDiscountPct" yaml:"maxDiscountPct"`
}

// Validate rejects limits that could drive a price negative or a discount past 100%.
func (l PricingLimits) Validate() error {
	var fields []FieldError
	check := func(name string, v decimal.Decimal) {
		if v.IsNegative() {
			fields = append(fields, FieldError{Field: "limits." + name, Rule: "gte", Message: "must not be negative"})
		}
	}
	check("minPricePerUnit", l.MinPricePerUnit)
	check("minTotalPrice", l.MinTotalPrice)
	check("minMarginPct", l.MinMarginPct)
	check("maxDiscountPct", l.MaxDiscountPct)
	for _, v := range []namedValue{{"minPricePerUnit", l.MinPricePerUnit}, {"minTotalPrice", l.MinTotalPrice}} {
		if !v.value.Equal(Money(v.value)) {
			fields = append(fields, FieldError{Field: "limits." + v.name, Rule: "money", Message: "must have at most 2 decimal places"})
		}
	}
	if l.MaxDiscountPct.GreaterThan(one) {
		fields = append(fields, FieldError{Field: "limits.maxDiscountPct", Rule: "lte", Message: "must be at most 1"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ComplexitySurcharge is the trigger and rate applied to complex parts.
type ComplexitySurcharge struct {
	Threshold decimal.Decimal `json:"threshold" yaml:"threshold"`
	Rate      decimal.Decimal `json:"rate" yaml:"rate"`
}

// Applies reports whether a complexity score earns the surcharge.
func (c ComplexitySurcharge) Applies(score decimal.Decimal) bool {
	return score.GreaterThanOrEqual(c.Threshold)
}

// ShippingRates is the per-kilogram rate and the zone multiplier table.
type ShippingRates struct {
	PerKgRate       decimal.Decimal         `json:"perKgRate" yaml:"perKgRate"`
	ZoneMultipliers map[int]decimal.Decimal `json:"zoneMultipliers" yaml:"zoneMultipliers"`
}

// DiscountBracket grants Pct to orders of at least MinQuantity units.
type DiscountBracket struct {
	MinQuantity int             `json:"minQuantity" yaml:"minQuantity"`
	Pct         decimal.Decimal `json:"pct" yaml:"pct"`
}

// DiscountPolicy holds the volume brackets and customer tier factors.
type DiscountPolicy struct {
	Brackets        []DiscountBracket                `json:"brackets" yaml:"brackets"`
	CustomerFactors map[CustomerTier]decimal.Decimal `json:"customerFactors" yaml:"customerFactors"`
}

// DefaultDiscountPolicy returns the standard volume discount schedule.
func DefaultDiscountPolicy() DiscountPolicy {
	return DiscountPolicy{
		Brackets: []DiscountBracket{
			{MinQuantity: 1000, Pct: decimal.RequireFromString("0.15")},
			{MinQuantity: 500, Pct: decimal.RequireFromString("0.10")},
			{MinQuantity: 100, Pct: decimal.RequireFromString("0.05")},
			{MinQuantity: 50, Pct: decimal.RequireFromString("0.025")},
		},
		CustomerFactors: map[CustomerTier]decimal.Decimal{
			CustomerStandard:   decimal.RequireFromString("1.0"),
			CustomerPremium:    decimal.RequireFromString("1.2"),
			CustomerEnterprise: decimal.RequireFromString("1.5"),
		},
	}
}

// Validate checks bracket percentages are fractions and factors are non-negative.
func (p DiscountPolicy) Validate() error {
	var fields []FieldError
	for i, b := range p.Brackets {
		if b.MinQuantity <= 0 {
			fields = append(fields, FieldError{Field: fmt.Sprintf("discounts.brackets[%d].minQuantity", i), Rule: "gt", Message: "must be greater than 0"})
		}
		if b.Pct.IsNegative() || b.Pct.GreaterThan(one) {
			fields = append(fields, FieldError{Field: fmt.Sprintf("discounts.brackets[%d].pct", i), Rule: "range", Message: "must be between 0 and 1"})
		}
	}
	ordered := make([]DiscountBracket, len(p.Brackets))
	copy(ordered, p.Brackets)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].MinQuantity < ordered[j].MinQuantity })
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Pct.LessThan(ordered[i-1].Pct) {
			fields = append(fields, FieldError{Field: "discounts.brackets", Rule: "monotonic", Message: "larger quantities must not earn a smaller discount"})
			break
		}
	}
	maxPct, maxFactor := zeroDecimal, one
	for _, b := range p.Brackets {
		maxPct = decimal.Max(maxPct, b.Pct)
	}
	for _, f := range p.CustomerFactors {
		maxFactor = decimal.Max(maxFactor, f)
	}
	if maxPct.Mul(maxFactor).GreaterThan(one) {
		fields = append(fields, FieldError{Field: "discounts", Rule: "max", Message: "largest bracket times largest customer factor must not exceed 1"})
	}
	tiers := make([]string, 0, len(p.CustomerFactors))
	for tier := range p.CustomerFactors {
		tiers = append(tiers, string(tier))
	}
	sort.Strings(tiers)
	for _, tier := range tiers {
		if p.CustomerFactors[CustomerTier(tier)].IsNegative() {
			fields = append(fields, FieldError{Field: "discounts.customerFactors." + tier, Rule: "gte", Message: "must not be negative"})
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// SpecialHandlingPolicy prices the flat fee for parts that need extra care.
type SpecialHandlingPolicy struct {
	Fee                  decimal.Decimal `json:"fee" yaml:"fee"`
	ComplexityTrigger    decimal.Decimal `json:"complexityTrigger" yaml:"complexityTrigger"`
	PrecisionToleranceMM decimal.Decimal `json:"precisionToleranceMm" yaml:"precisionToleranceMm"`
}

// CostDataProvider exposes the read-only cost tables a calculation consumes.
type CostDataProvider interface {
	MaterialUnitCost(material string) (decimal.Decimal, bool)
	LaborRate(process string) (decimal.Decimal, bool)
	SetupCost(process string) (decimal.Decimal, bool)
	MaterialDensity(material string) (decimal.Decimal, bool)
}

// PricingConfigProvider exposes the read-only pricing policy a calculation consumes.
type PricingConfigProvider interface {
	TierConfigs() []PricingTierConfig
	ComplexitySurcharge() ComplexitySurcharge
	OverheadRate() decimal.Decimal
	ShippingRates() ShippingRates
	DiscountPolicy() DiscountPolicy
	SpecialHandling() SpecialHandlingPolicy
}

// CostTables is the map-backed CostDataProvider. Material unit costs are per
// cubic centimetre and densities are g/cm³.
type CostTables struct {
	MaterialUnitCosts map[string]decimal.Decimal `json:"materialUnitCosts" yaml:"materialUnitCosts"`
	LaborRates        map[string]decimal.Decimal `json:"laborRates" yaml:"laborRates"`
	SetupCosts        map[string]decimal.Decimal `json:"setupCosts" yaml:"setupCosts"`
	MaterialDensities map[string]decimal.Decimal `json:"materialDensities" yaml:"materialDensities"`
}

func (t CostTables) MaterialUnitCost(material string) (decimal.Decimal, bool) {
	v, ok := t.MaterialUnitCosts[material]
	return v, ok
}

func (t CostTables) LaborRate(process string) (decimal.Decimal, bool) {
	v, ok := t.LaborRates[process]
	return v, ok
}

func (t CostTables) SetupCost(process string) (decimal.Decimal, bool) {
	v, ok := t.SetupCosts[process]
	return v, ok
}

func (t CostTables) MaterialDensity(material string) (decimal.Decimal, bool) {
	v, ok := t.MaterialDensities[material]
	return v, ok
}

// PricingConfig is the struct-backed PricingConfigProvider.
type PricingConfig struct {
	Tiers      []PricingTierConfig   `json:"tiers" yaml:"tiers"`
	Complexity ComplexitySurcharge   `json:"complexitySurcharge" yaml:"complexitySurcharge"`
	Overhead   decimal.Decimal       `json:"overheadRate" yaml:"overheadRate"`
	Shipping   ShippingRates         `json:"shipping" yaml:"shipping"`
	Discounts  DiscountPolicy        `json:"discounts" yaml:"discounts"`
	Handling   SpecialHandlingPolicy `json:"specialHandling" yaml:"specialHandling"`
	Limits     PricingLimits         `json:"limits" yaml:"limits"`
}

func (c PricingConfig) TierConfigs() []PricingTierConfig {
	out := make([]PricingTierConfig, len(c.Tiers))
	copy(out, c.Tiers)
	return out
}

func (c PricingConfig) ComplexitySurcharge() ComplexitySurcharge { return c.Complexity }

func (c PricingConfig) OverheadRate() decimal.Decimal { return c.Overhead }

func (c PricingConfig) ShippingRates() ShippingRates { return c.Shipping }

func (c PricingConfig) DiscountPolicy() DiscountPolicy { return c.Discounts }

func (c PricingConfig) SpecialHandling() SpecialHandlingPolicy { return c.Handling }

// orderedTierConfigs returns the four tier configs in declaration order,
// failing when any of them is absent from the snapshot.
func orderedTierConfigs(cfg PricingConfigProvider) ([]PricingTierConfig, error) {
	byName := make(map[TierName]PricingTierConfig, 4)
	for _, tc := range cfg.TierConfigs() {
		byName[tc.Name] = tc
	}
	out := make([]PricingTierConfig, 0, 4)
	for _, name := range TierOrder() {
		tc, ok := byName[name]
		if !ok {
			return nil, missing("tier config", string(name))
		}
		out = append(out, tc)
	}
	return out, nil
}
