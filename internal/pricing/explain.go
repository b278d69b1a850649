package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Step names used in a PricingExplanation.
const (
	StepMaterialCost         = "material_cost"
	StepLaborCost            = "labor_cost"
	StepSetupCost            = "setup_cost"
	StepComplexityAdjustment = "complexity_adjustment"
	StepOverheadCost         = "overhead_cost"
	StepTotalCost            = "total_cost"

	StepMargin              = "margin"
	StepShipping            = "shipping"
	StepComplexitySurcharge = "complexity_surcharge"
	StepSpecialHandling     = "special_handling"
	StepSubtotal            = "subtotal"
	StepVolumeDiscount      = "volume_discount"
	StepFinalPrice          = "final_price"
)

// CalculationStep is one arithmetic step of a quote.
type CalculationStep struct {
	StepName      string                     `json:"stepName"`
	FormulaText   string                     `json:"formulaText"`
	Inputs        map[string]decimal.Decimal `json:"inputs"`
	OutputValue   decimal.Decimal            `json:"outputValue"`
	ReasoningText string                     `json:"reasoningText"`
}

// TierExplanation holds the steps and limit adjustments of a single tier.
type TierExplanation struct {
	TierName    TierName          `json:"tierName"`
	Steps       []CalculationStep `json:"steps"`
	Adjustments []LimitAdjustment `json:"adjustments"`
}

// PricingExplanation is the audit trail of a calculation.
type PricingExplanation struct {
	CostSteps     []CalculationStep `json:"costSteps"`
	Tiers         []TierExplanation `json:"tiers"`
	BestTier      TierName          `json:"bestTier"`
	LimitsApplied bool              `json:"limitsApplied"`
}

// Tier returns the explanation of the named tier.
func (p *PricingExplanation) Tier(name TierName) (TierExplanation, bool) {
	if p == nil {
		return TierExplanation{}, false
	}
	for _, t := range p.Tiers {
		if t.TierName == name {
			return t, true
		}
	}
	return TierExplanation{}, false
}

// FindStep returns the first step with the given name.
func FindStep(steps []CalculationStep, name string) (CalculationStep, bool) {
	for _, s := range steps {
		if s.StepName == name {
			return s, true
		}
	}
	return CalculationStep{}, false
}

// TierOutcome pairs a finalized tier with the adjustments that produced it.
type TierOutcome struct {
	Tier        PricingTier
	Adjustments []LimitAdjustment
}

// BuildExplanation narrates an already computed cost breakdown and the
// finalized tiers. It only reads values; nothing is recalculated.
func BuildExplanation(cost CostBreakdown, outcomes []TierOutcome, best TierName) (*PricingExplanation, error) {
	if len(outcomes) == 0 {
		return nil, integrity("explanation", "no tiers to explain")
	}
	total := cost.TotalCost()
	exp := &PricingExplanation{
		CostSteps: costSteps(cost),
		Tiers:     make([]TierExplanation, 0, len(outcomes)),
		BestTier:  best,
	}
	for _, o := range outcomes {
		if !o.Tier.BaseCost.Equal(total) {
			return nil, integrity("explanation", "tier %s base cost %s differs from total cost %s", o.Tier.TierName, o.Tier.BaseCost, total)
		}
		adjustments := make([]LimitAdjustment, len(o.Adjustments))
		copy(adjustments, o.Adjustments)
		exp.Tiers = append(exp.Tiers, TierExplanation{
			TierName:    o.Tier.TierName,
			Steps:       tierSteps(o.Tier, o.Adjustments),
			Adjustments: adjustments,
		})
		if len(o.Adjustments) > 0 {
			exp.LimitsApplied = true
		}
	}
	return exp, nil
}

func costSteps(c CostBreakdown) []CalculationStep {
	b := c.Basis
	qty := decimal.NewFromInt(int64(b.Quantity))

	adjustmentReason := fmt.Sprintf("Complexity %s is below the surcharge threshold %s", b.ComplexityScore, b.SurchargeThreshold)
	if b.SurchargeApplied {
		adjustmentReason = fmt.Sprintf("Complexity %s meets the surcharge threshold %s; labor is surcharged %s",
			b.ComplexityScore, b.SurchargeThreshold, FormatPct(b.SurchargeRate))
	}

	return []CalculationStep{
		{
			StepName:      StepMaterialCost,
			FormulaText:   "materialUnitCost * volumeCm3",
			Inputs:        map[string]decimal.Decimal{"materialUnitCost": b.MaterialUnitCost, "volumeCm3": b.VolumeCM3},
			OutputValue:   c.MaterialCost,
			ReasoningText: fmt.Sprintf("%s cm³ of material at %s per cm³", b.VolumeCM3, b.MaterialUnitCost),
		},
		{
			StepName:      StepLaborCost,
			FormulaText:   "laborRate * complexityScore * quantity",
			Inputs:        map[string]decimal.Decimal{"laborRate": b.LaborRate, "complexityScore": b.ComplexityScore, "quantity": qty},
			OutputValue:   c.LaborCost,
			ReasoningText: fmt.Sprintf("%d units at complexity %s and %s per complexity unit", b.Quantity, b.ComplexityScore, b.LaborRate),
		},
		{
			StepName:      StepSetupCost,
			FormulaText:   "setupCost",
			Inputs:        map[string]decimal.Decimal{"setupCost": c.SetupCost},
			OutputValue:   c.SetupCost,
			ReasoningText: "Process setup is charged once per order",
		},
		{
			StepName:      StepComplexityAdjustment,
			FormulaText:   "laborCost * surchargeRate if complexityScore >= threshold",
			Inputs:        map[string]decimal.Decimal{"laborCost": c.LaborCost, "surchargeRate": b.SurchargeRate, "complexityScore": b.ComplexityScore, "threshold": b.SurchargeThreshold},
			OutputValue:   c.ComplexityAdjustment,
			ReasoningText: adjustmentReason,
		},
		{
			StepName:      StepOverheadCost,
			FormulaText:   "overheadRate * (materialCost + laborCost + setupCost)",
			Inputs:        map[string]decimal.Decimal{"overheadRate": b.OverheadRate, "materialCost": c.MaterialCost, "laborCost": c.LaborCost, "setupCost": c.SetupCost},
			OutputValue:   c.OverheadCost,
			ReasoningText: fmt.Sprintf("Overhead of %s on direct costs", FormatPct(b.OverheadRate)),
		},
		{
			StepName:    StepTotalCost,
			FormulaText: "materialCost + laborCost + setupCost + complexityAdjustment + overheadCost",
			Inputs: map[string]decimal.Decimal{
				"materialCost":         c.MaterialCost,
				"laborCost":            c.LaborCost,
				"setupCost":            c.SetupCost,
				"complexityAdjustment": c.ComplexityAdjustment,
				"overheadCost":         c.OverheadCost,
			},
			OutputValue:   c.TotalCost(),
			ReasoningText: "Manufacturing cost before margin and shipping",
		},
	}
}

func tierSteps(t PricingTier, adjustments []LimitAdjustment) []CalculationStep {
	b := t.Basis
	qty := decimal.NewFromInt(int64(t.Quantity))
	adjusted := make(map[string]LimitAdjustment, len(adjustments))
	for _, a := range adjustments {
		adjusted[a.FieldName] = a
	}

	marginReason := fmt.Sprintf("%s tier margin of %s", t.TierName, FormatPct(t.MarginPct))
	if a, ok := adjusted[FieldMarginPct]; ok {
		marginReason = a.Reason
	}

	surchargeReason := "Complexity below the surcharge threshold"
	if b.SurchargeApplied {
		surchargeReason = fmt.Sprintf("Complexity surcharge of %s on base cost", FormatPct(b.SurchargeRate))
	}

	handlingReason := "No special handling required"
	if len(b.HandlingReasons) > 0 {
		handlingReason = "Special handling for " + strings.Join(b.HandlingReasons, ", ")
	}

	discountReason := fmt.Sprintf("Volume discount of %s for %d units (%s customer)", FormatPct(t.VolumeDiscountPct), t.Quantity, b.CustomerTier)
	if a, ok := adjusted[FieldFinalDiscountPct]; ok {
		discountReason = a.Reason
	}

	finalReason := fmt.Sprintf("%s per unit across %d units", FormatUnitPrice(t.PricePerUnit), t.Quantity)
	var floors []string
	for _, field := range []string{FieldPricePerUnit, FieldFinalPrice} {
		if a, ok := adjusted[field]; ok {
			floors = append(floors, a.Reason)
		}
	}
	if len(floors) > 0 {
		finalReason = strings.Join(floors, "; ")
	}

	return []CalculationStep{
		{
			StepName:      StepMargin,
			FormulaText:   "baseCost * marginPct",
			Inputs:        map[string]decimal.Decimal{"baseCost": t.BaseCost, "marginPct": t.MarginPct},
			OutputValue:   t.MarginAmount,
			ReasoningText: marginReason,
		},
		{
			StepName:    StepShipping,
			FormulaText: "shippingBase + weightKg * perKgRate * shippingMultiplier * zoneMultiplier",
			Inputs: map[string]decimal.Decimal{
				"shippingBase":       b.ShippingBase,
				"weightKg":           b.WeightKg,
				"perKgRate":          b.PerKgRate,
				"shippingMultiplier": b.ShippingMultiplier,
				"zoneMultiplier":     b.ZoneMultiplier,
			},
			OutputValue:   t.ShippingCost,
			ReasoningText: fmt.Sprintf("%s kg shipped to zone %d", b.WeightKg, b.ShippingZone),
		},
		{
			StepName:      StepComplexitySurcharge,
			FormulaText:   "baseCost * surchargeRate if complexityScore >= threshold",
			Inputs:        map[string]decimal.Decimal{"baseCost": t.BaseCost, "surchargeRate": b.SurchargeRate},
			OutputValue:   t.ComplexitySurcharge,
			ReasoningText: surchargeReason,
		},
		{
			StepName:      StepSpecialHandling,
			FormulaText:   "specialHandlingFee if any handling trigger applies",
			Inputs:        map[string]decimal.Decimal{"specialHandlingFee": t.SpecialHandlingFee},
			OutputValue:   t.SpecialHandlingFee,
			ReasoningText: handlingReason,
		},
		{
			StepName:    StepSubtotal,
			FormulaText: "baseCost + marginAmount + shippingCost + complexitySurcharge + specialHandlingFee",
			Inputs: map[string]decimal.Decimal{
				"baseCost":            t.BaseCost,
				"marginAmount":        t.MarginAmount,
				"shippingCost":        t.ShippingCost,
				"complexitySurcharge": t.ComplexitySurcharge,
				"specialHandlingFee":  t.SpecialHandlingFee,
			},
			OutputValue:   t.Subtotal,
			ReasoningText: "Price before discounts",
		},
		{
			StepName:      StepVolumeDiscount,
			FormulaText:   "subtotal * finalDiscountPct",
			Inputs:        map[string]decimal.Decimal{"subtotal": t.Subtotal, "volumeDiscountPct": t.VolumeDiscountPct, "finalDiscountPct": t.FinalDiscountPct},
			OutputValue:   t.FinalDiscountAmount,
			ReasoningText: discountReason,
		},
		{
			StepName:      StepFinalPrice,
			FormulaText:   "max(subtotal - finalDiscountAmount, limits)",
			Inputs:        map[string]decimal.Decimal{"subtotal": t.Subtotal, "finalDiscountAmount": t.FinalDiscountAmount, "quantity": qty, "pricePerUnit": t.PricePerUnit},
			OutputValue:   t.FinalPrice,
			ReasoningText: finalReason,
		},
	}
}
