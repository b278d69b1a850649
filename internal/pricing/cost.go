package pricing

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CostBasis records the rates a CostBreakdown was computed from so that
// explanations can quote them without looking anything up again.
type CostBasis struct {
	VolumeCM3          decimal.Decimal `json:"volumeCm3"`
	MaterialUnitCost   decimal.Decimal `json:"materialUnitCost"`
	LaborRate          decimal.Decimal `json:"laborRate"`
	ComplexityScore    decimal.Decimal `json:"complexityScore"`
	Quantity           int             `json:"quantity"`
	SurchargeThreshold decimal.Decimal `json:"surchargeThreshold"`
	SurchargeRate      decimal.Decimal `json:"surchargeRate"`
	SurchargeApplied   bool            `json:"surchargeApplied"`
	OverheadRate       decimal.Decimal `json:"overheadRate"`
}

// CostBreakdown is the manufacturing cost of one order line. TotalCost is
// always derived from the five components.
type CostBreakdown struct {
	MaterialCost         decimal.Decimal `json:"materialCost"`
	LaborCost            decimal.Decimal `json:"laborCost"`
	SetupCost            decimal.Decimal `json:"setupCost"`
	ComplexityAdjustment decimal.Decimal `json:"complexityAdjustment"`
	OverheadCost         decimal.Decimal `json:"overheadCost"`
	Basis                CostBasis       `json:"basis"`
}

// TotalCost sums the five cost components.
func (c CostBreakdown) TotalCost() decimal.Decimal {
	return c.MaterialCost.
		Add(c.LaborCost).
		Add(c.SetupCost).
		Add(c.ComplexityAdjustment).
		Add(c.OverheadCost)
}

// MarshalJSON adds the derived totalCost to the encoded breakdown.
func (c CostBreakdown) MarshalJSON() ([]byte, error) {
	type plain CostBreakdown
	return json.Marshal(struct {
		plain
		TotalCost decimal.Decimal `json:"totalCost"`
	}{plain: plain(c), TotalCost: c.TotalCost()})
}

// ComputeCost derives the cost breakdown of a specification from the cost
// tables and the overhead/complexity policy.
func ComputeCost(spec PartSpecification, costs CostDataProvider, cfg PricingConfigProvider) (CostBreakdown, error) {
	if !spec.Valid() {
		return CostBreakdown{}, newValidationError("spec", "constructed", "specification was not validated")
	}
	unitCost, ok := costs.MaterialUnitCost(spec.Material())
	if !ok {
		return CostBreakdown{}, missing("material unit cost", spec.Material())
	}
	laborRate, ok := costs.LaborRate(spec.Process())
	if !ok {
		return CostBreakdown{}, missing("labor rate", spec.Process())
	}
	setup, ok := costs.SetupCost(spec.Process())
	if !ok {
		return CostBreakdown{}, missing("setup cost", spec.Process())
	}
	axes := []namedValue{
		{"lengthMm", spec.LengthMM()},
		{"widthMm", spec.WidthMM()},
		{"heightMm", spec.HeightMM()},
	}
	for _, axis := range axes {
		if axis.value.Sign() <= 0 {
			return CostBreakdown{}, &ValidationError{
				Fields: []FieldError{{Field: axis.name, Rule: "gt", Message: "must be greater than 0"}},
				cause:  ErrInvalidDimensions,
			}
		}
	}

	volumeCM3 := spec.VolumeMM3().Div(thousand)
	quantity := decimal.NewFromInt(int64(spec.Quantity()))
	surcharge := cfg.ComplexitySurcharge()
	overheadRate := cfg.OverheadRate()

	material := Money(unitCost.Mul(volumeCM3))
	labor := Money(laborRate.Mul(spec.ComplexityScore()).Mul(quantity))
	setupCost := Money(setup)

	adjustment := zeroDecimal
	applied := surcharge.Applies(spec.ComplexityScore())
	if applied {
		adjustment = Money(labor.Mul(surcharge.Rate))
	}
	overhead := Money(overheadRate.Mul(material.Add(labor).Add(setupCost)))

	breakdown := CostBreakdown{
		MaterialCost:         material,
		LaborCost:            labor,
		SetupCost:            setupCost,
		ComplexityAdjustment: adjustment,
		OverheadCost:         overhead,
		Basis: CostBasis{
			VolumeCM3:          volumeCM3,
			MaterialUnitCost:   unitCost,
			LaborRate:          laborRate,
			ComplexityScore:    spec.ComplexityScore(),
			Quantity:           spec.Quantity(),
			SurchargeThreshold: surcharge.Threshold,
			SurchargeRate:      surcharge.Rate,
			SurchargeApplied:   applied,
			OverheadRate:       overheadRate,
		},
	}
	if err := requireNonNegative("cost", []namedValue{
		{"materialCost", breakdown.MaterialCost},
		{"laborCost", breakdown.LaborCost},
		{"setupCost", breakdown.SetupCost},
		{"complexityAdjustment", breakdown.ComplexityAdjustment},
		{"overheadCost", breakdown.OverheadCost},
	}); err != nil {
		return CostBreakdown{}, err
	}
	return breakdown, nil
}

type namedValue struct {
	name  string
	value decimal.Decimal
}

func requireNonNegative(stage string, values []namedValue) error {
	for _, v := range values {
		if v.value.IsNegative() {
			return integrity(stage, "%s is negative (%s)", v.name, v.value.String())
		}
	}
	return nil
}
