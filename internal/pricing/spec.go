// Package pricing quotes manufacturing cost and tiered prices for custom parts.
//
// Every function in this package is pure: inputs are immutable snapshots and
// outputs are freshly allocated values, so an Engine may be shared freely
// between goroutines.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// CustomerTier classifies the buying customer for volume discount purposes.
type CustomerTier string

const (
	CustomerStandard   CustomerTier = "standard"
	CustomerPremium    CustomerTier = "premium"
	CustomerEnterprise CustomerTier = "enterprise"
)

// SpecInput is the raw, unvalidated description of a part request.
type SpecInput struct {
	Material            string   `json:"material" yaml:"material" validate:"required,max=64"`
	Process             string   `json:"process" yaml:"process" validate:"required,max=64"`
	LengthMM            float64  `json:"lengthMm" yaml:"lengthMm" validate:"gt=0"`
	WidthMM             float64  `json:"widthMm" yaml:"widthMm" validate:"gt=0"`
	HeightMM            float64  `json:"heightMm" yaml:"heightMm" validate:"gt=0"`
	ComplexityScore     float64  `json:"complexityScore" yaml:"complexityScore" validate:"gte=1,lte=5"`
	Quantity            int      `json:"quantity" yaml:"quantity" validate:"gt=0"`
	CustomerTier        string   `json:"customerTier" yaml:"customerTier" validate:"omitempty,oneof=standard premium enterprise"`
	ShippingZone        int      `json:"shippingZone" yaml:"shippingZone" validate:"min=1,max=4"`
	RushOrder           bool     `json:"rushOrder" yaml:"rushOrder"`
	SpecialRequirements []string `json:"specialRequirements,omitempty" yaml:"specialRequirements" validate:"max=32,dive,max=120"`
	ToleranceMM         *float64 `json:"toleranceMm,omitempty" yaml:"toleranceMm" validate:"omitempty,gt=0"`
}

// PartSpecification is a validated, immutable part request. The zero value is
// not usable; build one with NewPartSpecification.
type PartSpecification struct {
	material     string
	process      string
	length       decimal.Decimal
	width        decimal.Decimal
	height       decimal.Decimal
	complexity   decimal.Decimal
	quantity     int
	customerTier CustomerTier
	shippingZone int
	rushOrder    bool
	requirements []string
	tolerance    decimal.Decimal
	hasTolerance bool
	input        SpecInput
	valid        bool
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NormalizeSpecInput trims and lower-cases identifiers and collapses the
// special requirement list into a sorted set.
func NormalizeSpecInput(in SpecInput) SpecInput {
	out := in
	out.Material = strings.ToLower(strings.TrimSpace(in.Material))
	out.Process = strings.ToLower(strings.TrimSpace(in.Process))
	out.CustomerTier = strings.ToLower(strings.TrimSpace(in.CustomerTier))
	if out.CustomerTier == "" {
		out.CustomerTier = string(CustomerStandard)
	}
	out.SpecialRequirements = normalizeRequirements(in.SpecialRequirements)
	if in.ToleranceMM != nil {
		tol := *in.ToleranceMM
		out.ToleranceMM = &tol
	}
	return out
}

// NewPartSpecification validates the input and returns an immutable specification.
func NewPartSpecification(in SpecInput) (PartSpecification, error) {
	norm := NormalizeSpecInput(in)
	if err := checkFinite(norm); err != nil {
		return PartSpecification{}, err
	}
	if err := validate.Struct(norm); err != nil {
		return PartSpecification{}, translateValidation(err)
	}

	spec := PartSpecification{
		material:     norm.Material,
		process:      norm.Process,
		length:       decimal.NewFromFloat(norm.LengthMM),
		width:        decimal.NewFromFloat(norm.WidthMM),
		height:       decimal.NewFromFloat(norm.HeightMM),
		complexity:   decimal.NewFromFloat(norm.ComplexityScore),
		quantity:     norm.Quantity,
		customerTier: CustomerTier(norm.CustomerTier),
		shippingZone: norm.ShippingZone,
		rushOrder:    norm.RushOrder,
		requirements: norm.SpecialRequirements,
		input:        norm,
		valid:        true,
	}
	if norm.ToleranceMM != nil {
		spec.tolerance = decimal.NewFromFloat(*norm.ToleranceMM)
		spec.hasTolerance = true
	}
	return spec, nil
}

func checkFinite(in SpecInput) error {
	values := map[string]float64{
		"lengthMm":        in.LengthMM,
		"widthMm":         in.WidthMM,
		"heightMm":        in.HeightMM,
		"complexityScore": in.ComplexityScore,
	}
	if in.ToleranceMM != nil {
		values["toleranceMm"] = *in.ToleranceMM
	}
	var fields []FieldError
	for name, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			fields = append(fields, FieldError{Field: name, Rule: "finite", Message: "must be a finite number"})
		}
	}
	if len(fields) == 0 {
		return nil
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return &ValidationError{Fields: fields}
}

func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{cause: err, Fields: []FieldError{{Field: "spec", Rule: "invalid", Message: err.Error()}}}
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: describeRule(fe),
		})
	}
	out := &ValidationError{Fields: fields}
	for _, f := range fields {
		switch f.Field {
		case "lengthMm", "widthMm", "heightMm":
			out.cause = ErrInvalidDimensions
		}
	}
	return out
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte", "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte", "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

func normalizeRequirements(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		item := strings.ToLower(strings.TrimSpace(raw))
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

func (s PartSpecification) Material() string { return s.material }
func (s PartSpecification) Process() string { return s.process }
func (s PartSpecification) LengthMM() decimal.Decimal { return s.length }
func (s PartSpecification) WidthMM() decimal.Decimal { return s.width }
func (s PartSpecification) HeightMM() decimal.Decimal { return s.height }
func (s PartSpecification) ComplexityScore() decimal.Decimal { return s.complexity }
func (s PartSpecification) Quantity() int { return s.quantity }
func (s PartSpecification) CustomerTier() CustomerTier { return s.customerTier }
func (s PartSpecification) ShippingZone() int { return s.shippingZone }
func (s PartSpecification) RushOrder() bool { return s.rushOrder }

// SpecialRequirements returns a copy of the normalised requirement set.
func (s PartSpecification) SpecialRequirements() []string {
	if len(s.requirements) == 0 {
		return nil
	}
	out := make([]string, len(s.requirements))
	copy(out, s.requirements)
	return out
}

// ToleranceMM reports the requested tolerance, if the request carried one.
func (s PartSpecification) ToleranceMM() (decimal.Decimal, bool) {
	return s.tolerance, s.hasTolerance
}

// VolumeMM3 is length*width*height in cubic millimetres.
func (s PartSpecification) VolumeMM3() decimal.Decimal {
	return s.length.Mul(s.width).Mul(s.height)
}

// Input returns the normalised input the specification was built from.
func (s PartSpecification) Input() SpecInput {
	in := s.input
	in.SpecialRequirements = s.SpecialRequirements()
	if s.input.ToleranceMM != nil {
		tol := *s.input.ToleranceMM
		in.ToleranceMM = &tol
	}
	return in
}

// Valid reports whether the specification came out of NewPartSpecification.
func (s PartSpecification) Valid() bool { return s.valid }
