// Package snapshot loads the cost tables and pricing policy the engine prices
// against, either from built-in defaults or a YAML file.
package snapshot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/partquote/internal/common"
	"github.com/noah-isme/partquote/internal/pricing"
)

// Snapshot is an immutable view of the pricing data at one point in time.
type Snapshot struct {
	Version  string
	Source   string
	LoadedAt time.Time
	Costs    pricing.CostTables
	Config   pricing.PricingConfig
}

// Limits returns the hard pricing limits carried by the snapshot.
func (s *Snapshot) Limits() pricing.PricingLimits {
	if s == nil {
		return pricing.PricingLimits{}
	}
	return s.Config.Limits
}

// document is the on-disk YAML layout.
type document struct {
	Costs   pricing.CostTables    `yaml:"costs"`
	Pricing pricing.PricingConfig `yaml:"pricing"`
}

// LoadFile reads and validates a YAML snapshot.
func LoadFile(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	snap, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	snap.Source = path
	return snap, nil
}

// Parse decodes and validates YAML snapshot content.
func Parse(raw []byte) (*Snapshot, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	costs, err := normalizeCosts(doc.Costs)
	if err != nil {
		return nil, err
	}
	doc.Costs = costs
	if err := Validate(doc.Costs, doc.Pricing); err != nil {
		return nil, err
	}
	return &Snapshot{
		Version:  versionOf(raw),
		Source:   "inline",
		LoadedAt: time.Now().UTC(),
		Costs:    doc.Costs,
		Config:   doc.Pricing,
	}, nil
}

// Write encodes a snapshot in the YAML layout LoadFile accepts.
func Write(w io.Writer, snap *Snapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document{Costs: snap.Costs, Pricing: snap.Config}); err != nil {
		return err
	}
	return enc.Close()
}

func versionOf(raw []byte) string {
	return common.Sha256Hex(string(raw))[:12]
}

// Validate reports every structural problem in a cost table and pricing config pair.
func Validate(costs pricing.CostTables, cfg pricing.PricingConfig) error {
	var errs []error

	seen := make(map[pricing.TierName]bool, len(cfg.Tiers))
	for _, tc := range cfg.Tiers {
		if seen[tc.Name] {
			errs = append(errs, fmt.Errorf("tier %q declared twice", tc.Name))
		}
		seen[tc.Name] = true
		errs = appendNegative(errs, "tier "+string(tc.Name)+" marginPct", tc.MarginPct)
		errs = appendNegative(errs, "tier "+string(tc.Name)+" shippingBase", tc.ShippingBase)
		errs = appendNegative(errs, "tier "+string(tc.Name)+" shippingMultiplier", tc.ShippingMultiplier)
		if tc.LeadTimeDays < 0 {
			errs = append(errs, fmt.Errorf("tier %q leadTimeDays must not be negative", tc.Name))
		}
	}
	for _, name := range pricing.TierOrder() {
		if !seen[name] {
			errs = append(errs, fmt.Errorf("tier %q missing", name))
		}
	}
	if len(cfg.Tiers) != len(pricing.TierOrder()) {
		errs = append(errs, fmt.Errorf("expected %d tiers, got %d", len(pricing.TierOrder()), len(cfg.Tiers)))
	}

	for zone := 1; zone <= 4; zone++ {
		if _, ok := cfg.Shipping.ZoneMultipliers[zone]; !ok {
			errs = append(errs, fmt.Errorf("shipping zone %d multiplier missing", zone))
		}
	}
	for zone, m := range cfg.Shipping.ZoneMultipliers {
		errs = appendNegative(errs, fmt.Sprintf("zone %d multiplier", zone), m)
	}
	errs = appendNegative(errs, "shipping perKgRate", cfg.Shipping.PerKgRate)
	errs = appendNegative(errs, "overheadRate", cfg.Overhead)
	errs = appendNegative(errs, "complexitySurcharge rate", cfg.Complexity.Rate)
	errs = appendNegative(errs, "specialHandling fee", cfg.Handling.Fee)

	for _, table := range []struct {
		name   string
		values map[string]decimal.Decimal
	}{
		{"materialUnitCosts", costs.MaterialUnitCosts},
		{"laborRates", costs.LaborRates},
		{"setupCosts", costs.SetupCosts},
		{"materialDensities", costs.MaterialDensities},
	} {
		if len(table.values) == 0 {
			errs = append(errs, fmt.Errorf("%s is empty", table.name))
		}
		for key, v := range table.values {
			if key != normalizeKey(key) {
				errs = append(errs, fmt.Errorf("%s key %q must be trimmed lower case", table.name, key))
			}
			errs = appendNegative(errs, table.name+"."+key, v)
		}
	}

	if err := cfg.Limits.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := cfg.Discounts.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// normalizeKey matches the identifier folding applied to part specifications.
func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// normalizeCosts folds every cost table key so lookups by a normalised
// material or process name succeed. Keys that collide after folding are
// rejected.
func normalizeCosts(in pricing.CostTables) (pricing.CostTables, error) {
	var errs []error
	fold := func(name string, src map[string]decimal.Decimal) map[string]decimal.Decimal {
		if src == nil {
			return nil
		}
		out := make(map[string]decimal.Decimal, len(src))
		for key, v := range src {
			k := normalizeKey(key)
			if _, dup := out[k]; dup {
				errs = append(errs, fmt.Errorf("%s key %q declared twice", name, k))
				continue
			}
			out[k] = v
		}
		return out
	}
	out := pricing.CostTables{
		MaterialUnitCosts: fold("materialUnitCosts", in.MaterialUnitCosts),
		LaborRates:        fold("laborRates", in.LaborRates),
		SetupCosts:        fold("setupCosts", in.SetupCosts),
		MaterialDensities: fold("materialDensities", in.MaterialDensities),
	}
	return out, errors.Join(errs...)
}

func appendNegative(errs []error, name string, v decimal.Decimal) []error {
	if v.IsNegative() {
		return append(errs, fmt.Errorf("%s must not be negative", name))
	}
	return errs
}
