package snapshot

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/partquote/internal/pricing"
)

func TestDefaultIsValid(t *testing.T) {
	snap := Default()
	require.NoError(t, Validate(snap.Costs, snap.Config))
	require.Len(t, snap.Version, 12)
	require.Equal(t, Default().Version, snap.Version)
}

func TestWriteThenParseKeepsVersion(t *testing.T) {
	snap := Default()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, snap))

	parsed, err := Parse(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, snap.Version, parsed.Version)

	// The parsed snapshot prices exactly like the built-in one.
	spec, err := pricing.NewPartSpecification(pricing.SpecInput{
		Material: "aluminum", Process: "cnc_milling",
		LengthMM: 100, WidthMM: 50, HeightMM: 25,
		ComplexityScore: 2.5, Quantity: 100, ShippingZone: 1,
	})
	require.NoError(t, err)
	want, _, err := pricing.Engine{}.Calculate(spec, snap.Costs, snap.Config, snap.Limits())
	require.NoError(t, err)
	got, _, err := pricing.Engine{}.Calculate(spec, parsed.Costs, parsed.Config, parsed.Limits())
	require.NoError(t, err)
	for _, name := range pricing.TierOrder() {
		require.True(t, want.Tiers[name].FinalPrice.Equal(got.Tiers[name].FinalPrice), name)
	}
	require.Equal(t, "4890.96", got.Tiers[pricing.TierStandard].FinalPrice.StringFixed(2))
}

const brokenYAML = `
costs:
  materialUnitCosts: {aluminum: 2.00}
  laborRates: {cnc_milling: -1}
  setupCosts: {cnc_milling: 150}
  materialDensities: {aluminum: 2.7}
pricing:
  tiers:
    - {name: expedited, marginPct: 0.45, shippingBase: 25, shippingMultiplier: 2, leadTimeDays: 3}
    - {name: standard, marginPct: 0.35, shippingBase: 15, shippingMultiplier: 1, leadTimeDays: 7}
  overheadRate: 0.10
  shipping:
    perKgRate: 2.5
    zoneMultipliers: {1: 1.0, 2: 1.25}
  limits: {minPricePerUnit: 5, minTotalPrice: 50, minMarginPct: 0.15, maxDiscountPct: 0.15}
`

func TestParseReportsEveryProblem(t *testing.T) {
	_, err := Parse([]byte(brokenYAML))
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		`tier "economy" missing`,
		`tier "domestic_economy" missing`,
		"shipping zone 3 multiplier missing",
		"shipping zone 4 multiplier missing",
		"laborRates.cnc_milling must not be negative",
	} {
		require.Contains(t, msg, want)
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("costs: [unterminated"))
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "decode:"))
}

func TestSourceReloadKeepsLastGoodSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricing.yaml")

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Default()))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	src, err := NewSource(path, zerolog.Nop())
	require.NoError(t, err)
	first := src.Current()
	require.Equal(t, Default().Version, first.Version)
	require.Equal(t, path, first.Source)

	require.NoError(t, os.WriteFile(path, []byte(brokenYAML), 0o600))
	require.Error(t, src.Reload())
	require.Same(t, first, src.Current())

	changed := Default()
	changed.Config.Overhead = dec("0.12")
	buf.Reset()
	require.NoError(t, Write(&buf, changed))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	require.NoError(t, src.Reload())
	require.NotEqual(t, first.Version, src.Current().Version)
	require.True(t, src.Current().Config.Overhead.Equal(dec("0.12")))
}

func TestNewSourceWithoutPathUsesDefaults(t *testing.T) {
	src, err := NewSource("", zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "builtin", src.Current().Source)
	require.NoError(t, src.Reload())
}

func TestParseFoldsCostTableKeys(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Default()))
	raw := strings.ReplaceAll(buf.String(), "aluminum:", "' Aluminum':")
	raw = strings.ReplaceAll(raw, "cnc_milling:", "CNC_Milling:")
	require.NotEqual(t, buf.String(), raw)

	parsed, err := Parse([]byte(raw))
	require.NoError(t, err)
	_, ok := parsed.Costs.MaterialUnitCost("aluminum")
	require.True(t, ok)
	_, ok = parsed.Costs.LaborRate("cnc_milling")
	require.True(t, ok)

	spec, err := pricing.NewPartSpecification(pricing.SpecInput{
		Material: "Aluminum", Process: "CNC_MILLING",
		LengthMM: 100, WidthMM: 50, HeightMM: 25,
		ComplexityScore: 2.5, Quantity: 100, ShippingZone: 1,
	})
	require.NoError(t, err)
	got, _, err := pricing.Engine{}.Calculate(spec, parsed.Costs, parsed.Config, parsed.Limits())
	require.NoError(t, err)
	require.Equal(t, "4890.96", got.Tiers[pricing.TierStandard].FinalPrice.StringFixed(2))
}

func TestNormalizeCostsRejectsFoldedDuplicates(t *testing.T) {
	costs := Default().Costs
	costs.MaterialUnitCosts = map[string]decimal.Decimal{
		"steel": decimal.RequireFromString("1.20"),
		"Steel": decimal.RequireFromString("1.30"),
	}
	_, err := normalizeCosts(costs)
	require.Error(t, err)
	require.Contains(t, err.Error(), `materialUnitCosts key "steel" declared twice`)
}

func TestValidateRejectsUnfoldedKeys(t *testing.T) {
	snap := Default()
	costs := snap.Costs
	costs.LaborRates = map[string]decimal.Decimal{"Laser_Cutting": decimal.RequireFromString("4")}
	err := Validate(costs, snap.Config)
	require.Error(t, err)
	require.Contains(t, err.Error(), `laborRates key "Laser_Cutting" must be trimmed lower case`)
}
