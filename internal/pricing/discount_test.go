package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestVolumeDiscountBrackets(t *testing.T) {
	engine := NewDiscountEngine(DefaultDiscountPolicy())
	cases := []struct {
		qty  int
		tier CustomerTier
		want string
	}{
		{1, CustomerStandard, "0"},
		{49, CustomerEnterprise, "0"},
		{50, CustomerStandard, "0.025"},
		{100, CustomerStandard, "0.05"},
		{499, CustomerPremium, "0.06"},
		{500, CustomerStandard, "0.10"},
		{1000, CustomerStandard, "0.15"},
		{1000, CustomerPremium, "0.18"},
		{5000, CustomerEnterprise, "0.225"},
	}
	for _, tc := range cases {
		requireDecimal(t, tc.want, engine.VolumeDiscountPct(tc.qty, tc.tier), tc.qty, tc.tier)
	}
}

func TestVolumeDiscountBelowThresholds(t *testing.T) {
	engine := NewDiscountEngine(DefaultDiscountPolicy())
	for _, tier := range []CustomerTier{CustomerStandard, CustomerPremium, CustomerEnterprise} {
		require.True(t, engine.VolumeDiscountPct(40, tier).IsZero(), tier)
	}
}

func TestVolumeDiscountMonotonic(t *testing.T) {
	engine := NewDiscountEngine(DefaultDiscountPolicy())
	for _, tier := range []CustomerTier{CustomerStandard, CustomerPremium, CustomerEnterprise} {
		prev := engine.VolumeDiscountPct(1, tier)
		for qty := 2; qty <= 3000; qty++ {
			cur := engine.VolumeDiscountPct(qty, tier)
			require.Falsef(t, cur.LessThan(prev), "discount dropped at %d for %s", qty, tier)
			prev = cur
		}
	}
}

func TestVolumeDiscountUnknownTierUsesUnitFactor(t *testing.T) {
	engine := NewDiscountEngine(DefaultDiscountPolicy())
	requireDecimal(t, "0.05", engine.VolumeDiscountPct(100, CustomerTier("unlisted")))
}

func TestDiscountPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultDiscountPolicy().Validate())

	policy := DefaultDiscountPolicy()
	policy.Brackets = append(policy.Brackets, DiscountBracket{MinQuantity: 2000, Pct: d("0.01")})
	require.ErrorIs(t, policy.Validate(), ErrValidation)

	policy = DefaultDiscountPolicy()
	policy.CustomerFactors[CustomerPremium] = d("-1")
	require.ErrorIs(t, policy.Validate(), ErrValidation)
}

func TestDiscountPolicyValidateBoundsCombinedDiscount(t *testing.T) {
	policy := DiscountPolicy{
		Brackets:        []DiscountBracket{{MinQuantity: 10, Pct: d("0.5")}, {MinQuantity: 100, Pct: d("0.9")}},
		CustomerFactors: map[CustomerTier]decimal.Decimal{CustomerStandard: d("1.0"), CustomerEnterprise: d("1.5")},
	}
	err := policy.Validate()
	require.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "discounts", verr.Fields[0].Field)

	policy.CustomerFactors[CustomerEnterprise] = d("1.1")
	require.NoError(t, policy.Validate())
}
