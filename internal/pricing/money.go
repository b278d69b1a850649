package pricing

import (
	"strconv"

	"github.com/shopspring/decimal"
)

const (
	moneyPlaces     = 2
	unitPricePlaces = 4
	weightPlaces    = 3
)

var (
	hundred      = decimal.NewFromInt(100)
	thousand     = decimal.NewFromInt(1000)
	million      = decimal.NewFromInt(1_000_000)
	one          = decimal.NewFromInt(1)
	zeroDecimal  = decimal.Zero
	oneCent      = decimal.New(1, -moneyPlaces)
)

// Money rounds an amount to the smallest currency unit, half away from zero.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// UnitPrice divides a total across quantity. It keeps at least unitPricePlaces
// decimals and one more per digit of quantity, so multiplying it back by
// quantity lands within half a cent of total.
func UnitPrice(total decimal.Decimal, quantity int) decimal.Decimal {
	if quantity <= 0 {
		return zeroDecimal
	}
	return total.DivRound(decimal.NewFromInt(int64(quantity)), unitPriceScale(quantity))
}

func unitPriceScale(quantity int) int32 {
	places := int32(moneyPlaces + len(strconv.Itoa(quantity)))
	if places < unitPricePlaces {
		return unitPricePlaces
	}
	return places
}

// UnitPriceGap is |pricePerUnit*quantity - finalPrice|; it never exceeds one cent.
func UnitPriceGap(pricePerUnit decimal.Decimal, quantity int, finalPrice decimal.Decimal) decimal.Decimal {
	return pricePerUnit.Mul(decimal.NewFromInt(int64(quantity))).Sub(finalPrice).Abs()
}

// FormatUnitPrice renders a unit price with four decimals, or more when the
// value carries them.
func FormatUnitPrice(d decimal.Decimal) string {
	if d.Equal(d.Round(unitPricePlaces)) {
		return d.StringFixed(unitPricePlaces)
	}
	return d.String()
}

// FormatPct renders a fraction as a percentage with one decimal place, e.g. 0.18 -> "18.0%".
func FormatPct(pct decimal.Decimal) string {
	return pct.Mul(hundred).StringFixed(1) + "%"
}

// FormatMoney renders a money amount with two decimal places.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(moneyPlaces)
}
