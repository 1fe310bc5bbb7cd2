// Package tax computes sales and excise tax for an order. Rates are
// jurisdiction-keyed; states without an entry default to zero.
package tax

import "github.com/shopspring/decimal"

var salesTaxRates = map[string]decimal.Decimal{
	"CA": decimal.NewFromFloat(0.0725),
	"TX": decimal.NewFromFloat(0.0625),
	"WA": decimal.NewFromFloat(0.065),
}

// Excise rates are charged per ounce of net product weight.
var exciseRatesPerOz = map[string]decimal.Decimal{
	"CA": decimal.NewFromFloat(0.28),
	"WA": decimal.NewFromFloat(0.09),
}

type WeightedLine struct {
	NetWeightOz float64
	Quantity    int
}

// Round applies the order arithmetic rounding contract: two decimals,
// half rounds up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Calculate returns sales tax and excise tax, each independently rounded
// to two decimals. Callers sum the rounded components; the total is never
// rounded again.
func Calculate(subtotal decimal.Decimal, state string, lines []WeightedLine) (sales, excise decimal.Decimal) {
	sales = decimal.Zero
	if rate, ok := salesTaxRates[state]; ok {
		sales = subtotal.Mul(rate)
	}

	excise = decimal.Zero
	if rate, ok := exciseRatesPerOz[state]; ok {
		totalWeight := decimal.Zero
		for _, l := range lines {
			w := decimal.NewFromFloat(l.NetWeightOz).Mul(decimal.NewFromInt(int64(l.Quantity)))
			totalWeight = totalWeight.Add(w)
		}
		excise = totalWeight.Mul(rate)
	}

	return Round(sales), Round(excise)
}
