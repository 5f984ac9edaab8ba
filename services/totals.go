package services

import (
	"github.com/shopspring/decimal"

	"order-display/models"
)

// TaxRate is applied to the subtotal of every order.
const TaxRate = 0.08975

var taxRate = decimal.NewFromFloat(TaxRate)

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func money(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// Round2 rounds to cents, half away from zero.
func Round2(f float64) float64 {
	return round2(money(f)).InexactFloat64()
}

// LineTotal is price * quantity rounded to cents.
func LineTotal(price float64, quantity int) float64 {
	return round2(money(price).Mul(decimal.NewFromInt(int64(quantity)))).InexactFloat64()
}

// RecomputeTotals derives item totals, subtotal, tax and total from items and discount.
// It touches nothing else, so calling it twice yields the same order.
func RecomputeTotals(o *models.Order) {
	if o == nil {
		return
	}
	subtotal := decimal.Zero
	for i := range o.Items {
		it := &o.Items[i]
		line := round2(money(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
		it.Total = line.InexactFloat64()
		subtotal = subtotal.Add(line)
	}
	subtotal = round2(subtotal)
	tax := round2(subtotal.Mul(taxRate))
	discount := money(o.Discount)
	total := round2(subtotal.Add(tax).Sub(discount))

	o.Subtotal = subtotal.InexactFloat64()
	o.Tax = tax.InexactFloat64()
	o.Total = total.InexactFloat64()
}
