package cart

const (
	// TaxPercent is the flat sales tax rate.
	TaxPercent = 5
	// ShippingFee is charged on non-empty orders up to FreeShippingOver.
	ShippingFee Money = 699
	// FreeShippingOver is the subtotal that must be strictly exceeded for free shipping.
	FreeShippingOver Money = 6000
)

// Totals are the order figures derived from a cart.
type Totals struct {
	Subtotal Money
	Tax      Money
	Shipping Money
	Total    Money
}

// Totals computes subtotal, tax, shipping and grand total.
func (c *Cart) Totals() Totals {
	return ComputeTotals(c.items)
}

// ComputeTotals derives the order figures for a sequence of line items.
//
// An empty cart ships for free because there is nothing to ship, and a subtotal
// of exactly 60.00 still pays shipping.
func ComputeTotals(items []LineItem) Totals {
	var t Totals
	for _, it := range items {
		t.Subtotal += it.LineTotal()
	}
	t.Tax = percentOf(t.Subtotal, TaxPercent)
	if t.Subtotal != 0 && t.Subtotal <= FreeShippingOver {
		t.Shipping = ShippingFee
	}
	t.Total = t.Subtotal + t.Tax + t.Shipping
	return t
}

// percentOf returns p percent of m rounded half up to the cent.
func percentOf(m Money, p int64) Money {
	return Money((int64(m)*p + 50) / 100)
}
