// Package view projects cart state into the two storefront surfaces, the
// slide-out panel present on every page and the dedicated cart page.
//
// Both surfaces share one row projection and one row template so that they
// always agree on what a line item looks like and which controls it carries.
package view

import (
	"github.com/norun9/storefront-cartservice/cart"
)

// Target selects the surface a model is rendered for.
type Target string

const (
	Panel Target = "panel"
	Page  Target = "page"
)

// EmptyMessage is shown instead of rows when the cart has no items.
const EmptyMessage = "Your cart is empty."

// ParseTarget maps a request parameter to a Target, falling back to def.
func ParseTarget(s string, def Target) Target {
	switch Target(s) {
	case Panel, Page:
		return Target(s)
	}
	return def
}

// Row is one rendered line item. Money fields are preformatted ("$12.50").
type Row struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Img       string `json:"img"`
	Price     string `json:"price"`
	Qty       int    `json:"qty"`
	LineTotal string `json:"lineTotal"`
}

// Summary holds the formatted figures under the rows. The panel only fills Total.
type Summary struct {
	Subtotal string `json:"subtotal,omitempty"`
	Tax      string `json:"tax,omitempty"`
	Shipping string `json:"shipping,omitempty"`
	Total    string `json:"total"`
}

// Model is everything a surface needs to draw itself.
type Model struct {
	Target  Target  `json:"target"`
	Open    bool    `json:"open,omitempty"`
	Empty   bool    `json:"empty"`
	Count   int     `json:"count"`
	Rows    []Row   `json:"rows"`
	Summary Summary `json:"summary"`
}

// Render projects the cart for a target. It has no side effects.
func Render(c *cart.Cart, target Target) Model {
	items := c.Items()
	m := Model{
		Target: target,
		Empty:  len(items) == 0,
		Count:  c.TotalCount(),
		Rows:   make([]Row, 0, len(items)),
	}
	for _, it := range items {
		m.Rows = append(m.Rows, Row{
			ID:        it.ID,
			Title:     it.Title,
			Img:       it.Img,
			Price:     cart.FromFloat(it.Price).Format(),
			Qty:       it.Qty,
			LineTotal: it.LineTotal().Format(),
		})
	}

	t := cart.ComputeTotals(items)
	switch target {
	case Page:
		m.Summary = Summary{
			Subtotal: t.Subtotal.Format(),
			Tax:      t.Tax.Format(),
			Shipping: t.Shipping.Format(),
			Total:    t.Total.Format(),
		}
	default:
		m.Summary = Summary{Total: t.Subtotal.Format()}
	}
	return m
}

// PanelView renders the slide-out panel; open reflects whether it is shown.
func PanelView(c *cart.Cart, open bool) Model {
	m := Render(c, Panel)
	m.Open = open
	return m
}

// PageView renders the cart page with the full order summary.
func PageView(c *cart.Cart) Model {
	return Render(c, Page)
}
