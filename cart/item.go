package cart

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// LineItem is one product entry in the cart.
type LineItem struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Img   string  `json:"img"`
	Qty   int     `json:"qty"`
}

// LineTotal returns price × qty in cents.
func (i LineItem) LineTotal() Money {
	return FromFloat(i.Price) * Money(i.Qty)
}

// Candidate is the product data an add request carries.
type Candidate struct {
	ID    string
	Title string
	Price float64
	Img   string
}

// ItemID derives the cart identity of a product: the slugged title, a hyphen and
// the price rendered as a plain number ("Red Mug", 12.5 -> "red-mug-12.5").
//
// Two products sharing title and price collapse into one entry. Previously
// persisted carts depend on this exact derivation.
func ItemID(title string, price float64) string {
	return slug(title) + "-" + strconv.FormatFloat(price, 'f', -1, 64)
}

// slug lower-cases s and replaces every run of whitespace with a single hyphen.
func slug(s string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('-')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// Validate reports whether items form a well-shaped cart: non-empty unique ids,
// non-negative prices up to MaxPrice and positive quantities.
func Validate(items []LineItem) error {
	seen := make(map[string]struct{}, len(items))
	for i, it := range items {
		if it.ID == "" {
			return fmt.Errorf("item %d: empty id", i)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("item %d: duplicate id %q", i, it.ID)
		}
		seen[it.ID] = struct{}{}
		if it.Price < 0 || it.Price > MaxPrice || math.IsNaN(it.Price) || math.IsInf(it.Price, 0) {
			return fmt.Errorf("item %q: invalid price %v", it.ID, it.Price)
		}
		if it.Qty <= 0 {
			return fmt.Errorf("item %q: invalid quantity %d", it.ID, it.Qty)
		}
	}
	return nil
}
