// Package catalog reads product data out of storefront page markup. There is
// no catalog service: a product is whatever its card on the page says it is.
package catalog

import (
	"io"
	"strconv"
	"strings"

	"github.com/norun9/storefront-cartservice/cart"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	defaultTitle = "Product"

	cardClass      = "box"
	contentClass   = "content"
	containerClass = "products-container"
)

// Extract reads one product card. The reader may hold just the card fragment or
// a larger document; in the latter case the first ".box" element is used.
//
// Missing fields degrade to defaults ("Product", 0, "") and never fail the call;
// only an unreadable input is an error.
func Extract(r io.Reader) (cart.Candidate, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return cart.Candidate{}, errors.Wrap(err, "parse product card")
	}
	card := findFirst(doc, func(n *html.Node) bool { return hasClass(n, cardClass) })
	if card == nil {
		card = doc
	}
	return candidateFrom(card), nil
}

// Scan returns every product card inside ".products-container" elements of a
// storefront page, in document order.
func Scan(r io.Reader) ([]cart.Candidate, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "parse storefront page")
	}

	var out []cart.Candidate
	var walk func(n *html.Node, inContainer bool)
	walk = func(n *html.Node, inContainer bool) {
		if inContainer && hasClass(n, cardClass) {
			out = append(out, candidateFrom(n))
			return
		}
		if hasClass(n, containerClass) {
			inContainer = true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inContainer)
		}
	}
	walk(doc, false)
	return out, nil
}

// IsPassThrough reports whether a card action label is the "view" link, which
// navigates instead of adding to the cart.
func IsPassThrough(label string) bool {
	return strings.ToLower(strings.TrimSpace(label)) == "view"
}

func candidateFrom(card *html.Node) cart.Candidate {
	title := defaultTitle
	if h := findFirst(card, isAtom(atom.H3)); h != nil {
		if t := strings.TrimSpace(textContent(h)); t != "" {
			title = t
		}
	}

	var price float64
	if span := findFirst(card, isPriceSpan); span != nil {
		price = ParsePrice(textContent(span))
	}

	var img string
	if n := findFirst(card, isAtom(atom.Img)); n != nil {
		img = attr(n, "src")
	}

	return cart.Candidate{
		ID:    cart.ItemID(title, price),
		Title: title,
		Price: price,
		Img:   img,
	}
}

// ParsePrice strips every character other than digits and dots and parses the
// longest leading decimal number. Unparseable text and prices above
// cart.MaxPrice yield 0.
func ParsePrice(text string) float64 {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	s := b.String()

	end, digits, dot := 0, 0, false
	for end < len(s) {
		if s[end] == '.' {
			if dot {
				break
			}
			dot = true
		} else {
			digits++
		}
		end++
	}
	if digits == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || v > cart.MaxPrice {
		return 0
	}
	return v
}

// isPriceSpan matches the first span nested under a ".content" element.
func isPriceSpan(n *html.Node) bool {
	if n.Type != html.ElementNode || n.DataAtom != atom.Span {
		return false
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if hasClass(p, contentClass) {
			return true
		}
	}
	return false
}
