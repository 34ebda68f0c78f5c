// Package cart holds the in-memory shopping cart: an ordered list of line items
// with add, remove and change-quantity operations and the derived order totals.
package cart

// Cart is an ordered sequence of line items in first-added order. Item ids are
// unique and every quantity is positive.
//
// A Cart is not safe for concurrent use; callers serialize access.
type Cart struct {
	items []LineItem
}

// New builds a cart from a previously persisted sequence. The sequence is copied.
// Entries with a quantity of zero or below and repeats of an id already seen are
// dropped.
func New(items []LineItem) *Cart {
	c := &Cart{items: make([]LineItem, 0, len(items))}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		c.items = append(c.items, it)
	}
	return c
}

// Items returns a copy of the line items in cart order.
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of distinct line items.
func (c *Cart) Len() int {
	return len(c.items)
}

// Find returns the line item with the given id.
func (c *Cart) Find(id string) (LineItem, bool) {
	if i := c.index(id); i >= 0 {
		return c.items[i], true
	}
	return LineItem{}, false
}

// Add increments the quantity of the entry matching the candidate's id, or appends
// a new entry with quantity 1. A candidate without an id gets one from ItemID.
func (c *Cart) Add(cand Candidate) {
	id := cand.ID
	if id == "" {
		id = ItemID(cand.Title, cand.Price)
	}
	if i := c.index(id); i >= 0 {
		c.items[i].Qty++
		return
	}
	c.items = append(c.items, LineItem{
		ID:    id,
		Title: cand.Title,
		Price: cand.Price,
		Img:   cand.Img,
		Qty:   1,
	})
}

// Remove deletes the entry with the given id and reports whether it was present.
func (c *Cart) Remove(id string) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true
}

// ChangeQty adds delta to the entry's quantity. An entry driven to zero or below
// is removed. It reports whether the id was present.
func (c *Cart) ChangeQty(id string, delta int) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.items[i].Qty += delta
	if c.items[i].Qty <= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
	return true
}

// TotalCount returns the sum of quantities, shown on the cart badge.
func (c *Cart) TotalCount() int {
	n := 0
	for _, it := range c.items {
		n += it.Qty
	}
	return n
}

// Clone returns an independent copy of the cart.
func (c *Cart) Clone() *Cart {
	items := make([]LineItem, len(c.items))
	copy(items, c.items)
	return &Cart{items: items}
}

func (c *Cart) index(id string) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}
