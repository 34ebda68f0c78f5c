package cartstore

import (
	"context"
	"encoding/json"

	"github.com/norun9/storefront-cartservice/cart"
	"github.com/pkg/errors"
)

// CartKey is the fixed key the serialized cart lives under inside a scope.
const CartKey = "sandhu_cart_v1"

// ErrCorrupt is returned by Load when the stored value is not a well-shaped cart.
var ErrCorrupt = errors.New("cartstore: corrupt cart data")

// ICartStore is an interface for cart storage operations.
// A scope is the unit of isolation, one shopper session.
type ICartStore interface {
	Initialize(ctx context.Context) error

	// Load returns the saved line items of a scope, or an empty slice when
	// nothing was saved. A value that cannot be decoded yields ErrCorrupt.
	Load(ctx context.Context, scope string) ([]cart.LineItem, error)
	// Save replaces the scope's cart with items in a single write.
	Save(ctx context.Context, scope string, items []cart.LineItem) error

	Ping(ctx context.Context) bool
}

// encode serializes items as a JSON array of {id,title,price,img,qty} objects.
func encode(items []cart.LineItem) ([]byte, error) {
	if items == nil {
		items = []cart.LineItem{}
	}
	return json.Marshal(items)
}

// decode parses a stored value. JSON null decodes to an empty cart; anything
// that is not an array of valid line items is ErrCorrupt.
func decode(data []byte) ([]cart.LineItem, error) {
	var items []cart.LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	if err := cart.Validate(items); err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	if items == nil {
		items = []cart.LineItem{}
	}
	return items, nil
}
