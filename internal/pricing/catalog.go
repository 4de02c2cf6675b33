package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Money represents a monetary value stored in minor units.
type Money = int64

var (
	// ErrEmptyOrder is returned when an order carries no items.
	ErrEmptyOrder = errors.New("pricing: order has no items")
	// ErrUnknownItem is returned when an item id has no configured price.
	ErrUnknownItem = errors.New("pricing: unknown item")
)

// Item is a line of the browser's order.
type Item struct {
	ID       string `json:"id" validate:"required,max=64"`
	Quantity int    `json:"quantity,omitempty" validate:"gte=0,lte=100"`
}

// Catalog holds the server-side prices. Amounts are never taken from the client.
type Catalog struct {
	Prices          map[string]Money
	DefaultItem     string
	DefaultCurrency string
}

// DefaultOrder is the order the checkout page sends when it does not say otherwise.
func (c Catalog) DefaultOrder() []Item {
	return []Item{{ID: c.DefaultItem}}
}

// Currency returns the lowercased currency, falling back to the catalogue default.
func (c Catalog) Currency(requested string) string {
	if cur := strings.ToLower(strings.TrimSpace(requested)); cur != "" {
		return cur
	}
	return c.DefaultCurrency
}

// OrderAmount sums price times quantity for each item. A zero quantity counts as one.
func (c Catalog) OrderAmount(items []Item) (Money, error) {
	if len(items) == 0 {
		return 0, ErrEmptyOrder
	}
	var total Money
	for _, it := range items {
		price, ok := c.Prices[strings.TrimSpace(it.ID)]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownItem, it.ID)
		}
		qty := Money(max(it.Quantity, 1))
		if price > (math.MaxInt64-total)/qty {
			return 0, fmt.Errorf("pricing: order amount overflows")
		}
		total += price * qty
	}
	return total, nil
}
