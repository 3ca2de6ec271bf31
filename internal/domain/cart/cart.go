// Package cart holds the line items of a customer cart and the codec used to
// store them alongside an order.
package cart

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidCart is returned when a cart is empty or one of its items is malformed.
var ErrInvalidCart = errors.New("invalid cart")

// Item is a single cart line: a named product, how many, and the unit price.
type Item struct {
	Name     string
	Quantity int
	Price    decimal.Decimal
}

// Amount returns Price * Quantity.
func (i Item) Amount() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// InvalidItemError describes the first offending item in a cart.
type InvalidItemError struct {
	Index  int
	Name   string
	Reason string
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("invalid cart item %d (%q): %s", e.Index, e.Name, e.Reason)
}

func (e *InvalidItemError) Unwrap() error {
	return ErrInvalidCart
}

// Validate checks that the cart is non-empty and every item has a name,
// a positive quantity and a non-negative price.
func Validate(items []Item) error {
	if len(items) == 0 {
		return errors.Wrap(ErrInvalidCart, "cart is empty")
	}
	for i, item := range items {
		switch {
		case strings.TrimSpace(item.Name) == "":
			return &InvalidItemError{Index: i, Name: item.Name, Reason: "name is required"}
		case item.Quantity <= 0:
			return &InvalidItemError{Index: i, Name: item.Name, Reason: "quantity must be greater than 0"}
		case item.Price.IsNegative():
			return &InvalidItemError{Index: i, Name: item.Name, Reason: "price must not be negative"}
		}
	}
	return nil
}

// Subtotal returns the exact sum of quantity * price over all items.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Amount())
	}
	return sum
}

// Count returns the total number of units in the cart.
func Count(items []Item) int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}
