// Package fulfillment decides whether an item may leave the store before the
// note is fully paid.
package fulfillment

import (
	"fmt"

	"apartado/backend/internal/domain"
)

// Default returns the fulfillment a cashier gets unless they choose
// otherwise. Stock on hand can go home now; anything still to be made or
// performed waits.
func Default(nature domain.ItemNature) domain.Fulfillment {
	switch nature {
	case domain.NatureMadeToOrder, domain.NatureService:
		return domain.FulfillmentDeferred
	default:
		return domain.FulfillmentImmediate
	}
}

// Resolve applies the explicit choice when present, otherwise the default for
// the item's nature.
func Resolve(nature domain.ItemNature, chosen domain.Fulfillment) (domain.Fulfillment, error) {
	if chosen == "" {
		return Default(nature), nil
	}
	if !chosen.Valid() {
		return "", fmt.Errorf("%w: unknown fulfillment %q", domain.ErrInvalidFulfillmentState, chosen)
	}
	return chosen, nil
}

// Validate rejects an item that is deferred yet already handed over as a
// unique piece.
func Validate(item domain.LineItem) error {
	if !item.Fulfillment.Valid() {
		return fmt.Errorf("%w: unknown fulfillment %q", domain.ErrInvalidFulfillmentState, item.Fulfillment)
	}
	if item.Fulfillment == domain.FulfillmentDeferred && item.Delivered && item.Nature == domain.NatureUniquePiece {
		return fmt.Errorf("%w: deferred unique piece %q cannot already be delivered", domain.ErrInvalidFulfillmentState, item.Name)
	}
	return nil
}
