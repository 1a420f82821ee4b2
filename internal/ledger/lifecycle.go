package ledger

import (
	"fmt"
	"strings"
	"time"

	"apartado/backend/internal/domain"
)

// Fulfill hands goods over. A settled note becomes fulfilled with every item
// delivered. A partially paid note whose payments cover the checkout minimum
// only releases its immediate items and stays partially paid.
func Fulfill(n *domain.Note, now time.Time) error {
	if n.Status.Terminal() {
		return immutable(n)
	}
	totals, err := Totals(n)
	if err != nil {
		return err
	}

	switch {
	case n.Status == domain.NoteStatusSettled:
		deliver(n, now, func(domain.LineItem) bool { return true })
		n.Status = domain.NoteStatusFulfilled
		n.FulfilledAt = &now
	case n.Status == domain.NoteStatusPartiallyPaid && totals.PaidToDate >= totals.MinimumRequired:
		deliver(n, now, func(item domain.LineItem) bool {
			return item.Fulfillment == domain.FulfillmentImmediate
		})
	default:
		return fmt.Errorf("%w: note %s is %s with %s paid of %s required",
			domain.ErrInvalidFulfillmentState, n.Folio, n.Status, totals.PaidToDate, totals.MinimumRequired)
	}
	n.UpdatedAt = now
	return nil
}

func deliver(n *domain.Note, now time.Time, match func(domain.LineItem) bool) {
	for i := range n.Items {
		if n.Items[i].Delivered || !match(n.Items[i]) {
			continue
		}
		at := now
		n.Items[i].Delivered = true
		n.Items[i].DeliveredAt = &at
	}
}

// Cancel flips the note to cancelled. Payments stay on the log; restoring
// stock is left to whoever consumes the cancellation event.
func Cancel(n *domain.Note, reason string, now time.Time) error {
	if n.Status.Terminal() {
		return immutable(n)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: cancel reason is required", domain.ErrInvalidRequest)
	}
	n.Status = domain.NoteStatusCancelled
	n.CancelReason = reason
	n.CancelledAt = &now
	n.UpdatedAt = now
	return nil
}
