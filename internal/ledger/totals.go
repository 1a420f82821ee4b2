package ledger

import (
	"fmt"

	"apartado/backend/internal/domain"
	"apartado/backend/internal/money"
)

// Totals recomputes every derived amount from the note's items and payments.
// A negative intermediate is reported as ErrLedgerDefect rather than clamped.
func Totals(n *domain.Note) (domain.NoteTotals, error) {
	var subtotal money.Money
	for _, item := range n.Items {
		line := item.Subtotal()
		if line.IsNegative() {
			return domain.NoteTotals{}, fmt.Errorf("%w: item %q subtotal %s", domain.ErrLedgerDefect, item.Name, line)
		}
		subtotal += line
	}
	total := subtotal.Sub(n.GlobalDiscount)
	if total.IsNegative() {
		return domain.NoteTotals{}, fmt.Errorf("%w: total %s", domain.ErrLedgerDefect, total)
	}
	paid := PaidToDate(n)
	balance := total.Sub(paid)
	if balance.IsNegative() {
		return domain.NoteTotals{}, fmt.Errorf("%w: paid %s exceeds total %s", domain.ErrLedgerDefect, paid, total)
	}
	return domain.NoteTotals{
		Subtotal:        subtotal,
		GlobalDiscount:  n.GlobalDiscount,
		Total:           total,
		PaidToDate:      paid,
		BalanceDue:      balance,
		MinimumRequired: minimumRequired(n.Items, total),
	}, nil
}

// PaidToDate sums the payment log.
func PaidToDate(n *domain.Note) money.Money {
	var paid money.Money
	for _, p := range n.Payments {
		paid += p.Amount
	}
	return paid
}

// MinimumRequiredPayment is what must be paid at checkout: the subtotal of
// the items leaving with the customer, capped at the note total so a global
// discount never makes the minimum unreachable.
func MinimumRequiredPayment(n *domain.Note) money.Money {
	subtotal := subtotalOf(n.Items)
	total := subtotal.Sub(n.GlobalDiscount)
	return minimumRequired(n.Items, total)
}

func minimumRequired(items []domain.LineItem, total money.Money) money.Money {
	var immediate money.Money
	for _, item := range items {
		if item.Fulfillment == domain.FulfillmentImmediate {
			immediate += item.Subtotal()
		}
	}
	if immediate > total {
		return total
	}
	return immediate
}

func subtotalOf(items []domain.LineItem) money.Money {
	var sum money.Money
	for _, item := range items {
		sum += item.Subtotal()
	}
	return sum
}

// View pairs a note with its computed totals.
func View(n *domain.Note) (domain.NoteView, error) {
	totals, err := Totals(n)
	if err != nil {
		return domain.NoteView{}, err
	}
	return domain.NoteView{Note: *n, Totals: totals}, nil
}
