package ledger

import (
	"fmt"
	"strings"
	"time"

	"apartado/backend/internal/domain"
	"apartado/backend/internal/money"
)

// NewPayment builds an immutable payment from cashier input and returns the
// change owed on a cash tender. Change is never recorded as paid.
func NewPayment(id string, in domain.PaymentInput, shiftID, recordedBy string, now time.Time) (domain.Payment, money.Money, error) {
	if !in.Method.Valid() {
		return domain.Payment{}, 0, fmt.Errorf("%w: unknown method %q", domain.ErrInvalidPayment, in.Method)
	}
	if !in.Amount.IsPositive() {
		return domain.Payment{}, 0, fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidPayment)
	}
	var change money.Money
	if !in.Tendered.IsZero() {
		if in.Method != domain.PaymentCash {
			return domain.Payment{}, 0, fmt.Errorf("%w: tendered only applies to cash", domain.ErrInvalidPayment)
		}
		if in.Tendered < in.Amount {
			return domain.Payment{}, 0, fmt.Errorf("%w: tendered %s is less than amount %s", domain.ErrInvalidPayment, in.Tendered, in.Amount)
		}
		change = in.Tendered.Sub(in.Amount)
	}
	return domain.Payment{
		ID:         id,
		Amount:     in.Amount,
		Method:     in.Method,
		Reference:  strings.TrimSpace(in.Reference),
		ShiftID:    shiftID,
		RecordedBy: recordedBy,
		Timestamp:  now,
	}, change, nil
}

// RecordPayments appends a batch of payments. The first batch on a note must
// cover the checkout minimum across all methods in the batch; no batch may
// exceed the balance due. Duplicate submissions are appended as given.
func RecordPayments(n *domain.Note, batch []domain.Payment, now time.Time) error {
	if n.Status.Terminal() {
		return immutable(n)
	}
	if n.Status == domain.NoteStatusSettled {
		return fmt.Errorf("%w: note %s is already settled", domain.ErrInvalidState, n.Folio)
	}
	if len(n.Items) == 0 {
		return fmt.Errorf("%w: note has no items", domain.ErrInvalidState)
	}
	if len(batch) == 0 {
		return fmt.Errorf("%w: at least one payment is required", domain.ErrInvalidPayment)
	}

	var offered money.Money
	for _, p := range batch {
		if !p.Amount.IsPositive() {
			return fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidPayment)
		}
		if !p.Method.Valid() {
			return fmt.Errorf("%w: unknown method %q", domain.ErrInvalidPayment, p.Method)
		}
		offered += p.Amount
	}

	totals, err := Totals(n)
	if err != nil {
		return err
	}
	if len(n.Payments) == 0 && offered < totals.MinimumRequired {
		return &domain.InsufficientPaymentError{Required: totals.MinimumRequired, Offered: offered}
	}
	if offered > totals.BalanceDue {
		return fmt.Errorf("%w: payments %s exceed balance due %s", domain.ErrInvalidPayment, offered, totals.BalanceDue)
	}

	n.Payments = append(n.Payments, batch...)
	if totals.BalanceDue.Sub(offered).IsZero() {
		n.Status = domain.NoteStatusSettled
	} else {
		n.Status = domain.NoteStatusPartiallyPaid
	}
	n.UpdatedAt = now
	return nil
}
