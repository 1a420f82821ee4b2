package domain

import (
	"errors"
	"fmt"

	"apartado/backend/internal/money"
)

var (
	ErrInvalidRequest          = errors.New("invalid request")
	ErrInvalidItem             = errors.New("invalid item")
	ErrInvalidDiscount         = errors.New("invalid discount")
	ErrInvalidPayment          = errors.New("invalid payment")
	ErrInsufficientPayment     = errors.New("insufficient payment")
	ErrInvalidFulfillmentState = errors.New("invalid fulfillment state")
	ErrInvalidState            = errors.New("operation not allowed in current state")
	ErrLedgerImmutable         = errors.New("ledger is immutable")
	ErrLedgerDefect            = errors.New("ledger totals are inconsistent")
	ErrNoteNotFound            = errors.New("note not found")
	ErrShiftAlreadyOpen        = errors.New("shift already open")
	ErrShiftNotFound           = errors.New("shift not found")
	ErrShiftClosed             = errors.New("shift is closed")
	ErrNoOpenShift             = errors.New("no open shift for branch")
	ErrInvalidMovement         = errors.New("invalid cash movement")
	ErrConcurrentModification  = errors.New("concurrent modification")
)

// InsufficientPaymentError carries the amounts so callers can show how much
// more is needed.
type InsufficientPaymentError struct {
	Required money.Money
	Offered  money.Money
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: required %s, offered %s", e.Required, e.Offered)
}

func (e *InsufficientPaymentError) Is(target error) bool {
	return target == ErrInsufficientPayment
}

// ShiftAlreadyOpenError identifies the shift blocking a new open.
type ShiftAlreadyOpenError struct {
	BranchID string
	ShiftID  string
}

func (e *ShiftAlreadyOpenError) Error() string {
	return fmt.Sprintf("shift already open for branch %s: %s", e.BranchID, e.ShiftID)
}

func (e *ShiftAlreadyOpenError) Is(target error) bool {
	return target == ErrShiftAlreadyOpen
}
