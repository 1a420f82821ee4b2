// Package till implements the branch cash-drawer session: opening float,
// manual movements, running totals and reconciliation at close.
package till

import (
	"fmt"
	"strings"
	"time"

	"apartado/backend/internal/domain"
	"apartado/backend/internal/money"
)

const minDescriptionLength = 3

// Thresholds classify the absolute drawer difference at close.
type Thresholds struct {
	Warning  money.Money
	Critical money.Money
}

// Open builds a new open shift. Uniqueness per branch is the registry's job.
func Open(id, branchID string, initialCash money.Money, openedBy string, now time.Time) (*domain.Shift, error) {
	branchID = strings.TrimSpace(branchID)
	openedBy = strings.TrimSpace(openedBy)
	if branchID == "" || openedBy == "" {
		return nil, fmt.Errorf("%w: branch and opener are required", domain.ErrInvalidRequest)
	}
	if initialCash.IsNegative() {
		return nil, fmt.Errorf("%w: initial cash cannot be negative", domain.ErrInvalidRequest)
	}
	return &domain.Shift{
		ID:          id,
		BranchID:    branchID,
		Status:      domain.ShiftStatusOpen,
		OpenedAt:    now,
		OpenedBy:    openedBy,
		InitialCash: initialCash,
		Movements:   []domain.CashMovement{},
	}, nil
}

// NewMovement validates a manual drawer adjustment. Method defaults to cash.
func NewMovement(id string, req domain.MovementRequest, createdBy string, now time.Time) (domain.CashMovement, error) {
	if req.Type != domain.MovementIn && req.Type != domain.MovementOut {
		return domain.CashMovement{}, fmt.Errorf("%w: type must be in or out", domain.ErrInvalidMovement)
	}
	if !req.Amount.IsPositive() {
		return domain.CashMovement{}, fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidMovement)
	}
	method := req.Method
	if method == "" {
		method = domain.PaymentCash
	}
	switch method {
	case domain.PaymentCash, domain.PaymentCard, domain.PaymentTransfer:
	default:
		return domain.CashMovement{}, fmt.Errorf("%w: method must be cash, card or transfer", domain.ErrInvalidMovement)
	}
	description := strings.TrimSpace(req.Description)
	if len([]rune(description)) < minDescriptionLength {
		return domain.CashMovement{}, fmt.Errorf("%w: description needs at least %d characters", domain.ErrInvalidMovement, minDescriptionLength)
	}
	createdBy = strings.TrimSpace(createdBy)
	if createdBy == "" {
		return domain.CashMovement{}, fmt.Errorf("%w: creator is required", domain.ErrInvalidRequest)
	}
	return domain.CashMovement{
		ID:          id,
		Type:        req.Type,
		Amount:      req.Amount,
		Method:      method,
		Subtype:     strings.TrimSpace(req.Subtype),
		Description: description,
		CreatedBy:   createdBy,
		Timestamp:   now,
	}, nil
}

// RecordMovement appends to the movement log of an open shift.
func RecordMovement(s *domain.Shift, m domain.CashMovement) error {
	if s.Status != domain.ShiftStatusOpen {
		return fmt.Errorf("%w: shift %s", domain.ErrShiftClosed, s.ID)
	}
	s.Movements = append(s.Movements, m)
	return nil
}

// CurrentTotals aggregates the payments attributed to the shift and its
// movements. Only cash reaches the expected drawer amount.
func CurrentTotals(s *domain.Shift, payments []domain.ShiftPayment) domain.ShiftTotals {
	totals := domain.ShiftTotals{InitialCash: s.InitialCash}
	for _, sp := range payments {
		p := sp.Payment
		if p.ShiftID != s.ID {
			continue
		}
		switch p.Method {
		case domain.PaymentCash:
			totals.Sales.Cash += p.Amount
		case domain.PaymentCard:
			totals.Sales.Card += p.Amount
		case domain.PaymentTransfer:
			totals.Sales.Transfer += p.Amount
		default:
			totals.Sales.Other += p.Amount
		}
		totals.Sales.Total += p.Amount
		totals.PaymentCount++
	}
	for _, m := range s.Movements {
		cash := m.Method == domain.PaymentCash
		switch {
		case m.Type == domain.MovementIn && cash:
			totals.Movements.In += m.Amount
		case m.Type == domain.MovementIn:
			totals.Movements.InDigital += m.Amount
		case m.Type == domain.MovementOut && cash:
			totals.Movements.Out += m.Amount
		case m.Type == domain.MovementOut:
			totals.Movements.OutDigital += m.Amount
		}
	}
	totals.ExpectedCash = s.InitialCash.
		Add(totals.Sales.Cash).
		Add(totals.Movements.In).
		Sub(totals.Movements.Out)
	return totals
}

// Report bundles the shift with its totals and attributed payments.
func Report(s *domain.Shift, payments []domain.ShiftPayment) domain.ShiftReport {
	attributed := make([]domain.ShiftPayment, 0, len(payments))
	for _, sp := range payments {
		if sp.Payment.ShiftID == s.ID {
			attributed = append(attributed, sp)
		}
	}
	return domain.ShiftReport{
		Shift:    *s,
		Totals:   CurrentTotals(s, attributed),
		Payments: attributed,
	}
}

// Close reconciles the declared count against expected cash and seals the
// shift. A nonzero difference is recorded, never rejected.
func Close(s *domain.Shift, payments []domain.ShiftPayment, declared money.Money, notes, closedBy string, th Thresholds, now time.Time) (domain.ShiftTotals, error) {
	if s.Status != domain.ShiftStatusOpen {
		return domain.ShiftTotals{}, fmt.Errorf("%w: shift %s", domain.ErrShiftClosed, s.ID)
	}
	closedBy = strings.TrimSpace(closedBy)
	if closedBy == "" {
		return domain.ShiftTotals{}, fmt.Errorf("%w: closer is required", domain.ErrInvalidRequest)
	}
	if declared.IsNegative() {
		return domain.ShiftTotals{}, fmt.Errorf("%w: declared cash cannot be negative", domain.ErrInvalidRequest)
	}

	totals := CurrentTotals(s, payments)
	expected := totals.ExpectedCash
	difference := declared.Sub(expected)

	s.Status = domain.ShiftStatusClosed
	s.ClosedAt = &now
	s.ClosedBy = closedBy
	s.DeclaredCash = &declared
	s.ExpectedCash = &expected
	s.Difference = &difference
	s.DifferencePct = difference.RatioPercent(expected).StringFixed(2)
	s.Classification = Classify(difference, th)
	s.Notes = strings.TrimSpace(notes)
	return totals, nil
}

// Classify grades an over/short amount by its absolute size.
func Classify(difference money.Money, th Thresholds) string {
	abs := difference.Abs()
	switch {
	case abs > th.Critical:
		return domain.DifferenceCritical
	case abs > th.Warning:
		return domain.DifferenceWarning
	default:
		return domain.DifferenceNormal
	}
}
