package till

import (
	"errors"
	"testing"
	"time"

	"apartado/backend/internal/domain"
	"apartado/backend/internal/money"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

var testThresholds = Thresholds{Warning: money.FromCents(5000), Critical: money.FromCents(20000)}

func openTestShift(t *testing.T, initial int64) *domain.Shift {
	t.Helper()
	s, err := Open("shift-1", "B1", money.FromCents(initial), "cashier-1", testNow)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func shiftPayment(shiftID string, method domain.PaymentMethod, cents int64) domain.ShiftPayment {
	return domain.ShiftPayment{
		NoteID: "note-1",
		Folio:  "B1-000001",
		Payment: domain.Payment{
			ID: "pay", Method: method, Amount: money.FromCents(cents), ShiftID: shiftID, Timestamp: testNow,
		},
	}
}

func mustMovement(t *testing.T, typ domain.MovementType, method domain.PaymentMethod, cents int64) domain.CashMovement {
	t.Helper()
	m, err := NewMovement("mov", domain.MovementRequest{
		Type: typ, Method: method, Amount: money.FromCents(cents), Description: "petty expense",
	}, "cashier-1", testNow)
	if err != nil {
		t.Fatalf("movement: %v", err)
	}
	return m
}

func TestOpenValidatesInput(t *testing.T) {
	if _, err := Open("s", "B1", -1, "cashier-1", testNow); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for negative float, got %v", err)
	}
	if _, err := Open("s", "B1", 0, "", testNow); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for missing opener, got %v", err)
	}
	s := openTestShift(t, 0)
	if s.Status != domain.ShiftStatusOpen {
		t.Fatalf("expected open shift, got %s", s.Status)
	}
}

func TestReconciliationArithmetic(t *testing.T) {
	s := openTestShift(t, 20000)
	payments := []domain.ShiftPayment{shiftPayment(s.ID, domain.PaymentCash, 15000)}
	if err := RecordMovement(s, mustMovement(t, domain.MovementOut, domain.PaymentCash, 3000)); err != nil {
		t.Fatalf("record movement: %v", err)
	}

	totals := CurrentTotals(s, payments)
	if totals.ExpectedCash != 32000 {
		t.Fatalf("expected cash 320.00, got %s", totals.ExpectedCash)
	}

	if _, err := Close(s, payments, money.FromCents(31000), "short ten", "cashier-1", testThresholds, testNow); err != nil {
		t.Fatalf("close: %v", err)
	}
	if s.Status != domain.ShiftStatusClosed || s.Difference == nil || *s.Difference != -1000 {
		t.Fatalf("expected closed shift with -10.00 difference, got %+v", s)
	}
	if s.DifferencePct != "-3.12" {
		t.Fatalf("unexpected difference pct %s", s.DifferencePct)
	}
	if s.Classification != domain.DifferenceNormal {
		t.Fatalf("expected normal classification, got %s", s.Classification)
	}
}

func TestDigitalFlowsDoNotTouchExpectedCash(t *testing.T) {
	s := openTestShift(t, 10000)
	payments := []domain.ShiftPayment{
		shiftPayment(s.ID, domain.PaymentCard, 5000),
		shiftPayment(s.ID, domain.PaymentTransfer, 2500),
		shiftPayment(s.ID, domain.PaymentDeposit, 700),
		shiftPayment(s.ID, domain.PaymentCredit, 300),
		shiftPayment("other-shift", domain.PaymentCash, 99999),
	}
	for _, m := range []domain.CashMovement{
		mustMovement(t, domain.MovementIn, domain.PaymentTransfer, 1000),
		mustMovement(t, domain.MovementOut, domain.PaymentCard, 400),
		mustMovement(t, domain.MovementIn, domain.PaymentCash, 600),
	} {
		if err := RecordMovement(s, m); err != nil {
			t.Fatalf("record movement: %v", err)
		}
	}

	report := Report(s, payments)
	totals := report.Totals
	if totals.ExpectedCash != 10600 {
		t.Fatalf("expected cash 106.00, got %s", totals.ExpectedCash)
	}
	if totals.Sales.Card != 5000 || totals.Sales.Transfer != 2500 || totals.Sales.Other != 1000 || totals.Sales.Cash != 0 {
		t.Fatalf("unexpected sales split %+v", totals.Sales)
	}
	if totals.Movements.InDigital != 1000 || totals.Movements.OutDigital != 400 || totals.Movements.In != 600 {
		t.Fatalf("unexpected movement split %+v", totals.Movements)
	}
	if totals.PaymentCount != 4 || len(report.Payments) != 4 {
		t.Fatalf("payments from other shifts must be ignored: %+v", report)
	}
}

func TestClosedShiftIsTerminal(t *testing.T) {
	s := openTestShift(t, 0)
	if _, err := Close(s, nil, 0, "", "cashier-1", testThresholds, testNow); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := Close(s, nil, 0, "", "cashier-1", testThresholds, testNow); !errors.Is(err, domain.ErrShiftClosed) {
		t.Fatalf("expected ErrShiftClosed on second close, got %v", err)
	}
	if err := RecordMovement(s, mustMovement(t, domain.MovementIn, domain.PaymentCash, 100)); !errors.Is(err, domain.ErrShiftClosed) {
		t.Fatalf("expected ErrShiftClosed on movement, got %v", err)
	}
	if s.DifferencePct != "0.00" {
		t.Fatalf("zero expected cash should give 0.00 pct, got %s", s.DifferencePct)
	}
}

func TestNewMovementValidation(t *testing.T) {
	cases := []domain.MovementRequest{
		{Type: "sideways", Amount: 100, Description: "valid text"},
		{Type: domain.MovementIn, Amount: 0, Description: "valid text"},
		{Type: domain.MovementIn, Amount: 100, Description: "ab"},
		{Type: domain.MovementOut, Amount: 100, Method: domain.PaymentCredit, Description: "valid text"},
	}
	for _, req := range cases {
		if _, err := NewMovement("m", req, "cashier-1", testNow); !errors.Is(err, domain.ErrInvalidMovement) {
			t.Fatalf("expected ErrInvalidMovement for %+v, got %v", req, err)
		}
	}
	m, err := NewMovement("m", domain.MovementRequest{Type: domain.MovementIn, Amount: 100, Description: " float top-up "}, "cashier-1", testNow)
	if err != nil {
		t.Fatalf("movement: %v", err)
	}
	if m.Method != domain.PaymentCash || m.Description != "float top-up" {
		t.Fatalf("unexpected movement %+v", m)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		diff int64
		want string
	}{
		{0, domain.DifferenceNormal},
		{-5000, domain.DifferenceNormal},
		{5001, domain.DifferenceWarning},
		{-20000, domain.DifferenceWarning},
		{-20001, domain.DifferenceCritical},
	}
	for _, tc := range cases {
		if got := Classify(money.FromCents(tc.diff), testThresholds); got != tc.want {
			t.Fatalf("Classify(%d) = %s, want %s", tc.diff, got, tc.want)
		}
	}
}
