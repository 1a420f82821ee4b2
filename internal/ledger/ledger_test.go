package ledger

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"apartado/backend/internal/domain"
	"apartado/backend/internal/money"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestNote(t *testing.T) *domain.Note {
	t.Helper()
	n, err := New("note-1", "B1-000001", "B1", "client-7", "cashier-1", testNow)
	if err != nil {
		t.Fatalf("new note: %v", err)
	}
	return n
}

func mustItem(t *testing.T, id string, in domain.LineItemInput) domain.LineItem {
	t.Helper()
	item, err := NewItem(id, in)
	if err != nil {
		t.Fatalf("new item %s: %v", id, err)
	}
	return item
}

func pay(id string, method domain.PaymentMethod, cents int64) domain.Payment {
	return domain.Payment{ID: id, Method: method, Amount: money.FromCents(cents), ShiftID: "shift-1", Timestamp: testNow}
}

// layawayNote has an immediate $100 piece and a deferred $50 piece.
func layawayNote(t *testing.T) *domain.Note {
	t.Helper()
	n := newTestNote(t)
	now := mustItem(t, "item-1", domain.LineItemInput{
		Name: "Silver chain", Nature: domain.NatureBulkStock, Quantity: 1, UnitPrice: money.FromCents(10000),
	})
	later := mustItem(t, "item-2", domain.LineItemInput{
		Name: "Engraved ring", Kind: domain.ItemKindCustom, Quantity: 1, UnitPrice: money.FromCents(5000),
	})
	if err := AddItem(n, now, testNow); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if err := AddItem(n, later, testNow); err != nil {
		t.Fatalf("add item: %v", err)
	}
	return n
}

func assertConserved(t *testing.T, n *domain.Note) {
	t.Helper()
	totals, err := Totals(n)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Total != totals.Subtotal-n.GlobalDiscount {
		t.Fatalf("total %s != subtotal %s - discount %s", totals.Total, totals.Subtotal, n.GlobalDiscount)
	}
	if totals.BalanceDue != totals.Total-totals.PaidToDate {
		t.Fatalf("balance %s != total %s - paid %s", totals.BalanceDue, totals.Total, totals.PaidToDate)
	}
	if totals.BalanceDue.IsZero() && len(n.Items) > 0 {
		switch n.Status {
		case domain.NoteStatusSettled, domain.NoteStatusFulfilled, domain.NoteStatusCancelled:
		default:
			t.Fatalf("zero balance but status %s", n.Status)
		}
	}
}

func TestNewNoteStartsInDraft(t *testing.T) {
	n := newTestNote(t)
	if n.Status != domain.NoteStatusDraft {
		t.Fatalf("expected draft, got %s", n.Status)
	}
	if _, err := New("x", "f", "B1", "client", " ", testNow); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for blank creator, got %v", err)
	}
}

func TestNewItemValidation(t *testing.T) {
	cases := []struct {
		name string
		in   domain.LineItemInput
	}{
		{"zero quantity", domain.LineItemInput{Name: "a", Quantity: 0, UnitPrice: 100}},
		{"negative price", domain.LineItemInput{Name: "a", Quantity: 1, UnitPrice: -1}},
		{"discount above gross", domain.LineItemInput{Name: "a", Quantity: 2, UnitPrice: 100, Discount: 201}},
		{"negative discount", domain.LineItemInput{Name: "a", Quantity: 1, UnitPrice: 100, Discount: -1}},
		{"missing name", domain.LineItemInput{Quantity: 1, UnitPrice: 100}},
		{"unknown kind", domain.LineItemInput{Name: "a", Kind: "gift", Quantity: 1, UnitPrice: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewItem("i", tc.in); !errors.Is(err, domain.ErrInvalidItem) {
				t.Fatalf("expected ErrInvalidItem, got %v", err)
			}
		})
	}

	item := mustItem(t, "i", domain.LineItemInput{Name: "Repair", Kind: domain.ItemKindService, Quantity: 1, UnitPrice: 100, Discount: 100})
	if item.Fulfillment != domain.FulfillmentDeferred || item.Nature != domain.NatureService {
		t.Fatalf("service defaults not applied: %+v", item)
	}
	if !item.Subtotal().IsZero() {
		t.Fatalf("full discount should give zero subtotal, got %s", item.Subtotal())
	}
}

func TestAddItemMovesDraftToPendingPayment(t *testing.T) {
	n := layawayNote(t)
	if n.Status != domain.NoteStatusPendingPayment {
		t.Fatalf("expected pending payment, got %s", n.Status)
	}
	totals, err := Totals(n)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Subtotal != 15000 || totals.MinimumRequired != 10000 || totals.BalanceDue != 15000 {
		t.Fatalf("unexpected totals %+v", totals)
	}
}

func TestMinimumPaymentGate(t *testing.T) {
	n := layawayNote(t)

	err := RecordPayments(n, []domain.Payment{pay("p1", domain.PaymentCash, 8000)}, testNow)
	var insufficient *domain.InsufficientPaymentError
	if !errors.As(err, &insufficient) || !errors.Is(err, domain.ErrInsufficientPayment) {
		t.Fatalf("expected InsufficientPaymentError, got %v", err)
	}
	if insufficient.Required != 10000 || insufficient.Offered != 8000 {
		t.Fatalf("unexpected amounts in error: %+v", insufficient)
	}
	if len(n.Payments) != 0 || n.Status != domain.NoteStatusPendingPayment {
		t.Fatalf("rejected payment must not change note: %+v", n)
	}

	if err := RecordPayments(n, []domain.Payment{pay("p2", domain.PaymentCash, 10000)}, testNow); err != nil {
		t.Fatalf("record payment: %v", err)
	}
	totals, _ := Totals(n)
	if totals.BalanceDue != 5000 {
		t.Fatalf("expected balance 50.00, got %s", totals.BalanceDue)
	}
	if n.Status != domain.NoteStatusPartiallyPaid {
		t.Fatalf("expected partially paid, got %s", n.Status)
	}
	assertConserved(t, n)
}

func TestMinimumGateSumsBatchAcrossMethods(t *testing.T) {
	n := layawayNote(t)
	batch := []domain.Payment{
		pay("p1", domain.PaymentCash, 6000),
		pay("p2", domain.PaymentCard, 4000),
	}
	if err := RecordPayments(n, batch, testNow); err != nil {
		t.Fatalf("split batch should cover the minimum: %v", err)
	}
	if got := PaidToDate(n); got != 10000 {
		t.Fatalf("expected 100.00 paid, got %s", got)
	}
}

func TestLaterInstallmentsSkipMinimumGate(t *testing.T) {
	n := layawayNote(t)
	if err := RecordPayments(n, []domain.Payment{pay("p1", domain.PaymentCash, 10000)}, testNow); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if err := RecordPayments(n, []domain.Payment{pay("p2", domain.PaymentTransfer, 1000)}, testNow); err != nil {
		t.Fatalf("installment: %v", err)
	}
	if n.Status != domain.NoteStatusPartiallyPaid {
		t.Fatalf("expected partially paid, got %s", n.Status)
	}
	if err := RecordPayments(n, []domain.Payment{pay("p3", domain.PaymentCash, 4000)}, testNow); err != nil {
		t.Fatalf("final installment: %v", err)
	}
	if n.Status != domain.NoteStatusSettled {
		t.Fatalf("expected settled, got %s", n.Status)
	}
	assertConserved(t, n)
}

func TestRecordPaymentsRejectsOverpaymentAndNonPositive(t *testing.T) {
	n := layawayNote(t)
	if err := RecordPayments(n, []domain.Payment{pay("p1", domain.PaymentCash, 15001)}, testNow); !errors.Is(err, domain.ErrInvalidPayment) {
		t.Fatalf("expected ErrInvalidPayment for overpayment, got %v", err)
	}
	if err := RecordPayments(n, []domain.Payment{pay("p1", domain.PaymentCash, 0)}, testNow); !errors.Is(err, domain.ErrInvalidPayment) {
		t.Fatalf("expected ErrInvalidPayment for zero amount, got %v", err)
	}
	if err := RecordPayments(newTestNote(t), []domain.Payment{pay("p1", domain.PaymentCash, 100)}, testNow); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for empty note, got %v", err)
	}
}

func TestNewPaymentComputesChange(t *testing.T) {
	p, change, err := NewPayment("p1", domain.PaymentInput{Method: domain.PaymentCash, Amount: 15000, Tendered: 20000}, "shift-1", "cashier-1", testNow)
	if err != nil {
		t.Fatalf("new payment: %v", err)
	}
	if change != 5000 || p.Amount != 15000 {
		t.Fatalf("unexpected payment %+v change %s", p, change)
	}
	if _, _, err := NewPayment("p2", domain.PaymentInput{Method: domain.PaymentCard, Amount: 100, Tendered: 200}, "", "", testNow); !errors.Is(err, domain.ErrInvalidPayment) {
		t.Fatalf("expected tendered on card to fail, got %v", err)
	}
	if _, _, err := NewPayment("p3", domain.PaymentInput{Method: domain.PaymentCash, Amount: 300, Tendered: 200}, "", "", testNow); !errors.Is(err, domain.ErrInvalidPayment) {
		t.Fatalf("expected short tender to fail, got %v", err)
	}
}

func TestGlobalDiscountBounds(t *testing.T) {
	n := layawayNote(t)
	if err := ApplyGlobalDiscount(n, 15001, testNow); !errors.Is(err, domain.ErrInvalidDiscount) {
		t.Fatalf("expected ErrInvalidDiscount, got %v", err)
	}
	if err := ApplyGlobalDiscount(n, -1, testNow); !errors.Is(err, domain.ErrInvalidDiscount) {
		t.Fatalf("expected ErrInvalidDiscount, got %v", err)
	}
	if err := ApplyGlobalDiscount(n, 12000, testNow); err != nil {
		t.Fatalf("apply discount: %v", err)
	}
	totals, _ := Totals(n)
	if totals.Total != 3000 {
		t.Fatalf("expected total 30.00, got %s", totals.Total)
	}
	if totals.MinimumRequired != 3000 {
		t.Fatalf("minimum must be capped at total, got %s", totals.MinimumRequired)
	}
	assertConserved(t, n)
}

func TestRemoveItem(t *testing.T) {
	n := layawayNote(t)
	if err := ApplyGlobalDiscount(n, 9000, testNow); err != nil {
		t.Fatalf("apply discount: %v", err)
	}
	if err := RemoveItem(n, "item-1", testNow); !errors.Is(err, domain.ErrInvalidDiscount) {
		t.Fatalf("expected discount check on removal, got %v", err)
	}
	if len(n.Items) != 2 {
		t.Fatalf("failed removal must keep items")
	}
	if err := ApplyGlobalDiscount(n, 0, testNow); err != nil {
		t.Fatalf("clear discount: %v", err)
	}
	if err := RemoveItem(n, "item-1", testNow); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := RemoveItem(n, "item-2", testNow); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if n.Status != domain.NoteStatusDraft {
		t.Fatalf("empty note should return to draft, got %s", n.Status)
	}
	if err := RemoveItem(n, "missing", testNow); !errors.Is(err, domain.ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem, got %v", err)
	}
}

func TestRemoveItemAfterPaymentFails(t *testing.T) {
	n := layawayNote(t)
	if err := RecordPayments(n, []domain.Payment{pay("p1", domain.PaymentCash, 10000)}, testNow); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if err := RemoveItem(n, "item-2", testNow); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if err := AddItem(n, mustItem(t, "item-3", domain.LineItemInput{Name: "x", Quantity: 1, UnitPrice: 1}), testNow); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState adding to partially paid note, got %v", err)
	}
}

func TestSetItemFulfillmentReflagsWithoutRegate(t *testing.T) {
	n := layawayNote(t)
	if err := SetItemFulfillment(n, "item-2", domain.FulfillmentImmediate, testNow); err != nil {
		t.Fatalf("reflag: %v", err)
	}
	if got := MinimumRequiredPayment(n); got != 15000 {
		t.Fatalf("expected minimum 150.00 after reflag, got %s", got)
	}
	if err := SetItemFulfillment(n, "item-2", domain.FulfillmentDeferred, testNow); err != nil {
		t.Fatalf("reflag back: %v", err)
	}
	if err := RecordPayments(n, []domain.Payment{pay("p1", domain.PaymentCash, 10000)}, testNow); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if err := SetItemFulfillment(n, "item-1", domain.FulfillmentDeferred, testNow); err != nil {
		t.Fatalf("reflag after payment: %v", err)
	}
	if n.Status != domain.NoteStatusPartiallyPaid || PaidToDate(n) != 10000 {
		t.Fatalf("reflag must not touch payments or status: %+v", n)
	}
}

func TestSetItemFulfillmentRejectsDeliveredItem(t *testing.T) {
	n := newTestNote(t)
	item := mustItem(t, "item-1", domain.LineItemInput{
		Name: "Brooch", Nature: domain.NatureUniquePiece, Quantity: 1, UnitPrice: 4000, Delivered: true,
	})
	if err := AddItem(n, item, testNow); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := SetItemFulfillment(n, "item-1", domain.FulfillmentDeferred, testNow); !errors.Is(err, domain.ErrInvalidFulfillmentState) {
		t.Fatalf("expected ErrInvalidFulfillmentState, got %v", err)
	}
}

func TestFulfillPartiallyPaidReleasesImmediateItems(t *testing.T) {
	n := layawayNote(t)
	if err := RecordPayments(n, []domain.Payment{pay("p1", domain.PaymentCash, 10000)}, testNow); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if err := Fulfill(n, testNow); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if n.Status != domain.NoteStatusPartiallyPaid {
		t.Fatalf("expected note to stay partially paid, got %s", n.Status)
	}
	if !n.Items[0].Delivered || n.Items[1].Delivered {
		t.Fatalf("only the immediate item should be delivered: %+v", n.Items)
	}

	if err := RecordPayments(n, []domain.Payment{pay("p2", domain.PaymentCard, 5000)}, testNow); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if err := Fulfill(n, testNow); err != nil {
		t.Fatalf("fulfill settled: %v", err)
	}
	if n.Status != domain.NoteStatusFulfilled || !n.Items[1].Delivered {
		t.Fatalf("expected fulfilled with all items delivered: %+v", n)
	}
}

func TestFulfillRequiresPayment(t *testing.T) {
	n := layawayNote(t)
	if err := Fulfill(n, testNow); !errors.Is(err, domain.ErrInvalidFulfillmentState) {
		t.Fatalf("expected ErrInvalidFulfillmentState, got %v", err)
	}
}

func TestZeroTotalNoteSettlesWithoutPayment(t *testing.T) {
	n := newTestNote(t)
	if err := AddItem(n, mustItem(t, "item-1", domain.LineItemInput{Name: "Gift bag", Quantity: 1, UnitPrice: 0}), testNow); err != nil {
		t.Fatalf("add: %v", err)
	}
	if n.Status != domain.NoteStatusSettled {
		t.Fatalf("free note should be settled, got %s", n.Status)
	}
	assertConserved(t, n)
	if err := RecordPayments(n, []domain.Payment{pay("p1", domain.PaymentCash, 100)}, testNow); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected payment on a free note to fail, got %v", err)
	}

	// Still editable while nothing has been paid.
	if err := AddItem(n, mustItem(t, "item-2", domain.LineItemInput{Name: "Ribbon", Quantity: 1, UnitPrice: 500}), testNow); err != nil {
		t.Fatalf("add priced item: %v", err)
	}
	if n.Status != domain.NoteStatusPendingPayment {
		t.Fatalf("expected pending payment, got %s", n.Status)
	}
	if err := ApplyGlobalDiscount(n, 500, testNow); err != nil {
		t.Fatalf("discount: %v", err)
	}
	if n.Status != domain.NoteStatusSettled {
		t.Fatalf("fully discounted note should be settled, got %s", n.Status)
	}
	assertConserved(t, n)
	if err := ApplyGlobalDiscount(n, 0, testNow); err != nil {
		t.Fatalf("clear discount: %v", err)
	}
	if n.Status != domain.NoteStatusPendingPayment {
		t.Fatalf("expected pending payment after clearing discount, got %s", n.Status)
	}
	if err := RemoveItem(n, "item-2", testNow); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if n.Status != domain.NoteStatusSettled {
		t.Fatalf("expected settled after removing the priced item, got %s", n.Status)
	}

	if err := Fulfill(n, testNow); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if n.Status != domain.NoteStatusFulfilled {
		t.Fatalf("expected fulfilled, got %s", n.Status)
	}
}

func TestTerminalImmutability(t *testing.T) {
	fulfilled := layawayNote(t)
	if err := RecordPayments(fulfilled, []domain.Payment{pay("p1", domain.PaymentCash, 15000)}, testNow); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if err := Fulfill(fulfilled, testNow); err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	cancelled := layawayNote(t)
	if err := Cancel(cancelled, "customer changed mind", testNow); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	extra := mustItem(t, "item-9", domain.LineItemInput{Name: "x", Quantity: 1, UnitPrice: 100})
	for _, n := range []*domain.Note{fulfilled, cancelled} {
		if err := AddItem(n, extra, testNow); !errors.Is(err, domain.ErrLedgerImmutable) {
			t.Fatalf("%s: expected ErrLedgerImmutable on addItem, got %v", n.Status, err)
		}
		if err := RecordPayments(n, []domain.Payment{pay("px", domain.PaymentCash, 1)}, testNow); !errors.Is(err, domain.ErrLedgerImmutable) {
			t.Fatalf("%s: expected ErrLedgerImmutable on payment, got %v", n.Status, err)
		}
		if err := Cancel(n, "again", testNow); !errors.Is(err, domain.ErrLedgerImmutable) {
			t.Fatalf("%s: expected ErrLedgerImmutable on cancel, got %v", n.Status, err)
		}
		if err := Fulfill(n, testNow); !errors.Is(err, domain.ErrLedgerImmutable) {
			t.Fatalf("%s: expected ErrLedgerImmutable on fulfill, got %v", n.Status, err)
		}
	}
}

func TestCancelKeepsPaymentHistory(t *testing.T) {
	n := layawayNote(t)
	if err := RecordPayments(n, []domain.Payment{pay("p1", domain.PaymentCash, 10000)}, testNow); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if err := Cancel(n, " ", testNow); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected blank reason to fail, got %v", err)
	}
	if err := Cancel(n, "wrong size", testNow); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(n.Payments) != 1 || n.CancelReason != "wrong size" || n.CancelledAt == nil {
		t.Fatalf("cancel must keep history: %+v", n)
	}
	assertConserved(t, n)
}

func TestTotalsAreIdempotent(t *testing.T) {
	n := layawayNote(t)
	if err := ApplyGlobalDiscount(n, 1234, testNow); err != nil {
		t.Fatalf("discount: %v", err)
	}
	if err := RecordPayments(n, []domain.Payment{pay("p1", domain.PaymentCash, 9000)}, testNow); err != nil {
		t.Fatalf("pay: %v", err)
	}
	first, err := Totals(n)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	second, err := Totals(n)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if first != second {
		t.Fatalf("totals differ between calls: %+v vs %+v", first, second)
	}
}

func TestConservationAcrossManyInstallments(t *testing.T) {
	n := layawayNote(t)
	if err := RecordPayments(n, []domain.Payment{pay("p0", domain.PaymentCash, 10000)}, testNow); err != nil {
		t.Fatalf("pay: %v", err)
	}
	for i := 1; i <= 49; i++ {
		if err := RecordPayments(n, []domain.Payment{pay("p"+strconv.Itoa(i), domain.PaymentDeposit, 100)}, testNow); err != nil {
			t.Fatalf("installment %d: %v", i, err)
		}
		assertConserved(t, n)
	}
	if err := RecordPayments(n, []domain.Payment{pay("p50", domain.PaymentCredit, 100)}, testNow); err != nil {
		t.Fatalf("final installment: %v", err)
	}
	if n.Status != domain.NoteStatusSettled {
		t.Fatalf("expected settled, got %s", n.Status)
	}
	assertConserved(t, n)
}

func TestTotalsReportDefectInsteadOfClamping(t *testing.T) {
	n := layawayNote(t)
	n.GlobalDiscount = 20000
	if _, err := Totals(n); !errors.Is(err, domain.ErrLedgerDefect) {
		t.Fatalf("expected ErrLedgerDefect, got %v", err)
	}
}
