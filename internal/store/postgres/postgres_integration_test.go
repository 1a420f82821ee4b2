package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"apartado/backend/internal/domain"
	"apartado/backend/internal/store"
)

func TestShiftAndNoteRoundTrip(t *testing.T) {
	databaseURL := os.Getenv("APARTADO_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set APARTADO_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	branchID := fmt.Sprintf("IT-%d", stamp)
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM note_payments WHERE note_id IN (SELECT id FROM notes WHERE branch_id = $1)`, branchID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM note_items WHERE note_id IN (SELECT id FROM notes WHERE branch_id = $1)`, branchID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM notes WHERE branch_id = $1`, branchID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cash_movements WHERE shift_id IN (SELECT id FROM shifts WHERE branch_id = $1)`, branchID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM shifts WHERE branch_id = $1`, branchID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM branch_folios WHERE branch_id = $1`, branchID)
	})

	shift, err := s.CreateShift(ctx, domain.Shift{
		ID: fmt.Sprintf("shift-it-%d", stamp), BranchID: branchID, Status: domain.ShiftStatusOpen,
		OpenedAt: now, OpenedBy: "cashier-it", InitialCash: 20000,
	})
	if err != nil {
		t.Fatalf("create shift: %v", err)
	}
	if _, err := s.CreateShift(ctx, domain.Shift{BranchID: branchID, Status: domain.ShiftStatusOpen, OpenedAt: now, OpenedBy: "cashier-it"}); !errors.Is(err, store.ErrOpenShiftExists) {
		t.Fatalf("expected ErrOpenShiftExists, got %v", err)
	}

	folio, err := s.NextFolio(ctx, branchID)
	if err != nil {
		t.Fatalf("next folio: %v", err)
	}
	note, err := s.CreateNote(ctx, domain.Note{
		ID: fmt.Sprintf("note-it-%d", stamp), Folio: folio, BranchID: branchID, ClientID: "client-it",
		ShiftID: shift.ID, CreatedBy: "cashier-it", Status: domain.NoteStatusPendingPayment,
		Items: []domain.LineItem{{
			ID: "item-1", Kind: domain.ItemKindProduct, Nature: domain.NatureBulkStock, Name: "Chain",
			Quantity: 1, UnitPrice: 15000, Fulfillment: domain.FulfillmentImmediate,
		}},
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}

	note.Payments = append(note.Payments, domain.Payment{
		ID: fmt.Sprintf("pay-it-%d", stamp), Amount: 15000, Method: domain.PaymentCash, ShiftID: shift.ID, Timestamp: now,
	})
	note.Status = domain.NoteStatusSettled
	stale := *note
	if note, err = s.UpdateNote(ctx, *note); err != nil {
		t.Fatalf("update note: %v", err)
	}
	if _, err := s.UpdateNote(ctx, stale); !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	payments, err := s.ListShiftPayments(ctx, shift.ID)
	if err != nil {
		t.Fatalf("list shift payments: %v", err)
	}
	if len(payments) != 1 || payments[0].Payment.Amount != 15000 {
		t.Fatalf("unexpected shift payments %+v", payments)
	}

	loaded, err := s.GetNote(ctx, note.ID)
	if err != nil {
		t.Fatalf("get note: %v", err)
	}
	if loaded.Status != domain.NoteStatusSettled || len(loaded.Items) != 1 || len(loaded.Payments) != 1 {
		t.Fatalf("unexpected reloaded note %+v", loaded)
	}

	if _, err := s.UpdateShift(ctx, *shift); !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("expected close read before the payment to conflict, got %v", err)
	}
	current, err := s.GetShift(ctx, shift.ID)
	if err != nil {
		t.Fatalf("get shift: %v", err)
	}
	closedAt := now.Add(time.Hour)
	current.Status = domain.ShiftStatusClosed
	current.ClosedAt = &closedAt
	if _, err := s.UpdateShift(ctx, *current); err != nil {
		t.Fatalf("close shift: %v", err)
	}
	loaded.Payments = append(loaded.Payments, domain.Payment{
		ID: fmt.Sprintf("pay-late-%d", stamp), Amount: 100, Method: domain.PaymentCash, ShiftID: shift.ID, Timestamp: closedAt,
	})
	if _, err := s.UpdateNote(ctx, *loaded); !errors.Is(err, store.ErrShiftNotOpen) {
		t.Fatalf("expected ErrShiftNotOpen, got %v", err)
	}
}
