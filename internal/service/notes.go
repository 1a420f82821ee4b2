package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"apartado/backend/internal/domain"
	"apartado/backend/internal/ledger"
	"apartado/backend/internal/money"
	"apartado/backend/internal/store"
	"apartado/backend/internal/xid"
)

// CreateNote allocates an empty draft with the branch's next folio.
func (s *Service) CreateNote(ctx context.Context, branchID string, clientID string) (domain.NoteView, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.NoteView{}, err
	}
	note, err := s.newNote(actor, branchID, clientID)
	if err != nil {
		return domain.NoteView{}, err
	}
	saved, err := s.persistNote(ctx, note)
	if err != nil {
		return domain.NoteView{}, err
	}
	s.logAudit(ctx, saved.BranchID, "note_create", "note", saved.ID, saved.Folio)
	return ledger.View(saved)
}

// Checkout builds a note from the cart and applies the first payment batch
// against the branch's open shift. The whole cart is validated before the
// note is stored, so a failed gate leaves nothing behind. The shift is
// resolved again if it closes before the note is written.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	if len(req.Items) == 0 {
		return domain.CheckoutResponse{}, fmt.Errorf("%w: checkout requires at least one item", domain.ErrInvalidRequest)
	}

	cart, err := s.newNote(actor, req.BranchID, req.ClientID)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	now := s.clock.Now()
	for _, in := range req.Items {
		item, err := ledger.NewItem(xid.New("item"), in)
		if err != nil {
			return domain.CheckoutResponse{}, err
		}
		if err := ledger.AddItem(cart, item, now); err != nil {
			return domain.CheckoutResponse{}, err
		}
	}
	if !req.GlobalDiscount.IsZero() {
		if err := ledger.ApplyGlobalDiscount(cart, req.GlobalDiscount, now); err != nil {
			return domain.CheckoutResponse{}, err
		}
	}

	var (
		saved  *domain.Note
		change money.Money
	)
	err = s.withRetry(ctx, "note", func() error {
		shift, err := s.openShiftFor(ctx, cart.BranchID)
		if err != nil {
			return err
		}
		note := *cart
		note.Items = slices.Clone(cart.Items)
		note.Payments = slices.Clone(cart.Payments)
		note.ShiftID = shift.ID
		change = 0
		if len(req.Payments) > 0 {
			batch, batchChange, err := s.buildPayments(req.Payments, shift.ID, actor.UserID)
			if err != nil {
				return err
			}
			if err := ledger.RecordPayments(&note, batch, now); err != nil {
				return err
			}
			change = batchChange
		}
		if _, err := ledger.Totals(&note); err != nil {
			return err
		}
		saved, err = s.persistNote(ctx, &note)
		cart.Folio = note.Folio
		return err
	})
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	for _, p := range saved.Payments {
		s.metrics.Payment(string(p.Method), p.Amount)
	}
	s.metrics.Transition(string(domain.NoteStatusDraft), string(saved.Status))

	view, err := ledger.View(saved)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	s.logAudit(ctx, saved.BranchID, "checkout", "note", saved.ID,
		fmt.Sprintf("folio=%s total=%s paid=%s status=%s", saved.Folio, view.Totals.Total, view.Totals.PaidToDate, saved.Status))
	return domain.CheckoutResponse{NoteView: view, Change: change}, nil
}

func (s *Service) GetNote(ctx context.Context, noteID string) (domain.NoteView, error) {
	note, err := s.getNote(ctx, noteID)
	if err != nil {
		return domain.NoteView{}, err
	}
	return ledger.View(note)
}

func (s *Service) ListNotes(ctx context.Context, filter domain.NoteFilter) ([]domain.NoteView, error) {
	filter.BranchID = strings.TrimSpace(filter.BranchID)
	filter.Term = strings.TrimSpace(filter.Term)
	if filter.BranchID == "" {
		return nil, fmt.Errorf("%w: branch_id is required", domain.ErrInvalidRequest)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, filter.Status)
	}
	if filter.Limit < 1 || filter.Limit > 200 {
		filter.Limit = 50
	}

	notes, err := s.repo.ListNotes(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]domain.NoteView, 0, len(notes))
	for i := range notes {
		view, err := ledger.View(&notes[i])
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// AddPayment takes a layaway installment. Payments land on whichever shift
// is open for the note's branch when the write commits.
func (s *Service) AddPayment(ctx context.Context, noteID string, req domain.PaymentRequest) (domain.CheckoutResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	if len(req.Payments) == 0 {
		return domain.CheckoutResponse{}, fmt.Errorf("%w: at least one payment is required", domain.ErrInvalidPayment)
	}

	var (
		batch  []domain.Payment
		change money.Money
	)
	view, err := s.mutateNote(ctx, noteID, "payment", func(n *domain.Note) error {
		shift, err := s.openShiftFor(ctx, n.BranchID)
		if err != nil {
			return err
		}
		batch, change, err = s.buildPayments(req.Payments, shift.ID, actor.UserID)
		if err != nil {
			return err
		}
		return ledger.RecordPayments(n, batch, s.clock.Now())
	})
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	for _, p := range batch {
		s.metrics.Payment(string(p.Method), p.Amount)
	}
	return domain.CheckoutResponse{NoteView: view, Change: change}, nil
}

func (s *Service) AddItem(ctx context.Context, noteID string, req domain.AddItemRequest) (domain.NoteView, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.NoteView{}, err
	}
	item, err := ledger.NewItem(xid.New("item"), req.Item)
	if err != nil {
		return domain.NoteView{}, err
	}
	return s.mutateNote(ctx, noteID, "item_add", func(n *domain.Note) error {
		return ledger.AddItem(n, item, s.clock.Now())
	})
}

func (s *Service) RemoveItem(ctx context.Context, noteID string, itemID string) (domain.NoteView, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.NoteView{}, err
	}
	return s.mutateNote(ctx, noteID, "item_remove", func(n *domain.Note) error {
		return ledger.RemoveItem(n, itemID, s.clock.Now())
	})
}

func (s *Service) SetItemFulfillment(ctx context.Context, noteID string, itemID string, req domain.SetFulfillmentRequest) (domain.NoteView, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.NoteView{}, err
	}
	if !req.Fulfillment.Valid() {
		return domain.NoteView{}, fmt.Errorf("%w: unknown fulfillment %q", domain.ErrInvalidFulfillmentState, req.Fulfillment)
	}
	return s.mutateNote(ctx, noteID, "item_fulfillment", func(n *domain.Note) error {
		return ledger.SetItemFulfillment(n, itemID, req.Fulfillment, s.clock.Now())
	})
}

func (s *Service) ApplyDiscount(ctx context.Context, noteID string, req domain.DiscountRequest) (domain.NoteView, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.NoteView{}, err
	}
	return s.mutateNote(ctx, noteID, "discount", func(n *domain.Note) error {
		return ledger.ApplyGlobalDiscount(n, req.GlobalDiscount, s.clock.Now())
	})
}

func (s *Service) Fulfill(ctx context.Context, noteID string) (domain.NoteView, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.NoteView{}, err
	}
	return s.mutateNote(ctx, noteID, "fulfill", func(n *domain.Note) error {
		return ledger.Fulfill(n, s.clock.Now())
	})
}

// CancelLedger cancels the note and announces it so stock can be restored.
// The note is already cancelled when publishing fails; the failure is
// logged rather than returned.
func (s *Service) CancelLedger(ctx context.Context, noteID string, reason string) (domain.NoteView, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.NoteView{}, err
	}
	view, err := s.mutateNote(ctx, noteID, "cancel", func(n *domain.Note) error {
		return ledger.Cancel(n, reason, s.clock.Now())
	})
	if err != nil {
		return domain.NoteView{}, err
	}

	note := view.Note
	event := domain.LedgerCancelledEvent{
		EventType:      domain.EventLedgerCancelled,
		NoteID:         note.ID,
		Folio:          note.Folio,
		BranchID:       note.BranchID,
		Reason:         note.CancelReason,
		Items:          []domain.LineItem{},
		DeliveredItems: []domain.LineItem{},
		CancelledBy:    actor.UserID,
		Timestamp:      s.clock.Now(),
	}
	for _, item := range note.Items {
		if item.Delivered {
			event.DeliveredItems = append(event.DeliveredItems, item)
		} else {
			event.Items = append(event.Items, item)
		}
	}
	if err := s.publisher.PublishLedgerCancelled(ctx, event); err != nil {
		log.Printf("[service] WARN: failed to publish %s for note %s: %v", domain.EventLedgerCancelled, note.ID, err)
	}
	return view, nil
}

// mutateNote reloads the note, applies fn and writes it back under the
// version check, retrying from a fresh read on conflict. fn must be safe to
// run more than once.
func (s *Service) mutateNote(ctx context.Context, noteID string, action string, fn func(*domain.Note) error) (domain.NoteView, error) {
	var (
		saved *domain.Note
		from  domain.NoteStatus
	)
	err := s.withRetry(ctx, "note", func() error {
		note, err := s.getNote(ctx, noteID)
		if err != nil {
			return err
		}
		from = note.Status
		if err := fn(note); err != nil {
			return err
		}
		if _, err := ledger.Totals(note); err != nil {
			return err
		}
		saved, err = s.repo.UpdateNote(ctx, *note)
		return err
	})
	if err != nil {
		return domain.NoteView{}, err
	}

	if from != saved.Status {
		s.metrics.Transition(string(from), string(saved.Status))
	}
	view, err := ledger.View(saved)
	if err != nil {
		return domain.NoteView{}, err
	}
	s.logAudit(ctx, saved.BranchID, action, "note", saved.ID,
		fmt.Sprintf("folio=%s status=%s total=%s paid=%s", saved.Folio, saved.Status, view.Totals.Total, view.Totals.PaidToDate))
	return view, nil
}

func (s *Service) newNote(actor domain.Actor, branchID string, clientID string) (*domain.Note, error) {
	if strings.TrimSpace(branchID) == "" || strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("%w: branch_id and client_id are required", domain.ErrInvalidRequest)
	}
	return ledger.New(xid.New("note"), "", branchID, clientID, actor.UserID, s.clock.Now())
}

// persistNote takes the next folio only once the note is known to be valid,
// so rejected checkouts leave no gaps in the sequence. A note that already
// carries a folio from a failed insert keeps it.
func (s *Service) persistNote(ctx context.Context, note *domain.Note) (*domain.Note, error) {
	if note.Folio == "" {
		folio, err := s.repo.NextFolio(ctx, note.BranchID)
		if err != nil {
			return nil, err
		}
		note.Folio = folio
	}
	return s.repo.CreateNote(ctx, *note)
}

// buildPayments converts cashier input into payments bound to shiftID and
// sums the change owed across cash tenders.
func (s *Service) buildPayments(inputs []domain.PaymentInput, shiftID string, recordedBy string) ([]domain.Payment, money.Money, error) {
	if len(inputs) == 0 {
		return nil, 0, fmt.Errorf("%w: at least one payment is required", domain.ErrInvalidPayment)
	}
	now := s.clock.Now()
	batch := make([]domain.Payment, 0, len(inputs))
	var change money.Money
	for _, in := range inputs {
		p, c, err := ledger.NewPayment(xid.New("pay"), in, shiftID, recordedBy, now)
		if err != nil {
			return nil, 0, err
		}
		batch = append(batch, p)
		change = change.Add(c)
	}
	return batch, change, nil
}

func (s *Service) openShiftFor(ctx context.Context, branchID string) (*domain.Shift, error) {
	shift, err := s.CurrentShift(ctx, branchID)
	if errors.Is(err, domain.ErrShiftNotFound) {
		return nil, fmt.Errorf("%w: open a shift for branch %s before taking payments", domain.ErrNoOpenShift, strings.TrimSpace(branchID))
	}
	return shift, err
}

func (s *Service) getNote(ctx context.Context, noteID string) (*domain.Note, error) {
	note, err := s.repo.GetNote(ctx, noteID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNoteNotFound, noteID)
		}
		return nil, err
	}
	return note, nil
}
