// Package ledger holds the sale/layaway note state machine. Every function
// here is pure over a *domain.Note: it validates first and mutates only on
// success, so a failed call leaves the note untouched. Derived amounts are
// always recomputed from items and payments, never cached.
package ledger

import (
	"fmt"
	"math"
	"strings"
	"time"

	"apartado/backend/internal/domain"
	"apartado/backend/internal/fulfillment"
	"apartado/backend/internal/money"
)

// New allocates an empty note in draft.
func New(id, folio, branchID, clientID, createdBy string, now time.Time) (*domain.Note, error) {
	branchID = strings.TrimSpace(branchID)
	clientID = strings.TrimSpace(clientID)
	createdBy = strings.TrimSpace(createdBy)
	if branchID == "" || clientID == "" || createdBy == "" {
		return nil, fmt.Errorf("%w: branch, client and creator are required", domain.ErrInvalidRequest)
	}
	return &domain.Note{
		ID:        id,
		Folio:     folio,
		BranchID:  branchID,
		ClientID:  clientID,
		CreatedBy: createdBy,
		Items:     []domain.LineItem{},
		Payments:  []domain.Payment{},
		Status:    domain.NoteStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewItem validates cashier input and resolves its fulfillment.
func NewItem(id string, in domain.LineItemInput) (domain.LineItem, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.LineItem{}, fmt.Errorf("%w: name is required", domain.ErrInvalidItem)
	}
	kind := in.Kind
	if kind == "" {
		kind = domain.ItemKindProduct
	}
	if !kind.Valid() {
		return domain.LineItem{}, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidItem, in.Kind)
	}
	nature := in.Nature
	if nature == "" {
		nature = defaultNature(kind)
	}
	if !nature.Valid() {
		return domain.LineItem{}, fmt.Errorf("%w: unknown nature %q", domain.ErrInvalidItem, in.Nature)
	}
	if in.Quantity <= 0 {
		return domain.LineItem{}, fmt.Errorf("%w: quantity must be greater than zero", domain.ErrInvalidItem)
	}
	if in.UnitPrice.IsNegative() {
		return domain.LineItem{}, fmt.Errorf("%w: unit price cannot be negative", domain.ErrInvalidItem)
	}
	if in.UnitPrice > 0 && in.Quantity > math.MaxInt64/int64(in.UnitPrice) {
		return domain.LineItem{}, fmt.Errorf("%w: line amount out of range", domain.ErrInvalidItem)
	}
	gross := in.UnitPrice.Times(in.Quantity)
	if in.Discount.IsNegative() || in.Discount > gross {
		return domain.LineItem{}, fmt.Errorf("%w: discount must be between 0 and %s", domain.ErrInvalidItem, gross)
	}

	f, err := fulfillment.Resolve(nature, in.Fulfillment)
	if err != nil {
		return domain.LineItem{}, err
	}
	item := domain.LineItem{
		ID:          id,
		Kind:        kind,
		Nature:      nature,
		ItemRef:     strings.TrimSpace(in.ItemRef),
		Name:        name,
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		Discount:    in.Discount,
		Fulfillment: f,
		Delivered:   in.Delivered,
	}
	if err := fulfillment.Validate(item); err != nil {
		return domain.LineItem{}, err
	}
	return item, nil
}

func defaultNature(kind domain.ItemKind) domain.ItemNature {
	switch kind {
	case domain.ItemKindService:
		return domain.NatureService
	case domain.ItemKindCustom:
		return domain.NatureMadeToOrder
	default:
		return domain.NatureBulkStock
	}
}

// AddItem appends a validated item. A draft note becomes pending payment, or
// settled when nothing is owed.
func AddItem(n *domain.Note, item domain.LineItem, now time.Time) error {
	if err := requireEditable(n); err != nil {
		return err
	}
	if item.Quantity <= 0 || item.UnitPrice.IsNegative() || item.Subtotal().IsNegative() {
		return fmt.Errorf("%w: item %q failed validation", domain.ErrInvalidItem, item.Name)
	}
	if err := fulfillment.Validate(item); err != nil {
		return err
	}
	n.Items = append(n.Items, item)
	refreshStatus(n)
	n.UpdatedAt = now
	return nil
}

// RemoveItem drops an item before any payment has been taken. The global
// discount must still fit the reduced subtotal.
func RemoveItem(n *domain.Note, itemID string, now time.Time) error {
	if err := requireEditable(n); err != nil {
		return err
	}
	if len(n.Payments) > 0 {
		return fmt.Errorf("%w: items cannot be removed after a payment", domain.ErrInvalidState)
	}
	idx := findItem(n, itemID)
	if idx < 0 {
		return fmt.Errorf("%w: item %s not on note", domain.ErrInvalidItem, itemID)
	}

	remaining := make([]domain.LineItem, 0, len(n.Items)-1)
	remaining = append(remaining, n.Items[:idx]...)
	remaining = append(remaining, n.Items[idx+1:]...)
	if n.GlobalDiscount > subtotalOf(remaining) {
		return fmt.Errorf("%w: global discount %s exceeds remaining subtotal", domain.ErrInvalidDiscount, n.GlobalDiscount)
	}

	n.Items = remaining
	refreshStatus(n)
	n.UpdatedAt = now
	return nil
}

// SetItemFulfillment re-flags an undelivered item. It does not re-check the
// checkout minimum against payments already taken.
func SetItemFulfillment(n *domain.Note, itemID string, f domain.Fulfillment, now time.Time) error {
	if n.Status.Terminal() {
		return immutable(n)
	}
	switch n.Status {
	case domain.NoteStatusDraft, domain.NoteStatusPendingPayment, domain.NoteStatusPartiallyPaid:
	default:
		return fmt.Errorf("%w: cannot change fulfillment while %s", domain.ErrInvalidState, n.Status)
	}
	idx := findItem(n, itemID)
	if idx < 0 {
		return fmt.Errorf("%w: item %s not on note", domain.ErrInvalidItem, itemID)
	}
	item := n.Items[idx]
	if item.Delivered {
		return fmt.Errorf("%w: item %q already delivered", domain.ErrInvalidFulfillmentState, item.Name)
	}
	item.Fulfillment = f
	if err := fulfillment.Validate(item); err != nil {
		return err
	}
	n.Items[idx] = item
	n.UpdatedAt = now
	return nil
}

// ApplyGlobalDiscount replaces the note-level discount.
func ApplyGlobalDiscount(n *domain.Note, amount money.Money, now time.Time) error {
	if err := requireEditable(n); err != nil {
		return err
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: discount cannot be negative", domain.ErrInvalidDiscount)
	}
	if sub := subtotalOf(n.Items); amount > sub {
		return fmt.Errorf("%w: discount %s exceeds subtotal %s", domain.ErrInvalidDiscount, amount, sub)
	}
	n.GlobalDiscount = amount
	refreshStatus(n)
	n.UpdatedAt = now
	return nil
}

// refreshStatus derives the status of a note that has taken no payment yet.
func refreshStatus(n *domain.Note) {
	switch {
	case len(n.Items) == 0:
		n.Status = domain.NoteStatusDraft
	case subtotalOf(n.Items).Sub(n.GlobalDiscount).IsZero():
		n.Status = domain.NoteStatusSettled
	default:
		n.Status = domain.NoteStatusPendingPayment
	}
}

// requireEditable admits notes that have not taken a payment. A note settled
// only because its total is zero stays editable.
func requireEditable(n *domain.Note) error {
	if n.Status.Terminal() {
		return immutable(n)
	}
	if n.Status == domain.NoteStatusSettled && len(n.Payments) == 0 {
		return nil
	}
	if n.Status != domain.NoteStatusDraft && n.Status != domain.NoteStatusPendingPayment {
		return fmt.Errorf("%w: note is %s", domain.ErrInvalidState, n.Status)
	}
	return nil
}

func immutable(n *domain.Note) error {
	return fmt.Errorf("%w: note %s is %s", domain.ErrLedgerImmutable, n.Folio, n.Status)
}

func findItem(n *domain.Note, itemID string) int {
	for i, item := range n.Items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}
