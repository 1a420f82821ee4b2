package domain

import (
	"time"

	"apartado/backend/internal/money"
)

type NoteStatus string

const (
	NoteStatusDraft          NoteStatus = "draft"
	NoteStatusPendingPayment NoteStatus = "pending_payment"
	NoteStatusPartiallyPaid  NoteStatus = "partially_paid"
	NoteStatusSettled        NoteStatus = "settled"
	NoteStatusFulfilled      NoteStatus = "fulfilled"
	NoteStatusCancelled      NoteStatus = "cancelled"
)

func (s NoteStatus) Valid() bool {
	switch s {
	case NoteStatusDraft, NoteStatusPendingPayment, NoteStatusPartiallyPaid,
		NoteStatusSettled, NoteStatusFulfilled, NoteStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the ledger no longer accepts mutations.
func (s NoteStatus) Terminal() bool {
	return s == NoteStatusFulfilled || s == NoteStatusCancelled
}

type ItemKind string

const (
	ItemKindProduct ItemKind = "product"
	ItemKindService ItemKind = "service"
	ItemKindCustom  ItemKind = "custom"
)

func (k ItemKind) Valid() bool {
	return k == ItemKindProduct || k == ItemKindService || k == ItemKindCustom
}

// ItemNature is the physical nature of what is sold; it drives the default
// fulfillment of an item.
type ItemNature string

const (
	NatureUniquePiece ItemNature = "unique_piece"
	NatureBulkStock   ItemNature = "bulk_stock"
	NatureMadeToOrder ItemNature = "made_to_order"
	NatureService     ItemNature = "service"
)

func (n ItemNature) Valid() bool {
	switch n {
	case NatureUniquePiece, NatureBulkStock, NatureMadeToOrder, NatureService:
		return true
	}
	return false
}

type Fulfillment string

const (
	FulfillmentImmediate Fulfillment = "immediate"
	FulfillmentDeferred  Fulfillment = "deferred"
)

func (f Fulfillment) Valid() bool {
	return f == FulfillmentImmediate || f == FulfillmentDeferred
}

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentDeposit  PaymentMethod = "deposit"
	PaymentCredit   PaymentMethod = "credit"
	PaymentOther    PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentDeposit, PaymentCredit, PaymentOther:
		return true
	}
	return false
}

type MovementType string

const (
	MovementIn  MovementType = "in"
	MovementOut MovementType = "out"
)

type ShiftStatus string

const (
	ShiftStatusOpen   ShiftStatus = "open"
	ShiftStatusClosed ShiftStatus = "closed"
)

const (
	DifferenceNormal   = "normal"
	DifferenceWarning  = "warning"
	DifferenceCritical = "critical"
)

type LineItem struct {
	ID          string      `json:"id"`
	Kind        ItemKind    `json:"kind"`
	Nature      ItemNature  `json:"nature"`
	ItemRef     string      `json:"item_ref,omitempty"`
	Name        string      `json:"name"`
	Quantity    int64       `json:"quantity"`
	UnitPrice   money.Money `json:"unit_price_cents"`
	Discount    money.Money `json:"discount_cents"`
	Fulfillment Fulfillment `json:"fulfillment"`
	Delivered   bool        `json:"delivered"`
	DeliveredAt *time.Time  `json:"delivered_at,omitempty"`
}

// Subtotal is quantity*unitPrice - discount. It is never clamped here.
func (i LineItem) Subtotal() money.Money {
	return i.UnitPrice.Times(i.Quantity).Sub(i.Discount)
}

type Payment struct {
	ID         string        `json:"id"`
	Amount     money.Money   `json:"amount_cents"`
	Method     PaymentMethod `json:"method"`
	Reference  string        `json:"reference,omitempty"`
	ShiftID    string        `json:"shift_id,omitempty"`
	RecordedBy string        `json:"recorded_by,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Note is the sale/layaway ledger. Payments is append-only and is the only
// source of paid-to-date.
type Note struct {
	ID             string      `json:"id"`
	Folio          string      `json:"folio"`
	BranchID       string      `json:"branch_id"`
	ClientID       string      `json:"client_id"`
	ShiftID        string      `json:"shift_id,omitempty"`
	CreatedBy      string      `json:"created_by"`
	Items          []LineItem  `json:"items"`
	GlobalDiscount money.Money `json:"global_discount_cents"`
	Payments       []Payment   `json:"payments"`
	Status         NoteStatus  `json:"status"`
	CancelReason   string      `json:"cancel_reason,omitempty"`
	CancelledAt    *time.Time  `json:"cancelled_at,omitempty"`
	FulfilledAt    *time.Time  `json:"fulfilled_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	Version        int64       `json:"version"`
}

type NoteTotals struct {
	Subtotal        money.Money `json:"subtotal_cents"`
	GlobalDiscount  money.Money `json:"global_discount_cents"`
	Total           money.Money `json:"total_cents"`
	PaidToDate      money.Money `json:"paid_to_date_cents"`
	BalanceDue      money.Money `json:"balance_due_cents"`
	MinimumRequired money.Money `json:"minimum_required_cents"`
}

type NoteView struct {
	Note   Note       `json:"note"`
	Totals NoteTotals `json:"totals"`
}

type NoteFilter struct {
	BranchID string
	Status   NoteStatus
	Term     string
	Limit    int
}

type CashMovement struct {
	ID          string        `json:"id"`
	Type        MovementType  `json:"type"`
	Amount      money.Money   `json:"amount_cents"`
	Method      PaymentMethod `json:"method"`
	Subtype     string        `json:"subtype,omitempty"`
	Description string        `json:"description"`
	CreatedBy   string        `json:"created_by"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Shift is a branch cash-drawer session. At most one open shift per branch
// is enforced by the registry and the store, not by this struct.
type Shift struct {
	ID             string         `json:"id"`
	BranchID       string         `json:"branch_id"`
	Status         ShiftStatus    `json:"status"`
	OpenedAt       time.Time      `json:"opened_at"`
	OpenedBy       string         `json:"opened_by"`
	InitialCash    money.Money    `json:"initial_cash_cents"`
	ClosedAt       *time.Time     `json:"closed_at,omitempty"`
	ClosedBy       string         `json:"closed_by,omitempty"`
	DeclaredCash   *money.Money   `json:"declared_cash_cents,omitempty"`
	ExpectedCash   *money.Money   `json:"expected_cash_cents,omitempty"`
	Difference     *money.Money   `json:"difference_cents,omitempty"`
	DifferencePct  string         `json:"difference_pct,omitempty"`
	Classification string         `json:"classification,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	Movements      []CashMovement `json:"movements"`
	Version        int64          `json:"version"`
}

// ShiftPayment is a ledger payment attributed to a shift.
type ShiftPayment struct {
	NoteID  string  `json:"note_id"`
	Folio   string  `json:"folio"`
	Payment Payment `json:"payment"`
}

type SalesByMethod struct {
	Cash     money.Money `json:"cash_cents"`
	Card     money.Money `json:"card_cents"`
	Transfer money.Money `json:"transfer_cents"`
	Other    money.Money `json:"other_cents"`
	Total    money.Money `json:"total_cents"`
}

type MovementTotals struct {
	In         money.Money `json:"in_cents"`
	InDigital  money.Money `json:"in_digital_cents"`
	Out        money.Money `json:"out_cents"`
	OutDigital money.Money `json:"out_digital_cents"`
}

type ShiftTotals struct {
	InitialCash  money.Money    `json:"initial_cash_cents"`
	Sales        SalesByMethod  `json:"sales"`
	Movements    MovementTotals `json:"movements"`
	ExpectedCash money.Money    `json:"expected_cash_cents"`
	PaymentCount int            `json:"payment_count"`
}

type ShiftReport struct {
	Shift    Shift          `json:"shift"`
	Totals   ShiftTotals    `json:"totals"`
	Payments []ShiftPayment `json:"payments"`
}

type ShiftHistory struct {
	Shifts []Shift `json:"shifts"`
	Total  int     `json:"total"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
}

type Actor struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	BranchID   string    `json:"branch_id"`
	ActorID    string    `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

const EventLedgerCancelled = "ledger_cancelled"

// LedgerCancelledEvent is consumed by the inventory collaborator to restore
// stock. Items lists only what never left the store; goods handed over by a
// partial fulfillment travel in DeliveredItems and are not restocked.
type LedgerCancelledEvent struct {
	EventType      string     `json:"event_type"`
	NoteID         string     `json:"note_id"`
	Folio          string     `json:"folio"`
	BranchID       string     `json:"branch_id"`
	Reason         string     `json:"reason"`
	Items          []LineItem `json:"items"`
	DeliveredItems []LineItem `json:"delivered_items"`
	CancelledBy    string     `json:"cancelled_by"`
	Timestamp      time.Time  `json:"timestamp"`
}
