package domain

import "apartado/backend/internal/money"

type LineItemInput struct {
	Kind        ItemKind    `json:"kind"`
	Nature      ItemNature  `json:"nature"`
	ItemRef     string      `json:"item_ref,omitempty"`
	Name        string      `json:"name"`
	Quantity    int64       `json:"quantity"`
	UnitPrice   money.Money `json:"unit_price_cents"`
	Discount    money.Money `json:"discount_cents"`
	Fulfillment Fulfillment `json:"fulfillment,omitempty"`
	Delivered   bool        `json:"delivered,omitempty"`
}

type PaymentInput struct {
	Method    PaymentMethod `json:"method"`
	Amount    money.Money   `json:"amount_cents"`
	Tendered  money.Money   `json:"tendered_cents,omitempty"`
	Reference string        `json:"reference,omitempty"`
}

type CheckoutRequest struct {
	BranchID       string          `json:"branch_id"`
	ClientID       string          `json:"client_id"`
	Items          []LineItemInput `json:"items"`
	GlobalDiscount money.Money     `json:"global_discount_cents"`
	Payments       []PaymentInput  `json:"payments"`
}

type CheckoutResponse struct {
	NoteView
	Change money.Money `json:"change_cents"`
}

type PaymentRequest struct {
	Payments []PaymentInput `json:"payments"`
}

type AddItemRequest struct {
	Item LineItemInput `json:"item"`
}

type SetFulfillmentRequest struct {
	Fulfillment Fulfillment `json:"fulfillment"`
}

type DiscountRequest struct {
	GlobalDiscount money.Money `json:"global_discount_cents"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
	PIN    string `json:"manager_pin"`
}

type ShiftOpenRequest struct {
	BranchID    string      `json:"branch_id"`
	InitialCash money.Money `json:"initial_cash_cents"`
}

type ShiftCloseRequest struct {
	BranchID     string      `json:"branch_id,omitempty"`
	DeclaredCash money.Money `json:"declared_cash_cents"`
	Notes        string      `json:"notes,omitempty"`
}

type MovementRequest struct {
	BranchID    string        `json:"branch_id"`
	Type        MovementType  `json:"type"`
	Amount      money.Money   `json:"amount_cents"`
	Method      PaymentMethod `json:"method"`
	Subtype     string        `json:"subtype,omitempty"`
	Description string        `json:"description"`
}
