package domain

import "time"

// ============================================================
// Purchase orders (empenhos)
// ============================================================

// Purchase order lifecycle states, following the Brazilian public
// spending stages.
const (
	OrderStatusIssued     = "emitido"
	OrderStatusLiquidated = "liquidado"
	OrderStatusPaid       = "pago"
	OrderStatusCancelled  = "cancelado"
)

// ValidOrderStatus reports whether s is a known lifecycle state.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusIssued, OrderStatusLiquidated, OrderStatusPaid, OrderStatusCancelled:
		return true
	}
	return false
}

// PurchaseOrder tracks one committed expense of a program. Orders are
// registry entries only; they never enter balance computations. The
// paperwork lands in the ledger as a plain debit when the school types
// the month's movements.
type PurchaseOrder struct {
	ID          string       `json:"id"`
	Account     string       `json:"account"`
	Program     string       `json:"program"`
	Number      string       `json:"number"`
	Supplier    string       `json:"supplier"`
	Description string       `json:"description,omitempty"`
	Amount      float64      `json:"amount"`
	Resource    ResourceKind `json:"resource_kind"`
	Status      string       `json:"status"`
	IssueDate   string       `json:"issue_date"`
	HasReceipt  bool         `json:"has_receipt"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// PurchaseOrderUpdate carries the mutable fields of an order; nil
// fields are left untouched.
type PurchaseOrderUpdate struct {
	Supplier    *string  `json:"supplier,omitempty"`
	Description *string  `json:"description,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
	Status      *string  `json:"status,omitempty"`
	IssueDate   *string  `json:"issue_date,omitempty"`
}

// Attachment is a small receipt file bound to a purchase order.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"data"`
}
