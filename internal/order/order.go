package order

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no order matches the lookup key.
var ErrNotFound = errors.New("order not found")

// State is the order lifecycle state.
type State string

// Order lifecycle states.
const (
	StateNew            State = "new"
	StatePendingPayment State = "pending_payment"
	StateProcessing     State = "processing"
	StateCanceled       State = "canceled"
)

// Additional payment-info keys attached to an order.
const (
	InfoPaymentURL = "payment_url"
	InfoFlipTrxID  = "flip_trx_id"
)

// Order is the host platform's order as seen by the payment integration. The
// integration only reads identity, totals and customer contact data, and
// mutates state, status history and the payment-info key/value bag.
type Order struct {
	ID            uuid.UUID
	Reference     string
	State         State
	Status        string
	GrandTotal    float64
	Currency      string
	CustomerName  string
	CustomerEmail string

	// ExternalOrderID stores "{businessId}-{linkId}" once a bill exists.
	ExternalOrderID string
	// BillLinkID mirrors the link id for indexed reverse lookup.
	BillLinkID string

	AdditionalInfo map[string]string

	Invoiced bool
	ItemQty  int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanInvoice reports whether an invoice may be created for this order.
func (o *Order) CanInvoice() bool {
	if o == nil || o.ID == uuid.Nil {
		return false
	}
	return o.State == StateProcessing && !o.Invoiced && o.ItemQty > 0
}

// SetAdditionalInfo stores a payment-info key/value pair on the order.
func (o *Order) SetAdditionalInfo(key, value string) {
	if o.AdditionalInfo == nil {
		o.AdditionalInfo = map[string]string{}
	}
	o.AdditionalInfo[key] = value
}

// AdditionalInfoValue returns the stored value for key, or "".
func (o *Order) AdditionalInfoValue(key string) string {
	if o.AdditionalInfo == nil {
		return ""
	}
	return o.AdditionalInfo[key]
}

// SetStateAndStatus transitions the order and records the matching status
// label. Status defaults to the state name when left empty.
func (o *Order) SetStateAndStatus(state State, status string) {
	o.State = state
	if status == "" {
		status = string(state)
	}
	o.Status = status
}

// HistoryEntry is one row of the order's status-history log.
type HistoryEntry struct {
	ID        int64
	OrderID   uuid.UUID
	Title     string
	Comment   string
	State     State
	CreatedAt time.Time
}
