package flip

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Transaction statuses reported by Flip in callbacks and the payment-status
// endpoint.
const (
	StatusSuccessful = "SUCCESSFUL"
	StatusCancelled  = "CANCELLED"
	StatusFailed     = "FAILED"
	StatusPending    = "PENDING"
)

// BillTypeSingle creates a one-off payment link.
const BillTypeSingle = "SINGLE"

// BillPayload is the request body for creating a payment link. Amount is the
// order grand total rounded to whole currency units and serialised as a
// string; the API rejects fractional values.
type BillPayload struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Step        int    `json:"step"`
	RedirectURL string `json:"redirect_url"`
	SenderName  string `json:"sender_name"`
	SenderEmail string `json:"sender_email"`
}

// BillResult is the provider response for a created bill. Status doubles as a
// numeric code on rejection and the string "ACTIVE" on success, so it is
// decoded leniently.
type BillResult struct {
	LinkID  int64      `json:"link_id"`
	LinkURL string     `json:"link_url"`
	Title   string     `json:"title"`
	Status  FlexString `json:"status"`
	Message string     `json:"message"`
}

// CallbackPayload is the JSON document carried in the webhook's data form
// field. It is untrusted input; required fields are checked before any use.
type CallbackPayload struct {
	ID             FlexString `json:"id" validate:"required"`
	Amount         FlexInt64  `json:"amount" validate:"required"`
	Status         string     `json:"status" validate:"required"`
	BillLinkID     FlexString `json:"bill_link_id" validate:"required"`
	BillLink       string     `json:"bill_link"`
	SenderBank     string     `json:"sender_bank"`
	SenderBankType string     `json:"sender_bank_type"`
	SenderName     string     `json:"sender_name"`
	CreatedAt      string     `json:"created_at"`
}

// PaymentRecord is a single payment attempt in the bill-status response.
type PaymentRecord struct {
	ID             FlexString `json:"id"`
	Amount         FlexInt64  `json:"amount"`
	Status         string     `json:"status"`
	SenderBank     string     `json:"sender_bank"`
	SenderBankType string     `json:"sender_bank_type"`
	CreatedAt      string     `json:"created_at"`
}

// BillStatus is the authoritative payment-status response for a link id. The
// first record is treated as canonical.
type BillStatus struct {
	TotalData int             `json:"total_data"`
	Data      []PaymentRecord `json:"data"`
}

// FlexString decodes a JSON string or number into its string form. Flip emits
// ids as numbers in some payloads and strings in others.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(trimmed)
	return nil
}

// String returns the string form.
func (f FlexString) String() string { return string(f) }

// FlexInt64 decodes a JSON number or numeric string into an int64, rounding
// fractional values to the nearest whole unit.
type FlexInt64 int64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt64) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "null" {
		*f = 0
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		trimmed = strings.TrimSpace(s)
	}
	if trimmed == "" {
		*f = 0
		return nil
	}
	if parsed, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		*f = FlexInt64(parsed)
		return nil
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return err
	}
	*f = FlexInt64(math.Round(parsed))
	return nil
}

// Int64 returns the numeric value.
func (f FlexInt64) Int64() int64 { return int64(f) }
