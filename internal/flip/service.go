package flip

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// GatewayError represents a failure reported by (or while talking to) the
// Flip API. Status carries the provider's status field when one was returned.
type GatewayError struct {
	Status  string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e == nil {
		return ""
	}
	if e.Status != "" {
		return fmt.Sprintf("flip gateway: status %s: %s", e.Status, e.Message)
	}
	if e.Message != "" {
		return "flip gateway: " + e.Message
	}
	if e.Err != nil {
		return "flip gateway: " + e.Err.Error()
	}
	return "flip gateway error"
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Service is the mid-level Flip gateway API: bill creation, status retrieval
// and the trust-but-verify transaction check.
type Service struct {
	Client *Client
}

// CreateBill registers a payment link for the given payload. The call succeeds
// when the transport answered at most 200 or the body status is ACTIVE; any
// other outcome is surfaced as a GatewayError with the provider's status and
// message.
func (s *Service) CreateBill(ctx context.Context, payload BillPayload) (BillResult, error) {
	ctx, span := otel.Tracer("flip.Service").Start(ctx, "FlipService.CreateBill")
	defer span.End()
	span.SetAttributes(attribute.String("flip.bill.title", payload.Title))

	var zero BillResult
	resp, err := s.Client.Send(ctx, "POST", "v2/pwf/bill", payload)
	if err != nil {
		span.RecordError(err)
		return zero, &GatewayError{Message: "request to create bill failed", Err: err}
	}

	var result BillResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return zero, &GatewayError{Message: "malformed create-bill response", Err: err}
	}

	if !billCreated(resp.StatusCode, result.Status) {
		message := result.Message
		if message == "" {
			message = "no message provided"
		}
		return zero, &GatewayError{Status: result.Status.String(), Message: message}
	}
	return result, nil
}

// GetBillStatus fetches the authoritative payment records for a link id.
func (s *Service) GetBillStatus(ctx context.Context, linkID string) (BillStatus, error) {
	ctx, span := otel.Tracer("flip.Service").Start(ctx, "FlipService.GetBillStatus")
	defer span.End()
	span.SetAttributes(attribute.String("flip.bill.link_id", linkID))

	var zero BillStatus
	linkID = strings.TrimSpace(linkID)
	if linkID == "" {
		return zero, &GatewayError{Message: "link id is required"}
	}
	resp, err := s.Client.Send(ctx, "GET", "v2/pwf/"+linkID+"/payment", nil)
	if err != nil {
		span.RecordError(err)
		return zero, &GatewayError{Message: "request for bill status failed", Err: err}
	}

	var status BillStatus
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return zero, &GatewayError{Message: "malformed bill-status response", Err: err}
	}
	if len(status.Data) == 0 {
		return zero, &GatewayError{Message: "empty bill-status response for link " + linkID}
	}
	return status, nil
}

// VerifyTransactionStatus cross-checks a callback payload against the
// provider's own payment-status endpoint. A webhook alone is never trusted to
// mutate order state: the transaction id, status and amount must all match
// what Flip reports for the same link over the authenticated channel.
func (s *Service) VerifyTransactionStatus(ctx context.Context, cb CallbackPayload) (bool, error) {
	ctx, span := otel.Tracer("flip.Service").Start(ctx, "FlipService.VerifyTransactionStatus")
	defer span.End()

	linkID := strings.TrimSpace(cb.BillLinkID.String())
	if linkID == "" {
		return false, &GatewayError{Message: "missing bill_link_id in callback data"}
	}
	span.SetAttributes(attribute.String("flip.bill.link_id", linkID))

	status, err := s.GetBillStatus(ctx, linkID)
	if err != nil {
		return false, err
	}

	record := status.Data[0]
	idMatch := record.ID.String() == cb.ID.String()
	statusMatch := record.Status == cb.Status
	amountMatch := record.Amount.Int64() == cb.Amount.Int64()

	matched := idMatch && statusMatch && amountMatch
	span.SetAttributes(attribute.Bool("flip.verification.matched", matched))
	return matched, nil
}

func billCreated(httpStatus int, bodyStatus FlexString) bool {
	if httpStatus <= 200 {
		return true
	}
	if bodyStatus.String() == "ACTIVE" {
		return true
	}
	// some gateways mirror the numeric code in the body; accept <= 200 there too
	if code, err := strconv.Atoi(bodyStatus.String()); err == nil && code <= 200 {
		return true
	}
	return false
}
