package callback

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flip-id/flip-checkout-service/internal/common"
	"github.com/flip-id/flip-checkout-service/internal/flip"
	"github.com/flip-id/flip-checkout-service/internal/invoice"
	"github.com/flip-id/flip-checkout-service/internal/lock"
	"github.com/flip-id/flip-checkout-service/internal/obs"
	"github.com/flip-id/flip-checkout-service/internal/order"
)

// OrderStore is the slice of the order repository the callback pipeline needs.
type OrderStore interface {
	GetByBillLinkID(ctx context.Context, linkID string) (*order.Order, error)
	Save(ctx context.Context, o *order.Order) error
	AppendHistory(ctx context.Context, orderID uuid.UUID, title, comment string, state order.State) error
	RecordPaymentEvent(ctx context.Context, orderID uuid.UUID, billLinkID, trxID, status, result string, payload []byte) error
	HasAppliedCallback(ctx context.Context, billLinkID, trxID string) (bool, error)
}

// Verifier checks a callback against the provider's own records.
// *flip.Service satisfies it.
type Verifier interface {
	VerifyTransactionStatus(ctx context.Context, cb flip.CallbackPayload) (bool, error)
}

// InvoiceCreator captures an invoice for a paid order. invoice.Service
// satisfies it.
type InvoiceCreator interface {
	Create(ctx context.Context, o *order.Order, transactionID, paymentMethod string) (*invoice.Invoice, error)
}

// Processor applies a verified callback to the matching order. All mutation
// for one bill link happens under a distributed lock, and each (bill link,
// transaction) pair is applied at most once.
type Processor struct {
	Orders   OrderStore
	Gateway  Verifier
	Invoices InvoiceCreator
	Locker   lock.Locker
	Replays  lock.ReplayGuard
	LockTTL  time.Duration
	Logger   zerolog.Logger
	Audit    obs.Audit
}

// Process runs the callback state machine and returns the response envelope.
// The transport status is always HTTP 200; the envelope's status_code carries
// the business outcome.
func (p Processor) Process(ctx context.Context, cb flip.CallbackPayload, raw []byte) common.Envelope {
	trxID := cb.ID.String()
	linkID := cb.BillLinkID.String()

	var env common.Envelope
	err := p.Locker.WithLock(ctx, lock.BillLinkKey(linkID), p.LockTTL, func(ctx context.Context) error {
		env = p.processLocked(ctx, cb, raw, linkID, trxID)
		return nil
	})
	if err != nil {
		p.Logger.Error().Err(err).Str("bill_link_id", linkID).Msg("callback lock failed")
		p.Audit.Error("callback lock", err)
		obs.CallbackTotal.WithLabelValues(cb.Status, "lock_error").Inc()
		return common.ErrorEnvelope(http.StatusInternalServerError, "unable to process callback")
	}
	return env
}

func (p Processor) processLocked(ctx context.Context, cb flip.CallbackPayload, raw []byte, linkID, trxID string) common.Envelope {
	seen, err := p.Replays.Seen(ctx, linkID, trxID)
	if err != nil {
		p.Logger.Warn().Err(err).Str("bill_link_id", linkID).Msg("replay guard unavailable")
	}
	if !seen {
		applied, err := p.Orders.HasAppliedCallback(ctx, linkID, trxID)
		if err != nil {
			p.Logger.Error().Err(err).Str("bill_link_id", linkID).Msg("applied-callback check failed")
			p.Audit.Error("applied-callback check", err)
			obs.CallbackTotal.WithLabelValues(cb.Status, "db_error").Inc()
			return common.ErrorEnvelope(http.StatusInternalServerError, "unable to process callback")
		}
		seen = applied
	}
	if seen {
		obs.CallbackTotal.WithLabelValues(cb.Status, "replay").Inc()
		return common.SuccessEnvelope(http.StatusOK, "Callback already processed")
	}

	o, err := p.Orders.GetByBillLinkID(ctx, linkID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			obs.CallbackTotal.WithLabelValues(cb.Status, "order_not_found").Inc()
			return common.ErrorEnvelope(http.StatusBadRequest, "Order not found")
		}
		p.Logger.Error().Err(err).Str("bill_link_id", linkID).Msg("order lookup failed")
		p.Audit.Error("order lookup", err)
		obs.CallbackTotal.WithLabelValues(cb.Status, "db_error").Inc()
		return common.ErrorEnvelope(http.StatusInternalServerError, "unable to process callback")
	}

	verified, err := p.Gateway.VerifyTransactionStatus(ctx, cb)
	if err != nil {
		p.Logger.Error().Err(err).Str("bill_link_id", linkID).Msg("transaction verification errored")
		p.Audit.Error("transaction verification", err)
		obs.CallbackTotal.WithLabelValues(cb.Status, "verify_error").Inc()
		return common.ErrorEnvelope(http.StatusInternalServerError, "unable to verify transaction")
	}
	if !verified {
		obs.VerificationMismatchTotal.Inc()
		obs.CallbackTotal.WithLabelValues(cb.Status, "verify_mismatch").Inc()
		return common.ErrorEnvelope(http.StatusBadRequest, "transaction verification failed")
	}

	env := p.applyOutcome(ctx, o, cb, trxID)
	if env.Status != "error" {
		if ok, err := p.Replays.MarkApplied(ctx, linkID, trxID); err != nil || !ok {
			p.Logger.Warn().Err(err).Bool("first", ok).
				Str("bill_link_id", linkID).Msg("replay marker not recorded")
		}
		if err := p.Orders.RecordPaymentEvent(ctx, o.ID, linkID, trxID, cb.Status, "applied", raw); err != nil {
			p.Logger.Error().Err(err).Str("bill_link_id", linkID).Msg("payment event not recorded")
			p.Audit.Error("payment event record", err)
		}
	}
	obs.CallbackTotal.WithLabelValues(cb.Status, env.Status).Inc()
	return env
}

func (p Processor) applyOutcome(ctx context.Context, o *order.Order, cb flip.CallbackPayload, trxID string) common.Envelope {
	switch cb.Status {
	case flip.StatusSuccessful:
		return p.applySuccess(ctx, o, cb, trxID)
	case flip.StatusCancelled:
		return p.applyTerminal(ctx, o, trxID, "Expired",
			fmt.Sprintf("Flip payment link expired. Transaction id: %s.", trxID))
	case flip.StatusFailed:
		return p.applyTerminal(ctx, o, trxID, "Failed",
			fmt.Sprintf("Flip payment failed. Transaction id: %s.", trxID))
	default:
		return common.ErrorEnvelope(http.StatusBadRequest, "Payment was not successful")
	}
}

func (p Processor) applySuccess(ctx context.Context, o *order.Order, cb flip.CallbackPayload, trxID string) common.Envelope {
	paymentMethod := PaymentMethodLabel(cb.SenderBankType, cb.SenderBank)
	o.SetStateAndStatus(order.StateProcessing, string(order.StateProcessing))
	o.SetAdditionalInfo(order.InfoFlipTrxID, trxID)
	if err := p.Orders.Save(ctx, o); err != nil {
		p.Logger.Error().Err(err).Str("order", o.Reference).Msg("order save failed")
		p.Audit.Error("order save", err)
		return common.ErrorEnvelope(http.StatusInternalServerError, "unable to update order")
	}
	comment := fmt.Sprintf("Payment received. Transaction id: %s, status: %s, payment method: %s.",
		trxID, cb.Status, paymentMethod)
	if err := p.Orders.AppendHistory(ctx, o.ID, "Payment received", comment, o.State); err != nil {
		p.Logger.Error().Err(err).Str("order", o.Reference).Msg("failed to append order history")
	}

	if p.Invoices != nil {
		if _, err := p.Invoices.Create(ctx, o, trxID, paymentMethod); err != nil {
			// the payment is applied either way; invoicing is retried by ops
			p.Logger.Error().Err(err).Str("order", o.Reference).Msg("invoice creation failed")
			p.Audit.Error("invoice creation", err)
		}
	}
	return common.SuccessEnvelope(http.StatusOK, "Payment processed")
}

func (p Processor) applyTerminal(ctx context.Context, o *order.Order, trxID, title, comment string) common.Envelope {
	o.SetStateAndStatus(order.StateCanceled, string(order.StateCanceled))
	o.SetAdditionalInfo(order.InfoFlipTrxID, trxID)
	if err := p.Orders.Save(ctx, o); err != nil {
		p.Logger.Error().Err(err).Str("order", o.Reference).Msg("order save failed")
		p.Audit.Error("order save", err)
		return common.ErrorEnvelope(http.StatusInternalServerError, "unable to update order")
	}
	if err := p.Orders.AppendHistory(ctx, o.ID, title, comment, o.State); err != nil {
		p.Logger.Error().Err(err).Str("order", o.Reference).Msg("failed to append order history")
	}
	return common.SuccessEnvelope(http.StatusOK, "Payment "+strings.ToLower(title))
}

// PaymentMethodLabel renders the sender bank pair the way order history and
// invoices display it, e.g. "VIRTUAL_ACCOUNT-BCA".
func PaymentMethodLabel(senderBankType, senderBank string) string {
	label := strings.TrimSpace(senderBankType) + "-" + strings.TrimSpace(senderBank)
	return strings.ToUpper(strings.Trim(label, "-"))
}
