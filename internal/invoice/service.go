package invoice

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flip-id/flip-checkout-service/internal/notify"
	"github.com/flip-id/flip-checkout-service/internal/order"
)

// Inserter persists invoices. *Store satisfies it.
type Inserter interface {
	Insert(ctx context.Context, inv Invoice) (Invoice, error)
}

// OrderSaver marks the order as invoiced. *order.Repo satisfies it.
type OrderSaver interface {
	Save(ctx context.Context, o *order.Order) error
}

// EmailEnqueuer schedules the confirmation email. notify.Enqueuer satisfies it.
type EmailEnqueuer interface {
	EnqueueInvoiceEmail(ctx context.Context, p notify.InvoiceEmailPayload) error
}

// Service creates invoices for successfully paid orders.
type Service struct {
	Store   Inserter
	Orders  OrderSaver
	Emailer EmailEnqueuer
	Logger  zerolog.Logger
}

// Create captures an invoice for the order and schedules the confirmation
// email. Orders that cannot be invoiced are skipped silently so a repeated
// callback does not double-invoice. Email failures never fail the capture.
func (s Service) Create(ctx context.Context, o *order.Order, transactionID, paymentMethod string) (*Invoice, error) {
	if o == nil {
		return nil, fmt.Errorf("invoice: nil order")
	}
	if !o.CanInvoice() {
		s.Logger.Debug().
			Str("order", o.Reference).
			Str("state", string(o.State)).
			Bool("invoiced", o.Invoiced).
			Msg("order not invoiceable, skipping")
		return nil, nil
	}

	inv, err := s.Store.Insert(ctx, Invoice{
		ID:            uuid.New(),
		OrderID:       o.ID,
		TransactionID: transactionID,
		State:         StatePaid,
		Total:         o.GrandTotal,
		Currency:      o.Currency,
	})
	if err != nil {
		return nil, err
	}

	o.Invoiced = true
	if err := s.Orders.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("invoice: mark order invoiced: %w", err)
	}

	if s.Emailer != nil {
		err := s.Emailer.EnqueueInvoiceEmail(ctx, notify.InvoiceEmailPayload{
			OrderReference: o.Reference,
			InvoiceID:      inv.ID.String(),
			TransactionID:  transactionID,
			CustomerName:   o.CustomerName,
			CustomerEmail:  o.CustomerEmail,
			GrandTotal:     o.GrandTotal,
			Currency:       o.Currency,
			PaymentMethod:  paymentMethod,
		})
		if err != nil {
			s.Logger.Error().Err(err).Str("order", o.Reference).
				Msg("failed to enqueue invoice email")
		}
	}

	s.Logger.Info().
		Str("order", o.Reference).
		Str("invoice", inv.ID.String()).
		Str("trx_id", transactionID).
		Msg("invoice created")
	return &inv, nil
}
