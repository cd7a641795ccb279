package invoice_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flip-id/flip-checkout-service/internal/invoice"
	"github.com/flip-id/flip-checkout-service/internal/notify"
	"github.com/flip-id/flip-checkout-service/internal/order"
)

type stubStore struct {
	inserted []invoice.Invoice
	err      error
}

func (s *stubStore) Insert(_ context.Context, inv invoice.Invoice) (invoice.Invoice, error) {
	if s.err != nil {
		return invoice.Invoice{}, s.err
	}
	s.inserted = append(s.inserted, inv)
	return inv, nil
}

type stubSaver struct {
	saved *order.Order
}

func (s *stubSaver) Save(_ context.Context, o *order.Order) error {
	s.saved = o
	return nil
}

type stubEmailer struct {
	payloads []notify.InvoiceEmailPayload
	err      error
}

func (s *stubEmailer) EnqueueInvoiceEmail(_ context.Context, p notify.InvoiceEmailPayload) error {
	if s.err != nil {
		return s.err
	}
	s.payloads = append(s.payloads, p)
	return nil
}

func paidOrder() *order.Order {
	return &order.Order{
		ID:            uuid.New(),
		Reference:     "ORD-1001",
		State:         order.StateProcessing,
		GrandTotal:    150000,
		Currency:      "IDR",
		CustomerName:  "Budi",
		CustomerEmail: "budi@example.com",
		ItemQty:       2,
	}
}

func TestCreateInvoicesAndEnqueuesEmail(t *testing.T) {
	store := &stubStore{}
	saver := &stubSaver{}
	emailer := &stubEmailer{}
	svc := invoice.Service{Store: store, Orders: saver, Emailer: emailer, Logger: zerolog.Nop()}

	o := paidOrder()
	inv, err := svc.Create(context.Background(), o, "TRX-1", "VIRTUAL_ACCOUNT-BCA")
	require.NoError(t, err)
	require.NotNil(t, inv)

	require.Len(t, store.inserted, 1)
	assert.Equal(t, "TRX-1", store.inserted[0].TransactionID)
	assert.Equal(t, o.ID, store.inserted[0].OrderID)
	assert.Equal(t, invoice.StatePaid, store.inserted[0].State)

	assert.True(t, o.Invoiced)
	require.NotNil(t, saver.saved)

	require.Len(t, emailer.payloads, 1)
	p := emailer.payloads[0]
	assert.Equal(t, "ORD-1001", p.OrderReference)
	assert.Equal(t, "budi@example.com", p.CustomerEmail)
	assert.Equal(t, "VIRTUAL_ACCOUNT-BCA", p.PaymentMethod)
	assert.Equal(t, inv.ID.String(), p.InvoiceID)
}

func TestCreateSkipsNonInvoiceableOrder(t *testing.T) {
	store := &stubStore{}
	svc := invoice.Service{Store: store, Orders: &stubSaver{}, Logger: zerolog.Nop()}

	o := paidOrder()
	o.Invoiced = true
	inv, err := svc.Create(context.Background(), o, "TRX-1", "")
	require.NoError(t, err)
	assert.Nil(t, inv)
	assert.Empty(t, store.inserted)
}

func TestCreateEmailFailureDoesNotFailCapture(t *testing.T) {
	store := &stubStore{}
	saver := &stubSaver{}
	emailer := &stubEmailer{err: errors.New("queue unavailable")}
	svc := invoice.Service{Store: store, Orders: saver, Emailer: emailer, Logger: zerolog.Nop()}

	o := paidOrder()
	inv, err := svc.Create(context.Background(), o, "TRX-1", "")
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.True(t, o.Invoiced)
}
