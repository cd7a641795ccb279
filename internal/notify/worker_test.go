package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flip-id/flip-checkout-service/internal/common"
	"github.com/flip-id/flip-checkout-service/internal/notify"
	"github.com/flip-id/flip-checkout-service/internal/obs"
)

func TestMain(m *testing.M) {
	obs.MustRegisterDomainMetrics("test", prometheus.NewRegistry())
	os.Exit(m.Run())
}

func invoiceTask(t *testing.T, p notify.InvoiceEmailPayload) *asynq.Task {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return asynq.NewTask(notify.TaskInvoiceEmail, raw)
}

func TestHandleInvoiceEmailSends(t *testing.T) {
	outbox := &common.InMemoryEmail{}
	w := notify.EmailWorker{Sender: outbox, Logger: zerolog.Nop()}

	err := w.HandleInvoiceEmail(context.Background(), invoiceTask(t, notify.InvoiceEmailPayload{
		OrderReference: "ORD-1001",
		InvoiceID:      "inv-1",
		TransactionID:  "TRX-1",
		CustomerName:   "Budi",
		CustomerEmail:  "budi@example.com",
		GrandTotal:     150000,
		Currency:       "IDR",
		PaymentMethod:  "VIRTUAL_ACCOUNT-BCA",
	}))
	require.NoError(t, err)

	require.Len(t, outbox.Outbox, 1)
	msg := outbox.Outbox[0]
	assert.Equal(t, "budi@example.com", msg.To)
	assert.Contains(t, msg.Subject, "ORD-1001")
	assert.Contains(t, msg.HTML, "Budi")
	assert.Contains(t, msg.HTML, "TRX-1")
	assert.Contains(t, msg.HTML, "VIRTUAL_ACCOUNT-BCA")
}

func TestHandleInvoiceEmailSkipsMissingRecipient(t *testing.T) {
	outbox := &common.InMemoryEmail{}
	w := notify.EmailWorker{Sender: outbox, Logger: zerolog.Nop()}

	err := w.HandleInvoiceEmail(context.Background(), invoiceTask(t, notify.InvoiceEmailPayload{
		OrderReference: "ORD-1001",
	}))
	require.NoError(t, err)
	assert.Empty(t, outbox.Outbox)
}

func TestHandleInvoiceEmailMalformedPayloadNotRetried(t *testing.T) {
	w := notify.EmailWorker{Sender: &common.InMemoryEmail{}, Logger: zerolog.Nop()}

	err := w.HandleInvoiceEmail(context.Background(),
		asynq.NewTask(notify.TaskInvoiceEmail, []byte("{not json")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
