package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/flip-id/flip-checkout-service/internal/common"
	"github.com/flip-id/flip-checkout-service/internal/obs"
)

// EmailWorker handles invoice email tasks.
type EmailWorker struct {
	Sender common.EmailSender
	From   string
	Logger zerolog.Logger
}

// Register attaches the worker's handlers to the asynq mux.
func (w EmailWorker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskInvoiceEmail, w.HandleInvoiceEmail)
}

// HandleInvoiceEmail renders and sends the payment confirmation email.
func (w EmailWorker) HandleInvoiceEmail(ctx context.Context, t *asynq.Task) error {
	var p InvoiceEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		// malformed payloads will never succeed, drop instead of retrying
		return fmt.Errorf("notify: decode invoice email payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.CustomerEmail == "" {
		w.Logger.Warn().Str("order", p.OrderReference).Msg("invoice email skipped, no recipient")
		return nil
	}
	if w.Sender == nil {
		return nil
	}

	subject := fmt.Sprintf("Payment received for order %s", p.OrderReference)
	body := renderInvoiceEmail(p)
	if err := w.Sender.Send(p.CustomerEmail, subject, body); err != nil {
		obs.InvoiceEmailTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("notify: send invoice email for %s: %w", p.OrderReference, err)
	}
	obs.InvoiceEmailTotal.WithLabelValues("sent").Inc()
	w.Logger.Info().
		Str("order", p.OrderReference).
		Str("invoice", p.InvoiceID).
		Msg("invoice email sent")
	return nil
}

func renderInvoiceEmail(p InvoiceEmailPayload) string {
	name := p.CustomerName
	if name == "" {
		name = "Customer"
	}
	currency := p.Currency
	if currency == "" {
		currency = "IDR"
	}
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<p>Hi %s,</p>", name)
	fmt.Fprintf(&b, "<p>We have received your payment of %s %.0f for order <strong>%s</strong>.</p>",
		currency, p.GrandTotal, p.OrderReference)
	if p.PaymentMethod != "" {
		fmt.Fprintf(&b, "<p>Payment method: %s</p>", p.PaymentMethod)
	}
	if p.TransactionID != "" {
		fmt.Fprintf(&b, "<p>Transaction reference: %s</p>", p.TransactionID)
	}
	b.WriteString("<p>Your order is now being processed.</p>")
	b.WriteString("</body></html>")
	return b.String()
}
