package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TaskInvoiceEmail is the asynq task type for invoice confirmation emails.
const TaskInvoiceEmail = "invoice:email"

// InvoiceEmailPayload carries everything the worker needs to render and send
// the confirmation email without touching the database.
type InvoiceEmailPayload struct {
	OrderReference string  `json:"order_reference"`
	InvoiceID      string  `json:"invoice_id"`
	TransactionID  string  `json:"transaction_id"`
	CustomerName   string  `json:"customer_name"`
	CustomerEmail  string  `json:"customer_email"`
	GrandTotal     float64 `json:"grand_total"`
	Currency       string  `json:"currency"`
	PaymentMethod  string  `json:"payment_method"`
}

// Enqueuer publishes notification tasks.
type Enqueuer struct {
	Client *asynq.Client
}

// EnqueueInvoiceEmail schedules the confirmation email for a paid order. The
// task id is derived from the invoice so provider retries enqueue at most once.
func (e Enqueuer) EnqueueInvoiceEmail(ctx context.Context, p InvoiceEmailPayload) error {
	if e.Client == nil {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("notify: marshal invoice email payload: %w", err)
	}
	task := asynq.NewTask(TaskInvoiceEmail, raw)
	_, err = e.Client.EnqueueContext(ctx, task,
		asynq.TaskID("invoice-email:"+p.InvoiceID),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
		asynq.Queue("notifications"),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("notify: enqueue invoice email: %w", err)
	}
	return nil
}
