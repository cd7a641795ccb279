package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `id, reference, state, status, grand_total, currency,
	customer_name, customer_email,
	coalesce(external_order_id, ''), coalesce(bill_link_id, ''),
	additional_info, invoiced, item_qty, created_at, updated_at`

// Repo provides Postgres-backed access to orders and their status history.
type Repo struct {
	Pool *pgxpool.Pool
}

// GetByReference loads an order by its merchant-visible reference code.
func (r *Repo) GetByReference(ctx context.Context, reference string) (*Order, error) {
	row := r.Pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE reference = $1`, reference)
	return scanOrder(row)
}

// GetByBillLinkID performs the reverse lookup used by the callback path.
func (r *Repo) GetByBillLinkID(ctx context.Context, linkID string) (*Order, error) {
	row := r.Pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE bill_link_id = $1`, linkID)
	return scanOrder(row)
}

// Save persists the mutable payment-integration fields of the order.
func (r *Repo) Save(ctx context.Context, o *Order) error {
	if o == nil || o.ID == uuid.Nil {
		return errors.New("order: cannot save order without identity")
	}
	info := o.AdditionalInfo
	if info == nil {
		info = map[string]string{}
	}
	tag, err := r.Pool.Exec(ctx, `
		UPDATE orders
		SET state = $2, status = $3, external_order_id = nullif($4, ''),
		    bill_link_id = nullif($5, ''), additional_info = $6,
		    invoiced = $7, updated_at = now()
		WHERE id = $1`,
		o.ID, string(o.State), o.Status, o.ExternalOrderID, o.BillLinkID,
		info, o.Invoiced)
	if err != nil {
		return fmt.Errorf("order: save: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendHistory adds a row to the order's status-history log.
func (r *Repo) AppendHistory(ctx context.Context, orderID uuid.UUID, title, comment string, state State) error {
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO order_status_history (order_id, title, comment, state)
		VALUES ($1, $2, $3, $4)`,
		orderID, title, comment, string(state))
	if err != nil {
		return fmt.Errorf("order: append history: %w", err)
	}
	return nil
}

// History returns the order's status-history log, newest first.
func (r *Repo) History(ctx context.Context, orderID uuid.UUID) ([]HistoryEntry, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT id, order_id, title, comment, state, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at DESC, id DESC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("order: load history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var state string
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Title, &e.Comment, &state, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.State = State(state)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecordPaymentEvent appends an audit row for a processed callback or bill
// creation. Failures are reported but callers treat them as non-fatal.
func (r *Repo) RecordPaymentEvent(ctx context.Context, orderID uuid.UUID, billLinkID, trxID, status, result string, payload []byte) error {
	var oid any
	if orderID != uuid.Nil {
		oid = orderID
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO payment_events (order_id, bill_link_id, trx_id, status, result, payload)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		oid, billLinkID, trxID, status, result, payload)
	if err != nil {
		return fmt.Errorf("order: record payment event: %w", err)
	}
	return nil
}

// HasAppliedCallback reports whether a callback with this link and transaction
// id has already been applied. It backs the idempotency guard when the Redis
// replay key has expired or the cache is cold.
func (r *Repo) HasAppliedCallback(ctx context.Context, billLinkID, trxID string) (bool, error) {
	var count int
	err := r.Pool.QueryRow(ctx, `
		SELECT count(*) FROM payment_events
		WHERE bill_link_id = $1 AND trx_id = $2 AND result = 'applied'`,
		billLinkID, trxID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("order: check applied callback: %w", err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	var state string
	var updatedAt, createdAt time.Time
	err := row.Scan(&o.ID, &o.Reference, &state, &o.Status, &o.GrandTotal,
		&o.Currency, &o.CustomerName, &o.CustomerEmail, &o.ExternalOrderID,
		&o.BillLinkID, &o.AdditionalInfo, &o.Invoiced, &o.ItemQty,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("order: scan: %w", err)
	}
	o.State = State(state)
	o.CreatedAt = createdAt
	o.UpdatedAt = updatedAt
	return &o, nil
}
