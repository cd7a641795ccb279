package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no invoice matches the lookup.
var ErrNotFound = errors.New("invoice: not found")

// StatePaid marks an invoice that was captured in full.
const StatePaid = "paid"

// Invoice records the capture of a paid order.
type Invoice struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	TransactionID string
	State         string
	Total         float64
	Currency      string
	CreatedAt     time.Time
}

// Store provides Postgres-backed access to invoices.
type Store struct {
	Pool *pgxpool.Pool
}

// Insert persists a new invoice and returns it with its generated id.
func (s *Store) Insert(ctx context.Context, inv Invoice) (Invoice, error) {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.State == "" {
		inv.State = StatePaid
	}
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO invoices (id, order_id, transaction_id, state, total, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		inv.ID, inv.OrderID, inv.TransactionID, inv.State, inv.Total, inv.Currency,
	).Scan(&inv.CreatedAt)
	if err != nil {
		return Invoice{}, fmt.Errorf("invoice: insert: %w", err)
	}
	return inv, nil
}

// GetByOrderID returns the most recent invoice for the order.
func (s *Store) GetByOrderID(ctx context.Context, orderID uuid.UUID) (Invoice, error) {
	var inv Invoice
	err := s.Pool.QueryRow(ctx, `
		SELECT id, order_id, transaction_id, state, total, currency, created_at
		FROM invoices
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, orderID,
	).Scan(&inv.ID, &inv.OrderID, &inv.TransactionID, &inv.State, &inv.Total,
		&inv.Currency, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrNotFound
		}
		return Invoice{}, fmt.Errorf("invoice: get by order: %w", err)
	}
	return inv, nil
}
