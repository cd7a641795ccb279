package checkout

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flip-id/flip-checkout-service/internal/common"
	"github.com/flip-id/flip-checkout-service/internal/config"
	"github.com/flip-id/flip-checkout-service/internal/flip"
	"github.com/flip-id/flip-checkout-service/internal/method"
	"github.com/flip-id/flip-checkout-service/internal/obs"
	"github.com/flip-id/flip-checkout-service/internal/order"
)

// OrderStore is the slice of the order repository the checkout needs.
type OrderStore interface {
	GetByReference(ctx context.Context, reference string) (*order.Order, error)
	Save(ctx context.Context, o *order.Order) error
	AppendHistory(ctx context.Context, orderID uuid.UUID, title, comment string, state order.State) error
}

// BillCreator creates hosted payment links. *flip.Service satisfies it.
type BillCreator interface {
	CreateBill(ctx context.Context, payload flip.BillPayload) (flip.BillResult, error)
}

// Service drives the bill-creation flow for an order.
type Service struct {
	Cfg     *config.Config
	Orders  OrderStore
	Gateway BillCreator
	Methods method.Registry
	Logger  zerolog.Logger
}

// Start creates a payment link for the referenced order and returns its URL.
// Calling it again for an order that already holds an active link returns the
// stored URL without creating a second bill.
func (s Service) Start(ctx context.Context, reference string) (string, error) {
	o, err := s.Orders.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return "", common.NotFound("order " + reference + " not found")
		}
		return "", err
	}

	m := s.Methods.Lookup(method.CodeCheckoutSeamless)
	if m == nil || !m.IsAvailable(o) {
		return "", common.Validation("payment method not available for this order")
	}

	if o.State == order.StatePendingPayment {
		if existing := o.AdditionalInfoValue(order.InfoPaymentURL); existing != "" {
			s.Logger.Info().Str("order", reference).Msg("reusing existing payment link")
			return existing, nil
		}
	}

	res, err := s.Gateway.CreateBill(ctx, BuildBillPayload(s.Cfg, o))
	if err != nil {
		obs.BillCreateTotal.WithLabelValues("error").Inc()
		return "", err
	}

	paymentURL := NormalizeLinkURL(res.LinkURL)
	o.ExternalOrderID = order.EncodeExternalOrderID(s.Cfg.BusinessID, res.LinkID)
	o.BillLinkID = strconv.FormatInt(res.LinkID, 10)
	o.SetAdditionalInfo(order.InfoPaymentURL, paymentURL)
	o.SetStateAndStatus(order.StatePendingPayment, string(order.StatePendingPayment))
	if err := s.Orders.Save(ctx, o); err != nil {
		return "", err
	}
	if err := s.Orders.AppendHistory(ctx, o.ID, "Awaiting payment",
		"Flip payment link created: "+paymentURL, o.State); err != nil {
		s.Logger.Error().Err(err).Str("order", reference).Msg("failed to append order history")
	}

	obs.BillCreateTotal.WithLabelValues("success").Inc()
	s.Logger.Info().
		Str("order", reference).
		Int64("link_id", res.LinkID).
		Msg("payment link created")
	return paymentURL, nil
}

// NormalizeLinkURL turns the provider's schemeless link_url into an absolute
// https URL.
func NormalizeLinkURL(linkURL string) string {
	if linkURL == "" {
		return ""
	}
	if strings.HasPrefix(linkURL, "http://") || strings.HasPrefix(linkURL, "https://") {
		return linkURL
	}
	return "https://" + linkURL
}
