package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flip-id/flip-checkout-service/internal/common"
	"github.com/flip-id/flip-checkout-service/internal/config"
	"github.com/flip-id/flip-checkout-service/internal/flip"
	"github.com/flip-id/flip-checkout-service/internal/order"
)

// OrderReader is the read-only order lookup the finish endpoint needs.
type OrderReader interface {
	GetByReference(ctx context.Context, reference string) (*order.Order, error)
	History(ctx context.Context, orderID uuid.UUID) ([]order.HistoryEntry, error)
}

// Handler serves the customer-facing checkout endpoints.
type Handler struct {
	Cfg    *config.Config
	Svc    Service
	Orders OrderReader
	Logger zerolog.Logger
}

type checkoutRequest struct {
	OrderReference string `json:"order_reference"`
}

// Checkout handles POST /api/v1/payment/checkout: creates a payment link for
// the order and returns it in the response envelope.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSON(w, http.StatusBadRequest,
			common.ErrorEnvelope(http.StatusBadRequest, "invalid request body"))
		return
	}
	req.OrderReference = strings.TrimSpace(req.OrderReference)
	if req.OrderReference == "" {
		common.JSON(w, http.StatusBadRequest,
			common.ErrorEnvelope(http.StatusBadRequest, "order_reference is required"))
		return
	}

	paymentURL, err := h.Svc.Start(r.Context(), req.OrderReference)
	if err != nil {
		h.writeCheckoutError(w, req.OrderReference, err)
		return
	}

	body := common.SuccessEnvelope(http.StatusOK, "Bill created successfully")
	body.PaymentURL = paymentURL
	common.JSON(w, http.StatusOK, body)
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, reference string, err error) {
	h.Logger.Error().Err(err).Str("order", reference).Msg("checkout failed")

	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSON(w, appErr.HTTPStatus,
			common.ErrorEnvelope(appErr.HTTPStatus, appErr.Message))
		return
	}
	var gwErr *flip.GatewayError
	if errors.As(err, &gwErr) {
		common.JSON(w, http.StatusInternalServerError,
			common.ErrorEnvelope(http.StatusInternalServerError, gwErr.Message))
		return
	}
	common.JSON(w, http.StatusInternalServerError,
		common.ErrorEnvelope(http.StatusInternalServerError, "unable to create payment link"))
}

// finishResponse is the confirmation document shown after the customer returns
// from the hosted payment page.
type finishResponse struct {
	Reference     string          `json:"reference"`
	State         string          `json:"state"`
	Status        string          `json:"status"`
	GrandTotal    float64         `json:"grand_total"`
	Currency      string          `json:"currency"`
	PaymentURL    string          `json:"payment_url,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	History       []finishHistory `json:"history,omitempty"`
}

// finishHistory is one status-history line on the confirmation page.
type finishHistory struct {
	Title     string    `json:"title"`
	Comment   string    `json:"comment"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// Finish handles GET /api/v1/payment/finish?state=REF. The hosted page sends
// the customer back here after payment. Anything that cannot be confirmed
// sends the customer to the cart instead of an error page.
func (h *Handler) Finish(w http.ResponseWriter, r *http.Request) {
	reference := strings.TrimSpace(r.URL.Query().Get("state"))
	if reference == "" {
		h.redirectToCart(w, r)
		return
	}
	o, err := h.Orders.GetByReference(r.Context(), reference)
	if err != nil {
		if !errors.Is(err, order.ErrNotFound) {
			h.Logger.Error().Err(err).Str("order", reference).Msg("finish lookup failed")
		}
		h.redirectToCart(w, r)
		return
	}
	if o.State == order.StateCanceled {
		h.redirectToCart(w, r)
		return
	}

	resp := finishResponse{
		Reference:     o.Reference,
		State:         string(o.State),
		Status:        o.Status,
		GrandTotal:    o.GrandTotal,
		Currency:      o.Currency,
		PaymentURL:    o.AdditionalInfoValue(order.InfoPaymentURL),
		TransactionID: o.AdditionalInfoValue(order.InfoFlipTrxID),
	}
	entries, err := h.Orders.History(r.Context(), o.ID)
	if err != nil {
		// the confirmation still renders without the history block
		h.Logger.Error().Err(err).Str("order", reference).Msg("finish history lookup failed")
	}
	for _, e := range entries {
		resp.History = append(resp.History, finishHistory{
			Title:     e.Title,
			Comment:   e.Comment,
			State:     string(e.State),
			CreatedAt: e.CreatedAt,
		})
	}

	common.JSON(w, http.StatusOK, resp)
}

func (h *Handler) redirectToCart(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.Cfg.CartURL, http.StatusFound)
}

// ConfigInfo handles GET /api/v1/payment/config: the operator-facing summary
// of the active gateway configuration. Secrets are never included.
func (h *Handler) ConfigInfo(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{
		"mode":          h.Cfg.ModeLabel(),
		"business_id":   h.Cfg.BusinessID,
		"callback_url":  h.Cfg.CallbackURL(),
		"redirect_mode": h.Cfg.RedirectMode,
	})
}
