package checkout_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flip-id/flip-checkout-service/internal/checkout"
	"github.com/flip-id/flip-checkout-service/internal/common"
	"github.com/flip-id/flip-checkout-service/internal/config"
	"github.com/flip-id/flip-checkout-service/internal/flip"
	"github.com/flip-id/flip-checkout-service/internal/method"
	"github.com/flip-id/flip-checkout-service/internal/obs"
	"github.com/flip-id/flip-checkout-service/internal/order"
)

func TestMain(m *testing.M) {
	obs.MustRegisterDomainMetrics("test", prometheus.NewRegistry())
	os.Exit(m.Run())
}

type stubOrders struct {
	orders  map[string]*order.Order
	saved   *order.Order
	history []string
	entries []order.HistoryEntry
}

func (s *stubOrders) GetByReference(_ context.Context, ref string) (*order.Order, error) {
	if o, ok := s.orders[ref]; ok {
		return o, nil
	}
	return nil, order.ErrNotFound
}

func (s *stubOrders) Save(_ context.Context, o *order.Order) error {
	s.saved = o
	return nil
}

func (s *stubOrders) AppendHistory(_ context.Context, _ uuid.UUID, title, _ string, _ order.State) error {
	s.history = append(s.history, title)
	return nil
}

func (s *stubOrders) History(_ context.Context, _ uuid.UUID) ([]order.HistoryEntry, error) {
	return s.entries, nil
}

type stubGateway struct {
	result flip.BillResult
	err    error
	calls  int
}

func (s *stubGateway) CreateBill(context.Context, flip.BillPayload) (flip.BillResult, error) {
	s.calls++
	return s.result, s.err
}

func testConfig() *config.Config {
	return &config.Config{
		PublicBaseURL:    "https://shop.example",
		BusinessID:       "BIZ9",
		DevRedirectorURL: config.DefaultDevRedirector,
	}
}

func newService(orders *stubOrders, gw *stubGateway) checkout.Service {
	return checkout.Service{
		Cfg:     testConfig(),
		Orders:  orders,
		Gateway: gw,
		Methods: method.NewRegistry(method.CheckoutSeamless{Enabled: true}),
		Logger:  zerolog.Nop(),
	}
}

func pendingOrder(ref string) *order.Order {
	return &order.Order{
		ID:            uuid.New(),
		Reference:     ref,
		State:         order.StateNew,
		GrandTotal:    150000,
		Currency:      "IDR",
		CustomerName:  "Budi",
		CustomerEmail: "budi@example.com",
		ItemQty:       2,
	}
}

func TestStartCreatesPaymentLink(t *testing.T) {
	o := pendingOrder("ORD-1001")
	orders := &stubOrders{orders: map[string]*order.Order{"ORD-1001": o}}
	gw := &stubGateway{result: flip.BillResult{
		LinkID:  9912,
		LinkURL: "flip.id/pwf/abc",
		Status:  "ACTIVE",
	}}

	url, err := newService(orders, gw).Start(context.Background(), "ORD-1001")
	require.NoError(t, err)
	assert.Equal(t, "https://flip.id/pwf/abc", url)

	require.NotNil(t, orders.saved)
	assert.Equal(t, order.StatePendingPayment, orders.saved.State)
	assert.Equal(t, "BIZ9-9912", orders.saved.ExternalOrderID)
	assert.Equal(t, "9912", orders.saved.BillLinkID)
	assert.Equal(t, "https://flip.id/pwf/abc", orders.saved.AdditionalInfoValue(order.InfoPaymentURL))
	assert.Equal(t, []string{"Awaiting payment"}, orders.history)

	// round trip of the external id
	biz, link, err := order.ParseExternalOrderID(orders.saved.ExternalOrderID)
	require.NoError(t, err)
	assert.Equal(t, "BIZ9", biz)
	assert.Equal(t, "9912", link)
}

func TestStartOrderNotFound(t *testing.T) {
	orders := &stubOrders{orders: map[string]*order.Order{}}
	gw := &stubGateway{}

	_, err := newService(orders, gw).Start(context.Background(), "NOPE")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.HTTPStatus)
	assert.Zero(t, gw.calls)
}

func TestStartReusesExistingLink(t *testing.T) {
	o := pendingOrder("ORD-1001")
	o.State = order.StatePendingPayment
	o.SetAdditionalInfo(order.InfoPaymentURL, "https://flip.id/pwf/existing")
	orders := &stubOrders{orders: map[string]*order.Order{"ORD-1001": o}}
	gw := &stubGateway{}

	url, err := newService(orders, gw).Start(context.Background(), "ORD-1001")
	require.NoError(t, err)
	assert.Equal(t, "https://flip.id/pwf/existing", url)
	assert.Zero(t, gw.calls, "no second bill should be created")
}

func TestStartMethodUnavailable(t *testing.T) {
	o := pendingOrder("ORD-1001")
	o.State = order.StateCanceled
	orders := &stubOrders{orders: map[string]*order.Order{"ORD-1001": o}}
	gw := &stubGateway{}

	_, err := newService(orders, gw).Start(context.Background(), "ORD-1001")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 400, appErr.HTTPStatus)
	assert.Zero(t, gw.calls)
}

func TestStartGatewayFailurePropagates(t *testing.T) {
	o := pendingOrder("ORD-1001")
	orders := &stubOrders{orders: map[string]*order.Order{"ORD-1001": o}}
	gwErr := &flip.GatewayError{Status: "422", Message: "amount below minimum"}
	gw := &stubGateway{err: gwErr}

	_, err := newService(orders, gw).Start(context.Background(), "ORD-1001")
	require.Error(t, err)
	var got *flip.GatewayError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, "422", got.Status)
	assert.Nil(t, orders.saved, "order must stay untouched on gateway failure")
}
