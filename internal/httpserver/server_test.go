package httpserver

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kiranakart-be/internal/cart"
	"kiranakart-be/internal/metrics"
	"kiranakart-be/internal/order"
	"kiranakart-be/internal/payment"
	"kiranakart-be/internal/payment/webhook"
	"kiranakart-be/internal/pricing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, userID uint, in order.CreateOrderInput) (*order.Order, *payment.RedirectPayload, error) {
	args := m.Called(ctx, userID, in)
	var o *order.Order
	var p *payment.RedirectPayload
	if args.Get(0) != nil {
		o = args.Get(0).(*order.Order)
	}
	if args.Get(1) != nil {
		p = args.Get(1).(*payment.RedirectPayload)
	}
	return o, p, args.Error(2)
}

func (m *MockOrderService) Quote(ctx context.Context, in order.CreateOrderInput) (*pricing.PricedOrder, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.PricedOrder), args.Error(1)
}

func (m *MockOrderService) CancelOrder(ctx context.Context, orderID, userID uint, isAdmin bool) (*order.Order, error) {
	args := m.Called(ctx, orderID, userID, isAdmin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, orderID uint, next order.OrderStatus) (*order.Order, error) {
	args := m.Called(ctx, orderID, next)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) GetOrders(ctx context.Context, filter *order.Filter, limit, page int32) ([]*order.Order, error) {
	args := m.Called(ctx, filter, limit, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockOrderService) GetOrderDetail(ctx context.Context, orderID, userID uint, isAdmin bool) (*order.Order, error) {
	args := m.Called(ctx, orderID, userID, isAdmin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) Get(ctx context.Context, userID uint) ([]cart.Line, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]cart.Line), args.Error(1)
}

func (m *MockCartService) AddItem(ctx context.Context, userID, productID uint, variantID *string, quantity int) (*cart.Item, error) {
	args := m.Called(ctx, userID, productID, variantID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Item), args.Error(1)
}

func (m *MockCartService) UpdateQuantity(ctx context.Context, userID, productID uint, variantID *string, quantity int) error {
	return m.Called(ctx, userID, productID, variantID, quantity).Error(0)
}

func (m *MockCartService) RemoveItem(ctx context.Context, userID, productID uint, variantID *string) error {
	return m.Called(ctx, userID, productID, variantID).Error(0)
}

func (m *MockCartService) Clear(ctx context.Context, userID uint) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockCartService) Checkout(ctx context.Context, userID uint, in cart.CheckoutInput) (*order.Order, *payment.RedirectPayload, error) {
	args := m.Called(ctx, userID, in)
	var o *order.Order
	var p *payment.RedirectPayload
	if args.Get(0) != nil {
		o = args.Get(0).(*order.Order)
	}
	if args.Get(1) != nil {
		p = args.Get(1).(*payment.RedirectPayload)
	}
	return o, p, args.Error(2)
}

type MockPaymentRepo struct {
	mock.Mock
}

func (m *MockPaymentRepo) SavePaymentTx(ctx context.Context, tx *sql.Tx, p *payment.Payment) error {
	return m.Called(ctx, tx, p).Error(0)
}

func (m *MockPaymentRepo) GetByTxnIDForUpdate(ctx context.Context, tx *sql.Tx, txnID string) (*payment.Payment, error) {
	args := m.Called(ctx, tx, txnID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, paymentID uint, gatewayTxnID string, raw json.RawMessage) error {
	return m.Called(ctx, tx, paymentID, gatewayTxnID, raw).Error(0)
}

func (m *MockPaymentRepo) MarkFailedTx(ctx context.Context, tx *sql.Tx, paymentID uint, reason string, raw json.RawMessage) error {
	return m.Called(ctx, tx, paymentID, reason, raw).Error(0)
}

func (m *MockPaymentRepo) StoreGatewayResponseTx(ctx context.Context, tx *sql.Tx, paymentID uint, raw json.RawMessage) error {
	return m.Called(ctx, tx, paymentID, raw).Error(0)
}

func (m *MockPaymentRepo) StatusForUser(ctx context.Context, txnID string, userID uint) (*payment.Payment, error) {
	args := m.Called(ctx, txnID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepo) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockPaymentRepo) FlagRefundDueTx(ctx context.Context, tx *sql.Tx, paymentID uint, note string) error {
	return m.Called(ctx, tx, paymentID, note).Error(0)
}

func (m *MockPaymentRepo) SaveWebhookEvent(ctx context.Context, provider, eventID, txnID string, payload json.RawMessage, signatureValid bool) (int64, bool, bool, error) {
	args := m.Called(ctx, provider, eventID, txnID, payload, signatureValid)
	return args.Get(0).(int64), args.Bool(1), args.Bool(2), args.Error(3)
}

func (m *MockPaymentRepo) MarkWebhookProcessed(ctx context.Context, webhookID int64) error {
	return m.Called(ctx, webhookID).Error(0)
}

func (m *MockPaymentRepo) MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error {
	return m.Called(ctx, webhookID, reason).Error(0)
}

// --- Fixtures ---

type fixture struct {
	router   *gin.Engine
	orders   *MockOrderService
	cart     *MockCartService
	payments *MockPaymentRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	orders := new(MockOrderService)
	cartSvc := new(MockCartService)
	payments := new(MockPaymentRepo)
	stats := &metrics.Reconciliation{}

	gateway := payment.NewPayUGateway("key", "salt", "https://shop.example.com")
	reconciler := payment.NewReconciler(nil, payments, nil, nil, stats)
	wh := webhook.NewHandler(gateway, payments, reconciler, stats)

	router := buildRouter(nil, Deps{
		Orders:   orders,
		Cart:     cartSvc,
		Payments: payments,
		Webhook:  wh,
		Stats:    stats,
	})

	return &fixture{router: router, orders: orders, cart: cartSvc, payments: payments}
}

// signToken builds a token with the same empty-secret key the middleware
// falls back to when SECRET_KEY is unset in the test environment.
func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(""))
	require.NoError(t, err)
	return signed
}

func userToken(t *testing.T) string {
	return signToken(t, jwt.MapClaims{
		"user_id": float64(7),
		"email":   "asha@example.com",
		"role":    "user",
		"name":    "Asha",
		"phone":   "9876543210",
	})
}

func adminToken(t *testing.T) string {
	return signToken(t, jwt.MapClaims{
		"user_id": float64(1),
		"email":   "ops@kiranakart.in",
		"role":    "admin",
	})
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// --- Tests ---

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	w := doJSON(t, f.router, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	w := doJSON(t, f.router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "callbacks_processed")
}

func TestAPIRequiresAuth(t *testing.T) {
	f := newFixture(t)

	w := doJSON(t, f.router, http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, f.router, http.MethodPost, "/api/orders", "", order.CreateOrderInput{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)

	f.orders.On("CreateOrder", mock.Anything, uint(7), mock.Anything).Return(
		&order.Order{ID: 101, Total: 32200, Status: order.StatusReceived},
		&payment.RedirectPayload{TxnID: "TXN123", Hash: "abc"},
		nil,
	)

	in := order.CreateOrderInput{
		Items:         []pricing.CartLine{{ProductID: 1, Quantity: 2}},
		AddressID:     3,
		PaymentMethod: order.MethodOnline,
		DeliverySlot:  "today-18-20",
	}
	w := doJSON(t, f.router, http.MethodPost, "/api/orders", userToken(t), in)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"TXN123"`)
}

func TestQuoteOrder(t *testing.T) {
	f := newFixture(t)

	f.orders.On("Quote", mock.Anything, mock.Anything).Return(
		&pricing.PricedOrder{Subtotal: 30000, GST: 1500, Total: 32200},
		nil,
	)

	in := order.CreateOrderInput{
		Items: []pricing.CartLine{{ProductID: 1, Quantity: 2}},
	}
	w := doJSON(t, f.router, http.MethodPost, "/api/orders/quote", userToken(t), in)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":32200`)
}

func TestCreateOrder_PricingFailure(t *testing.T) {
	f := newFixture(t)

	f.orders.On("CreateOrder", mock.Anything, uint(7), mock.Anything).
		Return(nil, nil, pricing.ErrEmptyCart)

	w := doJSON(t, f.router, http.MethodPost, "/api/orders", userToken(t), order.CreateOrderInput{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelOrder_InvalidTransition(t *testing.T) {
	f := newFixture(t)

	f.orders.On("CancelOrder", mock.Anything, uint(101), uint(7), false).
		Return(nil, order.ErrInvalidTransition)

	w := doJSON(t, f.router, http.MethodPut, "/api/orders/101/cancel", userToken(t), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminStatusUpdate(t *testing.T) {
	f := newFixture(t)

	t.Run("UserForbidden", func(t *testing.T) {
		w := doJSON(t, f.router, http.MethodPut, "/api/admin/orders/101/status", userToken(t),
			gin.H{"status": "PACKING"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("AdminAllowed", func(t *testing.T) {
		f.orders.On("UpdateStatus", mock.Anything, uint(101), order.StatusPacking).
			Return(&order.Order{ID: 101, Status: order.StatusPacking}, nil)

		w := doJSON(t, f.router, http.MethodPut, "/api/admin/orders/101/status", adminToken(t),
			gin.H{"status": "PACKING"})
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestPaymentStatus(t *testing.T) {
	f := newFixture(t)

	t.Run("Found", func(t *testing.T) {
		f.payments.On("StatusForUser", mock.Anything, "TXN123", uint(7)).
			Return(&payment.Payment{TransactionID: "TXN123", Status: payment.StatusPaid}, nil)

		w := doJSON(t, f.router, http.MethodGet, "/api/payments/status/TXN123", userToken(t), nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"PAID"`)
	})

	t.Run("NotOwned", func(t *testing.T) {
		f.payments.On("StatusForUser", mock.Anything, "TXN999", uint(7)).
			Return(nil, payment.ErrPaymentNotFound)

		w := doJSON(t, f.router, http.MethodGet, "/api/payments/status/TXN999", userToken(t), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCartCheckout(t *testing.T) {
	f := newFixture(t)

	f.cart.On("Checkout", mock.Anything, uint(7), mock.MatchedBy(func(in cart.CheckoutInput) bool {
		return in.AddressID == 3 && in.PaymentMethod == order.MethodCOD
	})).Return(&order.Order{ID: 101}, nil, nil)

	w := doJSON(t, f.router, http.MethodPost, "/api/cart/checkout", userToken(t),
		cart.CheckoutInput{AddressID: 3, PaymentMethod: order.MethodCOD, DeliverySlot: "today-18-20"})

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRateLimitBucketsPerUser(t *testing.T) {
	f := newFixture(t)

	f.orders.On("GetOrders", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*order.Order{}, nil)

	// two authenticated users behind the same address; together they exceed
	// what a single shared bucket would allow, so any 429 here means the
	// limiter keyed on the address instead of the user
	for _, userID := range []uint{1001, 1002} {
		token := signToken(t, jwt.MapClaims{
			"user_id": float64(userID),
			"email":   "shopper@example.com",
			"role":    "user",
		})
		for i := 0; i < 15; i++ {
			w := doJSON(t, f.router, http.MethodGet, "/api/orders", token, nil)
			require.Equal(t, http.StatusOK, w.Code)
		}
	}
}

func TestCartRoutes(t *testing.T) {
	f := newFixture(t)

	f.cart.On("Get", mock.Anything, uint(7)).Return([]cart.Line{
		{Item: cart.Item{ID: 1, ProductID: 1, Quantity: 2}, Name: "Toor Dal 1kg", UnitPricePaise: 15000, LineTotalPaise: 30000},
	}, nil)

	w := doJSON(t, f.router, http.MethodGet, "/api/cart", userToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"subtotal":30000`)

	f.cart.On("AddItem", mock.Anything, uint(7), uint(1), (*string)(nil), 2).
		Return(&cart.Item{ID: 1, ProductID: 1, Quantity: 2}, nil)

	w = doJSON(t, f.router, http.MethodPost, "/api/cart/items", userToken(t),
		gin.H{"productId": 1, "quantity": 2})
	assert.Equal(t, http.StatusCreated, w.Code)

	f.cart.On("RemoveItem", mock.Anything, uint(7), uint(1), (*string)(nil)).Return(nil)
	w = doJSON(t, f.router, http.MethodDelete, "/api/cart/items/1", userToken(t), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
