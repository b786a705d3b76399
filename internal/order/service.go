package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kiranakart-be/internal/catalog"
	"kiranakart-be/internal/logger"
	"kiranakart-be/internal/payment"
	"kiranakart-be/internal/pricing"
	"kiranakart-be/internal/utils"

	"go.uber.org/zap"
)

var ErrInvalidPaymentMethod = errors.New("invalid payment method")

// Launch promo coupons, flat amounts in paise or a percent of subtotal.
// TODO: move coupons into the database once marketing needs to rotate them
// without a deploy.
var coupons = map[string]struct {
	FlatPaise int64
	Percent   int64
}{
	"KIRANA50": {FlatPaise: 5000},
	"FRESH10":  {Percent: 10},
}

type CreateOrderInput struct {
	Items         []pricing.CartLine `json:"items"`
	AddressID     uint               `json:"addressId"`
	PaymentMethod PaymentMethod      `json:"paymentMethod"`
	DeliverySlot  string             `json:"deliverySlot"`
	CouponCode    *string            `json:"couponCode,omitempty"`
}

type Service interface {
	// CreateOrder reprices the cart from the live catalog, snapshots the
	// delivery address, and creates the order with its stock reservation.
	// For ONLINE orders the returned payload is the signed gateway redirect;
	// for COD it is nil.
	CreateOrder(ctx context.Context, userID uint, in CreateOrderInput) (*Order, *payment.RedirectPayload, error)

	// Quote prices a cart without creating anything.
	Quote(ctx context.Context, in CreateOrderInput) (*pricing.PricedOrder, error)

	CancelOrder(ctx context.Context, orderID, userID uint, isAdmin bool) (*Order, error)
	UpdateStatus(ctx context.Context, orderID uint, next OrderStatus) (*Order, error)
	GetOrders(ctx context.Context, filter *Filter, limit, page int32) ([]*Order, error)
	GetOrderDetail(ctx context.Context, orderID, userID uint, isAdmin bool) (*Order, error)
}

type service struct {
	repo    Repository
	catalog catalog.Repository
	gateway payment.Gateway
}

func NewService(repo Repository, cat catalog.Repository, gateway payment.Gateway) Service {
	return &service{
		repo:    repo,
		catalog: cat,
		gateway: gateway,
	}
}

func (s *service) price(ctx context.Context, in CreateOrderInput) (*pricing.PricedOrder, error) {
	keys := make([]catalog.Key, 0, len(in.Items))
	for _, line := range in.Items {
		keys = append(keys, catalog.Key{ProductID: line.ProductID, VariantID: line.VariantID})
	}

	entries, err := s.catalog.GetForPricing(ctx, keys)
	if err != nil {
		return nil, err
	}

	return pricing.Price(in.Items, entries, s.resolveCoupon(in.CouponCode, in.Items, entries))
}

// resolveCoupon turns a coupon code into a flat discount amount. Unknown
// codes resolve to zero rather than failing the order.
func (s *service) resolveCoupon(code *string, lines []pricing.CartLine, entries map[catalog.Key]catalog.Entry) int64 {
	if code == nil {
		return 0
	}
	c, ok := coupons[strings.ToUpper(strings.TrimSpace(*code))]
	if !ok {
		return 0
	}
	if c.FlatPaise > 0 {
		return c.FlatPaise
	}

	var subtotal int64
	for _, line := range lines {
		if e, ok := entries[catalog.Key{ProductID: line.ProductID, VariantID: line.VariantID}]; ok {
			subtotal += e.PricePaise * int64(line.Quantity)
		}
	}
	return subtotal * c.Percent / 100
}

func (s *service) Quote(ctx context.Context, in CreateOrderInput) (*pricing.PricedOrder, error) {
	return s.price(ctx, in)
}

func (s *service) CreateOrder(ctx context.Context, userID uint, in CreateOrderInput) (*Order, *payment.RedirectPayload, error) {
	if userID == 0 {
		return nil, nil, ErrUnauthorized
	}
	if in.PaymentMethod != MethodOnline && in.PaymentMethod != MethodCOD {
		return nil, nil, ErrInvalidPaymentMethod
	}

	log := logger.FromCtx(ctx).With(
		zap.Uint("user_id", userID),
		zap.String("payment_method", string(in.PaymentMethod)),
	)

	addr, err := s.repo.GetUserAddress(ctx, in.AddressID, userID)
	if err != nil {
		return nil, nil, err
	}

	priced, err := s.price(ctx, in)
	if err != nil {
		return nil, nil, err
	}

	o := &Order{
		UserID:          userID,
		AddressSnapshot: *addr,
		Subtotal:        priced.Subtotal,
		Discount:        priced.Discount,
		DeliveryFee:     priced.DeliveryFee,
		HandlingCharge:  priced.HandlingCharge,
		PlatformFee:     priced.PlatformFee,
		GST:             priced.GST,
		Total:           priced.Total,
		Status:          StatusReceived,
		PaymentStatus:   PaymentPending,
		PaymentMethod:   in.PaymentMethod,
		DeliverySlot:    in.DeliverySlot,
		CouponCode:      in.CouponCode,
	}
	for _, line := range priced.Lines {
		o.Items = append(o.Items, OrderItem{
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			Name:           line.Name,
			Quantity:       line.Quantity,
			UnitPricePaise: line.UnitPricePaise,
			LineTotalPaise: line.LineTotalPaise,
		})
	}

	var (
		attempt *payment.Payment
		payload *payment.RedirectPayload
	)

	if in.PaymentMethod == MethodOnline {
		payload, err = s.gateway.Initiate(payment.InitiateRequest{
			AmountPaise: o.Total,
			ProductInfo: fmt.Sprintf("KiranaKart order (%d items)", len(o.Items)),
			Buyer: payment.Buyer{
				Name:  utils.GetUserNameFromContext(ctx),
				Email: utils.GetUserEmailFromContext(ctx),
				Phone: utils.GetUserPhoneFromContext(ctx),
			},
		})
		if err != nil {
			return nil, nil, err
		}

		attempt = &payment.Payment{
			TransactionID: payload.TxnID,
			AmountPaise:   o.Total,
			Status:        payment.StatusPending,
		}
	}

	if err := s.repo.CreateOrderTx(ctx, o, attempt); err != nil {
		log.Error("order creation failed", zap.Error(err))
		return nil, nil, err
	}

	log.Info("order created",
		zap.Uint("order_id", o.ID),
		zap.Int64("total", o.Total),
	)

	return o, payload, nil
}

func (s *service) CancelOrder(ctx context.Context, orderID, userID uint, isAdmin bool) (*Order, error) {
	o, err := s.repo.CancelOrderTx(ctx, orderID, userID, isAdmin)
	if err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("order canceled",
		zap.Uint("order_id", orderID),
		zap.Uint("user_id", userID),
	)
	return o, nil
}

func (s *service) UpdateStatus(ctx context.Context, orderID uint, next OrderStatus) (*Order, error) {
	if !ValidStatus(next) {
		return nil, fmt.Errorf("unknown status %q: %w", next, ErrInvalidTransition)
	}

	o, err := s.repo.UpdateStatusTx(ctx, orderID, next)
	if err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("order status updated",
		zap.Uint("order_id", orderID),
		zap.String("status", string(next)),
	)
	return o, nil
}

func (s *service) GetOrders(ctx context.Context, filter *Filter, limit, page int32) ([]*Order, error) {
	userID, ok := utils.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	return s.repo.GetOrders(ctx, userID, utils.IsAdmin(ctx), filter, limit, page)
}

func (s *service) GetOrderDetail(ctx context.Context, orderID, userID uint, isAdmin bool) (*Order, error) {
	o, err := s.repo.GetOrderDetail(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.UserID != userID {
		return nil, ErrUnauthorized
	}
	return o, nil
}
