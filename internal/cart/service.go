package cart

import (
	"context"
	"errors"

	"kiranakart-be/internal/logger"
	"kiranakart-be/internal/order"
	"kiranakart-be/internal/payment"
	"kiranakart-be/internal/pricing"

	"go.uber.org/zap"
)

// A single cart line is capped; bulk purchases go through a different
// channel than the storefront.
const maxLineQuantity = 20

var (
	ErrInvalidQuantity = errors.New("quantity out of range")
	ErrCartEmpty       = errors.New("cart is empty")
)

// CheckoutInput carries everything Checkout needs besides the cart itself.
type CheckoutInput struct {
	AddressID     uint                `json:"addressId"`
	PaymentMethod order.PaymentMethod `json:"paymentMethod"`
	DeliverySlot  string              `json:"deliverySlot"`
	CouponCode    *string             `json:"couponCode,omitempty"`
}

type Service interface {
	Get(ctx context.Context, userID uint) ([]Line, error)
	AddItem(ctx context.Context, userID, productID uint, variantID *string, quantity int) (*Item, error)
	UpdateQuantity(ctx context.Context, userID, productID uint, variantID *string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID uint, variantID *string) error
	Clear(ctx context.Context, userID uint) error

	// Checkout drains the cart into an order. The cart is cleared only
	// after the order exists; a failed checkout leaves it intact.
	Checkout(ctx context.Context, userID uint, in CheckoutInput) (*order.Order, *payment.RedirectPayload, error)
}

type service struct {
	repo   Repository
	orders order.Service
}

func NewService(repo Repository, orders order.Service) Service {
	return &service{repo: repo, orders: orders}
}

func (s *service) Get(ctx context.Context, userID uint) ([]Line, error) {
	return s.repo.GetLines(ctx, userID)
}

func (s *service) AddItem(ctx context.Context, userID, productID uint, variantID *string, quantity int) (*Item, error) {
	if quantity <= 0 || quantity > maxLineQuantity {
		return nil, ErrInvalidQuantity
	}

	item := &Item{
		UserID:    userID,
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
	}
	if err := s.repo.AddItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) UpdateQuantity(ctx context.Context, userID, productID uint, variantID *string, quantity int) error {
	if quantity <= 0 || quantity > maxLineQuantity {
		return ErrInvalidQuantity
	}
	return s.repo.UpdateQuantity(ctx, userID, productID, variantID, quantity)
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uint, variantID *string) error {
	return s.repo.RemoveItem(ctx, userID, productID, variantID)
}

func (s *service) Clear(ctx context.Context, userID uint) error {
	return s.repo.Clear(ctx, userID)
}

func (s *service) Checkout(ctx context.Context, userID uint, in CheckoutInput) (*order.Order, *payment.RedirectPayload, error) {
	lines, err := s.repo.GetLines(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if len(lines) == 0 {
		return nil, nil, ErrCartEmpty
	}

	items := make([]pricing.CartLine, 0, len(lines))
	for _, l := range lines {
		variantID := ""
		if l.VariantID != nil {
			variantID = *l.VariantID
		}
		items = append(items, pricing.CartLine{
			ProductID: l.ProductID,
			VariantID: variantID,
			Quantity:  l.Quantity,
		})
	}

	o, payload, err := s.orders.CreateOrder(ctx, userID, order.CreateOrderInput{
		Items:         items,
		AddressID:     in.AddressID,
		PaymentMethod: in.PaymentMethod,
		DeliverySlot:  in.DeliverySlot,
		CouponCode:    in.CouponCode,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := s.repo.Clear(ctx, userID); err != nil {
		// the order is already committed; an uncleared cart is an
		// annoyance, not a correctness problem
		logger.FromCtx(ctx).Warn("clearing cart after checkout failed",
			zap.Uint("user_id", userID),
			zap.Error(err),
		)
	}

	return o, payload, nil
}
