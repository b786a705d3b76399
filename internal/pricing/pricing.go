package pricing

import (
	"errors"
	"fmt"

	"kiranakart-be/internal/catalog"
)

// Business constants, all amounts in paise.
const (
	FreeDeliveryThresholdPaise int64 = 19900
	DeliveryFeePaise           int64 = 2500
	HandlingChargePaise        int64 = 500
	PlatformFeePaise           int64 = 200
	GSTPercent                 int64 = 5
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrUnknownProduct  = errors.New("unknown product")
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	ErrStockExceeded   = errors.New("requested quantity exceeds stock")
)

type CartLine struct {
	ProductID uint   `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity"`
}

type PricedLine struct {
	ProductID      uint    `json:"productId"`
	VariantID      *string `json:"variantId,omitempty"`
	Name           string  `json:"name"`
	UnitPricePaise int64   `json:"unitPrice"`
	Quantity       int     `json:"quantity"`
	LineTotalPaise int64   `json:"lineTotal"`
}

type PricedOrder struct {
	Lines          []PricedLine `json:"lines"`
	Subtotal       int64        `json:"subtotal"`
	Discount       int64        `json:"discount"`
	DeliveryFee    int64        `json:"deliveryFee"`
	HandlingCharge int64        `json:"handlingCharge"`
	PlatformFee    int64        `json:"platformFee"`
	GST            int64        `json:"gst"`
	Total          int64        `json:"total"`
	Savings        int64        `json:"savings"`
}

// Price computes the full order breakdown from cart lines and the catalog
// entries resolved for them. It is a pure function: no clock, no randomness,
// no side effects, so the same inputs always produce the same output. Failure
// is atomic; a partial PricedOrder is never returned.
//
// Stock is checked here to fail fast, and re-checked under row locks when the
// reservation runs, so a pass here is not a guarantee.
func Price(lines []CartLine, entries map[catalog.Key]catalog.Entry, discount int64) (*PricedOrder, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	if discount < 0 {
		discount = 0
	}

	priced := make([]PricedLine, 0, len(lines))
	var subtotal int64

	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("product %d: %w", line.ProductID, ErrInvalidQuantity)
		}

		entry, ok := entries[catalog.Key{ProductID: line.ProductID, VariantID: line.VariantID}]
		if !ok {
			return nil, fmt.Errorf("product %d variant %q: %w", line.ProductID, line.VariantID, ErrUnknownProduct)
		}
		if line.Quantity > entry.Stock {
			return nil, fmt.Errorf("product %d: %w", line.ProductID, ErrStockExceeded)
		}

		lineTotal := entry.PricePaise * int64(line.Quantity)
		subtotal += lineTotal
		priced = append(priced, PricedLine{
			ProductID:      entry.ProductID,
			VariantID:      entry.VariantID,
			Name:           entry.Name,
			UnitPricePaise: entry.PricePaise,
			Quantity:       line.Quantity,
			LineTotalPaise: lineTotal,
		})
	}

	if discount > subtotal {
		discount = subtotal
	}

	deliveryFee := DeliveryFeePaise
	if subtotal >= FreeDeliveryThresholdPaise {
		deliveryFee = 0
	}

	gst := roundHalfUp((subtotal-discount)*GSTPercent, 100)

	savings := discount
	if deliveryFee == 0 {
		savings += DeliveryFeePaise
	}

	out := &PricedOrder{
		Lines:          priced,
		Subtotal:       subtotal,
		Discount:       discount,
		DeliveryFee:    deliveryFee,
		HandlingCharge: HandlingChargePaise,
		PlatformFee:    PlatformFeePaise,
		GST:            gst,
		Savings:        savings,
	}
	out.Total = out.Subtotal - out.Discount + out.DeliveryFee + out.HandlingCharge + out.PlatformFee + out.GST
	return out, nil
}

// roundHalfUp divides numerator by denominator rounding half away from zero.
func roundHalfUp(numerator, denominator int64) int64 {
	return (numerator + denominator/2) / denominator
}
