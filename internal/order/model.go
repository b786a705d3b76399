package order

import (
	"time"
)

type OrderStatus string

const (
	StatusReceived  OrderStatus = "RECEIVED"
	StatusPacking   OrderStatus = "PACKING"
	StatusOnTheWay  OrderStatus = "ON_THE_WAY"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCanceled  OrderStatus = "CANCELED"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

type PaymentMethod string

const (
	MethodOnline PaymentMethod = "ONLINE"
	MethodCOD    PaymentMethod = "COD"
)

// Address is the delivery address snapshot frozen into the order at creation.
type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	Landmark   string `json:"landmark,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
}

type Order struct {
	ID              uint          `json:"id"`
	UserID          uint          `json:"userId"`
	AddressSnapshot Address       `json:"address"`
	Items           []OrderItem   `json:"items"`
	Subtotal        int64         `json:"subtotal"`
	Discount        int64         `json:"discount"`
	DeliveryFee     int64         `json:"deliveryFee"`
	HandlingCharge  int64         `json:"handlingCharge"`
	PlatformFee     int64         `json:"platformFee"`
	GST             int64         `json:"gst"`
	Total           int64         `json:"total"`
	Status          OrderStatus   `json:"status"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
	DeliverySlot    string        `json:"deliverySlot"`
	CouponCode      *string       `json:"couponCode,omitempty"`
	StockReleased   bool          `json:"-"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// OrderItem carries the price snapshot taken at purchase time. Unit prices
// are never recomputed from the live catalog after creation.
type OrderItem struct {
	ID             uint    `json:"id"`
	OrderID        uint    `json:"orderId"`
	ProductID      uint    `json:"productId"`
	VariantID      *string `json:"variantId,omitempty"`
	Name           string  `json:"name"`
	Quantity       int     `json:"quantity"`
	UnitPricePaise int64   `json:"unitPrice"`
	LineTotalPaise int64   `json:"lineTotal"`
}
