package payment

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
	StatusFailed  Status = "FAILED"
)

// Gateway-side callback statuses.
const (
	CallbackSuccess = "success"
	CallbackFailure = "failure"
	CallbackPending = "pending"
)

// Payment is one payment attempt against an order. An order may accumulate
// several attempts across retries but at most one ends up PAID.
// TransactionID is the idempotency key for reconciliation.
type Payment struct {
	ID              uint            `json:"id"`
	OrderID         uint            `json:"orderId"`
	TransactionID   string          `json:"transactionId"`
	AmountPaise     int64           `json:"amount"`
	Status          Status          `json:"status"`
	GatewayTxnID    *string         `json:"gatewayTransactionId,omitempty"`
	GatewayResponse json.RawMessage `json:"-"`
	FailureReason   *string         `json:"failureReason,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`
}

// Buyer is the payer identity embedded in the signed request.
type Buyer struct {
	Name  string
	Email string
	Phone string
}

// RedirectPayload is the form the storefront posts to the gateway. Every
// field is part of, or covered by, the request hash.
type RedirectPayload struct {
	Key             string `json:"key"`
	TxnID           string `json:"txnid"`
	Amount          string `json:"amount"`
	ProductInfo     string `json:"productinfo"`
	FirstName       string `json:"firstname"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	SURL            string `json:"surl"`
	FURL            string `json:"furl"`
	Hash            string `json:"hash"`
	ServiceProvider string `json:"service_provider"`
	Address1        string `json:"address1,omitempty"`
	City            string `json:"city,omitempty"`
	State           string `json:"state,omitempty"`
	Zipcode         string `json:"zipcode,omitempty"`
	Country         string `json:"country"`
}

// CallbackResult is a gateway callback after signature verification.
type CallbackResult struct {
	Status       string
	TxnID        string
	Amount       string
	ProductInfo  string
	FirstName    string
	Email        string
	MihPayID     string
	ErrorMessage string
	Raw          json.RawMessage
}
