package payment

import (
	"context"
	"net/url"
)

// InitiateRequest carries everything the adapter needs to build a signed
// redirect. Amount is the server-computed order total; client-submitted
// totals never reach this struct.
type InitiateRequest struct {
	AmountPaise int64
	ProductInfo string
	Buyer       Buyer
}

type Gateway interface {
	// Initiate generates a fresh transaction id and the signed redirect
	// payload. It performs no network I/O; PayU is reached by the payer's
	// browser posting the payload.
	Initiate(req InitiateRequest) (*RedirectPayload, error)

	// VerifyCallback checks the response hash of an inbound callback or
	// webhook. ErrTamperedSignature means the payload must be discarded
	// without touching any state.
	VerifyCallback(form url.Values) (*CallbackResult, error)

	// FetchStatus polls the gateway's verification API for a transaction.
	// Used by the stale-payment sweeper, not the callback path.
	FetchStatus(ctx context.Context, txnID string) (*CallbackResult, error)
}
