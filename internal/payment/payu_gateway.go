package payment

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kiranakart-be/internal/logger"
	"kiranakart-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	payuVerifyURL   = "https://info.payu.in/merchant/postservice.php?form=2"
	serviceProvider = "payu_paisa"
)

// Hash layouts. Field order and the exact number of empty pipe-delimited
// slots are fixed by the gateway; a single misplaced pipe makes every hash
// mismatch.
const (
	// udf1..udf5 plus six reserved slots between email and salt.
	requestEmptyFields = 11
	// reserved slots between status and email on the response side.
	responseEmptyFields = 10
)

var ErrTamperedSignature = errors.New("callback signature mismatch")

type payuGateway struct {
	merchantKey  string
	merchantSalt string
	callbackURL  string
	verifyURL    string
	httpClient   *http.Client
}

// NewPayUGateway builds the PayU adapter. surl and furl both resolve to
// callbackURL; which one the gateway hits carries no meaning, only the
// verified status field inside the payload does.
func NewPayUGateway(merchantKey, merchantSalt, baseURL string) Gateway {
	if merchantKey == "" || merchantSalt == "" {
		logger.L().Warn("PayU merchant credentials are empty")
	}

	return &payuGateway{
		merchantKey:  merchantKey,
		merchantSalt: merchantSalt,
		callbackURL:  strings.TrimRight(baseURL, "/") + "/payments/callback",
		verifyURL:    payuVerifyURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// NewTransactionID generates a globally unique transaction id:
// millisecond timestamp plus a random suffix.
func NewTransactionID() string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("TXN%d%s", time.Now().UnixMilli(), suffix)
}

func (g *payuGateway) Initiate(req InitiateRequest) (*RedirectPayload, error) {
	if req.AmountPaise <= 0 {
		return nil, errors.New("amount must be positive")
	}
	if req.Buyer.Email == "" {
		return nil, errors.New("buyer email required")
	}

	txnID := NewTransactionID()
	amount := utils.FormatPaise(req.AmountPaise)

	payload := &RedirectPayload{
		Key:             g.merchantKey,
		TxnID:           txnID,
		Amount:          amount,
		ProductInfo:     req.ProductInfo,
		FirstName:       req.Buyer.Name,
		Email:           req.Buyer.Email,
		Phone:           req.Buyer.Phone,
		SURL:            g.callbackURL,
		FURL:            g.callbackURL,
		Hash:            g.requestHash(txnID, amount, req.ProductInfo, req.Buyer.Name, req.Buyer.Email),
		ServiceProvider: serviceProvider,
		Country:         "India",
	}

	logger.L().Info("payment initiated",
		zap.String("txnid", txnID),
		zap.String("amount", amount),
	)

	return payload, nil
}

func (g *payuGateway) VerifyCallback(form url.Values) (*CallbackResult, error) {
	status := form.Get("status")
	txnID := form.Get("txnid")
	amount := form.Get("amount")
	productInfo := form.Get("productinfo")
	firstName := form.Get("firstname")
	email := form.Get("email")
	theirs := form.Get("hash")

	ours := g.responseHash(status, email, firstName, productInfo, amount, txnID)
	if subtle.ConstantTimeCompare([]byte(ours), []byte(theirs)) != 1 {
		logger.L().Warn("callback hash mismatch",
			zap.String("txnid", txnID),
			zap.String("status", status),
		)
		return nil, ErrTamperedSignature
	}

	raw, err := json.Marshal(flattenForm(form))
	if err != nil {
		return nil, err
	}

	return &CallbackResult{
		Status:       status,
		TxnID:        txnID,
		Amount:       amount,
		ProductInfo:  productInfo,
		FirstName:    firstName,
		Email:        email,
		MihPayID:     form.Get("mihpayid"),
		ErrorMessage: form.Get("error_Message"),
		Raw:          raw,
	}, nil
}

func (g *payuGateway) FetchStatus(ctx context.Context, txnID string) (*CallbackResult, error) {
	log := logger.FromCtx(ctx).With(zap.String("txnid", txnID))

	verifyHash := sha512Hex(strings.Join([]string{
		g.merchantKey, "verify_payment", txnID, g.merchantSalt,
	}, "|"))

	form := url.Values{}
	form.Set("key", g.merchantKey)
	form.Set("command", "verify_payment")
	form.Set("var1", txnID)
	form.Set("hash", verifyHash)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Error("verify_payment request failed", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read verify_payment response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Error("verify_payment returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, fmt.Errorf("payu verify error: %s", string(bodyBytes))
	}

	var res struct {
		Status             int `json:"status"`
		TransactionDetails map[string]struct {
			MihPayID     string `json:"mihpayid"`
			Status       string `json:"status"`
			Amount       string `json:"transaction_amount"`
			ErrorMessage string `json:"error_Message"`
		} `json:"transaction_details"`
	}
	if err := json.Unmarshal(bodyBytes, &res); err != nil {
		log.Error("failed decoding verify_payment response", zap.Error(err))
		return nil, err
	}

	detail, ok := res.TransactionDetails[txnID]
	if !ok {
		return nil, fmt.Errorf("transaction %s not found at gateway", txnID)
	}

	status := strings.ToLower(detail.Status)
	// anything the gateway does not report as captured counts as failed for
	// a transaction we are sweeping past its timeout window
	if status != CallbackSuccess && status != CallbackPending {
		status = CallbackFailure
	}

	raw := json.RawMessage(bodyBytes)
	return &CallbackResult{
		Status:       status,
		TxnID:        txnID,
		Amount:       detail.Amount,
		MihPayID:     detail.MihPayID,
		ErrorMessage: detail.ErrorMessage,
		Raw:          raw,
	}, nil
}

// requestHash covers the outbound payment request:
// key|txnid|amount|productinfo|firstname|email|udf1..udf5||||||salt
func (g *payuGateway) requestHash(txnID, amount, productInfo, firstName, email string) string {
	fields := make([]string, 0, 7+requestEmptyFields)
	fields = append(fields, g.merchantKey, txnID, amount, productInfo, firstName, email)
	for i := 0; i < requestEmptyFields; i++ {
		fields = append(fields, "")
	}
	fields = append(fields, g.merchantSalt)
	return sha512Hex(strings.Join(fields, "|"))
}

// responseHash covers the inbound callback, the request sequence reversed:
// salt|status|...|email|firstname|productinfo|amount|txnid|key
func (g *payuGateway) responseHash(status, email, firstName, productInfo, amount, txnID string) string {
	fields := make([]string, 0, 8+responseEmptyFields)
	fields = append(fields, g.merchantSalt, status)
	for i := 0; i < responseEmptyFields; i++ {
		fields = append(fields, "")
	}
	fields = append(fields, email, firstName, productInfo, amount, txnID, g.merchantKey)
	return sha512Hex(strings.Join(fields, "|"))
}

func sha512Hex(s string) string {
	sum := sha512.Sum512([]byte(s))
	return hex.EncodeToString(sum[:])
}

func flattenForm(form url.Values) map[string]string {
	out := make(map[string]string, len(form))
	for k := range form {
		out[k] = form.Get(k)
	}
	return out
}
