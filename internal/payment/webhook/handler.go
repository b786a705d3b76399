package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"kiranakart-be/internal/logger"
	"kiranakart-be/internal/metrics"
	"kiranakart-be/internal/payment"

	"go.uber.org/zap"
)

const provider = "PAYU"

// Handler receives PayU's form-encoded results. The browser-redirect
// callback and the server-to-server webhook carry the same payload and run
// the same path; the hash is the only authentication either one gets.
type Handler struct {
	gateway    payment.Gateway
	repo       payment.Repository
	reconciler *payment.Reconciler
	stats      *metrics.Reconciliation
}

func NewHandler(gateway payment.Gateway, repo payment.Repository, reconciler *payment.Reconciler, stats *metrics.Reconciliation) *Handler {
	return &Handler{
		gateway:    gateway,
		repo:       repo,
		reconciler: reconciler,
		stats:      stats,
	}
}

// Handle processes one gateway result. Safe to invoke any number of times
// for the same transaction: duplicates short-circuit either at the webhook
// dedupe log or inside the reconciler.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}
	form := r.PostForm
	txnID := form.Get("txnid")

	raw, err := json.Marshal(flatten(form))
	if err != nil {
		http.Error(w, "unreadable payload", http.StatusBadRequest)
		return
	}

	res, err := h.gateway.VerifyCallback(form)
	if errors.Is(err, payment.ErrTamperedSignature) {
		h.stats.Tampered.Inc()
		log.Warn("tampered gateway payload discarded",
			zap.String("txnid", txnID),
			zap.ByteString("payload", raw),
		)
		// keep the rejected payload for manual reconciliation; order and
		// payment state stay untouched
		if id, dup, _, serr := h.repo.SaveWebhookEvent(ctx, provider, eventID(form.Get("mihpayid"), txnID, form.Get("status")), txnID, raw, false); serr == nil && !dup {
			_ = h.repo.MarkWebhookFailed(ctx, id, "signature mismatch")
		}
		http.Error(w, "signature mismatch", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, "verification failed", http.StatusBadRequest)
		return
	}

	webhookID, duplicate, processed, err := h.repo.SaveWebhookEvent(ctx, provider, eventID(res.MihPayID, res.TxnID, res.Status), res.TxnID, res.Raw, true)
	if err != nil {
		log.Error("recording webhook event failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if duplicate && processed {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
		return
	}
	// a retry of a delivery that never finished reconciling falls through;
	// the reconciler is idempotent, so re-running it is safe

	if err := h.reconciler.Process(ctx, res); err != nil {
		_ = h.repo.MarkWebhookFailed(ctx, webhookID, err.Error())

		if errors.Is(err, payment.ErrPaymentNotFound) {
			http.Error(w, "unknown transaction", http.StatusNotFound)
			return
		}
		http.Error(w, "reconciliation failed", http.StatusInternalServerError)
		return
	}

	if err := h.repo.MarkWebhookProcessed(ctx, webhookID); err != nil {
		log.Warn("marking webhook processed failed", zap.Error(err))
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

// eventID keys the dedupe log. PayU sends no event id of its own, so one
// delivery is identified by the gateway transaction plus the reported status.
func eventID(mihpayid, txnID, status string) string {
	return fmt.Sprintf("%s:%s:%s", mihpayid, txnID, status)
}

func flatten(form map[string][]string) map[string]string {
	out := make(map[string]string, len(form))
	for k, v := range form {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
