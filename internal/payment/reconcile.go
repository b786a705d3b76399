package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kiranakart-be/internal/logger"
	"kiranakart-be/internal/metrics"

	"go.uber.org/zap"
)

// ErrOrderUnconfirmable reports that an order reached a terminal state
// before its payment settled. The capture stands; the order stays dead.
var ErrOrderUnconfirmable = errors.New("order is in a terminal state")

// OrderLedger is the slice of the order store the reconciler mutates. Both
// methods run inside the reconciliation transaction; CancelFailedTx also
// restores the order's stock reservation. ConfirmPaidTx returns
// ErrOrderUnconfirmable when the order was canceled in the meantime.
type OrderLedger interface {
	ConfirmPaidTx(ctx context.Context, tx *sql.Tx, orderID uint) error
	CancelFailedTx(ctx context.Context, tx *sql.Tx, orderID uint) error
}

// Notifier delivers customer-facing messages. Failures are logged by the
// implementation and never surface into the reconciliation outcome.
type Notifier interface {
	OrderConfirmed(ctx context.Context, orderID uint, txnID string)
	OrderCanceled(ctx context.Context, orderID uint, txnID, reason string)
}

// Reconciler applies a verified gateway result to the payment, order, and
// stock triple. The same result may arrive any number of times over any mix
// of callback, webhook, and sweeper; only the first application mutates.
type Reconciler struct {
	db       *sql.DB
	repo     Repository
	orders   OrderLedger
	notifier Notifier
	stats    *metrics.Reconciliation
}

func NewReconciler(db *sql.DB, repo Repository, orders OrderLedger, notifier Notifier, stats *metrics.Reconciliation) *Reconciler {
	return &Reconciler{
		db:       db,
		repo:     repo,
		orders:   orders,
		notifier: notifier,
		stats:    stats,
	}
}

// Process runs the per-transaction state machine. The payment row is locked
// for the duration of the transaction and mutated only while still PENDING,
// so duplicate deliveries and concurrent deliveries both collapse into
// no-ops after the first commit.
func (r *Reconciler) Process(ctx context.Context, res *CallbackResult) error {
	log := logger.FromCtx(ctx).With(
		zap.String("txnid", res.TxnID),
		zap.String("gateway_status", res.Status),
	)
	r.stats.Processed.Inc()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	p, err := r.repo.GetByTxnIDForUpdate(ctx, tx, res.TxnID)
	if err != nil {
		log.Warn("reconciliation lookup failed", zap.Error(err))
		return err
	}

	if p.Status != StatusPending {
		r.stats.Duplicate.Inc()
		log.Info("duplicate gateway result ignored",
			zap.String("payment_status", string(p.Status)),
		)
		return nil
	}

	switch res.Status {
	case CallbackSuccess:
		if err := r.repo.MarkPaidTx(ctx, tx, p.ID, res.MihPayID, res.Raw); err != nil {
			return err
		}
		err := r.orders.ConfirmPaidTx(ctx, tx, p.OrderID)
		if errors.Is(err, ErrOrderUnconfirmable) {
			// the user canceled while the payer settled. The order stays
			// canceled and its re-credited stock stays on the shelf; the
			// captured amount is flagged for manual refund.
			if err := r.repo.FlagRefundDueTx(ctx, tx, p.ID, "order canceled before payment settled, refund due"); err != nil {
				return err
			}
			if err := tx.Commit(); err != nil {
				return err
			}

			r.stats.RefundDue.Inc()
			log.Warn("payment captured for canceled order, refund due",
				zap.Uint("order_id", p.OrderID),
			)
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		r.stats.Paid.Inc()
		log.Info("payment reconciled as paid", zap.Uint("order_id", p.OrderID))
		r.notifier.OrderConfirmed(ctx, p.OrderID, res.TxnID)
		return nil

	case CallbackFailure:
		reason := res.ErrorMessage
		if reason == "" {
			reason = "payment failed at gateway"
		}
		if err := r.repo.MarkFailedTx(ctx, tx, p.ID, reason, res.Raw); err != nil {
			return err
		}
		if err := r.orders.CancelFailedTx(ctx, tx, p.OrderID); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		r.stats.Failed.Inc()
		log.Info("payment reconciled as failed",
			zap.Uint("order_id", p.OrderID),
			zap.String("reason", reason),
		)
		r.notifier.OrderCanceled(ctx, p.OrderID, res.TxnID, reason)
		return nil

	case CallbackPending:
		// keep the raw response, nothing transitions
		if err := r.repo.StoreGatewayResponseTx(ctx, tx, p.ID, res.Raw); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		log.Info("payment still pending at gateway")
		return nil

	default:
		return fmt.Errorf("unrecognized gateway status %q for %s", res.Status, res.TxnID)
	}
}
