package notification

import (
	"context"

	"kiranakart-be/internal/logger"

	"go.uber.org/zap"
)

// Notifier delivers order lifecycle messages to the customer. Delivery is
// best effort everywhere it is called; a failed notification never changes
// an order's fate.
type Notifier interface {
	OrderConfirmed(ctx context.Context, orderID uint, txnID string)
	OrderCanceled(ctx context.Context, orderID uint, txnID, reason string)
}

// logNotifier writes notifications to the application log. Stands in until
// the SMS/WhatsApp provider integration lands.
type logNotifier struct{}

func NewLogNotifier() Notifier {
	return &logNotifier{}
}

func (n *logNotifier) OrderConfirmed(ctx context.Context, orderID uint, txnID string) {
	logger.FromCtx(ctx).Info("order confirmation notification",
		zap.Uint("order_id", orderID),
		zap.String("txnid", txnID),
	)
}

func (n *logNotifier) OrderCanceled(ctx context.Context, orderID uint, txnID, reason string) {
	logger.FromCtx(ctx).Info("order cancellation notification",
		zap.Uint("order_id", orderID),
		zap.String("txnid", txnID),
		zap.String("reason", reason),
	)
}
