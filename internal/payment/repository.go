package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

var ErrPaymentNotFound = errors.New("payment not found")

type Repository interface {
	// SavePaymentTx inserts the payment attempt inside the order-creation
	// transaction so a failed order insert never leaves an orphan attempt.
	SavePaymentTx(ctx context.Context, tx *sql.Tx, p *Payment) error

	// GetByTxnIDForUpdate locks the payment row for the duration of a
	// reconciliation transaction. Concurrent callbacks for the same
	// transaction id serialize here.
	GetByTxnIDForUpdate(ctx context.Context, tx *sql.Tx, txnID string) (*Payment, error)

	MarkPaidTx(ctx context.Context, tx *sql.Tx, paymentID uint, gatewayTxnID string, raw json.RawMessage) error
	MarkFailedTx(ctx context.Context, tx *sql.Tx, paymentID uint, reason string, raw json.RawMessage) error
	StoreGatewayResponseTx(ctx context.Context, tx *sql.Tx, paymentID uint, raw json.RawMessage) error

	// FlagRefundDueTx annotates a PAID payment whose order can no longer be
	// fulfilled. The status stays PAID; the note routes it to manual refund.
	FlagRefundDueTx(ctx context.Context, tx *sql.Tx, paymentID uint, note string) error

	// StatusForUser resolves a transaction id to its payment, scoped to the
	// order owner. Returns ErrPaymentNotFound for other users' transactions
	// so the endpoint does not leak their existence.
	StatusForUser(ctx context.Context, txnID string, userID uint) (*Payment, error)

	// ListStalePending returns transaction ids of ONLINE payments still
	// PENDING past the cutoff, oldest first.
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]string, error)

	// SaveWebhookEvent records one gateway delivery. A retry of an already
	// stored delivery reports duplicate=true plus whether the first copy ever
	// finished reconciliation, so the caller can decide to reprocess.
	SaveWebhookEvent(ctx context.Context, provider, eventID, txnID string, payload json.RawMessage, signatureValid bool) (webhookID int64, duplicate, processed bool, err error)
	MarkWebhookProcessed(ctx context.Context, webhookID int64) error
	MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SavePaymentTx(ctx context.Context, tx *sql.Tx, p *Payment) error {
	return tx.QueryRowContext(ctx, `
		INSERT INTO payments (order_id, transaction_id, amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, p.OrderID, p.TransactionID, p.AmountPaise, p.Status).Scan(&p.ID, &p.CreatedAt)
}

func (r *repository) GetByTxnIDForUpdate(ctx context.Context, tx *sql.Tx, txnID string) (*Payment, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, order_id, transaction_id, amount, status, gateway_txn_id, failure_reason, created_at, completed_at
		FROM payments
		WHERE transaction_id = $1
		FOR UPDATE
	`, txnID)

	var p Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.TransactionID, &p.AmountPaise, &p.Status,
		&p.GatewayTxnID, &p.FailureReason, &p.CreatedAt, &p.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) MarkPaidTx(ctx context.Context, tx *sql.Tx, paymentID uint, gatewayTxnID string, raw json.RawMessage) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $2, gateway_txn_id = $3, gateway_response = $4, completed_at = now()
		WHERE id = $1
	`, paymentID, StatusPaid, gatewayTxnID, raw)
	return err
}

func (r *repository) MarkFailedTx(ctx context.Context, tx *sql.Tx, paymentID uint, reason string, raw json.RawMessage) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $2, failure_reason = $3, gateway_response = $4, completed_at = now()
		WHERE id = $1
	`, paymentID, StatusFailed, reason, raw)
	return err
}

func (r *repository) StoreGatewayResponseTx(ctx context.Context, tx *sql.Tx, paymentID uint, raw json.RawMessage) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments SET gateway_response = $2 WHERE id = $1
	`, paymentID, raw)
	return err
}

func (r *repository) FlagRefundDueTx(ctx context.Context, tx *sql.Tx, paymentID uint, note string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments SET failure_reason = $2 WHERE id = $1
	`, paymentID, note)
	return err
}

func (r *repository) StatusForUser(ctx context.Context, txnID string, userID uint) (*Payment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT p.id, p.order_id, p.transaction_id, p.amount, p.status, p.gateway_txn_id, p.failure_reason, p.created_at, p.completed_at
		FROM payments p
		JOIN orders o ON o.id = p.order_id
		WHERE p.transaction_id = $1 AND o.user_id = $2
	`, txnID, userID)

	var p Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.TransactionID, &p.AmountPaise, &p.Status,
		&p.GatewayTxnID, &p.FailureReason, &p.CreatedAt, &p.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.transaction_id
		FROM payments p
		JOIN orders o ON o.id = p.order_id
		WHERE p.status = $1 AND o.payment_method = 'ONLINE' AND p.created_at < $2
		ORDER BY p.created_at
		LIMIT $3
	`, StatusPending, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) SaveWebhookEvent(
	ctx context.Context,
	provider string,
	eventID string,
	txnID string,
	payload json.RawMessage,
	signatureValid bool,
) (int64, bool, bool, error) {

	const q = `
	INSERT INTO payment_webhooks (provider, event_id, transaction_id, signature_valid, payload)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (provider, event_id)
	DO NOTHING
	RETURNING id;
	`

	var id int64
	err := r.db.QueryRowContext(ctx, q, provider, eventID, txnID, signatureValid, payload).Scan(&id)
	if err == nil {
		return id, false, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, false, err
	}

	// Retry of a delivery already on file. Report whether the stored copy
	// made it through reconciliation.
	var processed bool
	err = r.db.QueryRowContext(ctx, `
		SELECT id, processed_at IS NOT NULL
		FROM payment_webhooks
		WHERE provider = $1 AND event_id = $2
	`, provider, eventID).Scan(&id, &processed)
	if err != nil {
		return 0, true, false, err
	}
	return id, true, processed, nil
}

func (r *repository) MarkWebhookProcessed(ctx context.Context, webhookID int64) error {
	const q = `
	UPDATE payment_webhooks
	SET processed_at = now()
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID)
	return err
}

func (r *repository) MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error {
	const q = `
	UPDATE payment_webhooks
	SET process_error = $2
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID, reason)
	return err
}
