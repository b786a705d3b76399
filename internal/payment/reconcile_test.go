package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"kiranakart-be/internal/metrics"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) ConfirmPaidTx(ctx context.Context, tx *sql.Tx, orderID uint) error {
	return m.Called(ctx, tx, orderID).Error(0)
}

func (m *MockLedger) CancelFailedTx(ctx context.Context, tx *sql.Tx, orderID uint) error {
	return m.Called(ctx, tx, orderID).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) OrderConfirmed(ctx context.Context, orderID uint, txnID string) {
	m.Called(ctx, orderID, txnID)
}

func (m *MockNotifier) OrderCanceled(ctx context.Context, orderID uint, txnID, reason string) {
	m.Called(ctx, orderID, txnID, reason)
}

var paymentCols = []string{
	"id", "order_id", "transaction_id", "amount", "status",
	"gateway_txn_id", "failure_reason", "created_at", "completed_at",
}

func pendingRow(txnID string) *sqlmock.Rows {
	return sqlmock.NewRows(paymentCols).
		AddRow(5, 101, txnID, int64(32200), StatusPending, nil, nil, time.Now(), nil)
}

func newReconciler(db *sql.DB, ledger *MockLedger, notifier *MockNotifier) (*Reconciler, *metrics.Reconciliation) {
	stats := &metrics.Reconciliation{}
	return NewReconciler(db, NewRepository(db), ledger, notifier, stats), stats
}

func TestReconciler_Success(t *testing.T) {
	db, dbmock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ledger := new(MockLedger)
	notifier := new(MockNotifier)
	rec, stats := newReconciler(db, ledger, notifier)

	txnID := "TXN1700000000000abcd1234"
	raw := json.RawMessage(`{"status":"success"}`)

	dbmock.ExpectBegin()
	dbmock.ExpectQuery(`SELECT (.+) FROM payments WHERE transaction_id = \$1 FOR UPDATE`).
		WithArgs(txnID).
		WillReturnRows(pendingRow(txnID))
	dbmock.ExpectExec(`UPDATE payments`).
		WithArgs(uint(5), StatusPaid, "40399371", raw).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ledger.On("ConfirmPaidTx", mock.Anything, mock.Anything, uint(101)).Return(nil)
	dbmock.ExpectCommit()
	notifier.On("OrderConfirmed", mock.Anything, uint(101), txnID).Return()

	err = rec.Process(context.Background(), &CallbackResult{
		Status:   CallbackSuccess,
		TxnID:    txnID,
		MihPayID: "40399371",
		Raw:      raw,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.Paid.Load())
	assert.NoError(t, dbmock.ExpectationsWereMet())
	ledger.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestReconciler_FailureReleasesStock(t *testing.T) {
	db, dbmock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ledger := new(MockLedger)
	notifier := new(MockNotifier)
	rec, stats := newReconciler(db, ledger, notifier)

	txnID := "TXN1700000000000dead0000"
	raw := json.RawMessage(`{"status":"failure"}`)

	dbmock.ExpectBegin()
	dbmock.ExpectQuery(`SELECT (.+) FROM payments WHERE transaction_id = \$1 FOR UPDATE`).
		WithArgs(txnID).
		WillReturnRows(pendingRow(txnID))
	dbmock.ExpectExec(`UPDATE payments`).
		WithArgs(uint(5), StatusFailed, "Bank declined", raw).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ledger.On("CancelFailedTx", mock.Anything, mock.Anything, uint(101)).Return(nil)
	dbmock.ExpectCommit()
	notifier.On("OrderCanceled", mock.Anything, uint(101), txnID, "Bank declined").Return()

	err = rec.Process(context.Background(), &CallbackResult{
		Status:       CallbackFailure,
		TxnID:        txnID,
		ErrorMessage: "Bank declined",
		Raw:          raw,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.Failed.Load())
	ledger.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestReconciler_SuccessAfterCancelFlagsRefund(t *testing.T) {
	db, dbmock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ledger := new(MockLedger)
	notifier := new(MockNotifier)
	rec, stats := newReconciler(db, ledger, notifier)

	txnID := "TXN1700000000000abcd1234"
	raw := json.RawMessage(`{"status":"success"}`)

	dbmock.ExpectBegin()
	dbmock.ExpectQuery(`SELECT (.+) FROM payments WHERE transaction_id = \$1 FOR UPDATE`).
		WithArgs(txnID).
		WillReturnRows(pendingRow(txnID))
	dbmock.ExpectExec(`UPDATE payments`).
		WithArgs(uint(5), StatusPaid, "40399371", raw).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ledger.On("ConfirmPaidTx", mock.Anything, mock.Anything, uint(101)).Return(ErrOrderUnconfirmable)
	dbmock.ExpectExec(`UPDATE payments SET failure_reason = \$2 WHERE id = \$1`).
		WithArgs(uint(5), "order canceled before payment settled, refund due").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbmock.ExpectCommit()

	err = rec.Process(context.Background(), &CallbackResult{
		Status:   CallbackSuccess,
		TxnID:    txnID,
		MihPayID: "40399371",
		Raw:      raw,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.RefundDue.Load())
	assert.Equal(t, uint64(0), stats.Paid.Load())
	notifier.AssertNotCalled(t, "OrderConfirmed", mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, dbmock.ExpectationsWereMet())
	ledger.AssertExpectations(t)
}

func TestReconciler_DuplicateIsNoOp(t *testing.T) {
	db, dbmock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ledger := new(MockLedger)
	notifier := new(MockNotifier)
	rec, stats := newReconciler(db, ledger, notifier)

	txnID := "TXN1700000000000abcd1234"

	for _, status := range []Status{StatusPaid, StatusFailed} {
		dbmock.ExpectBegin()
		dbmock.ExpectQuery(`SELECT (.+) FROM payments WHERE transaction_id = \$1 FOR UPDATE`).
			WithArgs(txnID).
			WillReturnRows(sqlmock.NewRows(paymentCols).
				AddRow(5, 101, txnID, int64(32200), status, "40399371", nil, time.Now(), time.Now()))
		dbmock.ExpectRollback()

		err = rec.Process(context.Background(), &CallbackResult{
			Status: CallbackSuccess,
			TxnID:  txnID,
		})
		require.NoError(t, err)
	}

	assert.Equal(t, uint64(2), stats.Duplicate.Load())
	ledger.AssertNotCalled(t, "ConfirmPaidTx", mock.Anything, mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "OrderConfirmed", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_PendingStoresRawOnly(t *testing.T) {
	db, dbmock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ledger := new(MockLedger)
	notifier := new(MockNotifier)
	rec, _ := newReconciler(db, ledger, notifier)

	txnID := "TXN1700000000000abcd1234"
	raw := json.RawMessage(`{"status":"pending"}`)

	dbmock.ExpectBegin()
	dbmock.ExpectQuery(`SELECT (.+) FROM payments WHERE transaction_id = \$1 FOR UPDATE`).
		WithArgs(txnID).
		WillReturnRows(pendingRow(txnID))
	dbmock.ExpectExec(`UPDATE payments SET gateway_response = \$2 WHERE id = \$1`).
		WithArgs(uint(5), raw).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbmock.ExpectCommit()

	err = rec.Process(context.Background(), &CallbackResult{
		Status: CallbackPending,
		TxnID:  txnID,
		Raw:    raw,
	})
	require.NoError(t, err)

	ledger.AssertNotCalled(t, "ConfirmPaidTx", mock.Anything, mock.Anything, mock.Anything)
	ledger.AssertNotCalled(t, "CancelFailedTx", mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, dbmock.ExpectationsWereMet())
}

func TestReconciler_UnknownTransaction(t *testing.T) {
	db, dbmock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rec, _ := newReconciler(db, new(MockLedger), new(MockNotifier))

	dbmock.ExpectBegin()
	dbmock.ExpectQuery(`SELECT (.+) FROM payments WHERE transaction_id = \$1 FOR UPDATE`).
		WithArgs("TXNghost").
		WillReturnRows(sqlmock.NewRows(paymentCols))
	dbmock.ExpectRollback()

	err = rec.Process(context.Background(), &CallbackResult{
		Status: CallbackSuccess,
		TxnID:  "TXNghost",
	})
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestReconciler_LedgerFailureRollsBack(t *testing.T) {
	db, dbmock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ledger := new(MockLedger)
	notifier := new(MockNotifier)
	rec, stats := newReconciler(db, ledger, notifier)

	txnID := "TXN1700000000000abcd1234"

	dbmock.ExpectBegin()
	dbmock.ExpectQuery(`SELECT (.+) FROM payments WHERE transaction_id = \$1 FOR UPDATE`).
		WithArgs(txnID).
		WillReturnRows(pendingRow(txnID))
	dbmock.ExpectExec(`UPDATE payments`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ledger.On("ConfirmPaidTx", mock.Anything, mock.Anything, uint(101)).Return(sql.ErrConnDone)
	dbmock.ExpectRollback()

	err = rec.Process(context.Background(), &CallbackResult{
		Status: CallbackSuccess,
		TxnID:  txnID,
	})
	assert.Error(t, err)
	assert.Equal(t, uint64(0), stats.Paid.Load())
	notifier.AssertNotCalled(t, "OrderConfirmed", mock.Anything, mock.Anything, mock.Anything)
}
