package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"kiranakart-be/internal/inventory"
	"kiranakart-be/internal/logger"
	"kiranakart-be/internal/payment"

	"go.uber.org/zap"
)

type Filter struct {
	Status   *OrderStatus
	DateFrom *string
	DateTo   *string
}

type Repository interface {
	// CreateOrderTx inserts the order with its item snapshots, reserves
	// stock for every line, and records the payment attempt when one is
	// given. All of it commits or none of it does.
	CreateOrderTx(ctx context.Context, o *Order, p *payment.Payment) error

	GetOrderDetail(ctx context.Context, orderID uint) (*Order, error)
	GetOrders(ctx context.Context, userID uint, isAdmin bool, filter *Filter, limit, page int32) ([]*Order, error)

	// CancelOrderTx cancels an order on the user's behalf and releases its
	// stock. Ownership and the transition table are enforced inside the
	// transaction, against the locked row.
	CancelOrderTx(ctx context.Context, orderID, userID uint, isAdmin bool) (*Order, error)

	// UpdateStatusTx applies an operator transition. Reaching DELIVERED
	// settles a pending cash-on-delivery balance.
	UpdateStatusTx(ctx context.Context, orderID uint, to OrderStatus) (*Order, error)

	GetUserAddress(ctx context.Context, addressID, userID uint) (*Address, error)

	// ConfirmPaidTx and CancelFailedTx are the reconciler's hooks into the
	// order row, running inside the reconciliation transaction. They satisfy
	// payment.OrderLedger.
	ConfirmPaidTx(ctx context.Context, tx *sql.Tx, orderID uint) error
	CancelFailedTx(ctx context.Context, tx *sql.Tx, orderID uint) error
}

type repository struct {
	db       *sql.DB
	payments payment.Repository
}

func NewRepository(db *sql.DB, payments payment.Repository) Repository {
	return &repository{db: db, payments: payments}
}

func (r *repository) CreateOrderTx(ctx context.Context, o *Order, p *payment.Payment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	addr, err := json.Marshal(o.AddressSnapshot)
	if err != nil {
		return err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			user_id, address_snapshot, subtotal, discount, delivery_fee,
			handling_charge, platform_fee, gst, total, status,
			payment_status, payment_method, delivery_slot, coupon_code
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id, created_at, updated_at
	`,
		o.UserID, addr, o.Subtotal, o.Discount, o.DeliveryFee,
		o.HandlingCharge, o.PlatformFee, o.GST, o.Total, o.Status,
		o.PaymentStatus, o.PaymentMethod, o.DeliverySlot, o.CouponCode,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return err
	}

	items := make([]inventory.Item, 0, len(o.Items))
	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID

		err = tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, product_id, variant_id, name, quantity, unit_price, line_total)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING id
		`, item.OrderID, item.ProductID, item.VariantID, item.Name, item.Quantity, item.UnitPricePaise, item.LineTotalPaise).Scan(&item.ID)
		if err != nil {
			return err
		}

		items = append(items, inventory.Item{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}

	if err := inventory.ReserveTx(ctx, tx, items); err != nil {
		return err
	}

	if p != nil {
		p.OrderID = o.ID
		if err := r.payments.SavePaymentTx(ctx, tx, p); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *repository) GetOrderDetail(ctx context.Context, orderID uint) (*Order, error) {
	var (
		o    Order
		addr []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, address_snapshot, subtotal, discount, delivery_fee,
		       handling_charge, platform_fee, gst, total, status,
		       payment_status, payment_method, delivery_slot, coupon_code,
		       stock_released, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, orderID).Scan(
		&o.ID, &o.UserID, &addr, &o.Subtotal, &o.Discount, &o.DeliveryFee,
		&o.HandlingCharge, &o.PlatformFee, &o.GST, &o.Total, &o.Status,
		&o.PaymentStatus, &o.PaymentMethod, &o.DeliverySlot, &o.CouponCode,
		&o.StockReleased, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(addr, &o.AddressSnapshot); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, variant_id, name, quantity, unit_price, line_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.VariantID,
			&item.Name, &item.Quantity, &item.UnitPricePaise, &item.LineTotalPaise,
		); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &o, nil
}

func (r *repository) GetOrders(
	ctx context.Context,
	userID uint,
	isAdmin bool,
	filter *Filter,
	limit, page int32,
) ([]*Order, error) {

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	log := logger.FromCtx(ctx).With(
		zap.String("method", "GetOrders"),
		zap.Bool("is_admin", isAdmin),
		zap.Int32("limit", limit),
		zap.Int32("page", page),
	)

	query := `
		SELECT id, user_id, subtotal, discount, delivery_fee, handling_charge,
		       platform_fee, gst, total, status, payment_status, payment_method,
		       delivery_slot, created_at, updated_at
		FROM orders
		WHERE 1=1
	`
	args := []any{}
	argIndex := 1

	if !isAdmin {
		query += fmt.Sprintf(" AND user_id = $%d", argIndex)
		args = append(args, userID)
		argIndex++
	}

	if filter != nil {
		if filter.Status != nil && *filter.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argIndex)
			args = append(args, *filter.Status)
			argIndex++
		}
		if filter.DateFrom != nil {
			query += fmt.Sprintf(" AND created_at >= $%d", argIndex)
			args = append(args, *filter.DateFrom)
			argIndex++
		}
		if filter.DateTo != nil {
			query += fmt.Sprintf(" AND created_at <= $%d", argIndex)
			args = append(args, *filter.DateTo)
			argIndex++
		}
	}

	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.Subtotal, &o.Discount, &o.DeliveryFee,
			&o.HandlingCharge, &o.PlatformFee, &o.GST, &o.Total, &o.Status,
			&o.PaymentStatus, &o.PaymentMethod, &o.DeliverySlot,
			&o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			log.Error("failed to scan order row", zap.Error(err))
			return nil, err
		}
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.Debug("get orders success", zap.Int("count", len(orders)))
	return orders, nil
}

func (r *repository) CancelOrderTx(ctx context.Context, orderID, userID uint, isAdmin bool) (*Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var (
		o     Order
		owner uint
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, user_id, status, payment_status, payment_method, total
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, orderID).Scan(&o.ID, &owner, &o.Status, &o.PaymentStatus, &o.PaymentMethod, &o.Total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if !isAdmin && owner != userID {
		return nil, ErrUnauthorized
	}
	o.UserID = owner

	if err := ValidateTransition(o.Status, StatusCanceled); err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1
	`, orderID, StatusCanceled); err != nil {
		return nil, err
	}

	if err := inventory.ReleaseTx(ctx, tx, orderID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	o.Status = StatusCanceled
	return &o, nil
}

func (r *repository) UpdateStatusTx(ctx context.Context, orderID uint, to OrderStatus) (*Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var o Order
	err = tx.QueryRowContext(ctx, `
		SELECT id, user_id, status, payment_status, payment_method, total
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, orderID).Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.PaymentMethod, &o.Total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := ValidateTransition(o.Status, to); err != nil {
		return nil, err
	}

	paymentStatus := o.PaymentStatus
	// delivery settles cash on delivery
	if to == StatusDelivered && o.PaymentMethod == MethodCOD && o.PaymentStatus == PaymentPending {
		paymentStatus = PaymentPaid
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, payment_status = $3, updated_at = now() WHERE id = $1
	`, orderID, to, paymentStatus); err != nil {
		return nil, err
	}

	if to == StatusCanceled {
		if err := inventory.ReleaseTx(ctx, tx, orderID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	o.Status = to
	o.PaymentStatus = paymentStatus
	return &o, nil
}

func (r *repository) GetUserAddress(ctx context.Context, addressID, userID uint) (*Address, error) {
	var a Address
	err := r.db.QueryRowContext(ctx, `
		SELECT name, phone, line1, COALESCE(line2, ''), COALESCE(landmark, ''), city, state, postal_code
		FROM addresses
		WHERE id = $1 AND user_id = $2
	`, addressID, userID).Scan(
		&a.Name, &a.Phone, &a.Line1, &a.Line2, &a.Landmark, &a.City, &a.State, &a.PostalCode,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ConfirmPaidTx settles the payment side of the order row. The fulfillment
// status is left alone; a canceled order is never revived, its capture is
// reported back as payment.ErrOrderUnconfirmable for the refund path.
func (r *repository) ConfirmPaidTx(ctx context.Context, tx *sql.Tx, orderID uint) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET payment_status = $2, updated_at = now()
		WHERE id = $1 AND status <> $3
	`, orderID, PaymentPaid, StatusCanceled)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return payment.ErrOrderUnconfirmable
	}
	return nil
}

func (r *repository) CancelFailedTx(ctx context.Context, tx *sql.Tx, orderID uint) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, payment_status = $3, updated_at = now()
		WHERE id = $1 AND status <> $4
	`, orderID, StatusCanceled, PaymentFailed, StatusDelivered)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// delivered while the payment hung; the goods are gone, nothing to
		// restock or cancel
		return nil
	}
	return inventory.ReleaseTx(ctx, tx, orderID)
}
