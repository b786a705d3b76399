package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrInsufficientStock = errors.New("insufficient stock")

// Item is one reserved line: a product or one of its variants.
type Item struct {
	ProductID uint
	VariantID *string
	Quantity  int
}

// ReserveTx decrements stock for every item inside the caller's transaction.
// Each row is locked with FOR UPDATE and re-checked before the decrement, so
// two concurrent checkouts cannot both take the last unit. Any shortage
// returns ErrInsufficientStock and the caller must roll back; partial
// reservation is never committed.
func ReserveTx(ctx context.Context, tx *sql.Tx, items []Item) error {
	for _, item := range items {
		var stock int
		var err error

		if item.VariantID != nil {
			err = tx.QueryRowContext(ctx, `
				SELECT stock FROM product_variants WHERE id = $1 FOR UPDATE
			`, *item.VariantID).Scan(&stock)
		} else {
			err = tx.QueryRowContext(ctx, `
				SELECT stock FROM products WHERE id = $1 FOR UPDATE
			`, item.ProductID).Scan(&stock)
		}
		if err != nil {
			return fmt.Errorf("lock stock row for product %d: %w", item.ProductID, err)
		}

		if stock < item.Quantity {
			return fmt.Errorf("product %d: %w", item.ProductID, ErrInsufficientStock)
		}

		if item.VariantID != nil {
			_, err = tx.ExecContext(ctx, `
				UPDATE product_variants SET stock = stock - $1 WHERE id = $2
			`, item.Quantity, *item.VariantID)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE products SET stock = stock - $1 WHERE id = $2
			`, item.Quantity, item.ProductID)
		}
		if err != nil {
			return fmt.Errorf("decrement stock for product %d: %w", item.ProductID, err)
		}
	}
	return nil
}

// ReleaseTx restores the stock reserved for an order, exactly once. The
// orders.stock_released flag is flipped first under the same transaction;
// when it was already set the call is a no-op, which is what makes duplicate
// failure callbacks harmless.
func ReleaseTx(ctx context.Context, tx *sql.Tx, orderID uint) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET stock_released = TRUE
		WHERE id = $1 AND stock_released = FALSE
	`, orderID)
	if err != nil {
		return fmt.Errorf("mark stock released for order %d: %w", orderID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// already released
		return nil
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT product_id, variant_id, quantity
		FROM order_items
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return fmt.Errorf("load items for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ProductID, &item.VariantID, &item.Quantity); err != nil {
			return err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, item := range items {
		if item.VariantID != nil {
			_, err = tx.ExecContext(ctx, `
				UPDATE product_variants SET stock = stock + $1 WHERE id = $2
			`, item.Quantity, *item.VariantID)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE products SET stock = stock + $1 WHERE id = $2
			`, item.Quantity, item.ProductID)
		}
		if err != nil {
			return fmt.Errorf("restore stock for product %d: %w", item.ProductID, err)
		}
	}
	return nil
}
