package cart

import (
	"context"
	"database/sql"
	"errors"
)

var ErrItemNotFound = errors.New("cart item not found")

type Repository interface {
	GetLines(ctx context.Context, userID uint) ([]Line, error)

	// AddItem upserts: adding a product already in the cart bumps its
	// quantity instead of creating a second row.
	AddItem(ctx context.Context, item *Item) error

	UpdateQuantity(ctx context.Context, userID, productID uint, variantID *string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID uint, variantID *string) error
	Clear(ctx context.Context, userID uint) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetLines(ctx context.Context, userID uint) ([]Line, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ci.id, ci.user_id, ci.product_id, ci.variant_id, ci.quantity,
		       ci.created_at, ci.updated_at,
		       COALESCE(v.name, p.name),
		       COALESCE(v.price, p.price),
		       COALESCE(v.stock, p.stock)
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		LEFT JOIN product_variants v ON v.id = ci.variant_id
		WHERE ci.user_id = $1
		ORDER BY ci.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(
			&l.ID, &l.UserID, &l.ProductID, &l.VariantID, &l.Quantity,
			&l.CreatedAt, &l.UpdatedAt,
			&l.Name, &l.UnitPricePaise, &l.Stock,
		); err != nil {
			return nil, err
		}
		l.LineTotalPaise = l.UnitPricePaise * int64(l.Quantity)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) AddItem(ctx context.Context, item *Item) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, variant_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id, variant_key)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
		RETURNING id, quantity, created_at, updated_at
	`, item.UserID, item.ProductID, item.VariantID, item.Quantity).
		Scan(&item.ID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)
}

func (r *repository) UpdateQuantity(ctx context.Context, userID, productID uint, variantID *string, quantity int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE cart_items
		SET quantity = $4, updated_at = now()
		WHERE user_id = $1 AND product_id = $2 AND variant_id IS NOT DISTINCT FROM $3
	`, userID, productID, variantID, quantity)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *repository) RemoveItem(ctx context.Context, userID, productID uint, variantID *string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE user_id = $1 AND product_id = $2 AND variant_id IS NOT DISTINCT FROM $3
	`, userID, productID, variantID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *repository) Clear(ctx context.Context, userID uint) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE user_id = $1
	`, userID)
	return err
}
