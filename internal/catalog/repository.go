package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var ErrProductNotFound = errors.New("product not found")

type Repository interface {
	// GetForPricing resolves live price and stock for every requested key.
	// Missing keys are simply absent from the result; the pricing engine
	// treats absence as an unknown-product failure.
	GetForPricing(ctx context.Context, keys []Key) (map[Key]Entry, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetForPricing(ctx context.Context, keys []Key) (map[Key]Entry, error) {
	out := make(map[Key]Entry, len(keys))

	productIDs := make([]int64, 0, len(keys))
	variantIDs := make([]string, 0, len(keys))
	for _, k := range keys {
		if k.VariantID == "" {
			productIDs = append(productIDs, int64(k.ProductID))
		} else {
			variantIDs = append(variantIDs, k.VariantID)
		}
	}

	if len(productIDs) > 0 {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, name, price, stock
			FROM products
			WHERE id = ANY($1)
		`, pq.Array(productIDs))
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		for rows.Next() {
			var e Entry
			if err := rows.Scan(&e.ProductID, &e.Name, &e.PricePaise, &e.Stock); err != nil {
				return nil, err
			}
			out[Key{ProductID: e.ProductID}] = e
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	if len(variantIDs) > 0 {
		rows, err := r.db.QueryContext(ctx, `
			SELECT v.product_id, v.id, p.name || ' ' || v.name, v.price, v.stock
			FROM product_variants v
			JOIN products p ON p.id = v.product_id
			WHERE v.id = ANY($1)
		`, pq.Array(variantIDs))
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		for rows.Next() {
			var e Entry
			var variantID string
			if err := rows.Scan(&e.ProductID, &variantID, &e.Name, &e.PricePaise, &e.Stock); err != nil {
				return nil, err
			}
			e.VariantID = &variantID
			out[Key{ProductID: e.ProductID, VariantID: variantID}] = e
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	return out, nil
}
