package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tillgrid/promo-engine/internal/domain/checkout"
)

const (
	createSaleSQL = `INSERT INTO sales (id, lines, subtotal, discount, total, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	createSaleDiscountSQL = `INSERT INTO sale_discounts
		(sale_id, seq, offer_kind, offer_id, instance, quantity, amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

// Discount kinds stored in the sale_discounts.offer_kind column.
const (
	saleDiscountGroup = "group"
	saleDiscountBOGO  = "bogo"
	saleDiscountTime  = "time"
)

var _ checkout.SaleRepository = (*SaleRepository)(nil)

// SaleRepository implements checkout.SaleRepository backed by PostgreSQL.
type SaleRepository struct {
	pool *pgxpool.Pool
}

// NewSaleRepository returns a SaleRepository that uses the given pool.
func NewSaleRepository(pool *pgxpool.Pool) *SaleRepository {
	return &SaleRepository{pool: pool}
}

// Create persists a completed sale and one discount record per ledger
// instance, in application order, within a single transaction. The cart lines
// are serialized to JSON for storage in the JSONB column.
func (r *SaleRepository) Create(ctx context.Context, sale *checkout.Sale) error {
	linesJSON, err := json.Marshal(sale.Lines)
	if err != nil {
		return fmt.Errorf("marshaling sale lines: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, createSaleSQL,
		sale.ID, linesJSON, sale.Subtotal, sale.Discount, sale.Total, sale.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("creating sale %q: %w", sale.ID, err)
	}

	if err := insertSaleDiscounts(ctx, tx, sale); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing sale %q: %w", sale.ID, err)
	}
	return nil
}

func insertSaleDiscounts(ctx context.Context, tx pgx.Tx, sale *checkout.Sale) error {
	seq := 0
	exec := func(kind, offerID string, instance, quantity int, amount decimal.Decimal) error {
		seq++
		_, err := tx.Exec(ctx, createSaleDiscountSQL,
			sale.ID, seq, kind, offerID, instance, quantity, amount,
		)
		if err != nil {
			return fmt.Errorf("recording %s discount %d for sale %q: %w", kind, seq, sale.ID, err)
		}
		return nil
	}

	for _, g := range sale.Summary.Groups {
		if err := exec(saleDiscountGroup, g.OfferID, g.Instance, g.Quantity, g.Amount); err != nil {
			return err
		}
	}
	for _, b := range sale.Summary.BOGOs {
		if err := exec(saleDiscountBOGO, b.OfferID, b.Instance, b.BuyQty+b.GetQty, b.Amount); err != nil {
			return err
		}
	}
	for _, t := range sale.Summary.Times {
		if err := exec(saleDiscountTime, t.OfferID, 1, 0, t.Amount); err != nil {
			return err
		}
	}
	return nil
}
