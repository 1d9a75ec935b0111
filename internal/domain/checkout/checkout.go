// Package checkout builds carts from quote requests, prices them through the
// promotion engine, and persists completed sales with their discount ledger.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tillgrid/promo-engine/internal/domain/promo"
)

// Sentinel errors for quote validation.
var ErrEmptyItems = errors.New("items required")

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return "product " + e.ProductID + " not found"
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return "quantity must be greater than 0 for product " + e.ProductID
}

// QuoteItem is one requested cart entry.
type QuoteItem struct {
	ProductID string
	Quantity  decimal.Decimal
}

// QuoteRequest holds the input for pricing a cart.
type QuoteRequest struct {
	Items []QuoteItem
	// At pins the pricing instant; the zero value means "now". Passing the
	// instant explicitly keeps requoting deterministic: the same cart at
	// the same timestamp always produces the same breakdown.
	At time.Time
}

// Quote is a priced cart with its discount ledger.
type Quote struct {
	Cart       promo.Cart
	Summary    promo.Summary
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	ComputedAt time.Time
}

// Sale is a persisted, immutable record of a completed checkout.
type Sale struct {
	ID          string
	Lines       []promo.CartLine
	Summary     promo.Summary
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
	CompletedAt time.Time
}

// OfferRepository loads the tenant's active offer definitions.
type OfferRepository interface {
	LoadActive(ctx context.Context) (promo.Offers, error)
}

// SaleRepository persists completed sales. Implementations store one
// discount record per ledger instance alongside the sale.
type SaleRepository interface {
	Create(ctx context.Context, sale *Sale) error
}
