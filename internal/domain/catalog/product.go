// Package catalog holds product snapshot data used to build cart lines.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is the catalog entry for a sellable item. Cart lines snapshot
// these fields at add time; later catalog edits do not rewrite open carts.
type Product struct {
	ID       string
	Name     string
	SKU      string
	Category string
	Price    decimal.Decimal
	// Weighed marks items sold by measured weight rather than unit count.
	Weighed bool
	// WeightUnit names the measurement unit for weighed items (e.g. "kg").
	WeightUnit string
}

// Repository provides product lookup.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
