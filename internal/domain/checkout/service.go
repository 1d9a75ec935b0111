package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tillgrid/promo-engine/internal/domain/catalog"
	"github.com/tillgrid/promo-engine/internal/domain/promo"
)

// Service prices carts through the promotion engine and records sales.
type Service struct {
	products catalog.Repository
	offers   OfferRepository
	sales    SaleRepository
	engine   *promo.Engine
	now      func() time.Time
}

// NewService creates a checkout Service with the required dependencies.
func NewService(
	products catalog.Repository,
	offers OfferRepository,
	sales SaleRepository,
	engine *promo.Engine,
) *Service {
	return &Service{
		products: products,
		offers:   offers,
		sales:    sales,
		engine:   engine,
		now:      time.Now,
	}
}

// Quote validates the requested items, builds a cart from product snapshots,
// and prices it under the currently active offers.
//
// An engine-internal error (ledger mismatch) is logged and degrades to the
// undiscounted cart: a broken promotion must never block checkout.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	at := req.At
	if at.IsZero() {
		at = s.now()
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity.Sign() <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	productMap := make(map[string]catalog.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	cart := promo.Cart{Lines: make([]promo.CartLine, len(req.Items))}
	for i, item := range req.Items {
		p, ok := productMap[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		cart.Lines[i] = promo.CartLine{
			ID:         fmt.Sprintf("line-%d", i+1),
			ProductID:  p.ID,
			Name:       p.Name,
			SKU:        p.SKU,
			Category:   p.Category,
			Quantity:   item.Quantity,
			UnitPrice:  p.Price,
			Weighed:    p.Weighed,
			WeightUnit: p.WeightUnit,
		}
	}

	offers, err := s.offers.LoadActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load offers")
	}

	priced, summary, err := s.engine.Apply(cart, offers, at)
	if err != nil {
		// Engine bug, not bad input: checkout proceeds undiscounted rather
		// than persisting an inconsistent breakdown or failing the sale.
		zctx.From(ctx).Error("promotion engine failed, pricing without discounts",
			zap.Error(err))
		summary = promo.Summary{TotalDiscount: decimal.Zero}
	}

	return &Quote{
		Cart:       priced,
		Summary:    summary,
		Subtotal:   priced.Subtotal(),
		Discount:   priced.TotalDiscount(),
		Total:      priced.Subtotal().Sub(priced.TotalDiscount()),
		ComputedAt: at,
	}, nil
}

// CompleteSale prices the cart and persists the resulting sale together with
// one discount record per ledger instance. The engine is deterministic, so
// recomputing here yields exactly the breakdown the caller was quoted for
// the same items and timestamp.
func (s *Service) CompleteSale(ctx context.Context, req QuoteRequest) (*Sale, error) {
	quote, err := s.Quote(ctx, req)
	if err != nil {
		return nil, err
	}

	sale := &Sale{
		ID:          uuid.New().String(),
		Lines:       quote.Cart.Lines,
		Summary:     quote.Summary,
		Subtotal:    quote.Subtotal,
		Discount:    quote.Discount,
		Total:       quote.Total,
		CompletedAt: quote.ComputedAt,
	}
	if err := s.sales.Create(ctx, sale); err != nil {
		return nil, errors.Wrap(err, "create sale")
	}

	return sale, nil
}
