// Package handler exposes the checkout API over plain net/http with JSON
// bodies. Monetary values are rendered as float64 at the edge only; all
// arithmetic happens on decimals inside the domain packages.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/tillgrid/promo-engine/internal/domain/catalog"
	"github.com/tillgrid/promo-engine/internal/domain/checkout"
)

// ProductLister provides the product listing endpoint's data.
type ProductLister interface {
	List(ctx context.Context) ([]catalog.Product, error)
}

// CheckoutService prices carts and completes sales.
type CheckoutService interface {
	Quote(ctx context.Context, req checkout.QuoteRequest) (*checkout.Quote, error)
	CompleteSale(ctx context.Context, req checkout.QuoteRequest) (*checkout.Sale, error)
}

// Handler holds the API endpoints' dependencies.
type Handler struct {
	products ProductLister
	checkout CheckoutService
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(products ProductLister, checkoutService CheckoutService) *Handler {
	return &Handler{
		products: products,
		checkout: checkoutService,
	}
}

// Routes registers the API endpoints on the given mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/product", h.ListProducts)
	mux.HandleFunc("POST /api/cart/quote", h.QuoteCart)
	mux.HandleFunc("POST /api/sale", h.CompleteSale)
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(ctx).Error("encoding response", zap.Error(err))
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	writeJSON(ctx, w, status, errorResponse{Code: status, Message: message})
}

func writeInternalError(ctx context.Context, w http.ResponseWriter, err error) {
	zctx.From(ctx).Error("request failed", zap.Error(err))
	writeError(ctx, w, http.StatusInternalServerError, "internal server error")
}
