package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tillgrid/promo-engine/internal/domain/checkout"
	"github.com/tillgrid/promo-engine/internal/domain/promo"
)

type cartItemDTO struct {
	ProductID string          `json:"productId"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type cartRequest struct {
	Items []cartItemDTO `json:"items"`
	// At optionally pins the pricing instant (RFC 3339). Absent means now.
	At string `json:"at,omitempty"`
}

type lineDTO struct {
	ID         string  `json:"id"`
	ProductID  string  `json:"productId"`
	Name       string  `json:"name"`
	SKU        string  `json:"sku,omitempty"`
	Category   string  `json:"category,omitempty"`
	Quantity   float64 `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	WeightUnit string  `json:"weightUnit,omitempty"`
	Subtotal   float64 `json:"subtotal"`
	Discount   float64 `json:"discount"`
	Total      float64 `json:"total"`
}

type discountDTO struct {
	Type     string  `json:"type"`
	OfferID  string  `json:"offerId"`
	Instance int     `json:"instance,omitempty"`
	Quantity int     `json:"quantity,omitempty"`
	BuyQty   int     `json:"buyQty,omitempty"`
	GetQty   int     `json:"getQty,omitempty"`
	Amount   float64 `json:"amount"`
}

type quoteResponse struct {
	Lines      []lineDTO     `json:"lines"`
	Discounts  []discountDTO `json:"discounts"`
	Subtotal   float64       `json:"subtotal"`
	Discount   float64       `json:"discount"`
	Total      float64       `json:"total"`
	ComputedAt time.Time     `json:"computedAt"`
}

// QuoteCart prices a cart under the active offers without persisting anything.
func (h *Handler) QuoteCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := decodeCartRequest(ctx, w, r)
	if !ok {
		return
	}

	quote, err := h.checkout.Quote(ctx, req)
	if err != nil {
		mapCheckoutError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, quoteResponse{
		Lines:      linesToDTO(quote.Cart.Lines),
		Discounts:  summaryToDTO(quote.Summary),
		Subtotal:   quote.Subtotal.InexactFloat64(),
		Discount:   quote.Discount.InexactFloat64(),
		Total:      quote.Total.InexactFloat64(),
		ComputedAt: quote.ComputedAt,
	})
}

// decodeCartRequest parses and validates the shared quote/sale request body.
func decodeCartRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (checkout.QuoteRequest, bool) {
	var body cartRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return checkout.QuoteRequest{}, false
	}

	req := checkout.QuoteRequest{Items: make([]checkout.QuoteItem, len(body.Items))}
	for i, item := range body.Items {
		req.Items[i] = checkout.QuoteItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	if body.At != "" {
		at, err := time.Parse(time.RFC3339, body.At)
		if err != nil {
			writeError(ctx, w, http.StatusBadRequest, "at must be an RFC 3339 timestamp")
			return checkout.QuoteRequest{}, false
		}
		req.At = at
	}

	return req, true
}

// mapCheckoutError converts domain errors to JSON error responses.
func mapCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, checkout.ErrEmptyItems) {
		writeError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	var iqErr *checkout.InvalidQuantityError
	if errors.As(err, &iqErr) {
		writeError(ctx, w, http.StatusUnprocessableEntity, iqErr.Error())
		return
	}

	var pnfErr *checkout.ProductNotFoundError
	if errors.As(err, &pnfErr) {
		writeError(ctx, w, http.StatusUnprocessableEntity, pnfErr.Error())
		return
	}

	writeInternalError(ctx, w, err)
}

func linesToDTO(lines []promo.CartLine) []lineDTO {
	out := make([]lineDTO, len(lines))
	for i, l := range lines {
		out[i] = lineDTO{
			ID:         l.ID,
			ProductID:  l.ProductID,
			Name:       l.Name,
			SKU:        l.SKU,
			Category:   l.Category,
			Quantity:   l.Quantity.InexactFloat64(),
			UnitPrice:  l.UnitPrice.InexactFloat64(),
			WeightUnit: l.WeightUnit,
			Subtotal:   l.Subtotal.InexactFloat64(),
			Discount:   l.LineDiscount.InexactFloat64(),
			Total:      l.LineTotal.InexactFloat64(),
		}
	}
	return out
}

// summaryToDTO flattens the ledger into one list, in application order.
func summaryToDTO(s promo.Summary) []discountDTO {
	out := make([]discountDTO, 0, len(s.Groups)+len(s.BOGOs)+len(s.Times))
	for _, g := range s.Groups {
		out = append(out, discountDTO{
			Type:     "group",
			OfferID:  g.OfferID,
			Instance: g.Instance,
			Quantity: g.Quantity,
			Amount:   g.Amount.InexactFloat64(),
		})
	}
	for _, b := range s.BOGOs {
		out = append(out, discountDTO{
			Type:     "bogo",
			OfferID:  b.OfferID,
			Instance: b.Instance,
			BuyQty:   b.BuyQty,
			GetQty:   b.GetQty,
			Amount:   b.Amount.InexactFloat64(),
		})
	}
	for _, t := range s.Times {
		out = append(out, discountDTO{
			Type:    "time",
			OfferID: t.OfferID,
			Amount:  t.Amount.InexactFloat64(),
		})
	}
	return out
}
