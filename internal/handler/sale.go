package handler

import (
	"net/http"
	"time"
)

type saleResponse struct {
	ID          string        `json:"id"`
	Lines       []lineDTO     `json:"lines"`
	Discounts   []discountDTO `json:"discounts"`
	Subtotal    float64       `json:"subtotal"`
	Discount    float64       `json:"discount"`
	Total       float64       `json:"total"`
	CompletedAt time.Time     `json:"completedAt"`
}

// CompleteSale prices the cart and persists it as an immutable sale record.
func (h *Handler) CompleteSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := decodeCartRequest(ctx, w, r)
	if !ok {
		return
	}

	sale, err := h.checkout.CompleteSale(ctx, req)
	if err != nil {
		mapCheckoutError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusCreated, saleResponse{
		ID:          sale.ID,
		Lines:       linesToDTO(sale.Lines),
		Discounts:   summaryToDTO(sale.Summary),
		Subtotal:    sale.Subtotal.InexactFloat64(),
		Discount:    sale.Discount.InexactFloat64(),
		Total:       sale.Total.InexactFloat64(),
		CompletedAt: sale.CompletedAt,
	})
}
