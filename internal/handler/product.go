package handler

import (
	"net/http"

	"github.com/tillgrid/promo-engine/internal/domain/catalog"
)

type productDTO struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	SKU        string  `json:"sku,omitempty"`
	Category   string  `json:"category,omitempty"`
	Price      float64 `json:"price"`
	Weighed    bool    `json:"weighed,omitempty"`
	WeightUnit string  `json:"weightUnit,omitempty"`
}

// ListProducts returns every product in the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	products, err := h.products.List(ctx)
	if err != nil {
		writeInternalError(ctx, w, err)
		return
	}

	out := make([]productDTO, len(products))
	for i, p := range products {
		out[i] = domainToProductDTO(p)
	}
	writeJSON(ctx, w, http.StatusOK, out)
}

func domainToProductDTO(p catalog.Product) productDTO {
	return productDTO{
		ID:         p.ID,
		Name:       p.Name,
		SKU:        p.SKU,
		Category:   p.Category,
		Price:      p.Price.InexactFloat64(),
		Weighed:    p.Weighed,
		WeightUnit: p.WeightUnit,
	}
}
