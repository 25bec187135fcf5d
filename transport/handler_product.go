package transport

import (
	"net/http"

	"github.com/ecofinds/marketplace/model"
)

// ListProducts handler
// @Summary List products
// @Description Active listings, newest first
// @Tags Product
// @Produce json
// @Param page query int false "Page number (default 1)"
// @Param per_page query int false "Items per page (default 10, max 100)"
// @Param category query string false "Exact category"
// @Param search query string false "Case-insensitive title search"
// @Success 200 {object} Response{data=model.ProductListResponse}
// @Failure 500 {object} ErrorResponse
// @Router /products [get]
func (s *RestHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &model.ProductFilter{
		Page:     queryInt(r, "page", 1),
		PerPage:  queryInt(r, "per_page", 10),
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}

	res, err := s.ProductApp.ListProducts(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, res)
}

// GetProduct handler
// @Summary Get product detail
// @Tags Product
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} Response{data=model.ProductDetail}
// @Failure 404 {object} ErrorResponse
// @Router /products/{id} [get]
func (s *RestHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.ProductApp.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, res)
}
