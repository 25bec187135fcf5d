package transport

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"github.com/ecofinds/marketplace/constant"
	"github.com/ecofinds/marketplace/model"
	"github.com/ecofinds/marketplace/utils/errors"
	validatorx "github.com/ecofinds/marketplace/utils/validator"
)

const maxIdempotencyKeyLen = 128

// Checkout handler
// @Summary Checkout cart
// @Description Converts the whole cart into one order in a single transaction
// @Tags Order
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Replays the order created by an earlier request with the same key"
// @Param request body model.CheckoutRequest false "Shipping and payment details"
// @Success 201 {object} Response{data=model.Order}
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /checkout [post]
func (s *RestHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	buyerID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req model.CheckoutRequest
	// the body is optional
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !stderrors.Is(err, io.EOF) {
		writeError(w, errors.Wrap(constant.ErrInvalidRequest, err))
		return
	}
	if err := validatorx.ValidateStruct(&req); err != nil {
		writeError(w, errors.Wrap(constant.ErrInvalidRequest, err))
		return
	}

	key := strings.TrimSpace(r.Header.Get(constant.HeaderIdempotencyKey))
	if len(key) > maxIdempotencyKeyLen {
		writeError(w, errors.SetCustomError(constant.ErrInvalidRequest))
		return
	}
	req.IdempotencyKey = key

	res, err := s.OrderApp.Checkout(r.Context(), buyerID, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeCreated(w, res)
}

// ListOrders handler
// @Summary Purchase history
// @Tags Order
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=model.OrderListResponse}
// @Router /orders [get]
func (s *RestHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	buyerID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	orders, err := s.OrderApp.ListOrders(r.Context(), buyerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, model.OrderListResponse{Items: nonNilOrders(orders)})
}

// ListSales handler
// @Summary Orders containing the caller's listings
// @Tags Order
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=model.OrderListResponse}
// @Router /sales [get]
func (s *RestHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	sellerID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	orders, err := s.OrderApp.ListSales(r.Context(), sellerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, model.OrderListResponse{Items: nonNilOrders(orders)})
}

// GetOrder handler
// @Summary Get order
// @Tags Order
// @Produce json
// @Security BearerAuth
// @Param id path int true "Order ID"
// @Success 200 {object} Response{data=model.Order}
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id} [get]
func (s *RestHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actorID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.OrderApp.GetOrder(r.Context(), orderID, actorID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, res)
}

// UpdateOrderStatus handler
// @Summary Move an order through its lifecycle
// @Description pending→confirmed→shipped→delivered, or cancelled before delivery. Repeating the current status is a no-op.
// @Tags Order
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Order ID"
// @Param request body model.UpdateOrderStatusRequest true "Target status"
// @Success 200 {object} Response{data=model.Order}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /orders/{id}/status [patch]
func (s *RestHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	actorID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req model.UpdateOrderStatusRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := s.OrderApp.UpdateOrderStatus(r.Context(), orderID, actorID, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, res)
}

func nonNilOrders(orders []model.Order) []model.Order {
	if orders == nil {
		return []model.Order{}
	}
	return orders
}
