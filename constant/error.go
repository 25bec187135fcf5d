package constant

import "net/http"

type ErrorType int

const (
	Successful ErrorType = iota
	ErrInternal
	ErrNotFound
	ErrInvalidRequest
	ErrUnauthorize
	ErrEmptyCart
	ErrProductUnavailable
	ErrForbidden
	ErrInvalidTransition
	ErrOwnProduct
)

var ErrorTypeMessage = map[ErrorType]string{
	Successful:            "success",
	ErrInternal:           "error internal",
	ErrNotFound:           "data not found",
	ErrInvalidRequest:     "invalid request",
	ErrUnauthorize:        "unauthorize request",
	ErrEmptyCart:          "cart is empty, add items before checkout",
	ErrProductUnavailable: "one or more products in the cart are no longer available",
	ErrForbidden:          "not allowed to access this order",
	ErrInvalidTransition:  "order status transition not allowed",
	ErrOwnProduct:         "cannot buy your own product",
}

var ErrorTypeHTTPCode = map[ErrorType]int{
	Successful:            http.StatusOK,
	ErrInternal:           http.StatusInternalServerError,
	ErrNotFound:           http.StatusNotFound,
	ErrInvalidRequest:     http.StatusBadRequest,
	ErrUnauthorize:        http.StatusUnauthorized,
	ErrEmptyCart:          http.StatusBadRequest,
	ErrProductUnavailable: http.StatusConflict,
	ErrForbidden:          http.StatusForbidden,
	ErrInvalidTransition:  http.StatusConflict,
	ErrOwnProduct:         http.StatusBadRequest,
}

var ErrorTypeCode = map[ErrorType]string{
	Successful:            "0000",
	ErrInternal:           "0001",
	ErrNotFound:           "0002",
	ErrInvalidRequest:     "0003",
	ErrUnauthorize:        "0004",
	ErrEmptyCart:          "0005",
	ErrProductUnavailable: "0006",
	ErrForbidden:          "0007",
	ErrInvalidTransition:  "0008",
	ErrOwnProduct:         "0009",
}
