package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ecofinds/marketplace/constant"
	cerr "github.com/ecofinds/marketplace/utils/errors"
	"github.com/stretchr/testify/assert"
)

func TestCustomError(t *testing.T) {
	tests := []struct {
		name     string
		errType  constant.ErrorType
		wantCode string
		wantHTTP int
	}{
		{name: "empty cart", errType: constant.ErrEmptyCart, wantCode: "0005", wantHTTP: http.StatusBadRequest},
		{name: "product unavailable", errType: constant.ErrProductUnavailable, wantCode: "0006", wantHTTP: http.StatusConflict},
		{name: "forbidden", errType: constant.ErrForbidden, wantCode: "0007", wantHTTP: http.StatusForbidden},
		{name: "not found", errType: constant.ErrNotFound, wantCode: "0002", wantHTTP: http.StatusNotFound},
		{name: "internal", errType: constant.ErrInternal, wantCode: "0001", wantHTTP: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := cerr.SetCustomError(tt.errType)
			assert.Equal(t, tt.wantCode, e.ErrorCode())
			assert.Equal(t, tt.wantHTTP, e.ErrorHTTPCode())
			assert.Equal(t, constant.ErrorTypeMessage[tt.errType], e.Error())
		})
	}
}

func TestWrap(t *testing.T) {
	cause := stderrors.New("deadlock found")
	err := fmt.Errorf("checkout: %w", cerr.Wrap(constant.ErrInternal, cause))

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, stderrors.Is(err, cerr.SetCustomError(constant.ErrInternal)))
	assert.False(t, stderrors.Is(err, cerr.SetCustomError(constant.ErrNotFound)))
	assert.True(t, cerr.IsType(err, constant.ErrInternal))
	assert.False(t, cerr.IsType(cause, constant.ErrInternal))
	assert.Equal(t, "error internal", cerr.Wrap(constant.ErrInternal, cause).Error())
}
