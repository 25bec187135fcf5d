package validatorx

import (
	"sync"

	gpvalidator "github.com/go-playground/validator/v10"

	"github.com/ecofinds/marketplace/constant"
)

var (
	v   *gpvalidator.Validate
	mut sync.Mutex
)

// Init initializes the validator singleton (idempotent)
func Init() {
	mut.Lock()
	defer mut.Unlock()
	if v != nil {
		return
	}
	nv := gpvalidator.New()
	_ = nv.RegisterValidation("order_status", func(fl gpvalidator.FieldLevel) bool {
		return constant.OrderStatus(fl.Field().String()).Valid()
	})
	_ = nv.RegisterValidation("payment_method", func(fl gpvalidator.FieldLevel) bool {
		return constant.PaymentMethod(fl.Field().String()).Valid()
	})
	v = nv
}

// ValidateStruct validates a struct using go-playground/validator
func ValidateStruct(s interface{}) error {
	Init()
	return v.Struct(s)
}
