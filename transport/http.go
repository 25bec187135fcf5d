package transport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	httpSwagger "github.com/swaggo/http-swagger"

	authapp "github.com/ecofinds/marketplace/application/auth"
	cartapp "github.com/ecofinds/marketplace/application/cart"
	orderapp "github.com/ecofinds/marketplace/application/order"
	productapp "github.com/ecofinds/marketplace/application/product"
	"github.com/ecofinds/marketplace/constant"
	"github.com/ecofinds/marketplace/pkg/metrics"
	utilsContext "github.com/ecofinds/marketplace/utils/context"
	"github.com/ecofinds/marketplace/utils/errors"
	validatorx "github.com/ecofinds/marketplace/utils/validator"
)

type RestHandler struct {
	ProductApp productapp.ProductApp
	CartApp    cartapp.CartApp
	OrderApp   orderapp.OrderApp
}

// Options carries the optional observability wiring of the router.
type Options struct {
	Metrics      *metrics.ServerMetrics
	Gatherer     prometheus.Gatherer
	MetricsToken string
}

func NewTransport(
	AuthApp authapp.AuthApp,
	ProductApp productapp.ProductApp,
	CartApp cartapp.CartApp,
	OrderApp orderapp.OrderApp,
	opts Options,
) http.Handler {
	mux := mux.NewRouter()

	rh := &RestHandler{
		ProductApp: ProductApp,
		CartApp:    CartApp,
		OrderApp:   OrderApp,
	}

	// Swagger UI
	mux.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	// Operational routes
	mux.HandleFunc("/healthz", rh.Health).Methods(http.MethodGet)
	if opts.Gatherer != nil {
		mux.Handle("/metrics", InternalMiddleware(opts.MetricsToken)(metrics.Handler(opts.Gatherer))).Methods(http.MethodGet)
	}

	// Public routes
	mux.HandleFunc("/products", rh.ListProducts).Methods(http.MethodGet)
	mux.HandleFunc("/products/{id:[0-9]+}", rh.GetProduct).Methods(http.MethodGet)

	// protected routes
	mux.HandleFunc("/cart", rh.GetCart).Methods(http.MethodGet)
	mux.HandleFunc("/cart/items", rh.AddCartItem).Methods(http.MethodPost)
	mux.HandleFunc("/cart/items/{productId:[0-9]+}", rh.UpdateCartItem).Methods(http.MethodPut)
	mux.HandleFunc("/cart/items/{productId:[0-9]+}", rh.RemoveCartItem).Methods(http.MethodDelete)
	mux.HandleFunc("/checkout", rh.Checkout).Methods(http.MethodPost)
	mux.HandleFunc("/orders", rh.ListOrders).Methods(http.MethodGet)
	mux.HandleFunc("/sales", rh.ListSales).Methods(http.MethodGet)
	mux.HandleFunc("/orders/{id:[0-9]+}", rh.GetOrder).Methods(http.MethodGet)
	mux.HandleFunc("/orders/{id:[0-9]+}/status", rh.UpdateOrderStatus).Methods(http.MethodPatch)

	// middleware
	mux.Use(LoggingMiddleware(opts.Metrics))
	mux.Use(AuthMiddleware(AuthApp))

	return mux
}

// Health handler
// @Summary Liveness probe
// @Tags Ops
// @Produce json
// @Success 200 {object} Response
// @Router /healthz [get]
func (s *RestHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]string{"status": "ok"})
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(constant.ErrInvalidRequest, err)
	}
	if err := validatorx.ValidateStruct(dst); err != nil {
		return errors.Wrap(constant.ErrInvalidRequest, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil || id == 0 {
		return 0, errors.SetCustomError(constant.ErrInvalidRequest)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// currentUser returns the authenticated user id set by AuthMiddleware.
func currentUser(r *http.Request) (uint64, error) {
	id, ok := utilsContext.GetUserID(r.Context())
	if !ok || id == 0 {
		return 0, errors.SetCustomError(constant.ErrUnauthorize)
	}
	return id, nil
}
