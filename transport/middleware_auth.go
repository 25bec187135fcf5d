package transport

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ecofinds/marketplace/application/auth"
	"github.com/ecofinds/marketplace/constant"
	utilsContext "github.com/ecofinds/marketplace/utils/context"
	"github.com/ecofinds/marketplace/utils/errors"
)

// AuthMiddleware returns a middleware that validates bearer tokens using AuthApp.
// Public endpoints (see isPublicPath) pass through without a token.
func AuthMiddleware(authApp auth.AuthApp) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				writeError(w, errors.SetCustomError(constant.ErrUnauthorize))
				return
			}
			token := strings.TrimPrefix(header, "Bearer ")

			userID, err := authApp.ValidateToken(r.Context(), token)
			if err != nil {
				if errors.IsType(err, constant.ErrInternal) {
					writeError(w, err)
					return
				}
				writeError(w, errors.SetCustomError(constant.ErrUnauthorize))
				return
			}

			ctx := utilsContext.WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// isPublicPath defines which endpoints are public (no auth required)
func isPublicPath(method, path string) bool {
	if strings.HasPrefix(path, "/swagger/") {
		return true
	}
	if path == "/healthz" || path == "/metrics" {
		return true
	}
	if method == http.MethodGet && (path == "/products" || strings.HasPrefix(path, "/products/")) {
		return true
	}
	return false
}
