package transport

import (
	"net/http"

	"github.com/ecofinds/marketplace/constant"
	"github.com/ecofinds/marketplace/utils/errors"
)

// InternalMiddleware guards operator endpoints with a static bearer token.
// An empty token disables the check.
func InternalMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+apiKey {
				writeError(w, errors.SetCustomError(constant.ErrForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
