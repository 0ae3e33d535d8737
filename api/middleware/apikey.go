package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/mfgworks/traceline-backend/api/responses"
	pkgerrors "github.com/mfgworks/traceline-backend/pkg/errors"
	"github.com/mfgworks/traceline-backend/pkg/logger"
)

const apiKeyHeader = "X-API-KEY"

// APIKey guards machine-to-machine routes. Requests without the configured
// key are rejected; an empty configured key disables the routes entirely.
func APIKey(key string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sync api key not configured"))
				return
			}
			presented := r.Header.Get(apiKeyHeader)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid api key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
