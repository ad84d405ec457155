package middleware

import (
	"net/http"

	"steam-trade-farm/pkg/apierror"

	"go.uber.org/zap"
)

// Recovery returns a middleware that turns panics into 500 responses.
func Recovery(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("panic",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("request_id", GetRequestID(r.Context())),
						zap.Stack("stack"))

					apierror.InternalError("internal server error").Write(w)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
