package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/cargolink/escrow-api/internal/pkg/identity"
	"github.com/cargolink/escrow-api/internal/pkg/logger"
	"github.com/cargolink/escrow-api/internal/pkg/response"
)

// Recover turns a handler panic into a 500. Any transaction the handler
// had open is rolled back by its own deferred Rollback before we get here.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			event := logger.FromContext(r.Context()).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("method", r.Method).
				Str("path", r.URL.Path)
			if caller, ok := identity.FromContext(r.Context()); ok {
				event = event.Str("user_id", caller.UserID.String())
			}
			event.Msg("Panic recovered")

			response.InternalError(w)
		}()

		next.ServeHTTP(w, r)
	})
}
