package middleware

import (
	"net/http"

	"github.com/templui/skillfolio/internal/config"
	"github.com/templui/skillfolio/internal/ctxkeys"
)

// Config adds the sanitized configuration to the request context.
func Config(cfg *config.Config) func(http.Handler) http.Handler {
	safe := cfg.Sanitized()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := ctxkeys.WithConfig(r.Context(), safe)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
