package web

import (
	"net/http"

	"github.com/JonMunkholm/ArticleImport/internal/core"
)

// requestMeta attaches the client address and user agent to the request
// context so commit runs can record them in import history. RemoteAddr has
// already been rewritten by TrustedRealIP.
func requestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithRequestMeta(r.Context(), core.RequestMeta{
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
