package middleware

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/mzivkovic/wikibin/internal/auth"
	"github.com/mzivkovic/wikibin/pkg"
)

// AdminGate protects page-mutation routes. It resolves the session cookie
// into an identity and lets only admins through, storing the identity in
// the request context for the handlers. Denial happens here, before any
// page store call.
func AdminGate(checker auth.Checker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ReadSessionCookie(r)

			identity, err := checker.ResolveIdentity(r.Context(), token)
			if err != nil {
				log.Errorf("[admin gate] resolve identity => %s: %s", r.URL.Path, err)
				pkg.WriteResponse(w, pkg.ContentType.Text, "not authorized", http.StatusForbidden)
				return
			}

			if !identity.IsAdmin() {
				log.Tracef("[admin gate] denied [%s] => %s", identity.Username, r.URL.Path)
				pkg.WriteResponse(w, pkg.ContentType.Text, "not authorized", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(
				auth.ContextWithIdentity(r.Context(), identity),
			))
		})
	}
}
