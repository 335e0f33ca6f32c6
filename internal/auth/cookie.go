package auth

import "net/http"

// SessionCookieName - bearer token for the session, httponly, lax
const SessionCookieName = "session"

// ReadSessionCookie returns the session token carried by the request,
// or an empty string when the cookie is absent.
func ReadSessionCookie(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
