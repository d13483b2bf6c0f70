package handlers

import (
	"net/http"
	"strings"

	"github.com/handsomefox/reelshelf/internal/auth"
	"github.com/handsomefox/reelshelf/internal/env"
)

const sessionCookieName = "session"

// sessionToken reads the session cookie, falling back to a bearer token.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func setSessionCookie(w http.ResponseWriter, sess *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(auth.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: sameSite(),
		Secure:   secure(),
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: sameSite(),
		Secure:   secure(),
	})
}

func sameSite() http.SameSite {
	if env.Current.IsProduction() {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func secure() bool { return env.Current.IsProduction() }
