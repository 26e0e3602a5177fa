package session

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"
)

// Cookie and header names of the external interface.
const (
	CookieName     = "session"
	CSRFCookieName = "csrf-token"
	CSRFHeader     = "x-csrf-token"
)

const csrfTokenBytes = 32

// NewCSRFToken generates a random token for the double-submit pair.
func NewCSRFToken() string {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b)
}

// SetSessionCookie writes the HTTP-only session cookie.
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetCSRFCookie writes the csrf-token cookie. It must stay readable by
// client script so the value can be echoed in the request header.
func SetCSRFCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAuthCookies expires the session and CSRF cookies.
func ClearAuthCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{CookieName, CSRFCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name == CookieName,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
