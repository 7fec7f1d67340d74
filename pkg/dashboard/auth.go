package dashboard

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	cookieName    = "spiral_session"
	sessionMaxAge = 24 * time.Hour
)

// authorized reports whether r carries the API key as a bearer token, an
// X-API-Key header, a token query parameter (websocket clients) or a signed
// session cookie. An empty key disables authentication.
func authorized(r *http.Request, apiKey string) bool {
	if apiKey == "" {
		return true
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return equal(strings.TrimPrefix(h, "Bearer "), apiKey)
	}
	if h := r.Header.Get("X-API-Key"); h != "" {
		return equal(h, apiKey)
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return equal(q, apiKey)
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return verifySession(c.Value, apiKey, time.Now())
	}
	return false
}

func equal(a, b string) bool {
	return hmac.Equal([]byte(strings.TrimSpace(a)), []byte(b))
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, s.apiKey) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// handleLogin exchanges the API key for a session cookie so the index page
// can call the API without keeping the key around.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if s.apiKey != "" && !equal(body.APIKey, s.apiKey) {
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}

	value, expiry := signSession(s.apiKey, time.Now())
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    value,
		Path:     "/",
		Expires:  expiry,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"expires": expiry.UTC()})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// signSession returns "<hmac>.<expiry hex>" keyed by the API key.
func signSession(key string, now time.Time) (string, time.Time) {
	expiry := now.Add(sessionMaxAge)
	expiryHex := fmt.Sprintf("%x", expiry.Unix())
	return sessionMAC(key, expiryHex) + "." + expiryHex, expiry
}

func verifySession(cookie, key string, now time.Time) bool {
	sig, expiryHex, ok := strings.Cut(cookie, ".")
	if !ok {
		return false
	}
	var expiryUnix int64
	if _, err := fmt.Sscanf(expiryHex, "%x", &expiryUnix); err != nil {
		return false
	}
	if now.Unix() > expiryUnix {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(sessionMAC(key, expiryHex)))
}

func sessionMAC(key, payload string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
