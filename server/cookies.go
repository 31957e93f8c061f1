package server

import "net/http"

// setAuthCookies sets the HTTP-only session cookie and the script-readable
// CSRF cookie. Both are rotated together.
func (s *Server) setAuthCookies(w http.ResponseWriter, sessionID, csrfToken string) {
	maxAge := int(s.config.GetCookieMaxAge().Seconds())
	http.SetCookie(w, s.cookie(s.config.GetSessionCookieName(), sessionID, true, maxAge))
	http.SetCookie(w, s.cookie(s.config.GetCSRFCookieName(), csrfToken, false, maxAge))
}

func (s *Server) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie(s.config.GetSessionCookieName(), "", true, -1))
	http.SetCookie(w, s.cookie(s.config.GetCSRFCookieName(), "", false, -1))
}

func (s *Server) cookie(name, value string, httpOnly bool, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   s.config.GetSecureCookies(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

func (s *Server) sessionIDFromRequest(r *http.Request) string {
	c, err := r.Cookie(s.config.GetSessionCookieName())
	if err != nil {
		return ""
	}
	return c.Value
}
