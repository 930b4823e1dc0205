package api

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/shacharon/pizza-sub006/pkg/auth"
)

const sessionCookieName = "session"

// resolveIdentity reads the session cookie and Authorization bearer
// header off the request and resolves them through auth.Service.
func (s *Server) resolveIdentity(c *echo.Context) (auth.Identity, error) {
	var cookieValue string
	if cookie, err := c.Request().Cookie(sessionCookieName); err == nil {
		cookieValue = cookie.Value
	}

	bearer := ""
	if h := c.Request().Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		bearer = strings.TrimPrefix(h, "Bearer ")
	}

	return s.authService.ResolveIdentity(cookieValue, bearer, s.verifyBearer)
}

func setSessionCookie(c *echo.Context, value, domain, sameSite string, secure bool) {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: parseSameSite(sameSite),
	}
	if domain != "" {
		cookie.Domain = domain
	}
	c.Response().Header().Add("Set-Cookie", cookie.String())
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
