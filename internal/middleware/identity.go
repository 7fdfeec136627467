package middleware

// identity.go holds the context plumbing shared by the middleware and the
// handlers: JWTAuth stores the verified claims under claimsKey and
// everything downstream reads them back through ClaimsFrom.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-rfid-admin/internal/utils"
)

const claimsKey = "claims"

// SetClaims stores verified claims on the request context.
func SetClaims(c echo.Context, cl *utils.Claims) {
	c.Set(claimsKey, cl)
}

// ClaimsFrom returns the claims stored by JWTAuth, or nil on routes that
// are not authenticated.
func ClaimsFrom(c echo.Context) *utils.Claims {
	cl, _ := c.Get(claimsKey).(*utils.Claims)
	return cl
}

// userID returns the authenticated user's id or "anon".
func userID(c echo.Context) string {
	if cl := ClaimsFrom(c); cl != nil && cl.ID != "" {
		return cl.ID
	}
	return "anon"
}
