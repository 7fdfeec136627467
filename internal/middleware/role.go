package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // http package defines standard HTTP status codes

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context

	"github.com/iliyamo/school-rfid-admin/internal/model"
)

var (
	ErrAccessDenied   = echo.NewHTTPError(http.StatusForbidden, "Access denied")
	ErrSchoolMismatch = echo.NewHTTPError(http.StatusForbidden, "Access denied: School mismatch")
	ErrAccessDisabled = echo.NewHTTPError(http.StatusForbidden, "Server access is currently disabled by the super admin")
)

// RequireRole returns a middleware function that enforces that the
// authenticated user has one of the specified roles.  For admins it is
// also the tenant guard: when the route has a :schoolId parameter it must
// equal the admin's own school.  Routes without that parameter are not
// tenant-checked here.  It assumes JWTAuth ran first.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	// Build a set of allowed roles for constant-time lookups.
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cl := ClaimsFrom(c)
			if cl == nil || !allowed[cl.Role] {
				return ErrAccessDenied
			}
			if cl.Role == model.RoleAdmin {
				if sid := c.Param("schoolId"); sid != "" && sid != cl.SchoolID {
					return ErrSchoolMismatch
				}
			}
			return next(c)
		}
	}
}

// AccessControl is the global kill switch.  enabled is evaluated on every
// request so the flag can be flipped at runtime.
func AccessControl(enabled func() bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !enabled() {
				return ErrAccessDisabled
			}
			return next(c)
		}
	}
}
