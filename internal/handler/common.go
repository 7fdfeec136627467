package handler // handler defines the http handlers of the admin API

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/iliyamo/school-rfid-admin/internal/middleware"
	"github.com/iliyamo/school-rfid-admin/internal/model"
	"github.com/iliyamo/school-rfid-admin/internal/repository"
	"github.com/iliyamo/school-rfid-admin/internal/utils"
)

// defaultTimeout bounds store calls when a handler has no configured
// timeout.
const defaultTimeout = 5 * time.Second

// requestContext derives a context with the handler's timeout from the
// request.
func requestContext(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(c.Request().Context(), d)
}

// caller returns the verified claims.  Routes that reach a handler always
// run JWTAuth first, so a nil result means the router is misconfigured.
func caller(c echo.Context) *utils.Claims {
	if cl := middleware.ClaimsFrom(c); cl != nil {
		return cl
	}
	return &utils.Claims{}
}

func isSuperAdmin(c echo.Context) bool {
	return caller(c).Role == model.RoleSuperAdmin
}

// bindValid binds the request body into v and runs the echo validator.
func bindValid(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return errInvalidBody
	}
	return c.Validate(v)
}

// trimmed returns a trimmed copy of a optional string, leaving nil alone.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

// queryLimit reads ?limit= clamped to [1, max]; missing or invalid
// values give def.
func queryLimit(c echo.Context, def, max int) int {
	n, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// requireSchool answers 404 when id names no school.
func requireSchool(ctx context.Context, schools repository.SchoolStore, id string) error {
	_, err := schools.GetByID(ctx, id)
	if errors.Is(err, repository.ErrSchoolNotFound) {
		return errSchoolNotFound
	}
	return errors.Wrap(err, "load school")
}
