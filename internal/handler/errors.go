package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/iliyamo/school-rfid-admin/internal/middleware"
)

// errSomethingWentWrong is the only body a client sees for a server fault.
const errSomethingWentWrong = "Something went wrong!"

var (
	errInvalidBody = echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
)

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler rendering every
// error as {"message": ...}.  Validation errors add the per-field
// messages under "errors".  Anything that is not an *echo.HTTPError or a
// validation error is logged with the caller's identity and answered
// with a generic 500.
func NewHTTPErrorHandler(v *Validator) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		body := echo.Map{"message": errSomethingWentWrong}

		var herr *echo.HTTPError
		var verrs validator.ValidationErrors
		switch {
		case errors.As(err, &herr):
			if herr.Internal != nil {
				if inner, ok := herr.Internal.(*echo.HTTPError); ok {
					herr = inner
				}
			}
			code = herr.Code
			switch m := herr.Message.(type) {
			case string:
				body = echo.Map{"message": m}
			case echo.Map:
				body = m
			default:
				body = echo.Map{"message": http.StatusText(code)}
			}
			if code >= http.StatusInternalServerError {
				c.Logger().Error(err)
			}
		case errors.As(err, &verrs):
			msg, fields := v.Translate(verrs)
			code = http.StatusBadRequest
			body = echo.Map{"message": msg, "errors": fields}
		default:
			user := "anon"
			if cl := middleware.ClaimsFrom(c); cl != nil {
				user = cl.ID
			}
			c.Logger().Errorf("%s %s failed (user=%s): %+v", c.Request().Method, c.Path(), user, err)
		}

		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			c.Logger().Error(err)
		}
	}
}

// fail builds an HTTP error carrying extra JSON fields next to message.
func fail(code int, message string, extra echo.Map) *echo.HTTPError {
	body := echo.Map{"message": message}
	for k, v := range extra {
		body[k] = v
	}
	return echo.NewHTTPError(code, body)
}

func badRequest(message string) error { return echo.NewHTTPError(http.StatusBadRequest, message) }

func notFound(message string) error { return echo.NewHTTPError(http.StatusNotFound, message) }
