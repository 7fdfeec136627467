package handler // declare the package name; contains HTTP handlers

import (
	"context"  // context bounds the readiness probe
	"net/http" // net/http provides status codes and response helpers
	"time"     // time sets the probe timeout

	"github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Health returns the /healthz handler used by load balancers and
// monitoring systems.  When ping is set (the MySQL pool's PingContext)
// a failing database turns the answer into 503; otherwise it is a plain
// text "ok" with 200.
func Health(ping func(context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second) // keep probes short
			defer cancel()
			if err := ping(ctx); err != nil {
				c.Logger().Errorf("healthz: database ping failed: %v", err) // reason stays in the logs
				return c.String(http.StatusServiceUnavailable, "unavailable")
			}
		}
		return c.String(http.StatusOK, "ok") // write "ok" with a 200 OK status; String writes plain text
	}
}
