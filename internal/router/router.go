package router // package router builds the echo application and registers every API route

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/school-rfid-admin/internal/config"
	"github.com/iliyamo/school-rfid-admin/internal/handler"
	"github.com/iliyamo/school-rfid-admin/internal/middleware"
	"github.com/iliyamo/school-rfid-admin/internal/model"
	"github.com/iliyamo/school-rfid-admin/internal/repository"
	"github.com/iliyamo/school-rfid-admin/internal/service"
)

// Deps is everything the routes need.  Publisher and Redis are optional:
// without a publisher manual attendance is recorded inline, without Redis
// the login limiter keeps its buckets in process.
type Deps struct {
	Config    config.Config
	RateLimit config.RateLimitConfig
	Redis     *redis.Client

	Schools    repository.SchoolStore
	Users      repository.UserStore
	Students   repository.StudentStore
	Attendance repository.AttendanceStore
	Messages   repository.MessageStore

	Publisher handler.EventPublisher
	// Recorder defaults to an AttendanceService over the stores above
	// that logs parent notifications.
	Recorder handler.EventRecorder

	// AccessEnabled is consulted on every authenticated request.  When nil
	// Config.AccessEnabled is used.
	AccessEnabled func() bool
	// Ping backs /healthz; nil skips the database check.
	Ping func(context.Context) error
	// Now replaces the clock of analytics and manual attendance.
	Now func() time.Time
}

// New builds the echo instance with the shared middleware, the error
// handler and all routes.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	v := handler.NewValidator()
	e.Validator = v
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(v)

	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(echomw.CORS())

	if d.Recorder == nil {
		d.Recorder = &service.AttendanceService{
			Students:   d.Students,
			Attendance: d.Attendance,
			Messages:   d.Messages,
			Notifier:   service.LogNotifier{Logger: e.Logger},
			Logger:     e.Logger,
			Location:   d.Config.Location,
			Now:        d.Now,
		}
	}

	e.GET("/healthz", handler.Health(d.Ping))

	api := e.Group("/api")
	RegisterAuth(api, d)
	RegisterSchools(api, d)
	RegisterStudents(api, d)
	RegisterAnalytics(api, d)
	RegisterAttendance(api, d)
	RegisterUsers(api, d)
	return e
}

// guard returns the middleware chain of an authenticated route:
// authentication, then role, then the access kill switch.
func guard(d Deps, roles ...string) []echo.MiddlewareFunc {
	enabled := d.AccessEnabled
	if enabled == nil {
		on := d.Config.AccessEnabled
		enabled = func() bool { return on }
	}
	return []echo.MiddlewareFunc{
		middleware.JWTAuth(d.Config.JWTSecret, d.Schools),
		middleware.RequireRole(roles...),
		middleware.AccessControl(enabled),
	}
}

var (
	superOnly = []string{model.RoleSuperAdmin}
	anyRole   = []string{model.RoleAdmin, model.RoleSuperAdmin}
)

// RegisterAuth registers /auth.  Login is rate limited and is reachable
// even while access is disabled so operators can still sign in.
func RegisterAuth(g *echo.Group, d Deps) {
	a := handler.NewAuthHandler(d.Config, d.Users, d.Schools)
	g.POST("/auth/login", a.Login, middleware.NewRateLimiter(d.RateLimit, d.Redis))
}

// RegisterSchools registers /schools.
func RegisterSchools(g *echo.Group, d Deps) {
	h := handler.NewSchoolHandler(d.Schools, d.Users, d.Config.RequestTimeout)
	g.POST("/schools", h.Create, guard(d, superOnly...)...)
	g.PUT("/schools/:id", h.Update, guard(d, superOnly...)...)
	g.DELETE("/schools/:id", h.Delete, guard(d, superOnly...)...)
	g.GET("/schools", h.List, guard(d, anyRole...)...)
}

// RegisterStudents registers /students.  The import route carries its
// own body limit.
func RegisterStudents(g *echo.Group, d Deps) {
	h := handler.NewStudentHandler(d.Students, d.Schools, d.Config.UploadDir, d.Config.RequestTimeout)
	g.POST("/students", h.Create, guard(d, anyRole...)...)
	g.GET("/students", h.ListAll, guard(d, superOnly...)...)
	g.GET("/students/:schoolId", h.List, guard(d, anyRole...)...)
	g.PUT("/students/:schoolId/:rfid", h.Update, guard(d, anyRole...)...)
	g.DELETE("/students/:schoolId/:rfid", h.Delete, guard(d, superOnly...)...)
	g.DELETE("/students/:schoolId", h.DeleteAll, guard(d, superOnly...)...)

	limit := d.Config.ImportMaxBytes
	if limit == "" {
		limit = "10M"
	}
	g.POST("/students/import/:schoolId", h.Import, append(guard(d, anyRole...), echomw.BodyLimit(limit))...)
}

// RegisterAnalytics registers /analytics.
func RegisterAnalytics(g *echo.Group, d Deps) {
	h := handler.NewAnalyticsHandler(d.Students, d.Attendance, d.Messages, d.Config.Location, d.Config.RequestTimeout)
	if d.Now != nil {
		h.Now = d.Now
	}
	g.GET("/analytics/superadmin/all", h.Global, guard(d, superOnly...)...)
	g.GET("/analytics/:schoolId", h.School, guard(d, anyRole...)...)
}

// RegisterAttendance registers manual attendance and the attendance and
// message logs.
func RegisterAttendance(g *echo.Group, d Deps) {
	h := &handler.AttendanceHandler{
		Schools:    d.Schools,
		Attendance: d.Attendance,
		Messages:   d.Messages,
		Publisher:  d.Publisher,
		Recorder:   d.Recorder,
		Now:        d.Now,
		Timeout:    d.Config.RequestTimeout,
	}
	g.POST("/attendance/:schoolId", h.Mark, guard(d, anyRole...)...)
	g.GET("/attendance/:schoolId", h.List, guard(d, anyRole...)...)
	g.GET("/messages/:schoolId", h.ListMessages, guard(d, anyRole...)...)
}

// RegisterUsers registers /users.  All user routes are superadmin only,
// so the bare :id routes need no tenant check.
func RegisterUsers(g *echo.Group, d Deps) {
	h := handler.NewUserHandler(d.Users, d.Schools, d.Config.BcryptCost, d.Config.RequestTimeout)
	g.POST("/users", h.Create, guard(d, superOnly...)...)
	g.GET("/users", h.ListAll, guard(d, superOnly...)...)
	g.GET("/users/:schoolId", h.ListBySchool, guard(d, superOnly...)...)
	g.PUT("/users/:id", h.Update, guard(d, superOnly...)...)
	g.DELETE("/users/:id", h.Delete, guard(d, superOnly...)...)
	g.POST("/users/:id/reset-password", h.ResetPassword, guard(d, superOnly...)...)
}
