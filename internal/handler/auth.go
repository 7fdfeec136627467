package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/iliyamo/school-rfid-admin/internal/config"
	"github.com/iliyamo/school-rfid-admin/internal/middleware"
	"github.com/iliyamo/school-rfid-admin/internal/model"
	"github.com/iliyamo/school-rfid-admin/internal/repository"
	"github.com/iliyamo/school-rfid-admin/internal/utils"
)

// errInvalidCredentials is returned for an unknown username and for a
// wrong password alike.
var errInvalidCredentials = echo.NewHTTPError(http.StatusBadRequest, "Invalid credentials")

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg     config.Config
	Users   repository.UserStore
	Schools repository.SchoolStore
}

func NewAuthHandler(cfg config.Config, u repository.UserStore, s repository.SchoolStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Schools: s}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type adminUser struct {
	loginUser
	SchoolID string `json:"schoolId"`
}

type schoolSummary struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	LogoURL *string `json:"logoUrl"`
	Address *string `json:"address"`
}

// superAdminLogin and adminLogin are the two shapes of a login response.
// Only the admin variant carries a school.
type superAdminLogin struct {
	Token string    `json:"token"`
	User  loginUser `json:"user"`
}

type adminLogin struct {
	Token  string         `json:"token"`
	User   adminUser      `json:"user"`
	School *schoolSummary `json:"school"`
}

// Login verifies credentials and issues an access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return errInvalidCredentials
	}

	ctx, cancel := requestContext(c, h.Cfg.RequestTimeout)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			utils.VerifyDecoy(req.Password, h.Cfg.BcryptCost)
			return errInvalidCredentials
		}
		return errors.Wrap(err, "load user")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return errInvalidCredentials
	}

	var school *model.School
	if id := u.School(); id != "" {
		s, err := h.Schools.GetByID(ctx, id)
		switch {
		case err == nil:
			if s.Disabled {
				return middleware.ErrAccountDeactivated
			}
			school = &s
		case errors.Is(err, repository.ErrSchoolNotFound):
			c.Logger().Warnf("login: user %s references missing school %s", u.ID, id)
		default:
			return errors.Wrap(err, "load school")
		}
	}

	tok, err := utils.NewAccessToken(h.Cfg.JWTSecret, h.Cfg.JWTExpiration, u)
	if err != nil {
		return errors.Wrap(err, "issue token")
	}

	base := loginUser{UserID: u.ID, Username: u.Username, Role: u.Role}
	if u.Role != model.RoleAdmin {
		return c.JSON(http.StatusOK, superAdminLogin{Token: tok.Token, User: base})
	}
	resp := adminLogin{Token: tok.Token, User: adminUser{loginUser: base, SchoolID: u.School()}}
	if school != nil {
		resp.School = &schoolSummary{ID: school.ID, Name: school.Name, LogoURL: school.LogoURL, Address: school.Address}
	}
	return c.JSON(http.StatusOK, resp)
}
