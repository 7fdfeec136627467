package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/iliyamo/school-rfid-admin/internal/model"
	"github.com/iliyamo/school-rfid-admin/internal/repository"
	"github.com/iliyamo/school-rfid-admin/internal/utils"
)

var (
	errInvalidRole         = badRequest("Invalid role")
	errSchoolRequired      = badRequest("School ID is required for admin role")
	errUsernameExists      = badRequest("Username already exists")
	errUserNotFound        = notFound("User not found")
	errNewPasswordRequired = badRequest("New password is required")
)

// UserHandler serves /users.  Every route is superadmin only.
type UserHandler struct {
	Users      repository.UserStore
	Schools    repository.SchoolStore
	BcryptCost int
	Timeout    time.Duration
}

func NewUserHandler(u repository.UserStore, s repository.SchoolStore, bcryptCost int, timeout time.Duration) *UserHandler {
	if u == nil || s == nil {
		panic("handler: nil store passed to NewUserHandler")
	}
	return &UserHandler{Users: u, Schools: s, BcryptCost: bcryptCost, Timeout: timeout}
}

type createUserReq struct {
	Username    string  `json:"username" validate:"required"`
	Password    string  `json:"password" validate:"required"`
	Role        string  `json:"role"`
	SchoolID    string  `json:"schoolId"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
}

type updateUserReq struct {
	Username    *string `json:"username"`
	Password    *string `json:"password"`
	Role        *string `json:"role"`
	SchoolID    *string `json:"schoolId"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
}

type resetPasswordReq struct {
	NewPassword string `json:"newPassword"`
}

// Create handles POST /users.
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	req.SchoolID = strings.TrimSpace(req.SchoolID)
	if err := c.Validate(&req); err != nil {
		return err
	}
	if !model.ValidRole(req.Role) {
		return errInvalidRole
	}

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	u := &model.User{
		Username:    req.Username,
		Role:        req.Role,
		Email:       nonEmpty(trimmed(req.Email)),
		PhoneNumber: nonEmpty(trimmed(req.PhoneNumber)),
	}
	if req.Role == model.RoleAdmin {
		if req.SchoolID == "" {
			return errSchoolRequired
		}
		if err := requireSchool(ctx, h.Schools, req.SchoolID); err != nil {
			return err
		}
		u.SchoolID = &req.SchoolID
	}

	hash, err := utils.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	u.PasswordHash = hash
	if err := h.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			return errUsernameExists
		}
		return errors.Wrap(err, "create user")
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "User created successfully", "user": u})
}

// ListAll handles GET /users.
func (h *UserHandler) ListAll(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	users, err := h.Users.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list users")
	}
	return c.JSON(http.StatusOK, echo.Map{"total": len(users), "users": users})
}

// ListBySchool handles GET /users/:schoolId and returns the school's
// admins.
func (h *UserHandler) ListBySchool(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	users, err := h.Users.ListAdmins(ctx, c.Param("schoolId"))
	if err != nil {
		return errors.Wrap(err, "list admins")
	}
	return c.JSON(http.StatusOK, echo.Map{"total": len(users), "users": users})
}

// Update handles PUT /users/:id.  The password is re-hashed only when a
// new one is supplied.  Turning an account into a superadmin drops its
// school.
func (h *UserHandler) Update(c echo.Context) error {
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	id := c.Param("id")
	current, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return errUserNotFound
		}
		return errors.Wrap(err, "load user")
	}

	p := model.UserPatch{
		Email:       trimmed(req.Email),
		PhoneNumber: trimmed(req.PhoneNumber),
	}
	if u := trimmed(req.Username); u != nil {
		if *u == "" {
			return badRequest("username cannot be empty")
		}
		p.Username = u
	}
	role := current.Role
	if req.Role != nil {
		role = strings.ToLower(strings.TrimSpace(*req.Role))
		if !model.ValidRole(role) {
			return errInvalidRole
		}
		p.Role = &role
	}
	schoolID := current.School()
	if s := trimmed(req.SchoolID); s != nil {
		schoolID = *s
	}
	switch role {
	case model.RoleSuperAdmin:
		p.ClearSchool = current.SchoolID != nil
	case model.RoleAdmin:
		if schoolID == "" {
			return errSchoolRequired
		}
		if schoolID != current.School() {
			if err := requireSchool(ctx, h.Schools, schoolID); err != nil {
				return err
			}
			p.SchoolID = &schoolID
		}
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := utils.HashPassword(*req.Password, h.BcryptCost)
		if err != nil {
			return errors.Wrap(err, "hash password")
		}
		p.PasswordHash = &hash
	}

	u, err := h.Users.Update(ctx, id, p)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return errUserNotFound
	case errors.Is(err, repository.ErrUsernameExists):
		return errUsernameExists
	case err != nil:
		return errors.Wrap(err, "update user")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User updated successfully", "user": u})
}

// Delete handles DELETE /users/:id.
func (h *UserHandler) Delete(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Users.Delete(ctx, c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return errUserNotFound
		}
		return errors.Wrap(err, "delete user")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User deleted successfully"})
}

// ResetPassword handles POST /users/:id/reset-password.  The old
// password is not checked.
func (h *UserHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	if req.NewPassword == "" {
		return errNewPasswordRequired
	}

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	hash, err := utils.HashPassword(req.NewPassword, h.BcryptCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	if _, err := h.Users.GetByID(ctx, c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return errUserNotFound
		}
		return errors.Wrap(err, "load user")
	}
	if _, err := h.Users.Update(ctx, c.Param("id"), model.UserPatch{PasswordHash: &hash}); err != nil {
		return errors.Wrap(err, "reset password")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password reset successfully"})
}
