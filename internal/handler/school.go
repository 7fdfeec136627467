package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/iliyamo/school-rfid-admin/internal/model"
	"github.com/iliyamo/school-rfid-admin/internal/repository"
)

var (
	errSchoolNotFound     = notFound("School not found")
	errSchoolNameRequired = badRequest("School name is required")
	errSchoolNameExists   = badRequest("A school with this name already exists. Please use a different name.")
	errAdminNotFound      = badRequest("Admin user not found")
	errNoSchoolOnAccount  = badRequest("School ID not found for this admin")
)

// SchoolHandler serves /schools.
type SchoolHandler struct {
	Schools repository.SchoolStore
	Users   repository.UserStore
	Timeout time.Duration
}

func NewSchoolHandler(s repository.SchoolStore, u repository.UserStore, timeout time.Duration) *SchoolHandler {
	if s == nil || u == nil {
		panic("handler: nil store passed to NewSchoolHandler")
	}
	return &SchoolHandler{Schools: s, Users: u, Timeout: timeout}
}

type schoolReq struct {
	Name     *string `json:"name"`
	LogoURL  *string `json:"logoUrl"`
	Address  *string `json:"address"`
	AdminID  *string `json:"adminId"`
	Disabled *bool   `json:"disabled"`
}

func (r schoolReq) patch() model.SchoolPatch {
	return model.SchoolPatch{
		Name:     trimmed(r.Name),
		LogoURL:  trimmed(r.LogoURL),
		Address:  trimmed(r.Address),
		AdminID:  trimmed(r.AdminID),
		Disabled: r.Disabled,
	}
}

// Create handles POST /schools.
func (h *SchoolHandler) Create(c echo.Context) error {
	var req schoolReq
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	p := req.patch()
	if p.Name == nil || *p.Name == "" {
		return errSchoolNameRequired
	}

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.checkName(ctx, *p.Name, ""); err != nil {
		return err
	}
	if err := h.checkAdmin(ctx, p.AdminID); err != nil {
		return err
	}

	s := &model.School{
		Name:    *p.Name,
		LogoURL: nonEmpty(p.LogoURL),
		Address: nonEmpty(p.Address),
		AdminID: nonEmpty(p.AdminID),
	}
	if p.Disabled != nil {
		s.Disabled = *p.Disabled
	}
	if err := h.Schools.Create(ctx, s); err != nil {
		if errors.Is(err, repository.ErrSchoolNameExists) {
			return errSchoolNameExists
		}
		return errors.Wrap(err, "create school")
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "School created successfully", "school": s})
}

// Update handles PUT /schools/:id.  Only the supplied fields change.
func (h *SchoolHandler) Update(c echo.Context) error {
	id := c.Param("id")
	var req schoolReq
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	p := req.patch()
	if p.Name != nil && *p.Name == "" {
		return errSchoolNameRequired
	}

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if _, err := h.Schools.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrSchoolNotFound) {
			return errSchoolNotFound
		}
		return errors.Wrap(err, "load school")
	}
	if p.Name != nil {
		if err := h.checkName(ctx, *p.Name, id); err != nil {
			return err
		}
	}
	if err := h.checkAdmin(ctx, p.AdminID); err != nil {
		return err
	}

	s, err := h.Schools.Update(ctx, id, p)
	switch {
	case errors.Is(err, repository.ErrSchoolNotFound):
		return errSchoolNotFound
	case errors.Is(err, repository.ErrSchoolNameExists):
		return errSchoolNameExists
	case err != nil:
		return errors.Wrap(err, "update school")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "School updated successfully", "school": s})
}

// Delete handles DELETE /schools/:id.  The school's students, attendance
// and messages go with it; user accounts are kept.
func (h *SchoolHandler) Delete(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Schools.Delete(ctx, c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrSchoolNotFound) {
			return errSchoolNotFound
		}
		return errors.Wrap(err, "delete school")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "School deleted successfully"})
}

// List handles GET /schools.  A superadmin sees every school, an admin
// only their own.
func (h *SchoolHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if isSuperAdmin(c) {
		schools, err := h.Schools.List(ctx)
		if err != nil {
			return errors.Wrap(err, "list schools")
		}
		return c.JSON(http.StatusOK, echo.Map{"total": len(schools), "schools": schools})
	}

	id := caller(c).SchoolID
	if id == "" {
		return errNoSchoolOnAccount
	}
	s, err := h.Schools.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSchoolNotFound) {
			return errSchoolNotFound
		}
		return errors.Wrap(err, "load school")
	}
	return c.JSON(http.StatusOK, echo.Map{"total": 1, "schools": []model.School{s}})
}

// checkName rejects a name already used by another school, compared
// without regard to case.
func (h *SchoolHandler) checkName(ctx context.Context, name, excludeID string) error {
	taken, err := h.Schools.NameTaken(ctx, name, excludeID)
	if err != nil {
		return errors.Wrap(err, "check school name")
	}
	if taken {
		return errSchoolNameExists
	}
	return nil
}

// checkAdmin verifies that a referenced admin user exists.
func (h *SchoolHandler) checkAdmin(ctx context.Context, id *string) error {
	if id == nil || *id == "" {
		return nil
	}
	_, err := h.Users.GetByID(ctx, *id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return errAdminNotFound
	}
	return errors.Wrap(err, "load admin")
}

// nonEmpty maps "" to nil.
func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
