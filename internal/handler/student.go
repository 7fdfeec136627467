package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/iliyamo/school-rfid-admin/internal/importer"
	"github.com/iliyamo/school-rfid-admin/internal/middleware"
	"github.com/iliyamo/school-rfid-admin/internal/model"
	"github.com/iliyamo/school-rfid-admin/internal/repository"
)

var (
	errStudentNotFound   = notFound("Student not found")
	errStudentExists     = badRequest("A student with this RFID already exists in this school")
	errNoStudents        = notFound("No students found for this school")
	errNoFile            = badRequest("No file uploaded")
	msgImportNoValidRows = "No valid student data found in CSV. Please ensure the column headers are correct " +
		"and the file is comma-separated. Required headers are: " + strings.Join(importer.RequiredColumns, ", ") + "."
)

const (
	msgImportFailed = "An error occurred during the bulk import process."
	msgImportParse  = "Failed to parse CSV file. Please check the file format."
)

// StudentHandler serves /students, including the CSV bulk import.
type StudentHandler struct {
	Students  repository.StudentStore
	Schools   repository.SchoolStore
	UploadDir string
	Timeout   time.Duration
}

func NewStudentHandler(st repository.StudentStore, sc repository.SchoolStore, uploadDir string, timeout time.Duration) *StudentHandler {
	if st == nil || sc == nil {
		panic("handler: nil store passed to NewStudentHandler")
	}
	return &StudentHandler{Students: st, Schools: sc, UploadDir: uploadDir, Timeout: timeout}
}

type createStudentReq struct {
	SchoolID        string  `json:"schoolId"`
	RFID            string  `json:"rfid" validate:"required"`
	Name            string  `json:"name" validate:"required"`
	AdmissionNumber string  `json:"admissionNumber" validate:"required"`
	ParentPhone     string  `json:"parentPhone" validate:"required"`
	ParentPhone2    *string `json:"parentPhone2"`
}

func (r *createStudentReq) normalize() {
	r.SchoolID = strings.TrimSpace(r.SchoolID)
	r.RFID = strings.TrimSpace(r.RFID)
	r.Name = strings.TrimSpace(r.Name)
	r.AdmissionNumber = strings.TrimSpace(r.AdmissionNumber)
	r.ParentPhone = strings.TrimSpace(r.ParentPhone)
	r.ParentPhone2 = nonEmpty(trimmed(r.ParentPhone2))
}

type updateStudentReq struct {
	RFID            *string `json:"rfid"`
	Name            *string `json:"name"`
	AdmissionNumber *string `json:"admissionNumber"`
	ParentPhone     *string `json:"parentPhone"`
	ParentPhone2    *string `json:"parentPhone2"`
}

// Create handles POST /students.  An admin may only add students to
// their own school; an omitted schoolId means that school.
func (h *StudentHandler) Create(c echo.Context) error {
	var req createStudentReq
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	req.normalize()
	if err := c.Validate(&req); err != nil {
		return err
	}

	cl := caller(c)
	if cl.Role == model.RoleAdmin {
		if req.SchoolID == "" {
			req.SchoolID = cl.SchoolID
		}
		if req.SchoolID != cl.SchoolID {
			return middleware.ErrSchoolMismatch
		}
	}
	if req.SchoolID == "" {
		return badRequest("schoolId is required")
	}

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := requireSchool(ctx, h.Schools, req.SchoolID); err != nil {
		return err
	}
	st := &model.Student{
		SchoolID:        req.SchoolID,
		RFID:            req.RFID,
		Name:            req.Name,
		AdmissionNumber: req.AdmissionNumber,
		ParentPhone:     req.ParentPhone,
		ParentPhone2:    req.ParentPhone2,
	}
	if err := h.Students.Create(ctx, st); err != nil {
		if errors.Is(err, repository.ErrStudentExists) {
			return errStudentExists
		}
		return errors.Wrap(err, "create student")
	}
	return c.JSON(http.StatusCreated, st)
}

// ListAll handles GET /students for superadmins.
func (h *StudentHandler) ListAll(c echo.Context) error {
	return h.list(c, "")
}

// List handles GET /students/:schoolId.
func (h *StudentHandler) List(c echo.Context) error {
	return h.list(c, c.Param("schoolId"))
}

func (h *StudentHandler) list(c echo.Context, schoolID string) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	students, err := h.Students.List(ctx, schoolID)
	if err != nil {
		return errors.Wrap(err, "list students")
	}
	return c.JSON(http.StatusOK, echo.Map{"total": len(students), "students": students})
}

// Update handles PUT /students/:schoolId/:rfid.
func (h *StudentHandler) Update(c echo.Context) error {
	var req updateStudentReq
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	p := model.StudentPatch{
		RFID:            trimmed(req.RFID),
		Name:            trimmed(req.Name),
		AdmissionNumber: trimmed(req.AdmissionNumber),
		ParentPhone:     trimmed(req.ParentPhone),
		ParentPhone2:    trimmed(req.ParentPhone2),
	}
	for field, v := range map[string]*string{
		importer.ColRFID:            p.RFID,
		importer.ColName:            p.Name,
		importer.ColAdmissionNumber: p.AdmissionNumber,
		importer.ColParentPhone:     p.ParentPhone,
	} {
		if v != nil && *v == "" {
			return badRequest(field + " cannot be empty")
		}
	}

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	schoolID, rfid := c.Param("schoolId"), c.Param("rfid")
	var (
		st  model.Student
		err error
	)
	if p.Empty() {
		st, err = h.Students.Get(ctx, schoolID, rfid)
	} else {
		st, err = h.Students.Update(ctx, schoolID, rfid, p)
	}
	switch {
	case errors.Is(err, repository.ErrStudentNotFound):
		return errStudentNotFound
	case errors.Is(err, repository.ErrStudentExists):
		return errStudentExists
	case err != nil:
		return errors.Wrap(err, "update student")
	}
	return c.JSON(http.StatusOK, st)
}

// Delete handles DELETE /students/:schoolId/:rfid.
func (h *StudentHandler) Delete(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Students.Delete(ctx, c.Param("schoolId"), c.Param("rfid")); err != nil {
		if errors.Is(err, repository.ErrStudentNotFound) {
			return errStudentNotFound
		}
		return errors.Wrap(err, "delete student")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Student deleted"})
}

// DeleteAll handles DELETE /students/:schoolId.  Removing nothing is a
// 404.
func (h *StudentHandler) DeleteAll(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	n, err := h.Students.DeleteBySchool(ctx, c.Param("schoolId"))
	if err != nil {
		return errors.Wrap(err, "delete students")
	}
	if n == 0 {
		return errNoStudents
	}
	return c.JSON(http.StatusOK, echo.Map{"message": fmt.Sprintf("%d students deleted successfully", n)})
}

// Import handles POST /students/import/:schoolId.  The multipart field
// "file" is spooled to UploadDir, parsed and upserted in one batch.  The
// spooled copy and any multipart temp files are removed on every path.
func (h *StudentHandler) Import(c echo.Context) error {
	defer func() {
		if form := c.Request().MultipartForm; form != nil {
			_ = form.RemoveAll()
		}
	}()
	schoolID := c.Param("schoolId")

	fh, err := c.FormFile("file")
	if err != nil {
		// BodyLimit reports oversized chunked uploads through the body reader.
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return errNoFile
	}

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := requireSchool(ctx, h.Schools, schoolID); err != nil {
		return err
	}

	path, err := h.spool(fh)
	if path != "" {
		defer func() {
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				c.Logger().Warnf("import: remove %s: %v", path, rmErr)
			}
		}()
	}
	if err != nil {
		return errors.Wrap(err, "spool upload")
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open upload")
	}
	defer f.Close()

	res, err := importer.Parse(f, schoolID)
	if err != nil {
		return errors.Wrap(err, "read upload")
	}
	if len(res.Errors) > 0 {
		return fail(http.StatusBadRequest, msgImportParse, echo.Map{"errors": res.Errors})
	}
	if len(res.Students) == 0 {
		headers := res.Headers
		if headers == nil {
			headers = []string{}
		}
		return fail(http.StatusBadRequest, msgImportNoValidRows, echo.Map{"detectedHeaders": headers})
	}

	if _, err := h.Students.Upsert(ctx, res.Students); err != nil {
		return fail(http.StatusInternalServerError, msgImportFailed, echo.Map{"error": errors.Cause(err).Error()}).
			SetInternal(errors.Wrapf(err, "import %d students into %s", len(res.Students), schoolID))
	}

	rejected := res.Rejected
	if rejected == nil {
		rejected = []importer.RejectedRow{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":      "Students imported/updated successfully.",
		"imported":     len(res.Students),
		"rejected":     len(res.Rejected),
		"duplicates":   res.Duplicates,
		"rejectedRows": rejected,
	})
}

// spool copies the upload into a temp file under UploadDir and returns
// its path.  A non-empty path is returned whenever the file was created,
// even on error, so the caller can remove it.
func (h *StudentHandler) spool(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp(h.UploadDir, "students-import-*.csv")
	if err != nil {
		return "", err
	}
	path := dst.Name()
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return path, err
	}
	return path, dst.Close()
}
