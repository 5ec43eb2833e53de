package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/univ-erp-api/internal/dto"
	"github.com/noah-isme/univ-erp-api/internal/middleware"
	"github.com/noah-isme/univ-erp-api/internal/models"
	"github.com/noah-isme/univ-erp-api/pkg/response"
)

type enrollmentService interface {
	Register(ctx context.Context, actor models.Actor, sectionID int64) (*models.Enrollment, error)
	Drop(ctx context.Context, actor models.Actor, enrollmentID int64) error
}

type recordsService interface {
	Catalog(ctx context.Context, semester string, year int) ([]models.CatalogRow, error)
	Registrations(ctx context.Context, actor models.Actor) ([]models.RegistrationRow, error)
	MyGrades(ctx context.Context, actor models.Actor) ([]models.StudentGrade, error)
	Timetable(ctx context.Context, actor models.Actor) ([]models.TimetableEntry, error)
	Transcript(ctx context.Context, actor models.Actor) (*models.Transcript, error)
	InstructorSections(ctx context.Context, actor models.Actor) ([]models.CatalogRow, error)
}

// StudentHandler serves the catalog and the student's own records.
type StudentHandler struct {
	enrollments enrollmentService
	records     recordsService
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(enrollments enrollmentService, records recordsService) *StudentHandler {
	return &StudentHandler{enrollments: enrollments, records: records}
}

// Catalog godoc
// @Summary Course catalog
// @Description Sections offered in a term with enrolled counts. Defaults to the current term.
// @Tags Student
// @Security BearerAuth
// @Produce json
// @Param semester query string false "Semester"
// @Param year query int false "Year"
// @Success 200 {object} response.Envelope
// @Router /catalog [get]
func (h *StudentHandler) Catalog(c *gin.Context) {
	var q dto.CatalogQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err, "invalid catalog query"))
		return
	}
	rows, err := h.records.Catalog(c.Request.Context(), q.Semester, q.Year)
	if err != nil {
		response.Error(c, err)
		return
	}
	if q.Semester != "" {
		middleware.SetMeta(c, "semester", q.Semester)
	}
	if q.Year != 0 {
		middleware.SetMeta(c, "year", q.Year)
	}
	response.JSON(c, http.StatusOK, rows, &models.Pagination{Page: 1, PageSize: len(rows), TotalCount: len(rows)}, middleware.ExtractMeta(c))
}

// Register godoc
// @Summary Register for a section
// @Tags Student
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.RegisterRequest true "Section"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /student/registrations [post]
func (h *StudentHandler) Register(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid registration payload"))
		return
	}
	enrollment, err := h.enrollments.Register(c.Request.Context(), actor, req.SectionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Drop godoc
// @Summary Drop a registration
// @Tags Student
// @Security BearerAuth
// @Param id path int true "Enrollment ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /student/registrations/{id} [delete]
func (h *StudentHandler) Drop(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.enrollments.Drop(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Registrations godoc
// @Summary My registrations
// @Tags Student
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /student/registrations [get]
func (h *StudentHandler) Registrations(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	rows, err := h.records.Registrations(c.Request.Context(), actor)
	respondList(c, rows, err)
}

// Grades godoc
// @Summary My component scores
// @Tags Student
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /student/grades [get]
func (h *StudentHandler) Grades(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	grades, err := h.records.MyGrades(c.Request.Context(), actor)
	respondList(c, grades, err)
}

// Timetable godoc
// @Summary My weekly timetable for the current term
// @Tags Student
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /student/timetable [get]
func (h *StudentHandler) Timetable(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	entries, err := h.records.Timetable(c.Request.Context(), actor)
	respondList(c, entries, err)
}

// Transcript godoc
// @Summary My transcript
// @Tags Student
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /student/transcript [get]
func (h *StudentHandler) Transcript(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	transcript, err := h.records.Transcript(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transcript, nil)
}

func respondList[T any](c *gin.Context, items []T, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	response.JSON(c, http.StatusOK, items, nil)
}
