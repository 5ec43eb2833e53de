package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/univ-erp-api/internal/dto"
	"github.com/noah-isme/univ-erp-api/internal/models"
	"github.com/noah-isme/univ-erp-api/pkg/response"
)

type provisioningService interface {
	CreateAccount(ctx context.Context, actor models.Actor, req models.CreateAccountRequest) (*models.ProvisioningResult, error)
}

type catalogAdminService interface {
	ListCourses(ctx context.Context, actor models.Actor) ([]models.Course, error)
	CreateCourse(ctx context.Context, actor models.Actor, req models.CreateCourseRequest) (*models.Course, error)
	UpdateCourse(ctx context.Context, actor models.Actor, id int64, req models.UpdateCourseRequest) (*models.Course, error)
	ListSectionsByCourse(ctx context.Context, actor models.Actor, courseID int64) ([]models.Section, error)
	CreateSection(ctx context.Context, actor models.Actor, req models.SectionRequest) (*models.Section, error)
	UpdateSection(ctx context.Context, actor models.Actor, id int64, req models.SectionRequest) (*models.Section, error)
	AssignInstructor(ctx context.Context, actor models.Actor, sectionID, instructorID int64) (*models.Section, error)
	UnassignInstructor(ctx context.Context, actor models.Actor, sectionID int64) (*models.Section, error)
	DeleteSection(ctx context.Context, actor models.Actor, sectionID int64) error
	ListInstructors(ctx context.Context, actor models.Actor) ([]models.InstructorProfile, error)
}

// AdminHandler serves account provisioning and catalog administration.
type AdminHandler struct {
	provisioning provisioningService
	catalog      catalogAdminService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(provisioning provisioningService, catalog catalogAdminService) *AdminHandler {
	return &AdminHandler{provisioning: provisioning, catalog: catalog}
}

// CreateUser godoc
// @Summary Provision an account
// @Description Creates the credential and, for students and instructors, the academic profile
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body models.CreateAccountRequest true "Account payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /admin/users [post]
func (h *AdminHandler) CreateUser(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid account payload"))
		return
	}
	result, err := h.provisioning.CreateAccount(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListCourses godoc
// @Summary List courses
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/courses [get]
func (h *AdminHandler) ListCourses(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	courses, err := h.catalog.ListCourses(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, &models.Pagination{Page: 1, PageSize: len(courses), TotalCount: len(courses)})
}

// CreateCourse godoc
// @Summary Create a course
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body models.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/courses [post]
func (h *AdminHandler) CreateCourse(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid course payload"))
		return
	}
	course, err := h.catalog.CreateCourse(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// UpdateCourse godoc
// @Summary Update a course
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Course ID"
// @Param payload body models.UpdateCourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/courses/{id} [put]
func (h *AdminHandler) UpdateCourse(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req models.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid course payload"))
		return
	}
	course, err := h.catalog.UpdateCourse(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// ListCourseSections godoc
// @Summary List the sections of a course
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/courses/{id}/sections [get]
func (h *AdminHandler) ListCourseSections(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	sections, err := h.catalog.ListSectionsByCourse(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, nil)
}

// CreateSection godoc
// @Summary Create a section
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body models.SectionRequest true "Section payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/sections [post]
func (h *AdminHandler) CreateSection(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.SectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid section payload"))
		return
	}
	section, err := h.catalog.CreateSection(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, section)
}

// UpdateSection godoc
// @Summary Update a section
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Section ID"
// @Param payload body models.SectionRequest true "Section payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/sections/{id} [put]
func (h *AdminHandler) UpdateSection(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req models.SectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid section payload"))
		return
	}
	section, err := h.catalog.UpdateSection(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// DeleteSection godoc
// @Summary Delete a section without enrollments
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "Section ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /admin/sections/{id} [delete]
func (h *AdminHandler) DeleteSection(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteSection(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AssignInstructor godoc
// @Summary Assign an instructor to a section
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Section ID"
// @Param payload body dto.AssignInstructorRequest true "Instructor"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/sections/{id}/instructor [put]
func (h *AdminHandler) AssignInstructor(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.AssignInstructorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid instructor payload"))
		return
	}
	section, err := h.catalog.AssignInstructor(c.Request.Context(), actor, id, req.InstructorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// UnassignInstructor godoc
// @Summary Remove the instructor from a section
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Param id path int true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /admin/sections/{id}/instructor [delete]
func (h *AdminHandler) UnassignInstructor(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	section, err := h.catalog.UnassignInstructor(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// ListInstructors godoc
// @Summary List instructors
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/instructors [get]
func (h *AdminHandler) ListInstructors(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	instructors, err := h.catalog.ListInstructors(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructors, nil)
}
