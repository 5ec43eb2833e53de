package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/univ-erp-api/internal/dto"
	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
	"github.com/noah-isme/univ-erp-api/pkg/response"
)

type gradingService interface {
	EnterScore(ctx context.Context, actor models.Actor, entry models.ScoreEntry) (*models.Grade, error)
	ComputeFinalGrades(ctx context.Context, actor models.Actor, sectionID int64, boundaries models.GradeBoundaries) (*models.FinalGradeSummary, error)
	Gradebook(ctx context.Context, actor models.Actor, sectionID int64) ([]models.GradebookRow, error)
	SectionStatistics(ctx context.Context, actor models.Actor, sectionID int64) (*models.SectionStatistics, error)
}

// InstructorHandler serves section rosters and grading.
type InstructorHandler struct {
	grading gradingService
	records recordsService
}

// NewInstructorHandler constructs the handler.
func NewInstructorHandler(grading gradingService, records recordsService) *InstructorHandler {
	return &InstructorHandler{grading: grading, records: records}
}

// Sections godoc
// @Summary My sections in the current term
// @Tags Instructor
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /instructor/sections [get]
func (h *InstructorHandler) Sections(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	rows, err := h.records.InstructorSections(c.Request.Context(), actor)
	respondList(c, rows, err)
}

// Gradebook godoc
// @Summary Gradebook of a section
// @Tags Instructor
// @Security BearerAuth
// @Produce json
// @Param id path int true "Section ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /instructor/sections/{id}/gradebook [get]
func (h *InstructorHandler) Gradebook(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	rows, err := h.grading.Gradebook(c.Request.Context(), actor, id)
	respondList(c, rows, err)
}

// Statistics godoc
// @Summary Per-component averages of a section
// @Tags Instructor
// @Security BearerAuth
// @Produce json
// @Param id path int true "Section ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /instructor/sections/{id}/statistics [get]
func (h *InstructorHandler) Statistics(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	stats, err := h.grading.SectionStatistics(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// EnterScore godoc
// @Summary Enter or clear a component score
// @Tags Instructor
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body models.ScoreEntry true "Score"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /instructor/scores [put]
func (h *InstructorHandler) EnterScore(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var entry models.ScoreEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		response.Error(c, bindError(err, "invalid score payload"))
		return
	}
	grade, err := h.grading.EnterScore(c.Request.Context(), actor, entry)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// FinalGrades godoc
// @Summary Compute final letter grades for a section
// @Description Returns 207 with the summary when some rows could not be finalized
// @Tags Instructor
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Section ID"
// @Param payload body dto.FinalGradesRequest true "Grade boundaries"
// @Success 200 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /instructor/sections/{id}/final-grades [post]
func (h *InstructorHandler) FinalGrades(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.FinalGradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid boundaries payload"))
		return
	}
	summary, err := h.grading.ComputeFinalGrades(c.Request.Context(), actor, id, req.Boundaries)
	if err != nil {
		if summary != nil && errors.Is(err, appErrors.ErrPartialFailure) {
			response.Partial(c, summary, err)
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
