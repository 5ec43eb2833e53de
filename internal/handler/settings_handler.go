package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/univ-erp-api/internal/dto"
	"github.com/noah-isme/univ-erp-api/internal/models"
	"github.com/noah-isme/univ-erp-api/pkg/response"
)

type settingsService interface {
	Snapshot(ctx context.Context) (models.Settings, error)
	SetMaintenance(ctx context.Context, actor models.Actor, on bool) (models.Settings, error)
	SetRegistrationDeadline(ctx context.Context, actor models.Actor, date string) (models.Settings, error)
	SetDropDeadline(ctx context.Context, actor models.Actor, date string) (models.Settings, error)
	SetCurrentTerm(ctx context.Context, actor models.Actor, semester string, year int) (models.Settings, error)
}

// SettingsHandler exposes the administrative settings.
type SettingsHandler struct {
	service settingsService
}

// NewSettingsHandler constructs the handler.
func NewSettingsHandler(svc settingsService) *SettingsHandler {
	return &SettingsHandler{service: svc}
}

// Get godoc
// @Summary Current settings
// @Tags Settings
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/settings [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	snapshot, err := h.service.Snapshot(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// SetMaintenance godoc
// @Summary Toggle maintenance mode
// @Tags Settings
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.MaintenanceRequest true "Maintenance flag"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/settings/maintenance [put]
func (h *SettingsHandler) SetMaintenance(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req dto.MaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid maintenance payload"))
		return
	}
	h.respond(c)(h.service.SetMaintenance(c.Request.Context(), actor, *req.On))
}

// SetRegistrationDeadline godoc
// @Summary Set the registration deadline
// @Tags Settings
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.DeadlineRequest true "Deadline date"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /admin/settings/registration-deadline [put]
func (h *SettingsHandler) SetRegistrationDeadline(c *gin.Context) {
	h.setDeadline(c, h.service.SetRegistrationDeadline)
}

// SetDropDeadline godoc
// @Summary Set the drop deadline
// @Tags Settings
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.DeadlineRequest true "Deadline date"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /admin/settings/drop-deadline [put]
func (h *SettingsHandler) SetDropDeadline(c *gin.Context) {
	h.setDeadline(c, h.service.SetDropDeadline)
}

// SetTerm godoc
// @Summary Set the current term
// @Tags Settings
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.TermRequest true "Semester and year"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /admin/settings/term [put]
func (h *SettingsHandler) SetTerm(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req dto.TermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid term payload"))
		return
	}
	h.respond(c)(h.service.SetCurrentTerm(c.Request.Context(), actor, req.Semester, req.Year))
}

type deadlineSetter func(ctx context.Context, actor models.Actor, date string) (models.Settings, error)

func (h *SettingsHandler) setDeadline(c *gin.Context, set deadlineSetter) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req dto.DeadlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid deadline payload"))
		return
	}
	h.respond(c)(set(c.Request.Context(), actor, req.Date))
}

func (h *SettingsHandler) respond(c *gin.Context) func(models.Settings, error) {
	return func(snapshot models.Settings, err error) {
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, snapshot, nil)
	}
}
