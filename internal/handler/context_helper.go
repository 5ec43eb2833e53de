package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/univ-erp-api/internal/middleware"
	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
	"github.com/noah-isme/univ-erp-api/pkg/response"
)

// currentActor returns the authenticated caller or writes 401.
func currentActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

// idParam parses a positive numeric path parameter or writes 400.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid "+name))
		return 0, false
	}
	return id, true
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
