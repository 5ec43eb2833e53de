package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	noStore(c)
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error sends an error response converting the error to the common structure.
// Faults never expose their wrapped cause or original message.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.IsFault() {
		_ = c.Error(err)
		appErr = appErrors.Clone(appErrors.ErrInternal, "")
		if appErrors.FromError(err).Code == appErrors.ErrInconsistentState.Code {
			appErr = appErrors.Clone(appErrors.ErrInconsistentState, "")
		}
		appErr.Err = nil
	}
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// Partial reports a batch that completed with per-row failures: the data still carries the summary.
func Partial(c *gin.Context, data interface{}, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	c.JSON(appErr.Status, Envelope{Data: data, Error: appErr})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
	c.Writer.WriteHeaderNow()
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
