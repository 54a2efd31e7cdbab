package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/pkg/apperrors"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Error: err})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}

// Error maps a domain error onto the envelope. Errors outside the taxonomy are
// logged and replaced by a generic message.
func Error(c *gin.Context, logger *zap.Logger, err error) {
	e, ok := apperrors.As(err)
	if !ok {
		if logger != nil {
			logger.Error("unhandled error",
				zap.Error(err),
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
			)
		}
		Internal(c, "something went wrong, please try again")
		return
	}
	if e.Cause != nil && logger != nil {
		logger.Warn("request failed",
			zap.Error(e.Cause),
			zap.String("code", string(e.Code)),
			zap.String("path", c.FullPath()),
		)
	}
	body := Body{Success: false, Error: e.Message, Code: string(e.Code), Fields: e.Fields, Meta: e.Metadata}
	switch e.Kind {
	case apperrors.KindAuthorization:
		// generic message, no internal code
		c.JSON(http.StatusForbidden, Body{Success: false, Error: "not authorized"})
		return
	case apperrors.KindNotFound:
		c.JSON(http.StatusNotFound, body)
	case apperrors.KindConflict:
		c.JSON(http.StatusConflict, body)
	case apperrors.KindValidation:
		c.JSON(http.StatusBadRequest, body)
	case apperrors.KindProvisioning:
		status := http.StatusBadGateway
		if e.Code == apperrors.CodeProvisioningTimeout {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, body)
	default:
		Internal(c, "something went wrong, please try again")
	}
}
