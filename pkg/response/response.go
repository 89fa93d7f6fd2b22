// Package response standardizes the JSON envelope returned by every API
// endpoint: a success flag plus either a data payload or a coded error. It
// stays free of domain imports; services signal intent through the
// pkg/apperrors sentinels.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jcarter/tradepilot/pkg/apperrors"
)

// Response is the envelope for all API responses.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error carries a machine-readable code alongside the human message.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
)

// Handle maps a service error onto the right HTTP status, or sends the data
// on success. Sentinel errors keep their message; anything unrecognized is
// reported as an internal error without leaking details.
func Handle(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, apperrors.ErrValidation):
		ValidationFailed(c, err.Error())
	case errors.Is(err, apperrors.ErrTerminalState):
		Conflict(c, err.Error())
	default:
		InternalError(c, "An unexpected error occurred")
	}
}

// Success sends the data payload, 201 for POST and 200 otherwise.
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == http.MethodPost {
		status = http.StatusCreated
	}

	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

func NotFound(c *gin.Context, message string) {
	fail(c, http.StatusNotFound, ErrCodeNotFound, message)
}

func BadRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func Conflict(c *gin.Context, message string) {
	fail(c, http.StatusConflict, ErrCodeConflict, message)
}

func ValidationFailed(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, ErrCodeValidationFailed, message)
}

func Unauthorized(c *gin.Context, message string) {
	fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func InternalError(c *gin.Context, message string) {
	fail(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
		},
	})
}
