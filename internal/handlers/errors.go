package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/rolebook/pkg/types"
)

// AppError is the JSON body of every error response.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"` // internal cause, logged but not returned
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError creates an AppError.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// BadRequest creates a 400 error.
func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, message, nil)
}

// NotFound creates a 404 error.
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, message, nil)
}

// Internal creates a 500 error. The cause is kept out of the response.
func Internal(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, "Internal Server Error", err)
}

// FromError classifies err: invalid arguments become 400, missing records
// 404, and everything else 500.
func FromError(err error) *AppError {
	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, types.ErrInvalidArgument):
		return BadRequest(err.Error())
	case errors.Is(err, types.ErrNotFound):
		return NotFound(err.Error())
	default:
		return Internal(err)
	}
}

// abort writes err as a JSON error response and records it on the context
// for the request logger.
func abort(c *gin.Context, err error) {
	appErr := FromError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.Code, appErr)
}
