package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hms/pkg/errors"
	"github.com/jwalitptl/hms/pkg/validator"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// NewSuccessResponse builds a success envelope.
func NewSuccessResponse(message string, data interface{}) *Response {
	return &Response{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	}
}

// NewErrorResponse builds an error envelope.
func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  StatusError,
		Message: message,
	}
}

// RespondWithSuccess sends a 200 success response
func RespondWithSuccess(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, NewSuccessResponse(message, data))
}

// RespondWithCreated sends a 201 success response
func RespondWithCreated(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, NewSuccessResponse(message, data))
}

// RespondWithError maps err onto a status code and an error envelope.
// Field complaints travel in data.
func RespondWithError(c *gin.Context, err error) {
	status, resp := errorResponse(err)
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("path", c.Request.URL.Path).
			Str("method", c.Request.Method).
			Msg("Request failed")
	}
	c.AbortWithStatusJSON(status, resp)
}

// AbortWithMessage stops the chain with a plain error envelope.
func AbortWithMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, NewErrorResponse(message))
}

func errorResponse(err error) (int, *Response) {
	var fields validator.Errors
	if stderrors.As(validator.Translate(err), &fields) && len(fields) > 0 {
		resp := NewErrorResponse(fields[0].Message)
		resp.Data = fields
		return http.StatusBadRequest, resp
	}

	if appErr, ok := errors.As(err); ok {
		resp := NewErrorResponse(appErr.Message)
		if len(appErr.Fields) > 0 {
			resp.Data = appErr.Fields
		}
		return appErr.StatusCode(), resp
	}

	return http.StatusInternalServerError, NewErrorResponse("Internal server error")
}
