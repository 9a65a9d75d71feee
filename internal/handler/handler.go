// Package handler holds helpers shared by the HTTP handlers.
package handler

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hms/pkg/errors"
	"github.com/jwalitptl/hms/pkg/httputil"
	"github.com/jwalitptl/hms/pkg/validator"
)

// BindJSON decodes and validates the body into obj, responding with a 400
// on failure.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		httputil.RespondWithError(c, bindError(err, "Invalid request body"))
		return false
	}
	return true
}

// BindQuery decodes and validates query parameters into obj.
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		httputil.RespondWithError(c, bindError(err, "Invalid query parameters"))
		return false
	}
	return true
}

func bindError(err error, message string) error {
	var fields validator.Errors
	if translated := validator.Translate(err); stderrors.As(translated, &fields) {
		return fields
	}
	return errors.BadRequest(message, err)
}
