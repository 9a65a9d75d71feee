package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/hms/pkg/httputil"
)

// Recovery turns a handler panic into a 500 envelope and logs it with the
// request-scoped logger set by RequestID.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		zerolog.Ctx(c.Request.Context()).Error().
			Interface("panic", recovered).
			Bytes("stack", debug.Stack()).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Msg("Request panic recovered")

		httputil.AbortWithMessage(c, http.StatusInternalServerError, "Internal server error")
	})
}
