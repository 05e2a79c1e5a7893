package middleware

import (
	"errors"
	"net/http"

	"tasktracker/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last error a handler attached with c.Error as {"error": "..."}.
// Errors without a CoreStatus become a generic 500 so internals never reach the client.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var base errutil.BaseError
		if errors.As(last.Err, &base) && base.Code != errutil.StatusInternal {
			c.JSON(base.Code.HTTPStatus(), base.JSON())
			return
		}

		status := errutil.StatusOf(last.Err)
		if status != errutil.StatusInternal {
			c.JSON(status.HTTPStatus(), gin.H{"error": last.Err.Error()})
			return
		}

		zap.L().Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(last.Err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
