package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"parcelsort/internal/core/apperror"
	"parcelsort/pkg/logger"
)

// ErrorHandler renders the last error registered on the context as JSON.
// Internal causes are logged, never returned to the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := http.StatusInternalServerError
		body := gin.H{
			"code":    apperror.CodeInternal,
			"message": "Internal server error",
			"details": map[string]any{"request_id": c.GetString("request_id")},
		}

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}
			status = appErr.HTTPStatus
			body = gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			}
		} else {
			logger.Error(c.Request.Context(), "unhandled error", "error", err)
		}

		// Retryable and server-side failures free the key; other failures
		// are final and replay as stored.
		if apperror.IsRetryable(err) || status >= http.StatusInternalServerError {
			ReleaseIdempotency(c)
		} else if raw, mErr := json.Marshal(body); mErr == nil {
			finishIdempotency(c, true, idempotencyReplay(status, raw))
		}

		c.JSON(status, body)
	}
}
