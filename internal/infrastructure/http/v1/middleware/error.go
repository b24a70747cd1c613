package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"finbpo/internal/core/apperror"
	"finbpo/internal/infrastructure/idempotency"
	"finbpo/pkg/logger"
)

// ErrorHandler middleware turns errors registered with c.Error into the JSON
// error body. Internal causes are logged, never returned.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		ctx := c.Request.Context()
		err := c.Errors.Last().Err

		status := http.StatusInternalServerError
		body := gin.H{
			"code":    apperror.CodeInternal,
			"message": "Internal server error",
			"details": map[string]any{"request_id": c.GetString("request_id")},
		}

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(ctx, "request error",
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
			if appErr.Code == apperror.CodeInternal {
				body["message"] = "Internal server error"
			}
		} else {
			logger.Error(ctx, "unhandled error", "error", err)
		}

		raw, _ := json.Marshal(body)

		// Record the exact failure response so a retry replays it.
		if claim := idempotency.ClaimFrom(ctx); claim != nil {
			res := idempotency.Replay{StatusCode: status, ContentType: "application/json; charset=utf-8", Body: raw}
			if ferr := claim.Fail(ctx, res); ferr != nil {
				logger.Warn(ctx, "failed to record idempotency failure", "key", claim.Key, "error", ferr)
			}
		}

		c.Data(status, "application/json; charset=utf-8", raw)
	}
}
