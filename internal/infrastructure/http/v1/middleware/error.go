package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
	"github.com/SagorIslamOfficial/crm-order-sub001/pkg/logger"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler renders the last error registered with c.Error. It is the only
// place that turns errors into responses; handlers just call c.Error and abort.
// Causes are logged, never sent to the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		ctx := c.Request.Context()

		status := http.StatusInternalServerError
		body := ErrorResponse{
			Code:    apperror.CodeInternal,
			Message: "Internal server error",
			Details: map[string]any{"request_id": c.GetString("request_id")},
		}

		if appErr, ok := apperror.AsAppError(err); ok {
			status = appErr.HTTPStatus
			body = ErrorResponse{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
			switch {
			case appErr.Code == apperror.CodeTransactionFailed:
				logger.Warn(ctx, "transaction failed", "cause", appErr.Err)
			case appErr.Err != nil:
				logger.Error(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
			}
		} else {
			logger.Error(ctx, "unhandled error", "error", err)
		}

		failIdempotency(c, err, status, body)
		c.JSON(status, body)
	}
}
