package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const traceIDContextKey = "traceId"

// TraceMiddleware mints a trace ID for every request (or reuses an
// inbound X-Trace-Id set by the gateway) and stamps it on the response,
// so every error envelope carries a trace ID correlatable across services.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-Id")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set(traceIDContextKey, traceID)
		c.Header("X-Trace-Id", traceID)
		c.Next()
	}
}

func traceIDFrom(c *gin.Context) string {
	if v, ok := c.Get(traceIDContextKey); ok {
		return v.(string)
	}
	return ""
}

// ErrorResponse is the common error envelope, camelCase on the wire.
type ErrorResponse struct {
	ErrorCode string            `json:"errorCode"`
	Message   string            `json:"message"`
	TraceID   string            `json:"traceId"`
	Details   []ValidationError `json:"details,omitempty"`
}

func newErrorResponse(c *gin.Context, code, message string) ErrorResponse {
	return ErrorResponse{ErrorCode: code, Message: message, TraceID: traceIDFrom(c)}
}

// RespondWithError writes the generic envelope with no classified error code.
func RespondWithError(c *gin.Context, status int, message string) {
	c.JSON(status, newErrorResponse(c, "ERROR", message))
}

// RespondWithErrorCode writes the envelope with a specific error_code, used
// by handlers translating a core/errs.Kind into an HTTP response.
func RespondWithErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, newErrorResponse(c, code, message))
}
