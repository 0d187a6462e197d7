package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Renzios/sharerapy-harness/pkg/errors"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	TraceID string            `json:"trace_id,omitempty"`
}

// ErrorHandler renders the last error a handler attached with c.Error when
// nothing has been written yet.
func ErrorHandler(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		traceID := c.GetString(ContextRequestID)
		last := c.Errors.Last()

		resp := ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "internal server error",
			TraceID: traceID,
		}
		if appErr, ok := errors.As(last.Err); ok {
			resp.Code = appErr.StatusCode()
			resp.Message = appErr.Message
			resp.Fields = appErr.Fields
		}

		ev := logger.Warn()
		if resp.Code >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Err(last.Err).
			Str("trace_id", traceID).
			Str("path", c.Request.URL.Path).
			Str("method", c.Request.Method).
			Msg("request error")

		if c.Writer.Written() {
			return
		}
		c.JSON(resp.Code, resp)
	}
}
