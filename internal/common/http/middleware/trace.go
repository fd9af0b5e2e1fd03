package middleware

import (
	"context"
	"strings"

	"tutorjudge/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	TraceIDHeader   = "X-Trace-Id"
	RequestIDHeader = "X-Request-Id"
	// UserIDHeader is set by the tutor app for the learner driving the session.
	UserIDHeader = "X-User-Id"
)

// idBinding copies one id from a request header into the gin and request
// contexts and echoes it on the response.
type idBinding struct {
	header   string
	ginKey   string
	generate bool
	echo     bool
	bind     func(context.Context, string) context.Context
}

// TraceContextConfig controls which ids are accepted from the caller.
type TraceContextConfig struct {
	AllowUserIDHeader bool
	WriteUserIDHeader bool
}

// TraceContextMiddleware puts trace, request and user ids on every request.
func TraceContextMiddleware() gin.HandlerFunc {
	return TraceContextMiddlewareWithConfig(TraceContextConfig{
		AllowUserIDHeader: true,
		WriteUserIDHeader: true,
	})
}

func TraceContextMiddlewareWithConfig(cfg TraceContextConfig) gin.HandlerFunc {
	bindings := []idBinding{
		{header: TraceIDHeader, ginKey: "trace_id", generate: true, echo: true, bind: contextkey.WithTraceID},
		{header: RequestIDHeader, ginKey: "request_id", generate: true, echo: true, bind: contextkey.WithRequestID},
	}
	if cfg.AllowUserIDHeader {
		bindings = append(bindings, idBinding{
			header: UserIDHeader,
			ginKey: "user_id",
			echo:   cfg.WriteUserIDHeader,
			bind:   contextkey.WithUserID,
		})
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		for _, b := range bindings {
			id := strings.TrimSpace(c.GetHeader(b.header))
			if id == "" && b.generate {
				id = uuid.NewString()
			}
			if id == "" {
				continue
			}
			c.Set(b.ginKey, id)
			ctx = b.bind(ctx, id)
			if b.echo {
				c.Writer.Header().Set(b.header, id)
			}
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
