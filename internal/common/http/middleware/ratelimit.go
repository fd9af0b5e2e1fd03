package middleware

import (
	"fmt"
	"time"

	"tutorjudge/internal/common/ratelimit"
	"tutorjudge/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

type RateLimitPolicy struct {
	Window   time.Duration
	UserMax  int
	IPMax    int
	RouteMax int
}

// RateLimitMiddleware enforces per-route rate limiting by client IP, forwarded
// user id and route.
func RateLimitMiddleware(limiter *ratelimit.FixedWindow, routeKey string, policy RateLimitPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		if policy.IPMax > 0 {
			key := fmt.Sprintf("judge:rate:ip:%s:%s", c.ClientIP(), routeKey)
			if err := limiter.Allow(ctx, key, policy.IPMax, policy.Window); err != nil {
				response.AbortWithError(c, err)
				return
			}
		}

		if policy.UserMax > 0 {
			if userID, ok := c.Get("user_id"); ok {
				key := fmt.Sprintf("judge:rate:user:%v:%s", userID, routeKey)
				if err := limiter.Allow(ctx, key, policy.UserMax, policy.Window); err != nil {
					response.AbortWithError(c, err)
					return
				}
			}
		}

		if policy.RouteMax > 0 {
			key := fmt.Sprintf("judge:rate:route:%s", routeKey)
			if err := limiter.Allow(ctx, key, policy.RouteMax, policy.Window); err != nil {
				response.AbortWithError(c, err)
				return
			}
		}

		c.Next()
	}
}
