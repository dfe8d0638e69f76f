package xhttp

import (
	"context"
	"strconv"

	"github.com/afrisend/comms-gateway/pkg/logger"
	"github.com/afrisend/comms-gateway/pkg/redis"
)

// RateLimitMiddleware rejects requests over the fixed-window limit
// with 429. Keys on the client IP; health and metrics paths are exempt
// like the request logger.
func RateLimitMiddleware(limiter *redis.RateLimiter) MiddlewareFunc {
	return func(next RequestHandler) RequestHandler {
		return func(ctx *RequestCtx) {
			path := string(ctx.Path())
			if shouldSkip(path) {
				next(ctx)
				return
			}

			result, err := limiter.Allow(context.Background(), ctx.RemoteIP().String())
			if err != nil {
				// A broken limiter must not take the API down with it.
				logger.Warn("[xhttp] rate limiter unavailable", "error", err)
				next(ctx)
				return
			}

			ctx.Response.Header.Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
			if !result.Allowed {
				retryAfter := int(result.RetryAfter.Seconds()) + 1
				ctx.Response.Header.Set("Retry-After", strconv.Itoa(retryAfter))
				ctx.Error(StatusText(StatusTooManyRequests), StatusTooManyRequests)
				return
			}

			next(ctx)
		}
	}
}
