package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/praxis-lms/praxis/internal/platform/httpx"
)

// LoginLimiter throttles credential attempts per email and client address
// with a fixed window counter in Redis. A Redis outage fails open: login
// availability outranks throttling.
type LoginLimiter struct {
	rdb    *redis.Client
	logger *slog.Logger
	limit  int
	window time.Duration
}

// NewLoginLimiter constructs a LoginLimiter.
func NewLoginLimiter(rdb *redis.Client, logger *slog.Logger, limit int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{rdb: rdb, logger: logger, limit: limit, window: window}
}

// Allow increments the attempt counter and reports whether this attempt is
// within the limit.
func (l *LoginLimiter) Allow(ctx context.Context, email, ip string) (bool, error) {
	key := fmt.Sprintf("login_rate:%s:%s", email, ip)
	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn("login rate limiter unavailable", slog.Any("error", err))
		return true, nil
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			l.logger.Warn("login rate limiter expire", slog.Any("error", err))
		}
	}
	return count <= int64(l.limit), nil
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, email, ip string) {
	key := fmt.Sprintf("login_rate:%s:%s", email, ip)
	if err := l.rdb.Del(ctx, key).Err(); err != nil {
		l.logger.Warn("login rate limiter reset", slog.Any("error", err))
	}
}

// ErrTooManyAttempts is the throttled-login response. 403 rather than 429
// keeps the error taxonomy closed.
func ErrTooManyAttempts() *httpx.Error {
	return httpx.Forbidden("Too many login attempts, please try again later")
}
