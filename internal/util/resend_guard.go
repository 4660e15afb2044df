package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ResendGuard throttles confirmation-email sends per address so repeated
// intake requests do not hammer the email provider.
type ResendGuard struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewResendGuard(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *ResendGuard {
	return &ResendGuard{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// AcquireOnce tries to acquire the send slot for an email address.
// Returns true if this address has not been emailed within the TTL window.
// Redis being unavailable must not block subscriptions, so errors allow the send.
func (g *ResendGuard) AcquireOnce(ctx context.Context, email string) bool {
	key := fmt.Sprintf("confirm-send:%s", email)

	ok, err := g.rdb.SetNX(ctx, key, 1, g.ttl).Result()
	if err != nil {
		if g.logger != nil {
			g.logger.Warn("Redis resend check failed, allowing send",
				zap.Error(err),
			)
		}
		return true
	}

	if !ok && g.logger != nil {
		g.logger.Info("Throttled repeat confirmation email",
			zap.String("dedup_key", key),
		)
	}

	return ok
}
