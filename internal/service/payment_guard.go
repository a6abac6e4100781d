package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPaymentGuard holds a short-lived Redis lock per subscription while
// its first payment is being submitted.
type RedisPaymentGuard struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewRedisPaymentGuard(redisClient *redis.Client, ttl time.Duration) *RedisPaymentGuard {
	return &RedisPaymentGuard{redisClient: redisClient, ttl: ttl}
}

// releaseScript deletes the lock only while it still belongs to owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func lockKey(subscriptionID string) string {
	return fmt.Sprintf("first_payment_lock:%s", subscriptionID)
}

func (g *RedisPaymentGuard) Acquire(ctx context.Context, subscriptionID, owner string) (bool, error) {
	return g.redisClient.SetNX(ctx, lockKey(subscriptionID), owner, g.ttl).Result()
}

// Release is a no-op when the lock expired and was taken by someone else.
func (g *RedisPaymentGuard) Release(ctx context.Context, subscriptionID, owner string) error {
	return releaseScript.Run(ctx, g.redisClient, []string{lockKey(subscriptionID)}, owner).Err()
}
