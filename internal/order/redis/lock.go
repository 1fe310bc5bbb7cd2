package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"log"

	"github.com/go-redis/redis/v8"
)

// Redis provides the per-order exclusive lock both sagas take before
// touching an order's rows. It keeps two concurrent fulfillment attempts
// from double-capturing or double-labeling the same order.
type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

// getOrderLockDuration returns the lock TTL from the environment or the default.
func (r *Redis) getOrderLockDuration() time.Duration {
	defaultDuration := 5 * time.Minute

	lockTTLStr := os.Getenv("ORDER_LOCK_TTL_MINUTES")
	if lockTTLStr == "" {
		return defaultDuration
	}

	lockTTLMin, err := strconv.Atoi(lockTTLStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid ORDER_LOCK_TTL_MINUTES value '" + lockTTLStr + "', using default 5 minutes")
		return defaultDuration
	}

	return time.Duration(lockTTLMin) * time.Minute
}

// LockOrder takes the exclusive lock for an order id. The token
// identifies the owner so only the locking saga invocation can release.
func (r *Redis) LockOrder(orderID, token string) (bool, error) {
	key := "order_lock:" + orderID
	ok, err := r.Client.SetNX(context.Background(), key, token, r.getOrderLockDuration()).Result()
	return ok, err
}

// UnlockOrder releases the lock if the token still owns it.
func (r *Redis) UnlockOrder(orderID, token string) error {
	ctx := context.Background()
	key := fmt.Sprintf("order_lock:%s", orderID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released or expired
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}
