// Package redis implements the per-room ledger lock as a Redis lease so
// several engine processes can share one ledger.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultTTL   = 10 * time.Second
	defaultRetry = 25 * time.Millisecond
)

// unlockScript deletes the key only while it still carries our token.
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var ErrLockTimeout = errors.New("lock: timed out waiting for lease")

type Locker struct {
	Client goredis.UniversalClient
	Prefix string
	// TTL bounds how long a crashed holder blocks the room.
	TTL        time.Duration
	RetryEvery time.Duration
	Logger     *slog.Logger
}

// Lock polls SET NX PX until it owns key or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	full := l.Prefix + key
	token := uuid.NewString()
	ticker := time.NewTicker(l.retryEvery())
	defer ticker.Stop()
	for {
		ok, err := l.Client.SetNX(ctx, full, token, l.ttl()).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", full, err)
		}
		if ok {
			return func() { l.unlock(ctx, full, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlock(ctx context.Context, key, token string) {
	unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := unlockScript.Run(unlockCtx, l.Client, []string{key}, token).Err(); err != nil {
		l.logger().Warn("redis unlock failed; lease will expire", "key", key, "error", err)
	}
}

func (l *Locker) ttl() time.Duration {
	if l.TTL <= 0 {
		return defaultTTL
	}
	return l.TTL
}

func (l *Locker) retryEvery() time.Duration {
	if l.RetryEvery <= 0 {
		return defaultRetry
	}
	return l.RetryEvery
}

func (l *Locker) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.Logger
}

// NewClient connects and pings with a short timeout.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}
