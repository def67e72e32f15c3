// Package cache holds the Redis client shared by the role cache, demo
// sessions, the callback journal and the payment event notifier.
//
// Redis is optional everywhere in CNOM. Without a client, roles are read
// from the database on every request, demo sessions live in process memory
// and callbacks go unjournaled; payment settlement never depends on it.
package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"cnom/internal/middleware"

	"github.com/redis/go-redis/v9"
)

var (
	clientMu sync.RWMutex
	client   *redis.Client
	hooked   = map[*redis.Client]bool{}
)

// Key families counted by the error hook. Anything else is reported as "other".
var keyspaces = map[string]bool{
	"role":         true,
	"demo_session": true,
	"rl":           true,
	"payments":     true,
}

// keyspace returns the CNOM key family the command's first key belongs to.
func keyspace(cmd redis.Cmder) string {
	args := cmd.Args()
	if len(args) < 2 {
		return "none"
	}
	key, ok := args[1].(string)
	if !ok {
		return "other"
	}
	if i := strings.IndexByte(key, ':'); i > 0 {
		key = key[:i]
	}
	if keyspaces[key] {
		return key
	}
	return "other"
}

type errorHook struct{}

func (errorHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (errorHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			middleware.RedisErrors.WithLabelValues(cmd.Name(), keyspace(cmd)).Inc()
		}
		return err
	}
}

func (errorHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			space := "none"
			if len(cmds) > 0 {
				space = keyspace(cmds[0])
			}
			middleware.RedisErrors.WithLabelValues("pipeline", space).Inc()
		}
		return err
	}
}

// InitRedis connects to addr, a host:port or redis:// URL, and installs the
// result as the shared client. A bad URL or failed ping leaves CNOM running
// without Redis.
func InitRedis(addr string) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			middleware.Logger.Warn("invalid REDIS_URL, continuing without redis", "error", err)
			SetClient(nil)
			return
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	c := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		middleware.Logger.Warn("redis unavailable, role cache and callback journal disabled", "addr", opts.Addr, "error", err)
		_ = c.Close()
		SetClient(nil)
		return
	}
	middleware.Logger.Info("redis connected", "addr", opts.Addr)
	SetClient(c)
}

// GetClient returns the shared client, or nil when Redis is disabled.
func GetClient() *redis.Client {
	clientMu.RLock()
	defer clientMu.RUnlock()
	return client
}

// SetClient installs c as the shared client. The error hook is attached once
// per client, so installing the same client again is a no-op.
func SetClient(c *redis.Client) {
	clientMu.Lock()
	defer clientMu.Unlock()
	if c != nil && !hooked[c] {
		c.AddHook(errorHook{})
		hooked[c] = true
	}
	client = c
}
