package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyLimiter is a fixed-window counter shared by every server instance:
// INCR on "ratelimit:<key>:<window>", with the key expiring with its window.
type ValkeyLimiter struct {
	client  valkey.Client
	limit   int
	window  time.Duration
	timeout time.Duration
	now     func() time.Time
}

// NewValkeyLimiter allows limit requests per key in each window.
func NewValkeyLimiter(client valkey.Client, limit int, window time.Duration) *ValkeyLimiter {
	return &ValkeyLimiter{
		client:  client,
		limit:   limit,
		window:  window,
		timeout: 500 * time.Millisecond,
		now:     time.Now,
	}
}

// NewValkeyClient connects to the server at addr (host:port).
func NewValkeyClient(addr, username, password string) (valkey.Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
		Username:    username,
		Password:    password,
	})
	if err != nil {
		return nil, fmt.Errorf("connect valkey %s: %w", addr, err)
	}
	return client, nil
}

func (l *ValkeyLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	windowStart := now.Truncate(l.window)
	fullKey := fmt.Sprintf("ratelimit:%s:%d", key, windowStart.Unix())

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	count, err := l.client.Do(ctx, l.client.B().Incr().Key(fullKey).Build()).AsInt64()
	if err != nil {
		return Decision{}, fmt.Errorf("incr %s: %w", fullKey, err)
	}
	if count == 1 {
		ttl := int64(l.window.Seconds()) + 1
		if err := l.client.Do(ctx, l.client.B().Expire().Key(fullKey).Seconds(ttl).Build()).Error(); err != nil {
			return Decision{}, fmt.Errorf("expire %s: %w", fullKey, err)
		}
	}

	d := Decision{Limit: l.limit, Allowed: count <= int64(l.limit)}
	if d.Allowed {
		d.Remaining = l.limit - int(count)
	} else {
		d.RetryAfter = windowStart.Add(l.window).Sub(now)
	}
	return d, nil
}
