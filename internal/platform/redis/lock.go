package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript releases the lease only if the caller still owns it. Comparing
// the token prevents an instance whose lease expired from releasing a lease
// since acquired by someone else.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is a single-holder lock with expiry, used to keep multiple relay
// instances from draining the outbox concurrently. Losing the lease is safe:
// MarkProcessed is idempotent, so overlap only costs duplicate publishes,
// which downstream consumers must already tolerate (at-least-once).
type Lease struct {
	client *Client
	key    string
	token  string
	ttl    time.Duration
}

// NewLease creates a lease on the given key. The lease is not held until
// Acquire succeeds.
func NewLease(client *Client, key string, ttl time.Duration) *Lease {
	return &Lease{
		client: client,
		key:    key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Acquire attempts to take or refresh the lease. Returns true when this
// instance holds it after the call.
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %q: %w", l.key, err)
	}
	if ok {
		return true, nil
	}

	// Refresh if we already own it.
	current, err := l.client.Get(ctx, l.key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check lease %q: %w", l.key, err)
	}
	if current != l.token {
		return false, nil
	}
	if err := l.client.Expire(ctx, l.key, l.ttl).Err(); err != nil {
		return false, fmt.Errorf("refresh lease %q: %w", l.key, err)
	}
	return true, nil
}

// Release gives up the lease if this instance still owns it.
func (l *Lease) Release(ctx context.Context) error {
	if err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lease %q: %w", l.key, err)
	}
	return nil
}
