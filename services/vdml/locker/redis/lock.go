// Package redis implements locker.Locker with Redis SET NX PX.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	backend "github.com/redis/go-redis/v9"

	"smartport-go/services/vdml/locker"
)

// releaseScript deletes the key only if it still holds our owner record.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Locker implements locker.Locker using Redis.
type Locker struct {
	client *backend.Client
	prefix string
}

var _ locker.Locker = (*Locker)(nil)

// NewLocker creates a locker on an existing client.
func NewLocker(client *backend.Client, prefix string) *Locker {
	if prefix == "" {
		prefix = "smartport:"
	}
	return &Locker{client: client, prefix: prefix}
}

// New dials a client for addr.
func New(addr, prefix string) *Locker {
	return NewLocker(backend.NewClient(&backend.Options{Addr: addr}), prefix)
}

func (l *Locker) key(k string) string { return l.prefix + "lock:" + k }

// TryLock makes one SET NX attempt; it never polls.
func (l *Locker) TryLock(ctx context.Context, key string, owner locker.Owner, ttl time.Duration) (locker.UnlockFunc, bool, error) {
	val, err := cbor.Marshal(owner)
	if err != nil {
		return nil, false, fmt.Errorf("encode lock owner: %w", err)
	}
	lockKey := l.key(key)
	ok, err := l.client.SetNX(ctx, lockKey, val, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis error acquiring lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		return l.client.Eval(ctx, releaseScript, []string{lockKey}, val).Err()
	}, true, nil
}

var _ locker.OwnerReader = (*Locker)(nil)

// Owner reads back who holds key. ok is false when nobody does.
func (l *Locker) Owner(ctx context.Context, key string) (locker.Owner, bool, error) {
	raw, err := l.client.Get(ctx, l.key(key)).Bytes()
	if err == backend.Nil {
		return locker.Owner{}, false, nil
	}
	if err != nil {
		return locker.Owner{}, false, fmt.Errorf("failed to get from redis: %w", err)
	}
	var o locker.Owner
	if err := cbor.Unmarshal(raw, &o); err != nil {
		return locker.Owner{}, false, fmt.Errorf("decode lock owner: %w", err)
	}
	return o, true, nil
}

// Close closes the redis client.
func (l *Locker) Close() error { return l.client.Close() }
