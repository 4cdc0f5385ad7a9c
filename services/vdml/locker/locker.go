// Package locker defines the optional cross-process claim backend.
//
// A local claim always comes first; a Locker only extends exclusivity to
// other processes driving the same controller (simulators, test rigs).
package locker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"smartport-go/types"
)

// UnlockFunc releases a lock taken by TryLock.
type UnlockFunc func(ctx context.Context) error

// Owner identifies who holds a port lock.
type Owner struct {
	Token uuid.UUID        `cbor:"1,keyasint" json:"token"`
	Port  int              `cbor:"2,keyasint" json:"port"` // 1-indexed
	Type  types.DeviceType `cbor:"3,keyasint" json:"type"`
	Host  string           `cbor:"4,keyasint,omitempty" json:"host,omitempty"`
	AtMs  int64            `cbor:"5,keyasint" json:"at_ms"`
}

// Locker takes a lock without waiting. ok is false when another owner
// holds the key; err is reserved for backend failures.
type Locker interface {
	TryLock(ctx context.Context, key string, owner Owner, ttl time.Duration) (unlock UnlockFunc, ok bool, err error)
}

// OwnerReader is implemented by lockers that can report the current holder.
type OwnerReader interface {
	Owner(ctx context.Context, key string) (owner Owner, ok bool, err error)
}
