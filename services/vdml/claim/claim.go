// Package claim serialises access to smart ports.
//
// A claim is non-blocking: it either takes the port's lock immediately or
// fails with errcode.PortBusy. Every successful claim must be released
// exactly once; the helpers in shapes.go do this with defer so release
// happens on every exit path, including panics in the vendor call.
package claim

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"smartport-go/errcode"
	"smartport-go/services/vdml/internal/metrics"
	"smartport-go/services/vdml/internal/registry"
	"smartport-go/services/vdml/locker"
	"smartport-go/types"
	"smartport-go/x/logx"
)

const defaultLockTTL = 2 * time.Second

type portLock struct {
	held  atomic.Bool
	token atomic.Pointer[Token]
}

// Guard wraps registry lookups with one lock per port. Ports never share
// a lock, so claims on different ports never contend.
type Guard struct {
	reg   *registry.Registry
	locks []portLock

	remote  locker.Locker
	lockTTL time.Duration
	host    string

	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithLocker extends claims across processes. ttl bounds how long a
// crashed holder can keep a port.
func WithLocker(l locker.Locker, ttl time.Duration) Option {
	return func(g *Guard) {
		g.remote = l
		if ttl > 0 {
			g.lockTTL = ttl
		}
	}
}

// WithMetrics records claim outcomes and hold times.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// WithLogger sets the logger; the default discards.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) { g.logger = logx.Component(l, "claim") }
}

// New creates a guard over reg.
func New(reg *registry.Registry, opts ...Option) *Guard {
	host, _ := os.Hostname()
	g := &Guard{
		reg:     reg,
		locks:   make([]portLock, reg.Len()),
		lockTTL: defaultLockTTL,
		host:    host,
		logger:  logx.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Registry returns the table the guard validates against.
func (g *Guard) Registry() *registry.Registry { return g.reg }

// TryClaim takes exclusive access to a 0-indexed port for one transaction.
//
// Validation happens before the lock is touched, so InvalidPort,
// NoDeviceInstalled and PortTypeMismatch never leave a lock behind. The
// lookup is repeated under the lock and the token binds that entry, so a
// device re-plugged in between is claimed at its new generation and one
// removed in between fails with the fresh registry error.
func (g *Guard) TryClaim(ctx context.Context, port int, expected types.DeviceType) (*Token, error) {
	if _, err := g.reg.LookupTyped(port, expected); err != nil {
		g.metrics.Claim(port, errcode.Of(err))
		return nil, err
	}

	pl := &g.locks[port]
	if !pl.held.CompareAndSwap(false, true) {
		g.metrics.Claim(port, errcode.PortBusy)
		return nil, errcode.Wrap(errcode.PortBusy, "claim", port, nil)
	}

	entry, err := g.reg.LookupTyped(port, expected)
	if err != nil {
		pl.held.Store(false)
		g.metrics.Claim(port, errcode.Of(err))
		return nil, err
	}

	tok := &Token{
		g:        g,
		id:       uuid.New(),
		entry:    entry,
		acquired: g.now(),
	}

	if g.remote != nil {
		owner := locker.Owner{
			Token: tok.id,
			Port:  port + 1,
			Type:  expected,
			Host:  g.host,
			AtMs:  tok.acquired.UnixMilli(),
		}
		unlock, ok, err := g.remote.TryLock(ctx, lockKey(port), owner, g.lockTTL)
		if err != nil {
			pl.held.Store(false)
			g.metrics.Claim(port, errcode.Error)
			return nil, errcode.Wrap(errcode.Error, "claim", port, err)
		}
		if !ok {
			pl.held.Store(false)
			g.metrics.Claim(port, errcode.PortBusy)
			return nil, &errcode.E{C: errcode.PortBusy, Op: "claim", Port: port, Msg: "held by another process"}
		}
		tok.unlock = unlock
	}

	pl.token.Store(tok)
	g.metrics.Claim(port, errcode.OK)
	return tok, nil
}

// Claimed reports whether a 0-indexed port is currently held.
func (g *Guard) Claimed(port int) bool {
	if port < 0 || port >= len(g.locks) {
		return false
	}
	return g.locks[port].held.Load()
}

// Holder returns the token currently holding a port, or nil.
func (g *Guard) Holder(port int) *Token {
	if port < 0 || port >= len(g.locks) {
		return nil
	}
	return g.locks[port].token.Load()
}

// RemoteHolder reports who holds a 0-indexed port in the cross-process
// locker. ok is false without a locker, or when the locker cannot say.
func (g *Guard) RemoteHolder(ctx context.Context, port int) (locker.Owner, bool, error) {
	r, ok := g.remote.(locker.OwnerReader)
	if !ok || port < 0 || port >= len(g.locks) {
		return locker.Owner{}, false, nil
	}
	return r.Owner(ctx, lockKey(port))
}

// Snapshot is the registry snapshot with claim state filled in.
func (g *Guard) Snapshot() []types.PortState {
	snap := g.reg.Snapshot()
	for i := range snap {
		snap[i].Claimed = g.Claimed(i)
	}
	return snap
}

func (g *Guard) release(t *Token) {
	port := t.entry.Port
	if t.unlock != nil {
		if err := t.unlock(context.Background()); err != nil {
			g.logger.Warn("remote unlock failed, lock will expire via TTL",
				"port", port+1,
				"token", t.id.String(),
				"err", err,
			)
		}
	}
	pl := &g.locks[port]
	pl.token.CompareAndSwap(t, nil)
	pl.held.Store(false)
	g.metrics.Held(port, g.now().Sub(t.acquired))
}

func lockKey(port int) string { return "port:" + strconv.Itoa(port+1) }

// Token is exclusive access to one port for one call.
type Token struct {
	g        *Guard
	id       uuid.UUID
	entry    registry.Entry
	acquired time.Time
	unlock   locker.UnlockFunc
	released atomic.Bool
}

func (t *Token) ID() uuid.UUID          { return t.id }
func (t *Token) Port() int              { return t.entry.Port }
func (t *Token) Type() types.DeviceType { return t.entry.Type }
func (t *Token) Handle() any            { return t.entry.Handle }
func (t *Token) Generation() uint64     { return t.entry.Generation }

// Release unlocks the port. Only the first call has an effect.
func (t *Token) Release() {
	if t == nil || !t.released.CompareAndSwap(false, true) {
		return
	}
	t.g.release(t)
}

// Released reports whether Release has run.
func (t *Token) Released() bool { return t.released.Load() }

// Reacquire claims the same port and type again after Release, through the
// normal TryClaim path. The receiver must already be released.
func (t *Token) Reacquire(ctx context.Context) (*Token, error) {
	if !t.Released() {
		return nil, &errcode.E{C: errcode.Error, Op: "reacquire", Port: t.entry.Port, Msg: "token still held"}
	}
	return t.g.TryClaim(ctx, t.entry.Port, t.entry.Type)
}
