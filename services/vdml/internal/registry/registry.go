// Package registry is the authoritative port -> device table.
//
// Ports are 0-indexed here; accessors convert from the 1-indexed public
// surface before calling in.
package registry

import (
	"sync"

	"smartport-go/errcode"
	"smartport-go/types"
	"smartport-go/x/mathx"
)

// Notifier receives a copy of a slot after every structural change, in the
// order the changes were made. The bus-backed implementation publishes it
// retained on port/<n>/state. PortChanged may read the registry but must
// not mutate it.
type Notifier interface {
	PortChanged(st types.PortState)
}

// Entry is what a lookup yields: the opaque vendor handle plus the
// generation of the installation it came from.
type Entry struct {
	Port       int
	Type       types.DeviceType
	Handle     any
	Generation uint64
}

type slot struct {
	typ    types.DeviceType
	handle any
	gen    uint64
}

// Registry is a fixed-size table. A single RWMutex covers structural
// mutations; per-port transactional locking lives in the claim guard.
// notifyMu is taken before mu and held until the notifier returns, so
// mutations and their notifications share one order.
type Registry struct {
	notifyMu sync.Mutex
	mu       sync.RWMutex
	slots    []slot
	nextGen  uint64
	notify   Notifier
}

// New creates a registry with n ports. n <= 0 selects types.MaxPorts.
func New(n int, notify Notifier) *Registry {
	if n <= 0 {
		n = types.MaxPorts
	}
	return &Registry{slots: make([]slot, n), notify: notify}
}

// Len returns the number of ports.
func (r *Registry) Len() int { return len(r.slots) }

func (r *Registry) valid(port int) bool { return mathx.Between(port, 0, len(r.slots)) }

// Register installs a device record. Re-registering the same type is
// idempotent: the handle is replaced and the generation kept.
func (r *Registry) Register(port int, typ types.DeviceType, handle any) error {
	if !r.valid(port) {
		return errcode.Wrap(errcode.InvalidPort, "register", port, nil)
	}
	if typ == types.DeviceNone || !typ.Known() {
		return &errcode.E{C: errcode.InvalidParams, Op: "register", Port: port, Msg: "device type " + typ.String()}
	}

	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	r.mu.Lock()
	s := &r.slots[port]
	if s.typ != types.DeviceNone && s.typ != typ {
		r.mu.Unlock()
		return &errcode.E{C: errcode.SlotOccupied, Op: "register", Port: port, Msg: "holds " + s.typ.String()}
	}
	if s.typ == types.DeviceNone {
		r.nextGen++
		s.gen = r.nextGen
	}
	s.typ = typ
	s.handle = handle
	st := r.stateLocked(port)
	r.mu.Unlock()

	r.publish(st)
	return nil
}

// Unregister clears a slot; clearing an empty slot is a no-op.
func (r *Registry) Unregister(port int) error {
	if !r.valid(port) {
		return errcode.Wrap(errcode.InvalidPort, "unregister", port, nil)
	}
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	r.mu.Lock()
	s := &r.slots[port]
	if s.typ == types.DeviceNone {
		r.mu.Unlock()
		return nil
	}
	*s = slot{}
	st := r.stateLocked(port)
	r.mu.Unlock()

	r.publish(st)
	return nil
}

// Lookup returns the installed entry regardless of type.
func (r *Registry) Lookup(port int) (Entry, error) {
	if !r.valid(port) {
		return Entry{}, errcode.Wrap(errcode.InvalidPort, "lookup", port, nil)
	}
	r.mu.RLock()
	s := r.slots[port]
	r.mu.RUnlock()
	if s.typ == types.DeviceNone {
		return Entry{}, errcode.Wrap(errcode.NoDeviceInstalled, "lookup", port, nil)
	}
	return Entry{Port: port, Type: s.typ, Handle: s.handle, Generation: s.gen}, nil
}

// LookupTyped is Lookup plus a device type check.
func (r *Registry) LookupTyped(port int, expected types.DeviceType) (Entry, error) {
	e, err := r.Lookup(port)
	if err != nil {
		return Entry{}, err
	}
	if e.Type != expected {
		return Entry{}, &errcode.E{
			C:    errcode.PortTypeMismatch,
			Op:   "lookup",
			Port: port,
			Msg:  "want " + expected.String() + ", have " + e.Type.String(),
		}
	}
	return e, nil
}

// TypeOf returns the installed type, DeviceNone for empty or invalid ports.
func (r *Registry) TypeOf(port int) types.DeviceType {
	if !r.valid(port) {
		return types.DeviceNone
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slots[port].typ
}

// Generation returns the installation generation of a port, 0 when empty.
func (r *Registry) Generation(port int) uint64 {
	if !r.valid(port) {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slots[port].gen
}

// Snapshot copies the state of every port. Claimed is left false; the
// guard fills it in.
func (r *Registry) Snapshot() []types.PortState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.PortState, len(r.slots))
	for i := range r.slots {
		out[i] = r.stateLocked(i)
	}
	return out
}

// Installed counts occupied ports.
func (r *Registry) Installed() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.slots {
		if s.typ != types.DeviceNone {
			n++
		}
	}
	return n
}

func (r *Registry) stateLocked(port int) types.PortState {
	s := r.slots[port]
	return types.PortState{Port: port + 1, Type: s.typ, Generation: s.gen}
}

func (r *Registry) publish(st types.PortState) {
	if r.notify != nil {
		r.notify.PortChanged(st)
	}
}
