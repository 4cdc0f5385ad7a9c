// Package vdml is the smart-port controller: it owns the device registry
// and the claim guard, builds simulated vendor devices from configuration
// and publishes every port change on the bus.
package vdml

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"smartport-go/bus"
	"smartport-go/errcode"
	"smartport-go/services/vdml/claim"
	"smartport-go/services/vdml/devices/gps"
	"smartport-go/services/vdml/devices/imu"
	"smartport-go/services/vdml/internal/metrics"
	"smartport-go/services/vdml/internal/registry"
	"smartport-go/services/vdml/locker"
	redislock "smartport-go/services/vdml/locker/redis"
	"smartport-go/types"
	"smartport-go/x/logx"
	"smartport-go/x/timex"
)

// PortTopic is the retained state topic for a 1-indexed port.
func PortTopic(port int) bus.Topic { return bus.T("port", port, "state") }

type options struct {
	maxPorts int
	bus      *bus.Bus
	promReg  prometheus.Registerer
	locker   locker.Locker
	lockTTL  time.Duration
	logger   *slog.Logger
	clock    timex.Clock
}

// Option configures a Controller.
type Option func(*options)

func WithMaxPorts(n int) Option { return func(o *options) { o.maxPorts = n } }

// WithBus publishes port changes on b.
func WithBus(b *bus.Bus) Option { return func(o *options) { o.bus = b } }

// WithRegisterer registers the claim metrics on r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.promReg = r }
}

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

func WithClock(c timex.Clock) Option { return func(o *options) { o.clock = c } }

// WithLocker makes claims exclusive across processes sharing l.
func WithLocker(l locker.Locker, ttl time.Duration) Option {
	return func(o *options) { o.locker, o.lockTTL = l, ttl }
}

type Controller struct {
	reg     *registry.Registry
	guard   *claim.Guard
	metrics *metrics.Metrics
	conn    *bus.Connection
	clock   timex.Clock
	logger  *slog.Logger

	gps *gps.Client
	imu *imu.Client

	closers []func() error
}

// New creates a controller with every port empty.
func New(opts ...Option) *Controller {
	o := options{
		maxPorts: types.MaxPorts,
		logger:   logx.NewNop(),
		clock:    timex.Real,
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Controller{
		metrics: metrics.New(o.promReg),
		clock:   o.clock,
		logger:  logx.Component(o.logger, "vdml"),
	}
	if o.bus != nil {
		c.conn = o.bus.NewConnection("vdml")
	}
	c.reg = registry.New(o.maxPorts, c)

	gopts := []claim.Option{claim.WithMetrics(c.metrics), claim.WithLogger(o.logger)}
	if o.locker != nil {
		gopts = append(gopts, claim.WithLocker(o.locker, o.lockTTL))
	}
	c.guard = claim.New(c.reg, gopts...)
	c.gps = gps.New(c.guard)
	c.imu = imu.New(c.guard, imu.WithClock(o.clock))
	return c
}

// NewFromConfig creates a controller, connects the redis locker if enabled
// and plugs every configured port.
func NewFromConfig(cfg types.Config, opts ...Option) (*Controller, error) {
	opts = append([]Option{WithMaxPorts(cfg.Controller.MaxPorts)}, opts...)
	var rl *redislock.Locker
	if r := cfg.Claim.Redis; r.Enable {
		rl = redislock.New(r.Addr, r.Prefix)
		opts = append(opts, WithLocker(rl, r.TTL))
	}
	c := New(opts...)
	if rl != nil {
		c.closers = append(c.closers, rl.Close)
	}
	if err := c.Apply(cfg.Ports); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Controller) Guard() *claim.Guard { return c.guard }
func (c *Controller) GPS() *gps.Client    { return c.gps }
func (c *Controller) IMU() *imu.Client    { return c.imu }
func (c *Controller) Ports() int          { return c.reg.Len() }

// Plug builds a simulated device of type t from params and installs it on
// the 1-indexed port.
func (c *Controller) Plug(port int, t types.DeviceType, params map[string]any) error {
	b, ok := findBuilder(t)
	if !ok {
		return &errcode.E{C: errcode.Unsupported, Op: "plug", Port: port - 1, Msg: "no builder for " + t.String()}
	}
	h, err := b.Build(BuildInput{Port: port - 1, Type: t, Params: params, Clock: c.clock})
	if err != nil {
		return err
	}
	return c.PlugHandle(port, t, h)
}

// PlugHandle installs an already-built handle on the 1-indexed port.
func (c *Controller) PlugHandle(port int, t types.DeviceType, handle any) error {
	if err := c.reg.Register(port-1, t, handle); err != nil {
		return err
	}
	c.logger.Info("device plugged", "port", port, "type", t.String())
	return nil
}

// Unplug empties the 1-indexed port. A caller mid-claim keeps its handle
// until it releases.
func (c *Controller) Unplug(port int) error {
	if err := c.reg.Unregister(port - 1); err != nil {
		return err
	}
	c.logger.Info("device unplugged", "port", port)
	return nil
}

// Apply plugs every configured port. Ports already holding the configured
// type are left alone, so applying the same list twice is a no-op.
func (c *Controller) Apply(ports []types.PortConfig) error {
	var errs []error
	for _, pc := range ports {
		if pc.Type != types.DeviceNone && c.reg.TypeOf(pc.Port-1) == pc.Type {
			continue
		}
		if err := c.Plug(pc.Port, pc.Type, pc.Params); err != nil {
			c.logger.Warn("plug failed", "port", pc.Port, "type", pc.Type.String(), "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Snapshot lists every port with its claim state.
func (c *Controller) Snapshot() []types.PortState {
	snap := c.guard.Snapshot()
	now := c.clock.Now().UnixMilli()
	for i := range snap {
		snap[i].TSms = now
	}
	return snap
}

// Port returns the state of one 1-indexed port.
func (c *Controller) Port(port int) (types.PortState, error) {
	p := port - 1
	if p < 0 || p >= c.reg.Len() {
		return types.PortState{}, errcode.Wrap(errcode.InvalidPort, "port", p, nil)
	}
	return c.Snapshot()[p], nil
}

// Holder reports the cross-process holder of the 1-indexed port, when a
// redis locker is configured and someone holds it.
func (c *Controller) Holder(ctx context.Context, port int) (locker.Owner, bool, error) {
	if port < 1 || port > c.reg.Len() {
		return locker.Owner{}, false, errcode.Wrap(errcode.InvalidPort, "holder", port-1, nil)
	}
	return c.guard.RemoteHolder(ctx, port-1)
}

// PortChanged publishes registry changes; it is the registry's notifier.
func (c *Controller) PortChanged(st types.PortState) {
	st.TSms = c.clock.Now().UnixMilli()
	c.metrics.SetInstalled(c.reg.Installed())
	if c.conn == nil {
		return
	}
	c.conn.Publish(c.conn.NewMessage(PortTopic(st.Port), st, true))
}

// Close releases the bus connection and any remote locker.
func (c *Controller) Close() error {
	var errs []error
	for _, fn := range c.closers {
		errs = append(errs, fn())
	}
	c.closers = nil
	if c.conn != nil {
		c.conn.Disconnect()
		c.conn = nil
	}
	return errors.Join(errs...)
}
