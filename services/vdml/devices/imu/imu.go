// Package imu exposes the inertial sensor on a smart port.
//
// Tare and Set calls never touch the sensor: they store offsets next to the
// registered handle, and every read applies them. Most calls refuse to run
// while the sensor is calibrating and fail with errcode.StillCalibrating.
package imu

import (
	"context"
	"math"
	"time"

	"smartport-go/drivers/v5imu"
	"smartport-go/errcode"
	"smartport-go/services/vdml/claim"
	"smartport-go/types"
	"smartport-go/x/mathx"
	"smartport-go/x/timex"
)

const (
	EulerLimit  = 180.0
	HeadingMax  = 360.0
	MinDataRate = uint32(5)

	resetPoll        = 5 * time.Millisecond
	resetFlagTimeout = time.Second
	resetTimeout     = 3 * time.Second
)

// Orientation is the physical mounting reported in the status word.
type Orientation uint8

const (
	OrientationZUp Orientation = iota
	OrientationZDown
	OrientationXUp
	OrientationXDown
	OrientationYUp
	OrientationYDown
	OrientationError Orientation = 0xFF
)

// Vendor is the device layer an IMU handle wraps.
type Vendor interface {
	Reset()
	StatusGet() uint32
	DataRateSet(ms uint32)
	HeadingGet() float64
	DegreesGet() float64
	AttitudeGet() v5imu.Attitude
	RawGyroGet() v5imu.Raw
	RawAccelGet() v5imu.Raw
}

var _ Vendor = (*v5imu.Device)(nil)

type offsets struct {
	heading, rotation float64
	pitch, roll, yaw  float64
}

// Handle is what gets registered for an IMU port: the vendor device plus
// the tare offsets. Offsets are only touched under a claim.
type Handle struct {
	dev Vendor
	off offsets
}

func NewHandle(dev Vendor) *Handle { return &Handle{dev: dev} }

func (h *Handle) Vendor() Vendor { return h.dev }

func (h *Handle) calibrating() bool {
	return types.IMUStatus(h.dev.StatusGet()).Calibrating()
}

// Option configures a Client.
type Option func(*Client)

// WithClock sets the clock Reset polls with.
func WithClock(c timex.Clock) Option { return func(cl *Client) { cl.clock = c } }

// Client issues IMU calls through a claim guard. Ports are 1-indexed.
type Client struct {
	g     *claim.Guard
	clock timex.Clock
}

func New(g *claim.Guard, opts ...Option) *Client {
	c := &Client{g: g, clock: timex.Real}
	for _, o := range opts {
		o(c)
	}
	return c
}

func stillCalibrating(op string, port int) error {
	return &errcode.E{C: errcode.StillCalibrating, Op: op, Port: port}
}

// ready wraps fn with the calibrating check.
func ready[T any](op string, port uint8, errValue T, fn func(h *Handle) (T, error)) func(h *Handle) (T, error) {
	return func(h *Handle) (T, error) {
		if h.calibrating() {
			return errValue, stillCalibrating(op, claim.Port(port))
		}
		return fn(h)
	}
}

func (c *Client) float(ctx context.Context, op string, port uint8, check bool, fn func(h *Handle) float64) (float64, error) {
	f := func(h *Handle) (float64, error) { return fn(h), nil }
	if check {
		f = ready(op, port, types.ErrFloat, f)
	}
	return claim.Float(ctx, c.g, claim.Port(port), types.DeviceIMU, f)
}

func (c *Client) do(ctx context.Context, op string, port uint8, check bool, fn func(h *Handle)) (int32, error) {
	f := func(h *Handle) (int32, error) { fn(h); return types.Success, nil }
	if check {
		f = ready(op, port, types.ErrInt, f)
	}
	return claim.Int(ctx, c.g, claim.Port(port), types.DeviceIMU, f)
}

// Reset starts calibration and waits for the sensor to raise its
// calibrating flag. With blocking set it also waits for the flag to clear.
// The port is released between polls so other callers are not starved; if
// someone else holds it when a poll reclaims, Reset fails with PortBusy.
func (c *Client) Reset(ctx context.Context, port uint8, blocking bool) (int32, error) {
	p := claim.Port(port)
	tok, err := c.g.TryClaim(ctx, p, types.DeviceIMU)
	if err != nil {
		return types.ErrInt, err
	}
	defer func() { tok.Release() }()

	h, err := claim.HandleAs[*Handle](tok)
	if err != nil {
		return types.ErrInt, err
	}
	if h.calibrating() {
		return types.ErrInt, stillCalibrating("imu reset", p)
	}
	h.dev.Reset()

	var waited time.Duration
	poll := func(limit time.Duration) error {
		tok.Release()
		c.clock.Sleep(resetPoll)
		waited += resetPoll
		if err := ctx.Err(); err != nil {
			return errcode.Wrap(errcode.Of(err), "imu reset", p, err)
		}
		next, err := tok.Reacquire(ctx)
		if err != nil {
			return err
		}
		tok = next
		if waited >= limit {
			return &errcode.E{C: errcode.Timeout, Op: "imu reset", Port: p, Msg: "calibration flag did not change after " + waited.String()}
		}
		h, err = claim.HandleAs[*Handle](tok)
		return err
	}

	for {
		if err := poll(resetFlagTimeout); err != nil {
			return types.ErrInt, err
		}
		if h.calibrating() {
			break
		}
	}
	for blocking && h.calibrating() {
		if err := poll(resetTimeout); err != nil {
			return types.ErrInt, err
		}
	}
	return types.Success, nil
}

// SetDataRate rounds rate down to a multiple of MinDataRate, never below it.
func (c *Client) SetDataRate(ctx context.Context, port uint8, rate uint32) (int32, error) {
	rate = mathx.FloorStep(rate, MinDataRate)
	return c.do(ctx, "imu set data rate", port, true, func(h *Handle) { h.dev.DataRateSet(rate) })
}

// ---- reads ----

func (c *Client) GetRotation(ctx context.Context, port uint8) (float64, error) {
	return c.float(ctx, "imu rotation", port, true, func(h *Handle) float64 {
		return h.dev.HeadingGet() + h.off.rotation
	})
}

// GetHeading is in [0, 360).
func (c *Client) GetHeading(ctx context.Context, port uint8) (float64, error) {
	return c.float(ctx, "imu heading", port, true, func(h *Handle) float64 {
		return mathx.WrapHeading(h.dev.DegreesGet()+h.off.heading, HeadingMax)
	})
}

func (h *Handle) euler() types.Euler {
	a := h.dev.AttitudeGet()
	return types.Euler{
		Pitch: mathx.WrapDeg(a.Pitch+h.off.pitch, 2*EulerLimit),
		Roll:  mathx.WrapDeg(a.Roll+h.off.roll, 2*EulerLimit),
		Yaw:   mathx.WrapDeg(a.Yaw+h.off.yaw, 2*EulerLimit),
	}
}

func (c *Client) GetEuler(ctx context.Context, port uint8) (types.Euler, error) {
	return claim.Try(ctx, c.g, claim.Port(port), types.DeviceIMU, types.EulerErr(),
		ready("imu euler", port, types.EulerErr(), func(h *Handle) (types.Euler, error) {
			return h.euler(), nil
		}))
}

func (c *Client) GetQuaternion(ctx context.Context, port uint8) (types.Quaternion, error) {
	return claim.Try(ctx, c.g, claim.Port(port), types.DeviceIMU, types.QuaternionErr(),
		ready("imu quaternion", port, types.QuaternionErr(), func(h *Handle) (types.Quaternion, error) {
			return quaternion(h.euler()), nil
		}))
}

func quaternion(e types.Euler) types.Quaternion {
	const d2r = math.Pi / 180
	cy, sy := math.Cos(d2r*e.Yaw*0.5), math.Sin(d2r*e.Yaw*0.5)
	cp, sp := math.Cos(d2r*e.Pitch*0.5), math.Sin(d2r*e.Pitch*0.5)
	cr, sr := math.Cos(d2r*e.Roll*0.5), math.Sin(d2r*e.Roll*0.5)
	return types.Quaternion{
		W: cr*cp*cy + sr*sp*sy,
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
	}
}

// GetPitch, GetRoll and GetYaw read through calibration.
func (c *Client) GetPitch(ctx context.Context, port uint8) (float64, error) {
	return c.float(ctx, "imu pitch", port, false, func(h *Handle) float64 { return h.euler().Pitch })
}

func (c *Client) GetRoll(ctx context.Context, port uint8) (float64, error) {
	return c.float(ctx, "imu roll", port, false, func(h *Handle) float64 { return h.euler().Roll })
}

func (c *Client) GetYaw(ctx context.Context, port uint8) (float64, error) {
	return c.float(ctx, "imu yaw", port, false, func(h *Handle) float64 { return h.euler().Yaw })
}

func (c *Client) GetGyroRate(ctx context.Context, port uint8) (types.IMUGyro, error) {
	return claim.Try(ctx, c.g, claim.Port(port), types.DeviceIMU, types.Vec3Err(),
		ready("imu gyro", port, types.Vec3Err(), func(h *Handle) (types.IMUGyro, error) {
			r := h.dev.RawGyroGet()
			return types.Vec3{X: r.X, Y: r.Y, Z: r.Z}, nil
		}))
}

func (c *Client) GetAccel(ctx context.Context, port uint8) (types.IMUAccel, error) {
	return claim.Try(ctx, c.g, claim.Port(port), types.DeviceIMU, types.Vec3Err(),
		ready("imu accel", port, types.Vec3Err(), func(h *Handle) (types.IMUAccel, error) {
			r := h.dev.RawAccelGet()
			return types.Vec3{X: r.X, Y: r.Y, Z: r.Z}, nil
		}))
}

// GetStatus returns types.IMUStatusError on failure.
func (c *Client) GetStatus(ctx context.Context, port uint8) (types.IMUStatus, error) {
	return claim.Try(ctx, c.g, claim.Port(port), types.DeviceIMU, types.IMUStatusError,
		func(h *Handle) (types.IMUStatus, error) {
			return types.IMUStatus(h.dev.StatusGet()), nil
		})
}

func (c *Client) GetPhysicalOrientation(ctx context.Context, port uint8) (Orientation, error) {
	st, err := c.GetStatus(ctx, port)
	if err != nil {
		return OrientationError, err
	}
	return Orientation((st >> 1) & 7), nil
}

// ---- tare / set ----

// Tare zeroes every reading at the current pose.
func (c *Client) Tare(ctx context.Context, port uint8) (int32, error) {
	return c.do(ctx, "imu tare", port, false, func(h *Handle) {
		a := h.dev.AttitudeGet()
		h.off = offsets{
			rotation: -h.dev.HeadingGet(),
			heading:  -h.dev.DegreesGet(),
			pitch:    -a.Pitch,
			roll:     -a.Roll,
			yaw:      -a.Yaw,
		}
	})
}

func (c *Client) TareEuler(ctx context.Context, port uint8) (int32, error) {
	return c.SetEuler(ctx, port, types.Euler{})
}

func (c *Client) TareHeading(ctx context.Context, port uint8) (int32, error) {
	return c.SetHeading(ctx, port, 0)
}

func (c *Client) TareRotation(ctx context.Context, port uint8) (int32, error) {
	return c.SetRotation(ctx, port, 0)
}

func (c *Client) TarePitch(ctx context.Context, port uint8) (int32, error) {
	return c.SetPitch(ctx, port, 0)
}

func (c *Client) TareRoll(ctx context.Context, port uint8) (int32, error) {
	return c.SetRoll(ctx, port, 0)
}

func (c *Client) TareYaw(ctx context.Context, port uint8) (int32, error) {
	return c.SetYaw(ctx, port, 0)
}

func (c *Client) SetRotation(ctx context.Context, port uint8, target float64) (int32, error) {
	return c.do(ctx, "imu set rotation", port, true, func(h *Handle) {
		h.off.rotation = target - h.dev.HeadingGet()
	})
}

// SetHeading clamps target to [0, 360].
func (c *Client) SetHeading(ctx context.Context, port uint8, target float64) (int32, error) {
	target = mathx.Clamp(target, 0, HeadingMax)
	return c.do(ctx, "imu set heading", port, true, func(h *Handle) {
		h.off.heading = target - h.dev.DegreesGet()
	})
}

func clampEuler(v float64) float64 { return mathx.Clamp(v, -EulerLimit, EulerLimit) }

func (c *Client) SetPitch(ctx context.Context, port uint8, target float64) (int32, error) {
	target = clampEuler(target)
	return c.do(ctx, "imu set pitch", port, true, func(h *Handle) {
		h.off.pitch = target - h.dev.AttitudeGet().Pitch
	})
}

func (c *Client) SetRoll(ctx context.Context, port uint8, target float64) (int32, error) {
	target = clampEuler(target)
	return c.do(ctx, "imu set roll", port, true, func(h *Handle) {
		h.off.roll = target - h.dev.AttitudeGet().Roll
	})
}

func (c *Client) SetYaw(ctx context.Context, port uint8, target float64) (int32, error) {
	target = clampEuler(target)
	return c.do(ctx, "imu set yaw", port, true, func(h *Handle) {
		h.off.yaw = target - h.dev.AttitudeGet().Yaw
	})
}

// SetEuler clamps each angle to ±180. It is allowed during calibration.
func (c *Client) SetEuler(ctx context.Context, port uint8, target types.Euler) (int32, error) {
	target = types.Euler{Pitch: clampEuler(target.Pitch), Roll: clampEuler(target.Roll), Yaw: clampEuler(target.Yaw)}
	return c.do(ctx, "imu set euler", port, false, func(h *Handle) {
		a := h.dev.AttitudeGet()
		h.off.pitch = target.Pitch - a.Pitch
		h.off.roll = target.Roll - a.Roll
		h.off.yaw = target.Yaw - a.Yaw
	})
}
