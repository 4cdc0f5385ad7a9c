// Package gps exposes the GPS sensor on a smart port.
//
// Every call claims the port for exactly one vendor transaction. Failures
// come back both as an error and as the sentinel value of the call's shape:
// types.ErrInt for setters, types.ErrFloat for scalars and an all-ErrFloat
// struct for compound reads.
package gps

import (
	"context"

	"smartport-go/drivers/v5gps"
	"smartport-go/errcode"
	"smartport-go/services/vdml/claim"
	"smartport-go/types"
	"smartport-go/x/mathx"
)

// MinDataRate is the floor and step for SetDataRate, in milliseconds.
const MinDataRate uint32 = 5

// Vendor is the device layer a GPS handle must implement.
type Vendor interface {
	OriginSet(x, y float64)
	OriginGet() (x, y float64)
	InitialPositionSet(x, y, heading float64)
	DataRateSet(ms uint32)
	ErrorGet() float64
	AttitudeGet() v5gps.Attitude
	DegreesGet() float64
	HeadingGet() float64
	RawGyroGet() v5gps.Raw
	RawAccelGet() v5gps.Raw
}

// Feeder is implemented by handles that take NMEA sentences.
type Feeder interface {
	Feed(sentence string) error
}

var (
	_ Vendor = (*v5gps.Device)(nil)
	_ Feeder = (*v5gps.Device)(nil)
)

// Client issues GPS calls through a claim guard. Ports are 1-indexed.
type Client struct {
	g *claim.Guard
}

func New(g *claim.Guard) *Client { return &Client{g: g} }

func (c *Client) do(ctx context.Context, port uint8, fn func(Vendor) error) (int32, error) {
	return claim.Do(ctx, c.g, claim.Port(port), types.DeviceGPS, fn)
}

func (c *Client) float(ctx context.Context, port uint8, fn func(Vendor) float64) (float64, error) {
	return claim.Float(ctx, c.g, claim.Port(port), types.DeviceGPS, func(v Vendor) (float64, error) {
		return fn(v), nil
	})
}

// ---- setters ----

// InitializeFull sets the sensor offset and the robot's initial pose.
func (c *Client) InitializeFull(ctx context.Context, port uint8, xInitial, yInitial, headingInitial, xOffset, yOffset float64) (int32, error) {
	return c.do(ctx, port, func(v Vendor) error {
		v.OriginSet(xOffset, yOffset)
		v.InitialPositionSet(xInitial, yInitial, headingInitial)
		return nil
	})
}

func (c *Client) SetOffset(ctx context.Context, port uint8, xOffset, yOffset float64) (int32, error) {
	return c.do(ctx, port, func(v Vendor) error {
		v.OriginSet(xOffset, yOffset)
		return nil
	})
}

func (c *Client) SetPosition(ctx context.Context, port uint8, xInitial, yInitial, headingInitial float64) (int32, error) {
	return c.do(ctx, port, func(v Vendor) error {
		v.InitialPositionSet(xInitial, yInitial, headingInitial)
		return nil
	})
}

// SetDataRate rounds rate down to a multiple of MinDataRate, never below it.
func (c *Client) SetDataRate(ctx context.Context, port uint8, rate uint32) (int32, error) {
	rate = mathx.FloorStep(rate, MinDataRate)
	return c.do(ctx, port, func(v Vendor) error {
		v.DataRateSet(rate)
		return nil
	})
}

// Feed hands one NMEA sentence to the sensor. A sentence the sensor cannot
// use fails with InvalidParams.
func (c *Client) Feed(ctx context.Context, port uint8, sentence string) (int32, error) {
	return claim.Do(ctx, c.g, claim.Port(port), types.DeviceGPS, func(f Feeder) error {
		if err := f.Feed(sentence); err != nil {
			return errcode.Wrap(errcode.InvalidParams, "gps feed", claim.Port(port), err)
		}
		return nil
	})
}

// ---- compound reads ----

func (c *Client) GetOffset(ctx context.Context, port uint8) (types.GPSPosition, error) {
	return claim.Try(ctx, c.g, claim.Port(port), types.DeviceGPS, types.GPSPositionErr(),
		func(v Vendor) (types.GPSPosition, error) {
			x, y := v.OriginGet()
			return types.GPSPosition{X: x, Y: y}, nil
		})
}

func (c *Client) GetPositionAndOrientation(ctx context.Context, port uint8) (types.GPSStatus, error) {
	return claim.Try(ctx, c.g, claim.Port(port), types.DeviceGPS, types.GPSStatusErr(),
		func(v Vendor) (types.GPSStatus, error) {
			a := v.AttitudeGet()
			return types.GPSStatus{X: a.PositionX, Y: a.PositionY, Pitch: a.Pitch, Roll: a.Roll, Yaw: a.Yaw}, nil
		})
}

func (c *Client) GetPosition(ctx context.Context, port uint8) (types.GPSPosition, error) {
	return claim.Try(ctx, c.g, claim.Port(port), types.DeviceGPS, types.GPSPositionErr(),
		func(v Vendor) (types.GPSPosition, error) {
			a := v.AttitudeGet()
			return types.GPSPosition{X: a.PositionX, Y: a.PositionY}, nil
		})
}

func (c *Client) GetOrientation(ctx context.Context, port uint8) (types.GPSOrientation, error) {
	return claim.Try(ctx, c.g, claim.Port(port), types.DeviceGPS, types.GPSOrientationErr(),
		func(v Vendor) (types.GPSOrientation, error) {
			a := v.AttitudeGet()
			return types.GPSOrientation{Pitch: a.Pitch, Roll: a.Roll, Yaw: a.Yaw}, nil
		})
}

func (c *Client) GetGyroRate(ctx context.Context, port uint8) (types.GPSGyro, error) {
	return claim.Try(ctx, c.g, claim.Port(port), types.DeviceGPS, types.Vec3Err(),
		func(v Vendor) (types.GPSGyro, error) { return vec(v.RawGyroGet()), nil })
}

func (c *Client) GetAccel(ctx context.Context, port uint8) (types.GPSAccel, error) {
	return claim.Try(ctx, c.g, claim.Port(port), types.DeviceGPS, types.Vec3Err(),
		func(v Vendor) (types.GPSAccel, error) { return vec(v.RawAccelGet()), nil })
}

// ---- scalar reads ----

// GetError is the RMS position error in metres.
func (c *Client) GetError(ctx context.Context, port uint8) (float64, error) {
	return c.float(ctx, port, Vendor.ErrorGet)
}

func (c *Client) GetPositionX(ctx context.Context, port uint8) (float64, error) {
	return c.float(ctx, port, func(v Vendor) float64 { return v.AttitudeGet().PositionX })
}

func (c *Client) GetPositionY(ctx context.Context, port uint8) (float64, error) {
	return c.float(ctx, port, func(v Vendor) float64 { return v.AttitudeGet().PositionY })
}

func (c *Client) GetPitch(ctx context.Context, port uint8) (float64, error) {
	return c.float(ctx, port, func(v Vendor) float64 { return v.AttitudeGet().Pitch })
}

func (c *Client) GetRoll(ctx context.Context, port uint8) (float64, error) {
	return c.float(ctx, port, func(v Vendor) float64 { return v.AttitudeGet().Roll })
}

func (c *Client) GetYaw(ctx context.Context, port uint8) (float64, error) {
	return c.float(ctx, port, func(v Vendor) float64 { return v.AttitudeGet().Yaw })
}

// GetHeading is in [0, 360).
func (c *Client) GetHeading(ctx context.Context, port uint8) (float64, error) {
	return c.float(ctx, port, Vendor.DegreesGet)
}

// GetHeadingRaw is the unbounded heading.
func (c *Client) GetHeadingRaw(ctx context.Context, port uint8) (float64, error) {
	return c.float(ctx, port, Vendor.HeadingGet)
}

func (c *Client) GetGyroRateX(ctx context.Context, port uint8) (float64, error) {
	return c.float(ctx, port, func(v Vendor) float64 { return v.RawGyroGet().X })
}

func (c *Client) GetGyroRateY(ctx context.Context, port uint8) (float64, error) {
	return c.float(ctx, port, func(v Vendor) float64 { return v.RawGyroGet().Y })
}

func (c *Client) GetGyroRateZ(ctx context.Context, port uint8) (float64, error) {
	return c.float(ctx, port, func(v Vendor) float64 { return v.RawGyroGet().Z })
}

func (c *Client) GetAccelX(ctx context.Context, port uint8) (float64, error) {
	return c.float(ctx, port, func(v Vendor) float64 { return v.RawAccelGet().X })
}

func (c *Client) GetAccelY(ctx context.Context, port uint8) (float64, error) {
	return c.float(ctx, port, func(v Vendor) float64 { return v.RawAccelGet().Y })
}

func (c *Client) GetAccelZ(ctx context.Context, port uint8) (float64, error) {
	return c.float(ctx, port, func(v Vendor) float64 { return v.RawAccelGet().Z })
}

func vec(r v5gps.Raw) types.Vec3 { return types.Vec3{X: r.X, Y: r.Y, Z: r.Z} }
