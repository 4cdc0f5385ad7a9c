// Package v5imu is a simulated inertial smart-port device.
//
// Reset starts a calibration cycle on the injected clock: the calibrating
// status bit appears after FlagDelay and clears CalibrateFor later. The
// pose is zeroed when the cycle starts.
package v5imu

import (
	"math"
	"sync"
	"time"

	"smartport-go/x/timex"
)

// Status bits as reported by StatusGet.
const (
	StatusCalibrating uint32 = 0x01
	orientationShift         = 1
	orientationMask   uint32 = 0x07
)

const (
	defaultFlagDelay    = 20 * time.Millisecond
	defaultCalibrateFor = 2 * time.Second
)

// Attitude is pitch/roll/yaw in degrees.
type Attitude struct{ Pitch, Roll, Yaw float64 }

// Raw is a raw gyro or accelerometer triple.
type Raw struct{ X, Y, Z float64 }

// Config seeds the simulator.
type Config struct {
	// Orientation is the physical mounting, 0..5 (Z up, Z down, X up, ...).
	Orientation  uint8         `mapstructure:"orientation"`
	FlagDelay    time.Duration `mapstructure:"flag_delay"`
	CalibrateFor time.Duration `mapstructure:"calibrate_for"`
	DataRate     uint32        `mapstructure:"data_rate_ms"`
	// NeverCalibrates keeps the calibrating flag from ever appearing.
	NeverCalibrates bool `mapstructure:"never_calibrates"`
}

type Device struct {
	mu    sync.Mutex
	clock timex.Clock
	cfg   Config

	rotation    float64 // unbounded heading
	att         Attitude
	gyro, accel Raw
	rate        uint32

	resetAt   time.Time
	resetting bool
}

// New creates a simulator. A nil clock uses the wall clock.
func New(cfg Config, clock timex.Clock) *Device {
	if clock == nil {
		clock = timex.Real
	}
	if cfg.FlagDelay <= 0 {
		cfg.FlagDelay = defaultFlagDelay
	}
	if cfg.CalibrateFor <= 0 {
		cfg.CalibrateFor = defaultCalibrateFor
	}
	if cfg.DataRate == 0 {
		cfg.DataRate = 10
	}
	return &Device{clock: clock, cfg: cfg, rate: cfg.DataRate}
}

// ---- vendor entry points ----

// Reset starts calibration and zeroes the pose.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetAt = d.clock.Now()
	d.resetting = true
	d.rotation = 0
	d.att = Attitude{}
}

func (d *Device) StatusGet() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := (uint32(d.cfg.Orientation) & orientationMask) << orientationShift
	if d.calibratingLocked() {
		st |= StatusCalibrating
	}
	return st
}

func (d *Device) DataRateSet(ms uint32) {
	d.mu.Lock()
	d.rate = ms
	d.mu.Unlock()
}

func (d *Device) DataRate() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rate
}

// HeadingGet is the unbounded rotation in degrees.
func (d *Device) HeadingGet() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rotation
}

// DegreesGet is the heading folded into [0, 360).
func (d *Device) DegreesGet() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := math.Mod(d.rotation, 360)
	if h < 0 {
		h += 360
	}
	return h
}

func (d *Device) AttitudeGet() Attitude {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.att
}

func (d *Device) RawGyroGet() Raw {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gyro
}

func (d *Device) RawAccelGet() Raw {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accel
}

// ---- simulation inputs ----

// Rotate turns the sensor about its vertical axis.
func (d *Device) Rotate(deg float64) {
	d.mu.Lock()
	d.rotation += deg
	d.att.Yaw = wrap180(d.att.Yaw + deg)
	d.mu.Unlock()
}

func (d *Device) SetAttitude(a Attitude) {
	d.mu.Lock()
	d.att = a
	d.mu.Unlock()
}

func (d *Device) SetRaw(gyro, accel Raw) {
	d.mu.Lock()
	d.gyro, d.accel = gyro, accel
	d.mu.Unlock()
}

func (d *Device) calibratingLocked() bool {
	if !d.resetting || d.cfg.NeverCalibrates {
		return false
	}
	el := d.clock.Now().Sub(d.resetAt)
	if el >= d.cfg.FlagDelay+d.cfg.CalibrateFor {
		d.resetting = false
		return false
	}
	return el >= d.cfg.FlagDelay
}

func wrap180(v float64) float64 {
	v = math.Mod(v+180, 360)
	if v < 0 {
		v += 360
	}
	return v - 180
}
