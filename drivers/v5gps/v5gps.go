// Package v5gps is a simulated GPS smart-port device.
//
// It stands in for the vendor device layer: the methods mirror the vendor
// entry points (origin, initial position, attitude, raw gyro/accel) and are
// meant to be called only while the caller holds a claim on the port.
//
// Position can be driven by hand (SetAttitude) or from an NMEA stream via
// Feed. The first valid fix becomes the field reference; later fixes move
// the sensor by their east/north distance from it, in metres.
package v5gps

import (
	"errors"
	"math"
	"strings"
	"sync"

	"tinygo.org/x/drivers/gps"
)

const earthRadiusM = 6371000.0

// Errors returned by the simulator.
var (
	ErrNoFix = errors.New("v5gps: sentence has no valid fix")
	// ErrShortCoordinate is returned for a latitude or longitude given with
	// fewer than four decimal places of minutes, which the parser reads as 0.
	ErrShortCoordinate = errors.New("v5gps: coordinate needs ddmm.mmmm or dddmm.mmmm")
)

// minCoordLen is the shortest lat/lon field the NMEA parser decodes.
const minCoordLen = 9

// Attitude is the combined position/orientation sample.
type Attitude struct {
	PositionX float64
	PositionY float64
	PositionZ float64
	Pitch     float64
	Roll      float64
	Yaw       float64
}

// Raw is a raw gyro or accelerometer triple.
type Raw struct{ X, Y, Z float64 }

// Config seeds the simulator. All fields are optional.
type Config struct {
	X        float64 `mapstructure:"x"`
	Y        float64 `mapstructure:"y"`
	Heading  float64 `mapstructure:"heading"`
	OffsetX  float64 `mapstructure:"offset_x"`
	OffsetY  float64 `mapstructure:"offset_y"`
	ErrorM   float64 `mapstructure:"error_m"`
	DataRate uint32  `mapstructure:"data_rate_ms"`
}

// Device is one simulated sensor.
type Device struct {
	mu sync.Mutex

	originX, originY float64
	sensorX, sensorY float64
	att              Attitude
	heading          float64 // unbounded
	gyro, accel      Raw
	errM             float64
	rate             uint32

	parser             gps.Parser
	refLat, refLon     float64
	haveRef            bool
	lastFixX, lastFixY float64
}

// New creates a simulator seeded from cfg.
func New(cfg Config) *Device {
	d := &Device{
		parser: gps.NewParser(),
		errM:   cfg.ErrorM,
		rate:   cfg.DataRate,
	}
	if d.rate == 0 {
		d.rate = 20
	}
	d.originX, d.originY = cfg.OffsetX, cfg.OffsetY
	d.setPositionLocked(cfg.X, cfg.Y, cfg.Heading)
	return d
}

// ---- vendor entry points ----

func (d *Device) OriginSet(x, y float64) {
	d.mu.Lock()
	d.originX, d.originY = x, y
	d.refreshLocked()
	d.mu.Unlock()
}

func (d *Device) OriginGet() (x, y float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.originX, d.originY
}

func (d *Device) InitialPositionSet(x, y, heading float64) {
	d.mu.Lock()
	d.setPositionLocked(x, y, heading)
	d.mu.Unlock()
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

// ErrorGet is the RMS position error in metres.
func (d *Device) ErrorGet() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.errM
}

func (d *Device) AttitudeGet() Attitude {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.att
}

// DegreesGet is the heading folded into [0, 360).
func (d *Device) DegreesGet() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := math.Mod(d.heading, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// HeadingGet is the raw heading, not folded.
func (d *Device) HeadingGet() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.heading
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

// SetAttitude overrides the sensor pose. Position is the sensor itself;
// the reported position subtracts the configured origin offset.
func (d *Device) SetAttitude(x, y, pitch, roll, yaw float64) {
	d.mu.Lock()
	d.sensorX, d.sensorY = x, y
	d.att.Pitch, d.att.Roll, d.att.Yaw = pitch, roll, yaw
	d.refreshLocked()
	d.mu.Unlock()
}

func (d *Device) SetRaw(gyro, accel Raw) {
	d.mu.Lock()
	d.gyro, d.accel = gyro, accel
	d.mu.Unlock()
}

func (d *Device) SetError(m float64) {
	d.mu.Lock()
	d.errM = m
	d.mu.Unlock()
}

// Feed parses one NMEA sentence (GGA, GLL or RMC). Sentences without a
// valid fix return ErrNoFix and leave the pose untouched.
func (d *Device) Feed(sentence string) error {
	if err := checkCoords(sentence); err != nil {
		return err
	}
	fix, err := d.parse(sentence)
	if err != nil {
		return err
	}
	if !fix.Valid {
		return ErrNoFix
	}
	lat, lon := float64(fix.Latitude), float64(fix.Longitude)

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.haveRef {
		d.refLat, d.refLon = lat, lon
		d.haveRef = true
		d.lastFixX, d.lastFixY = d.sensorX, d.sensorY
		return nil
	}
	east, north := project(d.refLat, d.refLon, lat, lon)
	x, y := d.lastFixX+east, d.lastFixY+north
	if dx, dy := x-d.sensorX, y-d.sensorY; dx != 0 || dy != 0 {
		// compass heading of travel: 0 = north, clockwise
		d.heading = math.Mod(math.Atan2(dx, dy)*180/math.Pi+360, 360)
		d.att.Yaw = d.heading
	}
	d.sensorX, d.sensorY = x, y
	d.refreshLocked()
	return nil
}

func (d *Device) parse(sentence string) (gps.Fix, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.parser.Parse(sentence)
}

// checkCoords rejects sentences whose coordinate fields are present but too
// short to decode. Empty fields are left to the fix validity check.
func checkCoords(sentence string) error {
	if len(sentence) < 6 {
		return nil
	}
	var lat, lon int
	switch sentence[3:6] {
	case "GGA":
		lat, lon = 2, 4
	case "GLL":
		lat, lon = 1, 3
	case "RMC":
		lat, lon = 3, 5
	default:
		return nil
	}
	fields := strings.Split(sentence, ",")
	if len(fields) <= lon {
		return nil
	}
	for _, f := range []string{fields[lat], fields[lon]} {
		if f != "" && len(f) < minCoordLen {
			return ErrShortCoordinate
		}
	}
	return nil
}

// setPositionLocked also drops the fix reference, so the next fix
// re-anchors at the new pose.
func (d *Device) setPositionLocked(x, y, heading float64) {
	d.haveRef = false
	d.sensorX, d.sensorY = x, y
	d.heading = heading
	d.att.Yaw = heading
	d.refreshLocked()
}

func (d *Device) refreshLocked() {
	d.att.PositionX = d.sensorX - d.originX
	d.att.PositionY = d.sensorY - d.originY
}

// project returns the east/north displacement in metres between two fixes
// using an equirectangular approximation, fine over a field.
func project(lat0, lon0, lat, lon float64) (east, north float64) {
	rad := math.Pi / 180
	north = (lat - lat0) * rad * earthRadiusM
	east = (lon - lon0) * rad * earthRadiusM * math.Cos(lat0*rad)
	return east, north
}
