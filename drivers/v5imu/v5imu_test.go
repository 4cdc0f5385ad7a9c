package v5imu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"smartport-go/x/timex"
)

func TestCalibrationCycle(t *testing.T) {
	clk := timex.NewFake(time.Unix(0, 0))
	d := New(Config{FlagDelay: 10 * time.Millisecond, CalibrateFor: time.Second}, clk)

	d.Rotate(90)
	assert.Zero(t, d.StatusGet()&StatusCalibrating)

	d.Reset()
	assert.Zero(t, d.HeadingGet(), "reset zeroes the pose")
	assert.Zero(t, d.StatusGet()&StatusCalibrating, "flag not raised yet")

	clk.Advance(10 * time.Millisecond)
	assert.NotZero(t, d.StatusGet()&StatusCalibrating)

	clk.Advance(999 * time.Millisecond)
	assert.NotZero(t, d.StatusGet()&StatusCalibrating)

	clk.Advance(time.Millisecond)
	assert.Zero(t, d.StatusGet()&StatusCalibrating)
}

func TestNeverCalibrates(t *testing.T) {
	clk := timex.NewFake(time.Unix(0, 0))
	d := New(Config{NeverCalibrates: true}, clk)
	d.Reset()
	clk.Advance(100 * time.Millisecond)
	assert.Zero(t, d.StatusGet()&StatusCalibrating)
}

func TestOrientationBits(t *testing.T) {
	d := New(Config{Orientation: 3}, nil)
	assert.Equal(t, uint32(3), (d.StatusGet()>>1)&7)
}

func TestRotation(t *testing.T) {
	d := New(Config{}, nil)
	d.Rotate(400)
	assert.Equal(t, 400.0, d.HeadingGet())
	assert.InDelta(t, 40.0, d.DegreesGet(), 1e-9)
	assert.InDelta(t, 40.0, d.AttitudeGet().Yaw, 1e-9)

	d.Rotate(-100)
	assert.InDelta(t, 300.0, d.DegreesGet(), 1e-9)
	assert.InDelta(t, -60.0, d.AttitudeGet().Yaw, 1e-9)
}
