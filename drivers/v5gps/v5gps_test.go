package v5gps

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nmea wraps a sentence body with '$' and its checksum.
func nmea(body string) string {
	var cs byte
	for i := 0; i < len(body); i++ {
		cs ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X", body, cs)
}

func TestSeededPose(t *testing.T) {
	d := New(Config{X: 1.5, Y: -0.5, Heading: 370, OffsetX: 0.5})
	a := d.AttitudeGet()
	assert.Equal(t, 1.0, a.PositionX)
	assert.Equal(t, -0.5, a.PositionY)
	assert.Equal(t, 370.0, d.HeadingGet())
	assert.InDelta(t, 10.0, d.DegreesGet(), 1e-9)
	assert.Equal(t, uint32(20), d.DataRate())

	x, y := d.OriginGet()
	assert.Equal(t, 0.5, x)
	assert.Equal(t, 0.0, y)
}

func TestOriginShiftsReportedPosition(t *testing.T) {
	d := New(Config{})
	d.SetAttitude(2, 3, 1, 2, 3)
	d.OriginSet(1, 1)
	a := d.AttitudeGet()
	assert.Equal(t, 1.0, a.PositionX)
	assert.Equal(t, 2.0, a.PositionY)
	assert.Equal(t, 3.0, a.Yaw)
}

func TestFeedMovesFromReferenceFix(t *testing.T) {
	d := New(Config{})

	require.NoError(t, d.Feed(nmea("GPGGA,123519,4807.0380,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,")))
	a := d.AttitudeGet()
	assert.Equal(t, 0.0, a.PositionX)
	assert.Equal(t, 0.0, a.PositionY)

	// 0.062 arc-minutes north is roughly 115 m.
	require.NoError(t, d.Feed(nmea("GPGGA,123520,4807.1000,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,")))
	a = d.AttitudeGet()
	assert.InDelta(t, 115.0, a.PositionY, 5)
	assert.InDelta(t, 0.0, a.PositionX, 1)
	assert.InDelta(t, 0.0, d.DegreesGet(), 1)
}

func TestFeedRejectsGarbage(t *testing.T) {
	d := New(Config{})
	assert.Error(t, d.Feed(""))
	assert.Error(t, d.Feed("$GP"))
}

func TestFeedRejectsShortCoordinates(t *testing.T) {
	d := New(Config{})
	require.NoError(t, d.Feed(nmea("GPGGA,123519,4807.0380,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,")))

	err := d.Feed(nmea("GPGGA,123520,4807.100,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"))
	assert.ErrorIs(t, err, ErrShortCoordinate)
	a := d.AttitudeGet()
	assert.Equal(t, 0.0, a.PositionX)
	assert.Equal(t, 0.0, a.PositionY)

	assert.ErrorIs(t, d.Feed(nmea("GPRMC,123519,A,4807.0380,N,1131.00,E,022.4,084.4,230394,003.1,W")), ErrShortCoordinate)
}

func TestFeedWithoutFix(t *testing.T) {
	d := New(Config{})
	assert.ErrorIs(t, d.Feed(nmea("GPGGA,123519,,,,,0,00,,,M,,M,,")), ErrNoFix)
}

func TestSetPositionReanchorsFeed(t *testing.T) {
	d := New(Config{})
	require.NoError(t, d.Feed(nmea("GPGGA,123519,4807.0380,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,")))
	require.NoError(t, d.Feed(nmea("GPGGA,123520,4807.1000,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,")))
	require.Greater(t, d.AttitudeGet().PositionY, 100.0)

	d.InitialPositionSet(10, 20, 45)

	// Same fix again: it becomes the new reference and the pose holds.
	require.NoError(t, d.Feed(nmea("GPGGA,123521,4807.1000,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,")))
	a := d.AttitudeGet()
	assert.Equal(t, 10.0, a.PositionX)
	assert.Equal(t, 20.0, a.PositionY)
	assert.Equal(t, 45.0, d.HeadingGet())
}
