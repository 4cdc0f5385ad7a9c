package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSentinels(t *testing.T) {
	assert.Equal(t, int32(math.MaxInt32), ErrInt)
	assert.True(t, IsErrFloat(ErrFloat))
	assert.False(t, IsErrFloat(0))
	assert.False(t, IsErrFloat(math.Inf(-1)))
}

func TestStructSentinelsAreFullyPopulated(t *testing.T) {
	s := GPSStatusErr()
	for _, v := range []float64{s.X, s.Y, s.Pitch, s.Roll, s.Yaw} {
		assert.True(t, IsErrFloat(v))
	}
	q := QuaternionErr()
	for _, v := range []float64{q.X, q.Y, q.Z, q.W} {
		assert.True(t, IsErrFloat(v))
	}
}

func TestDeviceTypeText(t *testing.T) {
	typ, ok := ParseDeviceType(" GPS ")
	require.True(t, ok)
	assert.Equal(t, DeviceGPS, typ)
	assert.Equal(t, "imu", DeviceIMU.String())
	assert.Equal(t, "undefined", DeviceType(77).String())
	assert.False(t, DeviceType(77).Known())

	var pc PortConfig
	require.NoError(t, yaml.Unmarshal([]byte("port: 3\ntype: gps\n"), &pc))
	assert.Equal(t, DeviceGPS, pc.Type)

	err := yaml.Unmarshal([]byte("port: 3\ntype: toaster\n"), &pc)
	assert.Error(t, err)
}

func TestIMUStatus(t *testing.T) {
	assert.True(t, IMUStatusCalibrating.Calibrating())
	assert.False(t, IMUStatusReady.Calibrating())
	assert.False(t, IMUStatusError.Calibrating())
}
