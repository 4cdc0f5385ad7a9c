package gps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartport-go/drivers/v5gps"
	"smartport-go/errcode"
	"smartport-go/services/vdml/claim"
	"smartport-go/services/vdml/internal/registry"
	"smartport-go/types"
)

func setup(t *testing.T) (*Client, *claim.Guard, *registry.Registry, *v5gps.Device) {
	t.Helper()
	reg := registry.New(types.MaxPorts, nil)
	g := claim.New(reg)
	dev := v5gps.New(v5gps.Config{})
	require.NoError(t, reg.Register(claim.Port(3), types.DeviceGPS, dev))
	return New(g), g, reg, dev
}

func TestInitializeAndRead(t *testing.T) {
	ctx := context.Background()
	c, g, _, dev := setup(t)

	rc, err := c.InitializeFull(ctx, 3, 1.0, 2.0, 90, 0.25, 0.5)
	require.NoError(t, err)
	assert.Equal(t, types.Success, rc)
	assert.False(t, g.Claimed(2), "claim released after the call")

	off, err := c.GetOffset(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, types.GPSPosition{X: 0.25, Y: 0.5}, off)

	pos, err := c.GetPosition(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, types.GPSPosition{X: 0.75, Y: 1.5}, pos)

	h, err := c.GetHeading(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 90.0, h)

	dev.SetAttitude(3, 4, 1, 2, 450)
	dev.SetRaw(v5gps.Raw{X: 1, Y: 2, Z: 3}, v5gps.Raw{X: 4, Y: 5, Z: 6})
	st, err := c.GetPositionAndOrientation(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, types.GPSStatus{X: 2.75, Y: 3.5, Pitch: 1, Roll: 2, Yaw: 450}, st)

	o, err := c.GetOrientation(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 450.0, o.Yaw)

	gyro, err := c.GetGyroRate(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, types.Vec3{X: 1, Y: 2, Z: 3}, gyro)
	z, _ := c.GetAccelZ(ctx, 3)
	assert.Equal(t, 6.0, z)
	y, _ := c.GetGyroRateY(ctx, 3)
	assert.Equal(t, 2.0, y)
}

func TestSetDataRate(t *testing.T) {
	ctx := context.Background()
	c, _, _, dev := setup(t)
	for in, want := range map[uint32]uint32{0: 5, 3: 5, 12: 10, 20: 20, 47: 45} {
		_, err := c.SetDataRate(ctx, 3, in)
		require.NoError(t, err)
		assert.Equal(t, want, dev.DataRate(), "rate %d", in)
	}
}

func TestFailuresReturnSentinels(t *testing.T) {
	ctx := context.Background()
	c, g, reg, _ := setup(t)

	// empty port
	v, err := c.GetHeading(ctx, 4)
	assert.ErrorIs(t, err, errcode.NoDeviceInstalled)
	assert.True(t, types.IsErrFloat(v))

	// invalid port
	rc, err := c.SetOffset(ctx, 0, 1, 1)
	assert.ErrorIs(t, err, errcode.InvalidPort)
	assert.Equal(t, types.ErrInt, rc)

	// wrong device type
	require.NoError(t, reg.Register(claim.Port(5), types.DeviceIMU, "imu"))
	st, err := c.GetPositionAndOrientation(ctx, 5)
	assert.ErrorIs(t, err, errcode.PortTypeMismatch)
	assert.Equal(t, types.GPSStatusErr(), st)

	// busy
	tok, err := g.TryClaim(ctx, claim.Port(3), types.DeviceGPS)
	require.NoError(t, err)
	acc, err := c.GetAccel(ctx, 3)
	assert.ErrorIs(t, err, errcode.PortBusy)
	assert.Equal(t, types.Vec3Err(), acc)
	tok.Release()

	_, err = c.GetAccel(ctx, 3)
	assert.NoError(t, err)
}

func TestNonVendorHandle(t *testing.T) {
	reg := registry.New(types.MaxPorts, nil)
	require.NoError(t, reg.Register(0, types.DeviceGPS, "not a device"))
	c := New(claim.New(reg))

	v, err := c.GetError(context.Background(), 1)
	assert.ErrorIs(t, err, errcode.Unsupported)
	assert.True(t, types.IsErrFloat(v))
}

func TestFeed(t *testing.T) {
	ctx := context.Background()
	c, g, _, _ := setup(t)

	rc, err := c.Feed(ctx, 3, "$GPGGA,123519,4807.0380,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47")
	require.NoError(t, err)
	assert.Equal(t, types.Success, rc)

	rc, err = c.Feed(ctx, 3, "$GPGGA,123520,4807.100,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*70")
	assert.ErrorIs(t, err, errcode.InvalidParams)
	assert.Equal(t, types.ErrInt, rc)
	assert.False(t, g.Claimed(2))

	_, err = c.Feed(ctx, 1, "$GPGGA")
	assert.ErrorIs(t, err, errcode.NoDeviceInstalled)
}
