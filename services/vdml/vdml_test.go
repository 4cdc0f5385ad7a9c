package vdml

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartport-go/bus"
	"smartport-go/drivers/v5gps"
	"smartport-go/errcode"
	"smartport-go/types"
	"smartport-go/x/timex"
)

func TestPlugPublishesRetainedState(t *testing.T) {
	b := bus.NewBus(8)
	clk := timex.NewFake(time.UnixMilli(5000))
	c := New(WithBus(b), WithClock(clk))
	defer c.Close()

	require.NoError(t, c.Plug(3, types.DeviceGPS, map[string]any{"x": 1.0, "error_m": "0.02"}))

	msg, ok := b.Retained(PortTopic(3))
	require.True(t, ok)
	st := msg.Payload.(types.PortState)
	assert.Equal(t, 3, st.Port)
	assert.Equal(t, types.DeviceGPS, st.Type)
	assert.Equal(t, int64(5000), st.TSms)

	v, err := c.GPS().GetError(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 0.02, v)

	require.NoError(t, c.Unplug(3))
	msg, ok = b.Retained(PortTopic(3))
	require.True(t, ok)
	assert.False(t, msg.Payload.(types.PortState).Installed())
}

func TestPlugErrors(t *testing.T) {
	c := New()
	err := c.Plug(1, types.DeviceGPS, map[string]any{"bogus": 1})
	assert.ErrorIs(t, err, errcode.InvalidParams)

	err = c.Plug(1, types.DeviceMotor, nil)
	assert.ErrorIs(t, err, errcode.Unsupported)

	err = c.Plug(0, types.DeviceGPS, nil)
	assert.ErrorIs(t, err, errcode.InvalidPort)

	require.NoError(t, c.Plug(2, types.DeviceIMU, map[string]any{"calibrate_for": "1s"}))
	err = c.Plug(2, types.DeviceGPS, nil)
	assert.ErrorIs(t, err, errcode.SlotOccupied)
}

func TestPlugHandleAcceptsAnyType(t *testing.T) {
	c := New()
	require.NoError(t, c.PlugHandle(5, types.DeviceDistance, struct{}{}))
	st, err := c.Port(5)
	require.NoError(t, err)
	assert.Equal(t, types.DeviceDistance, st.Type)

	_, err = c.Port(22)
	assert.ErrorIs(t, err, errcode.InvalidPort)
}

func TestApplyIsIdempotent(t *testing.T) {
	c := New()
	ports := []types.PortConfig{
		{Port: 1, Type: types.DeviceGPS, Params: map[string]any{"x": 2.5}},
		{Port: 4, Type: types.DeviceIMU},
	}
	require.NoError(t, c.Apply(ports))
	gen := c.Guard().Registry().Generation(0)

	// the GPS keeps its state across a second apply
	_, err := c.GPS().SetPosition(context.Background(), 1, 9, 9, 0)
	require.NoError(t, err)
	require.NoError(t, c.Apply(ports))
	assert.Equal(t, gen, c.Guard().Registry().Generation(0))
	x, _ := c.GPS().GetPositionX(context.Background(), 1)
	assert.Equal(t, 9.0, x)
}

func TestApplyJoinsErrors(t *testing.T) {
	c := New()
	err := c.Apply([]types.PortConfig{
		{Port: 1, Type: types.DeviceGPS},
		{Port: 30, Type: types.DeviceGPS},
		{Port: 2, Type: types.DeviceVision},
	})
	assert.ErrorIs(t, err, errcode.InvalidPort)
	assert.ErrorIs(t, err, errcode.Unsupported)
	assert.Equal(t, types.DeviceGPS, c.Guard().Registry().TypeOf(0))
}

func TestSnapshotShowsClaims(t *testing.T) {
	c := New(WithMaxPorts(4))
	require.NoError(t, c.Plug(2, types.DeviceGPS, nil))
	tok, err := c.Guard().TryClaim(context.Background(), 1, types.DeviceGPS)
	require.NoError(t, err)
	defer tok.Release()

	snap := c.Snapshot()
	require.Len(t, snap, 4)
	assert.True(t, snap[1].Claimed)
	assert.False(t, snap[0].Claimed)
}

func TestInstalledGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(WithRegisterer(reg))
	require.NoError(t, c.Plug(1, types.DeviceGPS, nil))
	require.NoError(t, c.Plug(2, types.DeviceIMU, nil))
	require.NoError(t, c.Unplug(1))

	n, err := testutil.GatherAndCount(reg, "smartport_ports_installed")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.InstalledGauge()))
}

func TestNewFromConfigWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := types.Config{
		Ports: []types.PortConfig{{Port: 7, Type: types.DeviceGPS}},
	}
	cfg.Claim.Redis.Enable = true
	cfg.Claim.Redis.Addr = mr.Addr()
	cfg.Claim.Redis.TTL = time.Second

	c1, err := NewFromConfig(cfg)
	require.NoError(t, err)
	defer c1.Close()
	c2, err := NewFromConfig(cfg)
	require.NoError(t, err)
	defer c2.Close()

	ctx := context.Background()
	tok, err := c1.Guard().TryClaim(ctx, 6, types.DeviceGPS)
	require.NoError(t, err)

	_, err = c2.GPS().GetHeading(ctx, 7)
	assert.ErrorIs(t, err, errcode.PortBusy)

	owner, ok, err := c2.Holder(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tok.ID(), owner.Token)
	assert.Equal(t, 7, owner.Port)
	assert.Equal(t, types.DeviceGPS, owner.Type)

	tok.Release()
	_, err = c2.GPS().GetHeading(ctx, 7)
	assert.NoError(t, err)

	_, ok, err = c2.Holder(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
	_, _, err = c2.Holder(ctx, 0)
	assert.ErrorIs(t, err, errcode.InvalidPort)
}

func TestHolderWithoutLocker(t *testing.T) {
	c := New()
	require.NoError(t, c.Plug(1, types.DeviceGPS, nil))
	tok, err := c.Guard().TryClaim(context.Background(), 0, types.DeviceGPS)
	require.NoError(t, err)
	defer tok.Release()

	_, ok, err := c.Holder(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegisterBuilderPanics(t *testing.T) {
	noop := BuilderFunc(func(BuildInput) (any, error) { return nil, nil })
	assert.Panics(t, func() { RegisterBuilder(types.DeviceGPS, noop) })
	assert.Panics(t, func() { RegisterBuilder(types.DeviceNone, noop) })
	assert.Panics(t, func() { RegisterBuilder(types.DeviceType(99), noop) })
}

func TestDecodeParams(t *testing.T) {
	var cfg v5gps.Config
	require.NoError(t, DecodeParams(map[string]any{"x": 1, "data_rate_ms": "15"}, &cfg))
	assert.Equal(t, 1.0, cfg.X)
	assert.Equal(t, uint32(15), cfg.DataRate)
	require.NoError(t, DecodeParams(nil, &cfg))
}

func TestPlugReplaysNMEAFile(t *testing.T) {
	dir := t.TempDir()
	log := filepath.Join(dir, "track.nmea")
	require.NoError(t, os.WriteFile(log, []byte(
		"$GPGGA,123519,4807.0380,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47\n"+
			"$GPGGA,123519.5,,,,,0,00,,,M,,M,,*40\n"+
			"\n"+
			"$GPGGA,123520,4807.1000,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*4F\n"), 0o644))

	c := New()
	require.NoError(t, c.Plug(4, types.DeviceGPS, map[string]any{"nmea_file": log, "x": 1.0}))
	pos, err := c.GPS().GetPosition(context.Background(), 4)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, pos.X, 1)
	assert.InDelta(t, 115.0, pos.Y, 5)

	bad := filepath.Join(dir, "short.nmea")
	require.NoError(t, os.WriteFile(bad, []byte(
		"$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47\n"), 0o644))
	err = c.Plug(5, types.DeviceGPS, map[string]any{"nmea_file": bad})
	assert.ErrorIs(t, err, errcode.InvalidParams)
	assert.ErrorIs(t, err, v5gps.ErrShortCoordinate)
	assert.Equal(t, types.DeviceNone, c.Guard().Registry().TypeOf(4))

	err = c.Plug(5, types.DeviceGPS, map[string]any{"nmea_file": filepath.Join(dir, "missing")})
	assert.ErrorIs(t, err, errcode.InvalidParams)
}
