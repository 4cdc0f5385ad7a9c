package vdml

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"

	"smartport-go/drivers/v5gps"
	"smartport-go/drivers/v5imu"
	"smartport-go/errcode"
	"smartport-go/services/vdml/devices/imu"
	"smartport-go/types"
	"smartport-go/x/timex"
)

// BuildInput is handed to a builder when a device is plugged.
type BuildInput struct {
	Port   int // 0-indexed
	Type   types.DeviceType
	Params map[string]any
	Clock  timex.Clock
}

// Builder constructs the handle stored in the registry for one device type.
type Builder interface {
	Build(in BuildInput) (any, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(in BuildInput) (any, error)

func (f BuilderFunc) Build(in BuildInput) (any, error) { return f(in) }

var (
	muBuilders sync.RWMutex
	builders   = map[types.DeviceType]Builder{}
)

// RegisterBuilder installs the builder for a device type.
// It panics on duplicate registration to catch mistakes at start-up.
func RegisterBuilder(t types.DeviceType, b Builder) {
	muBuilders.Lock()
	defer muBuilders.Unlock()
	if t == types.DeviceNone || !t.Known() {
		panic(fmt.Sprintf("vdml: cannot register builder for device type %d", uint8(t)))
	}
	if _, exists := builders[t]; exists {
		panic(fmt.Sprintf("vdml: builder already registered for type %q", t))
	}
	builders[t] = b
}

func findBuilder(t types.DeviceType) (Builder, bool) {
	muBuilders.RLock()
	defer muBuilders.RUnlock()
	b, ok := builders[t]
	return b, ok
}

// DecodeParams decodes a config params map into out. Unknown keys are an
// error so typos in a profile surface at plug time.
func DecodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return errcode.Wrap(errcode.InvalidParams, "decode params", -1, err)
	}
	return nil
}

func init() {
	RegisterBuilder(types.DeviceGPS, BuilderFunc(func(in BuildInput) (any, error) {
		var p gpsParams
		if err := DecodeParams(in.Params, &p); err != nil {
			return nil, err
		}
		dev := v5gps.New(p.Config)
		if p.NMEAFile != "" {
			if err := replayNMEA(dev, p.NMEAFile); err != nil {
				return nil, errcode.Wrap(errcode.InvalidParams, "nmea replay", in.Port, err)
			}
		}
		return dev, nil
	}))
	RegisterBuilder(types.DeviceIMU, BuilderFunc(func(in BuildInput) (any, error) {
		var cfg v5imu.Config
		if err := DecodeParams(in.Params, &cfg); err != nil {
			return nil, err
		}
		return imu.NewHandle(v5imu.New(cfg, in.Clock)), nil
	}))
}

type gpsParams struct {
	v5gps.Config `mapstructure:",squash"`
	NMEAFile     string `mapstructure:"nmea_file"`
}

// replayNMEA feeds a recorded NMEA log into dev. Lines without a fix are
// skipped; anything else the device rejects stops the replay.
func replayNMEA(dev *v5gps.Device, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := dev.Feed(line); err != nil && !errors.Is(err, v5gps.ErrNoFix) {
			return fmt.Errorf("%s:%d: %w", path, n, err)
		}
	}
	return sc.Err()
}
