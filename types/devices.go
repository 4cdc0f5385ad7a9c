package types

import "strings"

// DeviceType tags what is plugged into a smart port.
// Values match the controller's device enumeration.
type DeviceType uint8

const (
	DeviceNone      DeviceType = 0
	DeviceMotor     DeviceType = 2
	DeviceRotation  DeviceType = 4
	DeviceIMU       DeviceType = 6
	DeviceDistance  DeviceType = 7
	DeviceRadio     DeviceType = 8
	DeviceVision    DeviceType = 11
	DeviceADI       DeviceType = 12
	DeviceOptical   DeviceType = 16
	DeviceGPS       DeviceType = 20
	DeviceAIVision  DeviceType = 29
	DeviceSerial    DeviceType = 129
	DeviceUndefined DeviceType = 255
)

var deviceNames = map[DeviceType]string{
	DeviceNone:      "none",
	DeviceMotor:     "motor",
	DeviceRotation:  "rotation",
	DeviceIMU:       "imu",
	DeviceDistance:  "distance",
	DeviceRadio:     "radio",
	DeviceVision:    "vision",
	DeviceADI:       "adi",
	DeviceOptical:   "optical",
	DeviceGPS:       "gps",
	DeviceAIVision:  "aivision",
	DeviceSerial:    "serial",
	DeviceUndefined: "undefined",
}

func (d DeviceType) String() string {
	if s, ok := deviceNames[d]; ok {
		return s
	}
	return "undefined"
}

// Known reports whether d is a member of the closed enumeration.
func (d DeviceType) Known() bool {
	_, ok := deviceNames[d]
	return ok
}

// ParseDeviceType maps a config/CLI name back to its tag.
func ParseDeviceType(s string) (DeviceType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range deviceNames {
		if name == s {
			return t, true
		}
	}
	return DeviceUndefined, false
}

// MarshalText renders the tag by name in YAML/JSON.
func (d DeviceType) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText accepts the names produced by MarshalText.
func (d *DeviceType) UnmarshalText(b []byte) error {
	t, ok := ParseDeviceType(string(b))
	if !ok {
		return &UnknownDeviceTypeError{Name: string(b)}
	}
	*d = t
	return nil
}

type UnknownDeviceTypeError struct{ Name string }

func (e *UnknownDeviceTypeError) Error() string { return "unknown device type: " + e.Name }
