package types

// MaxPorts is the number of smart ports on a V5 brain.
const MaxPorts = 21

// PortState is published retained on port/<n>/state whenever a slot changes.
// Port is 1-indexed.
type PortState struct {
	Port       int        `json:"port"`
	Type       DeviceType `json:"type"`
	Generation uint64     `json:"generation"`
	Claimed    bool       `json:"claimed"`
	TSms       int64      `json:"ts_ms"`
}

// Installed reports whether a device occupies the port.
func (p PortState) Installed() bool { return p.Type != DeviceNone }
