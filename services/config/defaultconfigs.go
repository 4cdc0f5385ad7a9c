package config

// Embedded profiles, keyed by name. "v5" is a bare controller; "field"
// plugs a GPS and an IMU for local experiments.

const cfgV5 = `
controller:
  name: v5
  max_ports: 21
heartbeat:
  interval: 2s
log:
  level: info
  format: text
`

const cfgField = `
controller:
  name: field
ports:
  - port: 3
    type: gps
    params:
      offset_x: 0.1
      error_m: 0.02
  - port: 8
    type: imu
    params:
      orientation: 0
      calibrate_for: 2s
status:
  enable: true
  addr: 127.0.0.1:8021
heartbeat:
  interval: 5s
usd:
  root: ./usd
`

var embeddedConfigs = map[string][]byte{
	"v5":    []byte(cfgV5),
	"field": []byte(cfgField),
}
