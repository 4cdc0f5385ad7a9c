package types

// IMUStatus is the raw status bitfield of the inertial sensor.
type IMUStatus uint32

const (
	IMUStatusReady       IMUStatus = 0
	IMUStatusCalibrating IMUStatus = 0x01
	// IMUStatusError is the sentinel returned when the status cannot be read.
	IMUStatusError IMUStatus = 0xFF
)

func (s IMUStatus) Calibrating() bool { return s != IMUStatusError && s&IMUStatusCalibrating != 0 }

type Euler struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}

type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

type IMUGyro = Vec3
type IMUAccel = Vec3

func EulerErr() Euler { return Euler{Pitch: ErrFloat, Roll: ErrFloat, Yaw: ErrFloat} }

func QuaternionErr() Quaternion {
	return Quaternion{X: ErrFloat, Y: ErrFloat, Z: ErrFloat, W: ErrFloat}
}
