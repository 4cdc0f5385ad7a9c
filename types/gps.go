package types

// ---- GPS accessor results ----
// On failure every field is ErrFloat; see the *Err constructors.

type GPSPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type GPSOrientation struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}

type GPSStatus struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}

// Vec3 is the raw gyro/accel triple shared by GPS and IMU.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type GPSGyro = Vec3
type GPSAccel = Vec3

func GPSPositionErr() GPSPosition { return GPSPosition{X: ErrFloat, Y: ErrFloat} }

func GPSOrientationErr() GPSOrientation {
	return GPSOrientation{Pitch: ErrFloat, Roll: ErrFloat, Yaw: ErrFloat}
}

func GPSStatusErr() GPSStatus {
	return GPSStatus{X: ErrFloat, Y: ErrFloat, Pitch: ErrFloat, Roll: ErrFloat, Yaw: ErrFloat}
}

func Vec3Err() Vec3 { return Vec3{X: ErrFloat, Y: ErrFloat, Z: ErrFloat} }
