package motor

// Side selects one of the two drive motors.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

// Actuator is the motor driver boundary. Throttle values are in [-1,1];
// negative reverses the motor. Stop must zero both sides and is the final
// safety call on shutdown.
type Actuator interface {
	Init() error
	SetThrottle(left, right float64) error
	Stop() error
}
