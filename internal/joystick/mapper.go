package joystick

import (
	"math"

	"github.com/hadron-robotics/hadron_rover/internal/config"
	"github.com/hadron-robotics/hadron_rover/internal/models"
)

// Mapper turns normalized joystick events into motion commands. The
// dominant axis wins: mostly-vertical deflection drives forward/backward,
// mostly-horizontal turns. The vertical axis is inverted (stick up is a
// negative raw value but means forward).
type Mapper struct {
	cfg       config.JoystickConfig
	turnSpeed float64

	x float64
	y float64
}

func NewMapper(cfg config.JoystickConfig, turnSpeed float64) *Mapper {
	return &Mapper{
		cfg:       cfg,
		turnSpeed: turnSpeed,
	}
}

// HandleAxis folds an axis event into the stick state and returns the
// resulting command. ok is false for axes the drive does not use.
func (m *Mapper) HandleAxis(event Event) (models.MotionCommand, bool) {
	switch int(event.Number) {
	case m.cfg.AxisX:
		m.x = event.Normalized
	case m.cfg.AxisY:
		m.y = event.Normalized
	default:
		return models.MotionCommand{}, false
	}
	return m.command(), true
}

// HandleButton maps the configured stop button to an emergency stop on
// press. Releases and other buttons are ignored.
func (m *Mapper) HandleButton(event Event) (models.MotionCommand, bool) {
	if int(event.Number) != m.cfg.StopButton || event.Value == 0 {
		return models.MotionCommand{}, false
	}
	m.x = 0
	m.y = 0
	return models.MotionCommand{Kind: models.CommandEmergencyStop}, true
}

func (m *Mapper) command() models.MotionCommand {
	absX := math.Abs(m.x)
	absY := math.Abs(m.y)

	if absX < m.cfg.Deadzone && absY < m.cfg.Deadzone {
		return models.MotionCommand{Kind: models.CommandStop}
	}

	if absY > absX {
		if m.y < 0 {
			return models.MotionCommand{Kind: models.CommandForward, Speed: absY}
		}
		return models.MotionCommand{Kind: models.CommandBackward, Speed: absY}
	}

	if m.x > 0 {
		return models.MotionCommand{Kind: models.CommandTurnRight, Speed: absX * m.turnSpeed}
	}
	return models.MotionCommand{Kind: models.CommandTurnLeft, Speed: absX * m.turnSpeed}
}
