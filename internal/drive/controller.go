package drive

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/hadron-robotics/hadron_rover/internal/config"
	"github.com/hadron-robotics/hadron_rover/internal/models"
	"github.com/hadron-robotics/hadron_rover/internal/motor"
)

var ErrValidation = errors.New("command magnitude out of range")

type StateObserver func(models.DriveState)

// Controller owns the actuator and the motion state machine. Exactly one
// command is applied at a time; every path to the motors goes through
// Execute or EmergencyStop. When the motor hardware failed to initialize the
// controller keeps running in dummy mode: state transitions and observer
// notifications still happen, no hardware call is made.
type Controller struct {
	cfg      config.MotorConfig
	actuator motor.Actuator
	present  bool
	throttle *Throttle

	lock      sync.Mutex
	state     models.DriveState
	observers []StateObserver
	stopTimer *time.Timer
}

func NewController(cfg config.MotorConfig, actuator motor.Actuator, present bool, throttle *Throttle) *Controller {
	return &Controller{
		cfg:      cfg,
		actuator: actuator,
		present:  present,
		throttle: throttle,
		state: models.DriveState{
			Motion:          models.StateStopped,
			ActuatorPresent: present,
		},
	}
}

// Subscribe registers an observer called after every applied command.
func (c *Controller) Subscribe(observer StateObserver) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.observers = append(c.observers, observer)
}

// Execute validates, rate-limits and applies one motion command.
func (c *Controller) Execute(ctx context.Context, cmd models.MotionCommand) error {
	if cmd.Kind == models.CommandEmergencyStop {
		return c.EmergencyStop()
	}

	err := c.validate(cmd)
	if err != nil {
		return err
	}

	err = c.throttle.Wait(ctx)
	if err != nil {
		return fmt.Errorf("command %s interrupted while throttled: %w", cmd.Kind, err)
	}

	c.lock.Lock()
	left, right, speed, motion := c.mapCommand(cmd)
	left = Clamp(left + c.cfg.LeftTrim)
	right = Clamp(right + c.cfg.RightTrim)
	applyLeft, applyRight := left, right
	if c.cfg.LeftInverted {
		applyLeft = -applyLeft
	}
	if c.cfg.RightInverted {
		applyRight = -applyRight
	}

	if c.present {
		err = c.actuator.SetThrottle(applyLeft, applyRight)
		if err != nil {
			c.lock.Unlock()
			return fmt.Errorf("failed applying %s to motors: %w", cmd.Kind, err)
		}
	}

	if c.stopTimer != nil {
		c.stopTimer.Stop()
		c.stopTimer = nil
	}
	if cmd.Duration > 0 {
		c.stopTimer = time.AfterFunc(cmd.Duration, c.autoStop)
	}

	c.state.Motion = motion
	c.state.Speed = speed
	c.state.LeftThrottle = left
	c.state.RightThrottle = right
	c.state.LastCommandTime = time.Now()
	c.notifyLocked()
	c.lock.Unlock()
	return nil
}

// EmergencyStop zeroes the motors unconditionally. It skips validation and
// throttling, and still reports success if the hardware call fails; zeroing
// is best effort and must never be blocked by other errors.
func (c *Controller) EmergencyStop() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.stopTimer != nil {
		c.stopTimer.Stop()
		c.stopTimer = nil
	}

	if c.present {
		err := c.actuator.SetThrottle(0, 0)
		if err != nil {
			log.Printf("error: emergency stop actuator call failed: %s\n", err.Error())
		}
	}

	c.state.Motion = models.StateEmergencyStopped
	c.state.Speed = 0
	c.state.LeftThrottle = 0
	c.state.RightThrottle = 0
	c.state.LastCommandTime = time.Now()
	c.notifyLocked()
	return nil
}

// State returns a copy of the current drive state.
func (c *Controller) State() models.DriveState {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

func (c *Controller) IsActuatorPresent() bool {
	return c.present
}

func (c *Controller) validate(cmd models.MotionCommand) error {
	if math.Abs(cmd.Speed) > 1.0 {
		return fmt.Errorf("%w: speed %.3f", ErrValidation, cmd.Speed)
	}
	if math.Abs(cmd.Direction) > 1.0 {
		return fmt.Errorf("%w: direction %.3f", ErrValidation, cmd.Direction)
	}
	if cmd.Duration < 0 {
		return fmt.Errorf("%w: duration %s", ErrValidation, cmd.Duration)
	}
	return nil
}

// mapCommand turns a command kind into a raw throttle pair. Straight
// commands drive both sides equally, turns zero one side, spins counter-
// rotate, steer goes through the differential mix.
func (c *Controller) mapCommand(cmd models.MotionCommand) (left, right, speed float64, motion models.MotionState) {
	speed = cmd.Speed
	if speed == 0 && cmd.Kind != models.CommandStop && cmd.Kind != models.CommandSteer {
		speed = c.defaultSpeed(cmd.Kind)
	}

	switch cmd.Kind {
	case models.CommandForward:
		return speed, speed, speed, models.StateMovingForward
	case models.CommandBackward:
		return -speed, -speed, speed, models.StateMovingBackward
	case models.CommandTurnLeft:
		return 0, speed, speed, models.StateTurningLeft
	case models.CommandTurnRight:
		return speed, 0, speed, models.StateTurningRight
	case models.CommandSpinLeft:
		return -speed, speed, speed, models.StateSpinningLeft
	case models.CommandSpinRight:
		return speed, -speed, speed, models.StateSpinningRight
	case models.CommandSteer:
		left, right = Mix(cmd.Speed, cmd.Direction)
		return left, right, cmd.Speed, models.StateSteering
	default:
		return 0, 0, 0, models.StateStopped
	}
}

func (c *Controller) defaultSpeed(kind models.CommandKind) float64 {
	switch kind {
	case models.CommandTurnLeft, models.CommandTurnRight,
		models.CommandSpinLeft, models.CommandSpinRight:
		return c.cfg.TurnSpeed
	default:
		return c.cfg.MaxSpeed
	}
}

func (c *Controller) autoStop() {
	err := c.Execute(context.Background(), models.MotionCommand{Kind: models.CommandStop})
	if err != nil {
		log.Printf("error: scheduled stop failed: %s\n", err.Error())
	}
}

// notifyLocked snapshots state and observers under the lock and invokes the
// callbacks; observers must not call back into the controller synchronously.
func (c *Controller) notifyLocked() {
	state := c.state
	for _, observer := range c.observers {
		observer(state)
	}
}
