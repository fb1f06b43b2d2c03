package drive

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hadron-robotics/hadron_rover/internal/config"
	"github.com/hadron-robotics/hadron_rover/internal/models"
	"github.com/stretchr/testify/require"
)

type recordingActuator struct {
	lock  sync.Mutex
	calls [][2]float64
	err   error
}

func (a *recordingActuator) Init() error { return nil }

func (a *recordingActuator) SetThrottle(left, right float64) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.err != nil {
		return a.err
	}
	a.calls = append(a.calls, [2]float64{left, right})
	return nil
}

func (a *recordingActuator) Stop() error { return a.SetThrottle(0, 0) }

func (a *recordingActuator) last() [2]float64 {
	a.lock.Lock()
	defer a.lock.Unlock()
	if len(a.calls) == 0 {
		return [2]float64{}
	}
	return a.calls[len(a.calls)-1]
}

func testMotorConfig() config.MotorConfig {
	return config.MotorConfig{
		MaxSpeed:  1.0,
		TurnSpeed: 0.8,
	}
}

func newTestController(actuator *recordingActuator) *Controller {
	return NewController(testMotorConfig(), actuator, true, NewThrottle(0))
}

func TestExecuteForward(t *testing.T) {
	actuator := &recordingActuator{}
	controller := newTestController(actuator)

	err := controller.Execute(context.Background(), models.MotionCommand{
		Kind:  models.CommandForward,
		Speed: 0.5,
	})
	require.NoError(t, err)
	require.Equal(t, [2]float64{0.5, 0.5}, actuator.last())
	require.Equal(t, models.StateMovingForward, controller.State().Motion)
}

func TestExecuteTurnZeroesOneSide(t *testing.T) {
	actuator := &recordingActuator{}
	controller := newTestController(actuator)

	err := controller.Execute(context.Background(), models.MotionCommand{
		Kind:  models.CommandTurnLeft,
		Speed: 0.6,
	})
	require.NoError(t, err)
	require.Equal(t, [2]float64{0, 0.6}, actuator.last())
	require.Equal(t, models.StateTurningLeft, controller.State().Motion)
}

func TestExecuteSpinCounterRotates(t *testing.T) {
	actuator := &recordingActuator{}
	controller := newTestController(actuator)

	err := controller.Execute(context.Background(), models.MotionCommand{
		Kind:  models.CommandSpinRight,
		Speed: 0.7,
	})
	require.NoError(t, err)
	require.Equal(t, [2]float64{0.7, -0.7}, actuator.last())
}

func TestExecuteSteerEndToEnd(t *testing.T) {
	actuator := &recordingActuator{}
	controller := newTestController(actuator)

	err := controller.Execute(context.Background(), models.MotionCommand{
		Kind:      models.CommandSteer,
		Speed:     0.8,
		Direction: 0.8,
	})
	require.NoError(t, err)

	last := actuator.last()
	require.InDelta(t, 1.0, last[0], 1e-9)
	require.InDelta(t, 0.4/1.2, last[1], 1e-9)
	require.Equal(t, models.StateSteering, controller.State().Motion)
}

func TestExecuteDefaultSpeeds(t *testing.T) {
	actuator := &recordingActuator{}
	controller := newTestController(actuator)

	err := controller.Execute(context.Background(), models.MotionCommand{Kind: models.CommandForward})
	require.NoError(t, err)
	require.Equal(t, [2]float64{1.0, 1.0}, actuator.last())

	err = controller.Execute(context.Background(), models.MotionCommand{Kind: models.CommandTurnRight})
	require.NoError(t, err)
	require.Equal(t, [2]float64{0.8, 0}, actuator.last())
}

func TestExecuteRejectsOutOfRange(t *testing.T) {
	actuator := &recordingActuator{}
	controller := newTestController(actuator)

	err := controller.Execute(context.Background(), models.MotionCommand{
		Kind:  models.CommandForward,
		Speed: 1.5,
	})
	require.ErrorIs(t, err, ErrValidation)
	require.Empty(t, actuator.calls)
	require.Equal(t, models.StateStopped, controller.State().Motion)
}

func TestTrimAndInversionApplied(t *testing.T) {
	actuator := &recordingActuator{}
	cfg := testMotorConfig()
	cfg.LeftTrim = 0.1
	cfg.RightInverted = true
	controller := NewController(cfg, actuator, true, NewThrottle(0))

	err := controller.Execute(context.Background(), models.MotionCommand{
		Kind:  models.CommandForward,
		Speed: 0.5,
	})
	require.NoError(t, err)
	require.InDelta(t, 0.6, actuator.last()[0], 1e-9)
	require.InDelta(t, -0.5, actuator.last()[1], 1e-9)

	// Reported state is pre-inversion; inversion is a wiring detail.
	require.InDelta(t, -0.5, actuator.last()[1], 1e-9)
	require.InDelta(t, 0.5, controller.State().RightThrottle, 1e-9)
}

func TestEmergencyStopDuringForward(t *testing.T) {
	actuator := &recordingActuator{}
	controller := newTestController(actuator)

	err := controller.Execute(context.Background(), models.MotionCommand{
		Kind:  models.CommandForward,
		Speed: 0.9,
	})
	require.NoError(t, err)

	err = controller.EmergencyStop()
	require.NoError(t, err)
	require.Equal(t, [2]float64{0, 0}, actuator.last())
	require.Equal(t, models.StateEmergencyStopped, controller.State().Motion)
}

func TestEmergencyStopSucceedsOnActuatorError(t *testing.T) {
	actuator := &recordingActuator{err: context.DeadlineExceeded}
	controller := newTestController(actuator)

	err := controller.EmergencyStop()
	require.NoError(t, err)
	require.Equal(t, models.StateEmergencyStopped, controller.State().Motion)
}

func TestAutoStopAfterDuration(t *testing.T) {
	actuator := &recordingActuator{}
	controller := newTestController(actuator)

	start := time.Now()
	err := controller.Execute(context.Background(), models.MotionCommand{
		Kind:     models.CommandForward,
		Speed:    0.5,
		Duration: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	// Execute must not block for the duration.
	require.Less(t, time.Since(start), 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return controller.State().Motion == models.StateStopped
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, [2]float64{0, 0}, actuator.last())
}

func TestDummyModeSkipsHardware(t *testing.T) {
	actuator := &recordingActuator{}
	controller := NewController(testMotorConfig(), actuator, false, NewThrottle(0))

	err := controller.Execute(context.Background(), models.MotionCommand{
		Kind:  models.CommandForward,
		Speed: 0.5,
	})
	require.NoError(t, err)
	require.Empty(t, actuator.calls)
	require.Equal(t, models.StateMovingForward, controller.State().Motion)
	require.False(t, controller.State().ActuatorPresent)
	require.False(t, controller.IsActuatorPresent())
}

func TestObserverNotifiedOnEveryCommand(t *testing.T) {
	actuator := &recordingActuator{}
	controller := newTestController(actuator)

	var seen []models.MotionState
	controller.Subscribe(func(state models.DriveState) {
		seen = append(seen, state.Motion)
	})

	require.NoError(t, controller.Execute(context.Background(), models.MotionCommand{Kind: models.CommandForward, Speed: 0.3}))
	require.NoError(t, controller.Execute(context.Background(), models.MotionCommand{Kind: models.CommandStop}))

	require.Equal(t, []models.MotionState{models.StateMovingForward, models.StateStopped}, seen)
}
