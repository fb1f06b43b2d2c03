package models

import (
	"fmt"
	"time"
)

// Frame is one encoded camera image. Data is owned by the producer and must
// not be mutated by consumers.
type Frame struct {
	Seq       uint64
	Data      []byte
	Timestamp time.Time
}

type CommandKind int

const (
	CommandStop CommandKind = iota
	CommandForward
	CommandBackward
	CommandTurnLeft
	CommandTurnRight
	CommandSpinLeft
	CommandSpinRight
	CommandSteer
	CommandEmergencyStop
)

var commandNames = map[CommandKind]string{
	CommandStop:          "stop",
	CommandForward:       "forward",
	CommandBackward:      "backward",
	CommandTurnLeft:      "left",
	CommandTurnRight:     "right",
	CommandSpinLeft:      "spin_left",
	CommandSpinRight:     "spin_right",
	CommandSteer:         "steer",
	CommandEmergencyStop: "emergency_stop",
}

func (k CommandKind) String() string {
	name, ok := commandNames[k]
	if !ok {
		return fmt.Sprintf("unknown(%d)", int(k))
	}
	return name
}

// ParseCommandKind maps a wire command name to its kind.
func ParseCommandKind(name string) (CommandKind, bool) {
	for kind, kindName := range commandNames {
		if kindName == name {
			return kind, true
		}
	}
	return CommandStop, false
}

// MotionCommand is a single movement request. Speed and Direction are in
// [-1,1]. Duration > 0 schedules an automatic stop after that long.
type MotionCommand struct {
	Kind      CommandKind
	Speed     float64
	Direction float64
	Duration  time.Duration
}

type MotionState string

const (
	StateStopped          MotionState = "stopped"
	StateMovingForward    MotionState = "moving_forward"
	StateMovingBackward   MotionState = "moving_backward"
	StateTurningLeft      MotionState = "turning_left"
	StateTurningRight     MotionState = "turning_right"
	StateSpinningLeft     MotionState = "spinning_left"
	StateSpinningRight    MotionState = "spinning_right"
	StateSteering         MotionState = "steering"
	StateEmergencyStopped MotionState = "emergency_stopped"
)

// DriveState is the controller's observable state after a command was applied.
type DriveState struct {
	Motion          MotionState `json:"motion"`
	Speed           float64     `json:"speed"`
	LeftThrottle    float64     `json:"left_throttle"`
	RightThrottle   float64     `json:"right_throttle"`
	ActuatorPresent bool        `json:"actuator_present"`
	LastCommandTime time.Time   `json:"last_command_time"`
}

// StatusSnapshot is the pollable health view of the whole pipeline.
type StatusSnapshot struct {
	Motion            MotionState `json:"motion"`
	IsActuatorPresent bool        `json:"is_actuator_present"`
	CachedFrameCount  int         `json:"cached_frame_count"`
	QueuedCommands    int         `json:"queued_commands"`
	CaptureRunning    bool        `json:"capture_running"`
	FramesCaptured    uint64      `json:"frames_captured"`
	FramesDropped     uint64      `json:"frames_dropped"`
	JoystickPresent   bool        `json:"joystick_present"`
	JoystickEvents    uint64      `json:"joystick_events"`
	JoystickErrors    uint64      `json:"joystick_errors"`
	RxBytes           uint64      `json:"rx_bytes"`
	TxBytes           uint64      `json:"tx_bytes"`
	LoadAverage       float64     `json:"load_average"`
	TimeStamp         int64       `json:"time_stamp"`
}
