package config

import "time"

const (
	AppEnvBase = "HADRON_"

	DefaultListen       = "0.0.0.0:8082"
	DefaultNetInterface = "wlan0"

	// Default motor options. Channels are PCA9685 outputs, pins are BCM
	// GPIO numbers wired to the H-bridge direction inputs.
	DefaultI2CDevice       = "/dev/i2c-1"
	DefaultAddress         = 0x40
	DefaultLeftPWMChannel  = 0
	DefaultRightPWMChannel = 1
	DefaultLeftForwardPin  = 17
	DefaultLeftReversePin  = 27
	DefaultRightForwardPin = 23
	DefaultRightReversePin = 24
	DefaultLeftTrim        = 0.0
	DefaultRightTrim       = 0.0
	DefaultLeftInverted    = true
	DefaultRightInverted   = false
	DefaultMaxSpeed        = 1.0
	DefaultTurnSpeed       = 0.8

	// Default camera options
	DefaultCamEnabled        = true
	DefaultCamCodec          = "mjpeg"
	DefaultCamWidth          = "640"
	DefaultCamHeight         = "480"
	DefaultCamFPS            = "30"
	DefaultCamQuality        = 85
	DefaultCamVerticalFlip   = false
	DefaultCamHorizontalFlip = false

	// Default joystick options
	DefaultJoystickDevice     = "/dev/input/js0"
	DefaultJoystickDeadzone   = 0.1
	DefaultJoystickAxisX      = 0
	DefaultJoystickAxisY      = 1
	DefaultJoystickStopButton = 0

	// Default control pipeline options
	DefaultMinCommandInterval = 50 * time.Millisecond
	DefaultBatchSize          = 3
	DefaultBatchTimeout       = 100 * time.Millisecond

	// Default frame pipeline options
	DefaultMaxCachedFrames   = 5
	DefaultFrameCacheTTL     = 2 * time.Second
	DefaultFrameAwaitTimeout = time.Second
)

type Config struct {
	ServerCfg   ServerConfig
	MotorCfg    MotorConfig
	CameraCfg   CameraConfig
	JoystickCfg JoystickConfig
	ControlCfg  ControlConfig
	StreamCfg   StreamConfig
}

type ServerConfig struct {
	Listen       string
	NetInterface string
}

type MotorConfig struct {
	I2CDevice       string
	Address         byte
	LeftPWMChannel  int
	RightPWMChannel int
	LeftForwardPin  int
	LeftReversePin  int
	RightForwardPin int
	RightReversePin int
	LeftTrim        float64
	RightTrim       float64
	LeftInverted    bool
	RightInverted   bool
	MaxSpeed        float64
	TurnSpeed       float64
}

type CameraConfig struct {
	Enabled        bool
	Codec          string
	Width          string
	Height         string
	Fps            string
	Quality        int
	VerticalFlip   bool
	HorizontalFlip bool
}

type JoystickConfig struct {
	Device     string
	Deadzone   float64
	AxisX      int
	AxisY      int
	StopButton int
}

type ControlConfig struct {
	MinCommandInterval time.Duration
	BatchSize          int
	BatchTimeout       time.Duration
}

type StreamConfig struct {
	MaxCachedFrames int
	FrameCacheTTL   time.Duration
	AwaitTimeout    time.Duration
}
