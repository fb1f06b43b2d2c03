package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

func GetConfig() Config {
	cfg := Config{
		ServerCfg:   GetServerConfig(),
		MotorCfg:    GetMotorConfig(),
		CameraCfg:   GetCameraConfig(),
		JoystickCfg: GetJoystickConfig(),
		ControlCfg:  GetControlConfig(),
		StreamCfg:   GetStreamConfig(),
	}

	log.Printf("app config: \n%+v\n", cfg)
	return cfg
}

func GetServerConfig() ServerConfig {
	return ServerConfig{
		Listen:       GetStringEnv("LISTEN", DefaultListen),
		NetInterface: GetStringEnv("NETINTERFACE", DefaultNetInterface),
	}
}

func GetMotorConfig() MotorConfig {
	return MotorConfig{
		I2CDevice:       GetStringEnv("I2CDEVICE", DefaultI2CDevice),
		Address:         DefaultAddress,
		LeftPWMChannel:  GetIntEnv("LEFT_PWM", DefaultLeftPWMChannel),
		RightPWMChannel: GetIntEnv("RIGHT_PWM", DefaultRightPWMChannel),
		LeftForwardPin:  GetIntEnv("LEFT_FWD_PIN", DefaultLeftForwardPin),
		LeftReversePin:  GetIntEnv("LEFT_REV_PIN", DefaultLeftReversePin),
		RightForwardPin: GetIntEnv("RIGHT_FWD_PIN", DefaultRightForwardPin),
		RightReversePin: GetIntEnv("RIGHT_REV_PIN", DefaultRightReversePin),
		LeftTrim:        GetFloatEnv("LEFT_TRIM", DefaultLeftTrim),
		RightTrim:       GetFloatEnv("RIGHT_TRIM", DefaultRightTrim),
		LeftInverted:    GetBoolEnv("LEFT_INVERTED", DefaultLeftInverted),
		RightInverted:   GetBoolEnv("RIGHT_INVERTED", DefaultRightInverted),
		MaxSpeed:        GetFloatEnv("MAX_SPEED", DefaultMaxSpeed),
		TurnSpeed:       GetFloatEnv("TURN_SPEED", DefaultTurnSpeed),
	}
}

func GetCameraConfig() CameraConfig {
	return CameraConfig{
		Enabled:        GetBoolEnv("CAM_ENABLED", DefaultCamEnabled),
		Codec:          GetStringEnv("CAM_CODEC", DefaultCamCodec),
		Width:          GetStringEnv("CAM_WIDTH", DefaultCamWidth),
		Height:         GetStringEnv("CAM_HEIGHT", DefaultCamHeight),
		Fps:            GetStringEnv("CAM_FPS", DefaultCamFPS),
		Quality:        GetIntEnv("CAM_QUALITY", DefaultCamQuality),
		VerticalFlip:   GetBoolEnv("CAM_VFLIP", DefaultCamVerticalFlip),
		HorizontalFlip: GetBoolEnv("CAM_HFLIP", DefaultCamHorizontalFlip),
	}
}

func GetJoystickConfig() JoystickConfig {
	return JoystickConfig{
		Device:     GetStringEnv("JOYSTICK_DEVICE", DefaultJoystickDevice),
		Deadzone:   GetFloatEnv("JOYSTICK_DEADZONE", DefaultJoystickDeadzone),
		AxisX:      GetIntEnv("JOYSTICK_AXIS_X", DefaultJoystickAxisX),
		AxisY:      GetIntEnv("JOYSTICK_AXIS_Y", DefaultJoystickAxisY),
		StopButton: GetIntEnv("JOYSTICK_STOP_BUTTON", DefaultJoystickStopButton),
	}
}

func GetControlConfig() ControlConfig {
	return ControlConfig{
		MinCommandInterval: GetDurationEnv("MIN_COMMAND_INTERVAL", DefaultMinCommandInterval),
		BatchSize:          GetIntEnv("BATCH_SIZE", DefaultBatchSize),
		BatchTimeout:       GetDurationEnv("BATCH_TIMEOUT", DefaultBatchTimeout),
	}
}

func GetStreamConfig() StreamConfig {
	return StreamConfig{
		MaxCachedFrames: GetIntEnv("MAX_CACHED_FRAMES", DefaultMaxCachedFrames),
		FrameCacheTTL:   GetDurationEnv("FRAME_CACHE_TTL", DefaultFrameCacheTTL),
		AwaitTimeout:    GetDurationEnv("FRAME_AWAIT_TIMEOUT", DefaultFrameAwaitTimeout),
	}
}

func GetIntEnv(env string, defaultValue int) int {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}
	value, err := strconv.ParseInt(strings.Trim(envValue, "\r"), 10, 32)
	if err != nil {
		log.Printf("warning:%s not parsed - error: %s\n", env, err)
		return defaultValue
	}
	return int(value)
}

func GetBoolEnv(env string, defaultValue bool) bool {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}
	value, err := strconv.ParseBool(strings.Trim(envValue, "\r"))
	if err != nil {
		log.Printf("warning:%s not parsed - error: %s\n", env, err)
		return defaultValue
	}
	return value
}

func GetStringEnv(env string, defaultValue string) string {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}
	return strings.Trim(envValue, "\r")
}

func GetFloatEnv(env string, defaultValue float64) float64 {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}
	value, err := strconv.ParseFloat(envValue, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func GetDurationEnv(env string, defaultValue time.Duration) time.Duration {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}
	value, err := time.ParseDuration(strings.Trim(envValue, "\r"))
	if err != nil {
		log.Printf("warning:%s not parsed - error: %s\n", env, err)
		return defaultValue
	}
	return value
}
