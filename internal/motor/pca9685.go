package motor

import (
	"fmt"
	"log"
	"math"

	"github.com/googolgl/go-i2c"
	"github.com/googolgl/go-pca9685"
	"github.com/stianeikeland/go-rpio/v4"

	"github.com/hadron-robotics/hadron_rover/internal/config"
)

// HBridge drives a dual H-bridge motor board: one PCA9685 PWM channel per
// side for speed, two GPIO pins per side for direction. This is the only
// writer of throttle values; callers serialize through the drive controller.
type HBridge struct {
	cfg    config.MotorConfig
	driver *pca9685.PCA9685
	left   channel
	right  channel
}

type channel struct {
	pwmChannel int
	forward    rpio.Pin
	reverse    rpio.Pin
}

func NewHBridge(cfg config.MotorConfig) *HBridge {
	return &HBridge{
		cfg: cfg,
	}
}

func (h *HBridge) Init() error {
	i2cBus, err := i2c.New(h.cfg.Address, h.cfg.I2CDevice)
	if err != nil {
		return fmt.Errorf("error starting i2c with address - %w", err)
	}

	h.driver, err = pca9685.New(i2cBus, nil)
	if err != nil {
		return fmt.Errorf("error getting pwm driver - %w", err)
	}

	err = rpio.Open()
	if err != nil {
		return fmt.Errorf("error opening gpio memory - %w", err)
	}

	h.left = newChannel(h.cfg.LeftPWMChannel, h.cfg.LeftForwardPin, h.cfg.LeftReversePin)
	h.right = newChannel(h.cfg.RightPWMChannel, h.cfg.RightForwardPin, h.cfg.RightReversePin)

	log.Printf("motor driver ready on %s (left pwm %d, right pwm %d)\n",
		h.cfg.I2CDevice, h.cfg.LeftPWMChannel, h.cfg.RightPWMChannel)
	return h.Stop()
}

func newChannel(pwmChannel, forwardPin, reversePin int) channel {
	ch := channel{
		pwmChannel: pwmChannel,
		forward:    rpio.Pin(forwardPin),
		reverse:    rpio.Pin(reversePin),
	}
	ch.forward.Output()
	ch.reverse.Output()
	return ch
}

func (h *HBridge) SetThrottle(left, right float64) error {
	err := h.setChannel(h.left, left)
	if err != nil {
		return fmt.Errorf("failed setting left throttle %.2f: %w", left, err)
	}
	err = h.setChannel(h.right, right)
	if err != nil {
		return fmt.Errorf("failed setting right throttle %.2f: %w", right, err)
	}
	return nil
}

func (h *HBridge) setChannel(ch channel, value float64) error {
	if value > 0 {
		ch.forward.High()
		ch.reverse.Low()
	} else if value < 0 {
		ch.forward.Low()
		ch.reverse.High()
	} else {
		ch.forward.Low()
		ch.reverse.Low()
	}

	// PCA9685 counts 0-4095 per cycle; duty is the speed magnitude.
	duty := int(math.Abs(value) * 4095)
	if duty > 4095 {
		duty = 4095
	}
	err := h.driver.SetChannel(ch.pwmChannel, 0, duty)
	if err != nil {
		return fmt.Errorf("failed setting pwm channel %d - %w", ch.pwmChannel, err)
	}
	return nil
}

func (h *HBridge) Stop() error {
	err := h.SetThrottle(0, 0)
	if err != nil {
		return fmt.Errorf("failed zeroing throttles: %w", err)
	}
	return nil
}
