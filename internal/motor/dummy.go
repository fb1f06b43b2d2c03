package motor

import (
	"log"
	"sync"
)

// Dummy is the degraded-mode actuator used when the motor hardware is absent
// or failed to initialize. It records the last throttles so tests and status
// queries can observe what would have been applied.
type Dummy struct {
	lock  sync.Mutex
	left  float64
	right float64
}

func NewDummy() *Dummy {
	return &Dummy{}
}

func (d *Dummy) Init() error {
	log.Println("dummy motor driver: no hardware calls will be made")
	return nil
}

func (d *Dummy) SetThrottle(left, right float64) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.left = left
	d.right = right
	return nil
}

func (d *Dummy) Stop() error {
	return d.SetThrottle(0, 0)
}

// Throttles returns the last applied pair.
func (d *Dummy) Throttles() (left, right float64) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.left, d.right
}

var _ Actuator = (*Dummy)(nil)
var _ Actuator = (*HBridge)(nil)
