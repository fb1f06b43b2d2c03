package joystick

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hadron-robotics/hadron_rover/internal/config"
)

// Linux joystick records are 8 bytes little-endian:
// u32 timestamp (ms), i16 value, u8 type, u8 number.
const (
	eventTypeButton = 0x01
	eventTypeAxis   = 0x02
	eventTypeInit   = 0x80

	axisMax = 32767.0
)

var (
	ErrDeviceNotFound   = errors.New("joystick device not found")
	ErrPermissionDenied = errors.New("joystick device permission denied")
	ErrDecode           = errors.New("malformed joystick record")
	ErrStopped          = errors.New("joystick stream stopped")
)

type EventKind int

const (
	KindAxis EventKind = iota
	KindButton
	KindInit
)

func (k EventKind) String() string {
	switch k {
	case KindAxis:
		return "axis"
	case KindButton:
		return "button"
	case KindInit:
		return "init"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

type Event struct {
	Time       time.Time
	Kind       EventKind
	Number     uint8
	Value      int16
	Normalized float64
}

func (e Event) String() string {
	return fmt.Sprintf("%v(%v)=%v", e.Kind, e.Number, e.Value)
}

type rawEvent struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

type Handler func(Event)

// Stream decodes the binary event stream of one input device and dispatches
// typed events to registered handlers. Handlers run synchronously in
// registration order on the read goroutine.
type Stream struct {
	cfg config.JoystickConfig

	lock     sync.Mutex
	device   io.ReadCloser
	handlers map[EventKind][]Handler

	deviceEpoch    uint32
	wallclockEpoch time.Time

	eventCount uint64
	errorCount uint64
	stopped    atomic.Bool
}

func NewStream(cfg config.JoystickConfig) *Stream {
	return &Stream{
		cfg:      cfg,
		handlers: make(map[EventKind][]Handler),
	}
}

// OnEvent registers a handler for one event kind.
func (s *Stream) OnEvent(kind EventKind, handler Handler) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.handlers[kind] = append(s.handlers[kind], handler)
}

// Start opens the device. The error is typed so the caller can tell "no
// joystick plugged in" from "wrong permissions" and decide to run degraded.
func (s *Stream) Start() error {
	device, err := os.Open(s.cfg.Device)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrDeviceNotFound, s.cfg.Device)
		}
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("%w: %s (add user to the input group)", ErrPermissionDenied, s.cfg.Device)
		}
		return fmt.Errorf("failed opening joystick %s: %w", s.cfg.Device, err)
	}

	s.lock.Lock()
	s.device = device
	s.lock.Unlock()

	log.Printf("joystick opened: %s\n", s.cfg.Device)
	return nil
}

// ReadNext blocks for one record, decodes it, dispatches handlers and
// returns the event. Wrong-length records return ErrDecode and bump the
// error counter; the stream stays usable.
func (s *Stream) ReadNext() (Event, error) {
	s.lock.Lock()
	device := s.device
	s.lock.Unlock()
	if device == nil {
		return Event{}, ErrStopped
	}

	var raw rawEvent
	err := binary.Read(device, binary.LittleEndian, &raw)
	if err != nil {
		if s.stopped.Load() {
			return Event{}, ErrStopped
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			atomic.AddUint64(&s.errorCount, 1)
			return Event{}, fmt.Errorf("%w: short record", ErrDecode)
		}
		return Event{}, fmt.Errorf("failed reading joystick record: %w", err)
	}

	event := s.decode(raw)
	atomic.AddUint64(&s.eventCount, 1)
	s.dispatch(event)
	return event, nil
}

// Run reads until ctx is cancelled or Stop closes the device. Decode errors
// are skipped, anything else closes the device and ends the loop; after a
// read failure Present reports false so callers can see the stick is gone.
func (s *Stream) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-runCtx.Done()
		s.Stop()
	}()

	for {
		_, err := s.ReadNext()
		if err != nil {
			if errors.Is(err, ErrDecode) {
				continue
			}
			if errors.Is(err, ErrStopped) || ctx.Err() != nil {
				log.Println("joystick stream stopped")
				return ctx.Err()
			}
			s.Stop()
			return fmt.Errorf("joystick stream failed: %w", err)
		}
	}
}

// Stop closes the device so any blocked read returns promptly.
func (s *Stream) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.lock.Lock()
	device := s.device
	s.lock.Unlock()
	if device != nil {
		device.Close()
	}
}

func (s *Stream) decode(raw rawEvent) Event {
	if s.deviceEpoch == 0 {
		s.deviceEpoch = raw.Time
		s.wallclockEpoch = time.Now()
	}

	event := Event{
		Time:   s.wallclockEpoch.Add(time.Duration(raw.Time-s.deviceEpoch) * time.Millisecond),
		Number: raw.Number,
		Value:  raw.Value,
	}

	switch {
	case raw.Type&eventTypeInit != 0:
		event.Kind = KindInit
	case raw.Type&eventTypeAxis != 0:
		event.Kind = KindAxis
		event.Normalized = s.normalize(raw.Value)
	case raw.Type&eventTypeButton != 0:
		event.Kind = KindButton
		event.Normalized = float64(raw.Value)
	}
	return event
}

// normalize scales a raw axis value to [-1,1] and floors the dead zone.
func (s *Stream) normalize(value int16) float64 {
	normalized := float64(value) / axisMax
	if normalized > 1.0 {
		normalized = 1.0
	} else if normalized < -1.0 {
		normalized = -1.0
	}
	if normalized < s.cfg.Deadzone && normalized > -s.cfg.Deadzone {
		return 0.0
	}
	return normalized
}

func (s *Stream) dispatch(event Event) {
	s.lock.Lock()
	handlers := append([]Handler(nil), s.handlers[event.Kind]...)
	s.lock.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// EventCount reports records decoded since start.
func (s *Stream) EventCount() uint64 {
	return atomic.LoadUint64(&s.eventCount)
}

// ErrorCount reports malformed records skipped since start.
func (s *Stream) ErrorCount() uint64 {
	return atomic.LoadUint64(&s.errorCount)
}

// Present reports whether the device opened successfully.
func (s *Stream) Present() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.device != nil && !s.stopped.Load()
}

// SetDevice swaps the record source. Used by tests to feed synthetic
// streams through the real decode path.
func (s *Stream) SetDevice(device io.ReadCloser) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.device = device
}
