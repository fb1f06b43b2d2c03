package fanout

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const sendBufferSize = 16

// Message is the envelope every subscriber receives.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	TimeStamp int64       `json:"time_stamp"`
}

// Subscriber is one live listener. Its channel is closed when the
// subscriber is dropped or the fanout shuts down.
type Subscriber struct {
	ID uuid.UUID

	lock   sync.Mutex
	out    chan []byte
	closed bool
}

// Out is the subscriber's receive channel.
func (s *Subscriber) Out() <-chan []byte {
	return s.out
}

// offer hands payload to the subscriber without blocking. ok is false when
// the buffer is full, meaning the subscriber has fallen behind.
func (s *Subscriber) offer(payload []byte) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return true
	}
	select {
	case s.out <- payload:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
}

// Fanout broadcasts state-change notifications to an open set of
// subscribers. A broadcast iterates a snapshot of the set, so subscribing
// and unsubscribing during a broadcast is safe. A subscriber whose buffer
// is full is dropped rather than allowed to stall the broadcast.
type Fanout struct {
	lock        sync.RWMutex
	subscribers map[uuid.UUID]*Subscriber
	closed      bool
	dropped     uint64
}

func New() *Fanout {
	return &Fanout{
		subscribers: make(map[uuid.UUID]*Subscriber),
	}
}

// Subscribe adds a listener. Returns nil after Close.
func (f *Fanout) Subscribe() *Subscriber {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.closed {
		return nil
	}

	subscriber := &Subscriber{
		ID:  uuid.New(),
		out: make(chan []byte, sendBufferSize),
	}
	f.subscribers[subscriber.ID] = subscriber
	return subscriber
}

// Unsubscribe removes a listener and closes its channel. Safe to call for
// an already-removed subscriber.
func (f *Fanout) Unsubscribe(id uuid.UUID) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.removeLocked(id)
}

func (f *Fanout) removeLocked(id uuid.UUID) {
	subscriber, ok := f.subscribers[id]
	if !ok {
		return
	}
	delete(f.subscribers, id)
	subscriber.close()
}

// Broadcast marshals the message once and offers it to every subscriber.
// Subscribers that cannot keep up are dropped.
func (f *Fanout) Broadcast(messageType string, data interface{}) {
	payload, err := json.Marshal(Message{
		Type:      messageType,
		Data:      data,
		TimeStamp: time.Now().UnixMilli(),
	})
	if err != nil {
		log.Printf("error: failed marshaling %s broadcast: %s\n", messageType, err.Error())
		return
	}

	f.lock.RLock()
	snapshot := make([]*Subscriber, 0, len(f.subscribers))
	for _, subscriber := range f.subscribers {
		snapshot = append(snapshot, subscriber)
	}
	f.lock.RUnlock()

	var slow []uuid.UUID
	for _, subscriber := range snapshot {
		if !subscriber.offer(payload) {
			slow = append(slow, subscriber.ID)
		}
	}

	if len(slow) > 0 {
		f.lock.Lock()
		for _, id := range slow {
			log.Printf("dropping slow subscriber %s\n", id)
			f.removeLocked(id)
			f.dropped++
		}
		f.lock.Unlock()
	}
}

// Count reports live subscribers.
func (f *Fanout) Count() int {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return len(f.subscribers)
}

// Dropped reports subscribers removed for falling behind.
func (f *Fanout) Dropped() uint64 {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.dropped
}

// Close drops every subscriber and rejects new ones.
func (f *Fanout) Close() {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for id, subscriber := range f.subscribers {
		delete(f.subscribers, id)
		subscriber.close()
	}
}
