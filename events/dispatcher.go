package events

import (
	"log"
	"sync"

	"github.com/LdDl/scanbridge/codec"
)

// Event is a named payload published to the host.
type Event struct {
	Name    string        `json:"name"`
	Payload codec.Payload `json:"payload"`
}

// Dispatcher publishes events. Implementations must not block.
type Dispatcher interface {
	Dispatch(Event)
}

// DispatcherFunc adapts a function to Dispatcher
type DispatcherFunc func(Event)

func (f DispatcherFunc) Dispatch(e Event) {
	f(e)
}

// Multi fans an event out to every dispatcher in order
type Multi []Dispatcher

func (m Multi) Dispatch(e Event) {
	for _, d := range m {
		if d != nil {
			d.Dispatch(e)
		}
	}
}

// Discard drops every event
var Discard Dispatcher = DispatcherFunc(func(Event) {})

// Broadcaster delivers events to subscribers through bounded channels.
// A subscriber whose buffer is full loses the event.
type Broadcaster struct {
	mu          sync.Mutex
	buffer      int
	nextID      int
	subscribers map[int]chan Event
	logger      *log.Logger
}

func NewBroadcaster(buffer int, logger *log.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Broadcaster{
		buffer:      buffer,
		subscribers: make(map[int]chan Event),
		logger:      logger,
	}
}

// Subscribe returns a channel of future events and a function that cancels the
// subscription and closes the channel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buffer)
	b.subscribers[id] = ch
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

func (b *Broadcaster) Dispatch(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			b.logger.Printf("events: subscriber buffer full, dropped event=%s subscriber=%d", e.Name, id)
		}
	}
}

// Subscribers returns the current number of subscriptions
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
