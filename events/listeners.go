package events

import "sync"

// Listeners records which host listeners are subscribed. Blocking decisions
// for an unsubscribed listener are answered with "no answer" right away.
type Listeners struct {
	mu         sync.RWMutex
	subscribed map[string]bool
}

func NewListeners() *Listeners {
	return &Listeners{
		subscribed: make(map[string]bool),
	}
}

func (l *Listeners) Subscribe(listener string) {
	l.mu.Lock()
	l.subscribed[listener] = true
	l.mu.Unlock()
}

func (l *Listeners) Unsubscribe(listener string) {
	l.mu.Lock()
	delete(l.subscribed, listener)
	l.mu.Unlock()
}

// Subscribed accepts a listener name or a full event name
func (l *Listeners) Subscribed(name string) bool {
	if listener, _, ok := Split(name); ok {
		name = listener
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.subscribed[name]
}

// Reset unsubscribes every listener
func (l *Listeners) Reset() {
	l.mu.Lock()
	l.subscribed = make(map[string]bool)
	l.mu.Unlock()
}
