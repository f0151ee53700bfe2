// Package correlation matches asynchronous host answers to the blocked native
// decision occurrences that asked for them.
package correlation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrUnknownCorrelation is returned by Deposit when no occurrence waits for the key
var ErrUnknownCorrelation = errors.New("unknown correlation")

// Kind is the namespace of a decision. Keys of different kinds never collide.
type Kind uint8

const (
	KindModeEnablement Kind = iota + 1
	KindBrushForObject
	KindViewForObject
	KindAnchorForObject
	KindOffsetForObject
)

func (k Kind) String() string {
	switch k {
	case KindModeEnablement:
		return "mode"
	case KindBrushForObject:
		return "brush"
	case KindViewForObject:
		return "view"
	case KindAnchorForObject:
		return "anchor"
	case KindOffsetForObject:
		return "offset"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// PerObject reports whether keys of this kind carry an object and cycle
func (k Kind) PerObject() bool {
	return k != KindModeEnablement
}

// Key identifies one decision occurrence. Mode decisions are keyed by event
// name only; object decisions add the object identifier and its cycle.
type Key struct {
	Kind     Kind
	Event    string
	ObjectID int
	CycleID  string
}

func (k Key) String() string {
	if !k.Kind.PerObject() {
		return fmt.Sprintf("%s/%s", k.Kind, k.Event)
	}
	return fmt.Sprintf("%s/%s/%d@%s", k.Kind, k.Event, k.ObjectID, k.CycleID)
}

type slot struct {
	done     chan struct{}
	value    any
	filled   bool
	released bool
	waiters  int
}

func newSlot() *slot {
	return &slot{done: make(chan struct{})}
}

// Store is a single-slot-per-key rendezvous between blocked waiters and depositors.
type Store struct {
	mu    sync.Mutex
	slots map[Key]*slot
}

func NewStore() *Store {
	return &Store{
		slots: make(map[Key]*slot),
	}
}

// Await registers interest in key, calls onBlock once and blocks until a value
// is deposited, timeout elapses, ctx is done or the store is released.
// ok is false for everything but a deposit.
func (s *Store) Await(ctx context.Context, key Key, timeout time.Duration, onBlock func()) (value any, ok bool) {
	s.mu.Lock()
	current, exists := s.slots[key]
	if !exists || current.waiters == 0 || current.filled || current.released {
		// Leftovers of a finished occurrence never leak into a new one
		current = newSlot()
		s.slots[key] = current
	}
	current.waiters++
	s.mu.Unlock()

	if onBlock != nil {
		onBlock()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-current.done:
	case <-timer.C:
	case <-ctx.Done():
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current.waiters--
	if current.filled && !current.released {
		return current.value, true
	}
	return nil, false
}

// Deposit stores value for key and wakes its waiters. The first deposit wins,
// later ones are ignored.
func (s *Store) Deposit(key Key, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.slots[key]
	if !exists || current.released || current.waiters == 0 {
		return errors.Wrapf(ErrUnknownCorrelation, "no pending occurrence for %s", key)
	}
	if current.filled {
		return nil
	}
	current.value = value
	current.filled = true
	close(current.done)
	return nil
}

// Clear forgets the slot of key. A slot that still has blocked waiters belongs
// to a newer occurrence and is kept.
func (s *Store) Clear(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.slots[key]
	if !exists || current.waiters > 0 {
		return
	}
	delete(s.slots, key)
}

// ReleaseAll wakes every blocked waiter with no value and empties the store.
// Returns the number of waiters released.
func (s *Store) ReleaseAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	released := 0
	for key, current := range s.slots {
		if current.waiters > 0 && !current.filled {
			current.released = true
			close(current.done)
			released += current.waiters
		}
		delete(s.slots, key)
	}
	return released
}

// Pending lists keys that have blocked waiters
func (s *Store) Pending() []Key {
	s.mu.Lock()
	keys := make([]Key, 0, len(s.slots))
	for key, current := range s.slots {
		if current.waiters > 0 {
			keys = append(keys, key)
		}
	}
	s.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Event != b.Event {
			return a.Event < b.Event
		}
		if a.ObjectID != b.ObjectID {
			return a.ObjectID < b.ObjectID
		}
		return a.CycleID < b.CycleID
	})
	return keys
}
