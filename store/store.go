// Package store holds the shared "volume on/off" flag and its toggle.
//
// A Store is owned by a single goroutine (in volumestated, the daemon loop).
// It is not safe for concurrent use and does no locking: other goroutines
// reach it by sending events to the owner, which applies them and lets the
// store notify its subscribers.
package store

import "time"

// Name is the stable name the store is registered and looked up under.
const Name = "state"

// Volume is the surface UI-side code consumes: read the flag, flip the flag.
type Volume interface {
	IsVolumeOn() bool
	ToggleVolume()
}

// Change describes one toggle, as delivered to subscribers.
type Change struct {
	IsVolumeOn bool
	Seq        uint64
	At         time.Time
}

// Listener is called synchronously on the owner goroutine after each toggle.
// It must not block and must not call ToggleVolume.
type Listener func(Change)

// Snapshot is a point-in-time copy of the store.
// At is zero until the first toggle.
type Snapshot struct {
	IsVolumeOn bool
	Seq        uint64
	At         time.Time
}

type subscription struct {
	id uint64
	fn Listener
}

// Store owns the volume flag.
type Store struct {
	isOn bool
	seq  uint64
	at   time.Time

	now func() time.Time

	nextID uint64
	subs   []subscription
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to stamp changes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a store with the volume on.
func New(opts ...Option) *Store {
	s := &Store{
		isOn: true,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Volume = (*Store)(nil)

// IsVolumeOn reports the current flag.
func (s *Store) IsVolumeOn() bool {
	return s.isOn
}

// ToggleVolume flips the flag and notifies subscribers in subscription order.
func (s *Store) ToggleVolume() {
	s.isOn = !s.isOn
	s.seq++
	s.at = s.now()

	ch := Change{IsVolumeOn: s.isOn, Seq: s.seq, At: s.at}

	// Listeners may cancel themselves (or others) while being notified.
	subs := append([]subscription(nil), s.subs...)
	for _, sub := range subs {
		if s.subscribed(sub.id) {
			sub.fn(ch)
		}
	}
}

// Snapshot returns the current flag together with the last change's sequence and time.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{IsVolumeOn: s.isOn, Seq: s.seq, At: s.at}
}

// Subscribe registers fn for change notifications and returns a cancel func.
// Cancel is idempotent. A nil fn is ignored and gets a no-op cancel.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	if fn == nil {
		return func() {}
	}

	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, fn: fn})

	return func() { s.unsubscribe(id) }
}

func (s *Store) unsubscribe(id uint64) {
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

func (s *Store) subscribed(id uint64) bool {
	for _, sub := range s.subs {
		if sub.id == id {
			return true
		}
	}
	return false
}
