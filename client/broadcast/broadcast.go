// Package broadcast carries the session invalidation signal from the
// transport layer to every state holder that registered for it.
//
// A Hub is created once per client and handed to both the gateway and the
// session machine at construction. Broadcast is fire and forget: subscribers
// registered at the time of the call are invoked, nothing is acknowledged and
// nobody is guaranteed to be listening.
package broadcast

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Reason describes why a session was invalidated.
type Reason string

const (
	ReasonRejected Reason = "credential_rejected"
	ReasonRenewal  Reason = "renewal_failed"
	ReasonLogout   Reason = "logout"
)

// Invalidation is the message delivered to subscribers.
type Invalidation struct {
	Reason Reason
	Status int    // HTTP status that triggered it, zero when not transport driven
	Token  string // credential the rejected request carried, empty if none
	At     time.Time
}

// Listener receives invalidation messages.
type Listener func(Invalidation)

// Hub fans invalidations out to listeners.
type Hub struct {
	listeners map[uint64]Listener
	nextID    uint64
	lock      sync.RWMutex
	log       zerolog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger that reports panicking listeners.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Hub) {
		h.log = l
	}
}

func NewHub(options ...Option) *Hub {
	h := &Hub{listeners: make(map[uint64]Listener), log: zerolog.Nop()}
	for _, opt := range options {
		opt(h)
	}
	return h
}

// Subscribe registers l and returns a function that removes it again.
// The returned function is safe to call more than once.
func (h *Hub) Subscribe(l Listener) (unsubscribe func()) {
	h.lock.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = l
	h.lock.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.lock.Lock()
			delete(h.listeners, id)
			h.lock.Unlock()
		})
	}
}

// Broadcast delivers msg to the listeners registered right now. Listeners run
// on the caller's goroutine, outside the hub lock, so a listener may
// subscribe or unsubscribe without deadlocking.
func (h *Hub) Broadcast(msg Invalidation) {
	if msg.At.IsZero() {
		msg.At = time.Now()
	}

	h.lock.RLock()
	targets := make([]Listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		targets = append(targets, l)
	}
	h.lock.RUnlock()

	for _, l := range targets {
		h.deliver(l, msg)
	}
}

// Len reports the number of registered listeners.
func (h *Hub) Len() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.listeners)
}

// deliver isolates the broadcaster from a misbehaving listener.
func (h *Hub) deliver(l Listener, msg Invalidation) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Str("reason", string(msg.Reason)).Msg("invalidation listener panicked")
		}
	}()
	l(msg)
}
