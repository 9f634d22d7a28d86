// Package session owns the authentication session of the calendar client.
//
// States and transitions:
//
//	anonymous      -> authenticating  (Login, Register)
//	authenticating -> authenticated   (service accepted the credentials)
//	authenticating -> errored         (service or network refused)
//	errored        -> anonymous       (ClearError, Logout)
//	authenticated  -> anonymous       (Logout, failed Renew, gateway invalidation)
//	anonymous      -> authenticated   (restored from durable storage in New)
//
// The session is authenticated exactly when both a token and an identity are
// held. Restored sessions are trusted until the service rejects a request.
package session

import (
	"encoding/json"
	"sync"

	"github.com/jrsteele09/go-calendar-sync/client/broadcast"
	"github.com/jrsteele09/go-calendar-sync/client/gateway"
	"github.com/jrsteele09/go-calendar-sync/client/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Status is the state of the session machine.
type Status string

const (
	StatusAnonymous      Status = "anonymous"
	StatusAuthenticating Status = "authenticating"
	StatusAuthenticated  Status = "authenticated"
	StatusErrored        Status = "errored"
)

// Identity is the signed in user as reported by the service.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	AccentColor string `json:"color,omitempty"`
}

// Credentials are sent to POST /auth/login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Profile is sent to POST /auth/register.
type Profile struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// State is an immutable snapshot of the machine.
type State struct {
	Status   Status
	Token    string
	Identity *Identity
	Err      string // last normalised error message, if any
}

// Authenticated reports whether the snapshot holds a usable session.
func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.Token != "" && s.Identity != nil
}

// Machine is the session state machine. Only the machine and the gateway's
// invalidation path write the session keys of durable storage.
type Machine struct {
	gw    gateway.Sender
	store storage.Store
	hub   *broadcast.Hub
	log   zerolog.Logger

	lock     sync.RWMutex
	status   Status
	token    string
	identity *Identity
	errMsg   string
	epoch    uint64 // bumped whenever the session is torn down

	watchLock sync.RWMutex
	watchers  map[uint64]func(State)
	nextWatch uint64

	unsubscribe func()
}

// Option configures a Machine.
type Option func(*Machine)

func WithLogger(l zerolog.Logger) Option {
	return func(m *Machine) {
		m.log = l
	}
}

// New creates the machine, restores any session held in store and subscribes
// to hub for forced invalidation.
func New(gw gateway.Sender, store storage.Store, hub *broadcast.Hub, options ...Option) (*Machine, error) {
	if gw == nil {
		return nil, errors.New("[session.New] gateway is required")
	}
	if store == nil {
		return nil, errors.New("[session.New] store is required")
	}
	if hub == nil {
		return nil, errors.New("[session.New] invalidation hub is required")
	}

	m := &Machine{
		gw:       gw,
		store:    store,
		hub:      hub,
		log:      zerolog.Nop(),
		status:   StatusAnonymous,
		watchers: make(map[uint64]func(State)),
	}
	for _, opt := range options {
		opt(m)
	}

	m.restore()
	m.unsubscribe = hub.Subscribe(m.onInvalidated)
	return m, nil
}

// Close detaches the machine from the invalidation hub.
func (m *Machine) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// restore trusts whatever durable storage holds; no request is made.
func (m *Machine) restore() {
	token, err := storage.Lookup(m.store, storage.KeyToken)
	if err != nil {
		m.log.Error().Err(err).Msg("reading stored token failed")
		return
	}
	rawUser, err := storage.Lookup(m.store, storage.KeyUser)
	if err != nil {
		m.log.Error().Err(err).Msg("reading stored identity failed")
		return
	}
	if token == "" || rawUser == "" {
		return
	}

	var identity Identity
	if err := json.Unmarshal([]byte(rawUser), &identity); err != nil || identity.ID == "" {
		m.log.Warn().Err(err).Msg("stored identity unreadable, discarding session")
		if err := m.store.Clear(storage.SessionKeys...); err != nil {
			m.log.Error().Err(err).Msg("clearing unreadable session failed")
		}
		return
	}

	m.status = StatusAuthenticated
	m.token = token
	m.identity = &identity
	m.log.Info().Str("user", identity.ID).Msg("session restored")
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() State {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() State {
	var identity *Identity
	if m.identity != nil {
		cp := *m.identity
		identity = &cp
	}
	return State{Status: m.status, Token: m.token, Identity: identity, Err: m.errMsg}
}

func (m *Machine) Status() Status {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.status
}

// IsAuthenticated reports whether a token and identity are held.
func (m *Machine) IsAuthenticated() bool {
	return m.Snapshot().Authenticated()
}

// Identity returns the signed in identity, or nil.
func (m *Machine) Identity() *Identity {
	return m.Snapshot().Identity
}

// Err returns the last normalised error message.
func (m *Machine) Err() string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.errMsg
}

// Subscribe registers fn to receive a snapshot after every transition.
func (m *Machine) Subscribe(fn func(State)) (unsubscribe func()) {
	m.watchLock.Lock()
	id := m.nextWatch
	m.nextWatch++
	m.watchers[id] = fn
	m.watchLock.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.watchLock.Lock()
			delete(m.watchers, id)
			m.watchLock.Unlock()
		})
	}
}

func (m *Machine) notify(s State) {
	m.watchLock.RLock()
	targets := make([]func(State), 0, len(m.watchers))
	for _, fn := range m.watchers {
		targets = append(targets, fn)
	}
	m.watchLock.RUnlock()

	for _, fn := range targets {
		fn(s)
	}
}

// transition applies mutate under the lock, logs the move and notifies
// watchers with the resulting snapshot.
func (m *Machine) transition(mutate func()) State {
	m.lock.Lock()
	from := m.status
	mutate()
	s := m.snapshotLocked()
	m.lock.Unlock()

	if from != s.Status {
		m.log.Info().Str("from", string(from)).Str("to", string(s.Status)).Msg("session transition")
	}
	m.notify(s)
	return s
}
