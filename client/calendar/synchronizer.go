package calendar

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/jrsteele09/go-calendar-sync/client/apierr"
	"github.com/jrsteele09/go-calendar-sync/client/broadcast"
	"github.com/jrsteele09/go-calendar-sync/client/gateway"
	"github.com/jrsteele09/go-calendar-sync/client/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const pathEvents = "/events"

// SessionGate exposes the session state the synchronizer checks before
// sending a mutation and again before applying its result.
type SessionGate interface {
	Snapshot() session.State
}

// Synchronizer executes fetch, create, update and delete against the
// service and owns the resulting Collection.
//
// Operations are not serialised: several may be in flight and each applies
// its own result when it settles, so the last response for an ID wins. An
// update that settles after a delete of the same ID does not bring the record
// back.
type Synchronizer struct {
	gw   gateway.Sender
	gate SessionGate
	log  zerolog.Logger

	lock     sync.RWMutex
	events   *Collection
	activeID string

	watchLock sync.RWMutex
	watchers  map[uint64]func([]Event)
	nextWatch uint64

	unsubscribe func()
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Synchronizer) {
		s.log = l
	}
}

// New creates a synchronizer. When hub is non nil the collection is cleared
// on every session invalidation.
func New(gw gateway.Sender, gate SessionGate, hub *broadcast.Hub, options ...Option) (*Synchronizer, error) {
	if gw == nil {
		return nil, errors.New("[calendar.New] gateway is required")
	}
	if gate == nil {
		return nil, errors.New("[calendar.New] session gate is required")
	}

	s := &Synchronizer{
		gw:       gw,
		gate:     gate,
		log:      zerolog.Nop(),
		events:   NewCollection(),
		watchers: make(map[uint64]func([]Event)),
	}
	for _, opt := range options {
		opt(s)
	}
	if hub != nil {
		s.unsubscribe = hub.Subscribe(s.onInvalidated)
	}
	return s, nil
}

// Close detaches from the invalidation hub.
func (s *Synchronizer) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// FetchAll replaces the collection with the service's full event set. A
// rejected credential yields an empty collection rather than an error.
func (s *Synchronizer) FetchAll(ctx context.Context) ([]Event, error) {
	dispatched := s.gate.Snapshot()

	var resp listResponse
	if err := s.gw.Do(ctx, http.MethodGet, pathEvents, nil, &resp); err != nil {
		if apierr.IsKind(err, apierr.AuthFailure) {
			s.log.Debug().Msg("fetch rejected, treating as no session")
			s.Clear()
			return []Event{}, nil
		}
		return nil, err
	}

	settled := s.gate.Snapshot()
	if !sameSession(dispatched, settled) || !settled.Authenticated() {
		s.log.Debug().Msg("discarding fetch result for an ended session")
		s.Clear()
		return []Event{}, nil
	}

	accent := accentColor(settled)
	events := make([]Event, 0, len(resp.Events))
	for _, w := range resp.Events {
		events = append(events, w.toEvent(accent))
	}

	s.lock.Lock()
	s.events.Replace(events)
	if s.activeID != "" && !s.events.Has(s.activeID) {
		s.activeID = ""
	}
	out := s.events.All()
	s.lock.Unlock()

	s.notify(out)
	return out, nil
}

// Create sends d and adds the service's canonical record. Invalid drafts and
// anonymous sessions fail before any request is made.
func (s *Synchronizer) Create(ctx context.Context, d Draft) (Event, error) {
	dispatched, err := s.requireSession()
	if err != nil {
		return Event{}, err
	}
	if err := d.Validate(); err != nil {
		return Event{}, err
	}

	var resp eventResponse
	if err := s.gw.Do(ctx, http.MethodPost, pathEvents, newCreateRequest(d), &resp); err != nil {
		return Event{}, err
	}
	if resp.Event == nil || resp.Event.ID == "" {
		return Event{}, apierr.New(apierr.ServerFailure, "The calendar service returned no event")
	}

	var created Event
	err = s.apply(dispatched, func(c *Collection, accent string) {
		created = resp.Event.toEvent(accent)
		c.Insert(created)
	})
	return created, err
}

// Update sends only the fields set in p and replaces the local record with
// the service's response.
func (s *Synchronizer) Update(ctx context.Context, id string, p Patch) (Event, error) {
	dispatched, err := s.requireSession()
	if err != nil {
		return Event{}, err
	}
	if strings.TrimSpace(id) == "" {
		return Event{}, apierr.Validation("id", "Event id is required")
	}

	current, _ := s.Get(id)
	var currentPtr *Event
	if current.ID != "" {
		currentPtr = &current
	}
	if err := p.Validate(currentPtr); err != nil {
		return Event{}, err
	}

	var resp eventResponse
	if err := s.gw.Do(ctx, http.MethodPut, eventPath(id), newUpdateRequest(p), &resp); err != nil {
		return Event{}, err
	}
	if resp.Event == nil || resp.Event.ID == "" {
		return Event{}, apierr.New(apierr.ServerFailure, "The calendar service returned no event")
	}

	var updated Event
	err = s.apply(dispatched, func(c *Collection, accent string) {
		updated = resp.Event.toEvent(accent)
		if !c.ReplaceExisting(updated) {
			s.log.Debug().Str("id", updated.ID).Msg("updated event no longer in collection, not re-adding")
		}
	})
	return updated, err
}

// Delete removes id on the service and then from the collection.
func (s *Synchronizer) Delete(ctx context.Context, id string) error {
	dispatched, err := s.requireSession()
	if err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return apierr.Validation("id", "Event id is required")
	}

	if err := s.gw.Do(ctx, http.MethodDelete, eventPath(id), nil, nil); err != nil {
		return err
	}

	return s.apply(dispatched, func(c *Collection, _ string) {
		c.Remove(id)
		if s.activeID == id {
			s.activeID = ""
		}
	})
}

// Events returns the collection in start order.
func (s *Synchronizer) Events() []Event {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.events.All()
}

// Get returns the local record for id.
func (s *Synchronizer) Get(id string) (Event, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.events.Get(id)
}

// SetActive selects a record for editing.
func (s *Synchronizer) SetActive(id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.events.Has(id) {
		return apierr.New(apierr.NotFound, "Event not found")
	}
	s.activeID = id
	return nil
}

// Active returns the selected record, reflecting any confirmed update.
func (s *Synchronizer) Active() (Event, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.activeID == "" {
		return Event{}, false
	}
	return s.events.Get(s.activeID)
}

func (s *Synchronizer) ClearActive() {
	s.lock.Lock()
	s.activeID = ""
	s.lock.Unlock()
}

// Clear empties the collection.
func (s *Synchronizer) Clear() {
	s.lock.Lock()
	wasEmpty := s.events.Len() == 0
	s.events.Clear()
	s.activeID = ""
	s.lock.Unlock()

	if !wasEmpty {
		s.notify(nil)
	}
}

// Subscribe registers fn to receive the collection after every change.
func (s *Synchronizer) Subscribe(fn func([]Event)) (unsubscribe func()) {
	s.watchLock.Lock()
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = fn
	s.watchLock.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.watchLock.Lock()
			delete(s.watchers, id)
			s.watchLock.Unlock()
		})
	}
}

func (s *Synchronizer) notify(events []Event) {
	s.watchLock.RLock()
	targets := make([]func([]Event), 0, len(s.watchers))
	for _, fn := range s.watchers {
		targets = append(targets, fn)
	}
	s.watchLock.RUnlock()

	for _, fn := range targets {
		fn(events)
	}
}

func (s *Synchronizer) requireSession() (session.State, error) {
	snap := s.gate.Snapshot()
	if !snap.Authenticated() {
		return snap, apierr.New(apierr.AuthFailure, "Sign in to change events")
	}
	return snap, nil
}

// apply runs mutate against the collection only if the session that
// dispatched the request is still the current one.
func (s *Synchronizer) apply(dispatched session.State, mutate func(c *Collection, accent string)) error {
	settled := s.gate.Snapshot()
	if !settled.Authenticated() || !sameSession(dispatched, settled) {
		s.log.Debug().Msg("discarding result for an ended session")
		return apierr.New(apierr.AuthFailure, "Session ended before the change was applied")
	}

	s.lock.Lock()
	mutate(s.events, accentColor(settled))
	out := s.events.All()
	s.lock.Unlock()

	s.notify(out)
	return nil
}

// onInvalidated drops the collection unless the rejection concerned a
// credential that has since been replaced.
func (s *Synchronizer) onInvalidated(msg broadcast.Invalidation) {
	if msg.Reason == broadcast.ReasonRejected {
		snap := s.gate.Snapshot()
		if snap.Token != "" && msg.Token != snap.Token {
			return
		}
	}
	s.Clear()
}

// sameSession compares identities rather than tokens so a renewal while a
// request is in flight does not discard its result.
func sameSession(a, b session.State) bool {
	if a.Identity == nil || b.Identity == nil {
		return a.Identity == nil && b.Identity == nil
	}
	return a.Identity.ID == b.Identity.ID
}

func accentColor(s session.State) string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.AccentColor
}

func eventPath(id string) string {
	return pathEvents + "/" + url.PathEscape(id)
}
