package fakeeventrepo

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-calendar-sync/events"
	apperrors "github.com/jrsteele09/go-calendar-sync/internal/errors"
)

var _ events.EventRepo = (*FakeEventRepo)(nil)

type FakeEventRepo struct {
	events  map[string]*events.Event
	lock    sync.RWMutex
	nowTime func() time.Time
}

func NewFakeEventRepo() *FakeEventRepo {
	return &FakeEventRepo{
		events:  make(map[string]*events.Event),
		nowTime: time.Now,
	}
}

func (er *FakeEventRepo) Insert(event *events.Event) error {
	er.lock.Lock()
	defer er.lock.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	now := er.nowTime()
	event.CreatedAt, event.UpdatedAt = now, now
	stored := *event
	er.events[event.ID] = &stored
	return nil
}

func (er *FakeEventRepo) Update(event *events.Event) error {
	er.lock.Lock()
	defer er.lock.Unlock()

	existing, ok := er.events[event.ID]
	if !ok || existing.OwnerID != event.OwnerID {
		return apperrors.ErrEventNotFound
	}
	event.UpdatedAt = er.nowTime()
	stored := *event
	er.events[event.ID] = &stored
	return nil
}

func (er *FakeEventRepo) Delete(ownerID, id string) error {
	er.lock.Lock()
	defer er.lock.Unlock()

	existing, ok := er.events[id]
	if !ok || existing.OwnerID != ownerID {
		return apperrors.ErrEventNotFound
	}
	delete(er.events, id)
	return nil
}

func (er *FakeEventRepo) Get(ownerID, id string) (*events.Event, error) {
	er.lock.RLock()
	defer er.lock.RUnlock()

	existing, ok := er.events[id]
	if !ok || existing.OwnerID != ownerID {
		return nil, apperrors.ErrEventNotFound
	}
	e := *existing
	return &e, nil
}

// ListByOwner returns the owner's events ordered by start time.
func (er *FakeEventRepo) ListByOwner(ownerID string) ([]*events.Event, error) {
	er.lock.RLock()
	defer er.lock.RUnlock()

	list := make([]*events.Event, 0)
	for _, e := range er.events {
		if e.OwnerID == ownerID {
			copied := *e
			list = append(list, &copied)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Start.Equal(list[j].Start) {
			return list[i].ID < list[j].ID
		}
		return list[i].Start.Before(list[j].Start)
	})
	return list, nil
}
