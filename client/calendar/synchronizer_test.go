package calendar_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-calendar-sync/client/apierr"
	"github.com/jrsteele09/go-calendar-sync/client/broadcast"
	"github.com/jrsteele09/go-calendar-sync/client/calendar"
	"github.com/jrsteele09/go-calendar-sync/client/gateway"
	"github.com/jrsteele09/go-calendar-sync/client/session"
	"github.com/jrsteele09/go-calendar-sync/client/storage"
	"github.com/jrsteele09/go-calendar-sync/client/storage/memstore"
	fakeeventrepo "github.com/jrsteele09/go-calendar-sync/events/repofake"
	"github.com/jrsteele09/go-calendar-sync/internal/config"
	"github.com/jrsteele09/go-calendar-sync/internal/utils"
	"github.com/jrsteele09/go-calendar-sync/server"
	fakeuserrepo "github.com/jrsteele09/go-calendar-sync/users/repofake"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	srv     *httptest.Server
	store   *memstore.MemStore
	hub     *broadcast.Hub
	gw      *gateway.Gateway
	machine *session.Machine
	sync    *calendar.Synchronizer

	lock     sync.Mutex
	held     map[string]chan struct{}
	requests map[string]int
	arrived  chan string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	api, err := server.New(config.New(), server.Repos{
		Users:  fakeuserrepo.NewFakeUserRepo(),
		Events: fakeeventrepo.NewFakeEventRepo(),
	})
	require.NoError(t, err)

	f := &testFixture{
		store:    memstore.New(),
		hub:      broadcast.NewHub(),
		held:     make(map[string]chan struct{}),
		requests: make(map[string]int),
		arrived:  make(chan string, 8),
	}
	// Held responses are produced by the service first and delivered late,
	// so the service's state has already changed when the client waits.
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		f.lock.Lock()
		f.requests[key]++
		release := f.held[key]
		f.lock.Unlock()

		if release == nil {
			api.ServeHTTP(w, r)
			return
		}
		rec := httptest.NewRecorder()
		api.ServeHTTP(rec, r)
		f.arrived <- key
		<-release
		for k, v := range rec.Header() {
			w.Header()[k] = v
		}
		w.WriteHeader(rec.Code)
		_, _ = w.Write(rec.Body.Bytes())
	}))
	t.Cleanup(f.srv.Close)

	f.gw, err = gateway.New(f.srv.URL+"/api", f.store, f.hub)
	require.NoError(t, err)
	f.machine, err = session.New(f.gw, f.store, f.hub)
	require.NoError(t, err)
	t.Cleanup(f.machine.Close)
	f.sync, err = calendar.New(f.gw, f.machine, f.hub)
	require.NoError(t, err)
	t.Cleanup(f.sync.Close)
	return f
}

func (f *testFixture) register(t *testing.T) {
	t.Helper()
	require.NoError(t, f.machine.Register(context.Background(), session.Profile{
		Name: "Ada", Email: "ada@example.com", Password: "secret1",
	}))
}

func (f *testFixture) hold(key string) (release func()) {
	ch := make(chan struct{})
	f.lock.Lock()
	f.held[key] = ch
	f.lock.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.lock.Lock()
			delete(f.held, key)
			f.lock.Unlock()
			close(ch)
		})
	}
}

func (f *testFixture) count(key string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.requests[key]
}

func (f *testFixture) create(t *testing.T, title string, start time.Time) calendar.Event {
	t.Helper()
	e, err := f.sync.Create(context.Background(), calendar.Draft{Title: title, Start: start, End: start.Add(time.Hour)})
	require.NoError(t, err)
	return e
}

func TestCreateThenFetchAll(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)

	created := f.create(t, "Standup", nine)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "Standup", created.Title)
	require.True(t, created.Start.Equal(nine))
	require.Equal(t, f.machine.Identity().AccentColor, created.Color)

	f.sync.Clear()
	events, err := f.sync.FetchAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{created.ID}, ids(events))
	require.Equal(t, events, f.sync.Events())
}

func TestFetchAllIsOrderedByStart(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)
	late := f.create(t, "late", nine.Add(2*time.Hour))
	early := f.create(t, "early", nine)

	events, err := f.sync.FetchAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{early.ID, late.ID}, ids(events))
}

func TestInvalidDraftSendsNoRequest(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)

	_, err := f.sync.Create(context.Background(), calendar.Draft{Title: "bad", Start: nine, End: nine})
	require.True(t, apierr.IsKind(err, apierr.ValidationFailure))
	require.Zero(t, f.count("POST /api/events"))

	_, err = f.sync.Update(context.Background(), "", calendar.Patch{Title: utils.Ptr("x")})
	require.True(t, apierr.IsKind(err, apierr.ValidationFailure))
}

func TestMutationsRequireSession(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.sync.Create(context.Background(), calendar.Draft{Title: "a", Start: nine, End: nine.Add(time.Hour)})
	require.True(t, apierr.IsKind(err, apierr.AuthFailure))
	require.True(t, apierr.IsKind(f.sync.Delete(context.Background(), "x"), apierr.AuthFailure))
	require.Zero(t, f.count("POST /api/events"))
	require.Zero(t, f.count("DELETE /api/events/x"))
}

func TestRejectedCredentialYieldsEmptyCollection(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.Set(map[string]string{
		storage.KeyToken: "forged",
		storage.KeyUser:  `{"id":"u1","name":"Ada","email":"ada@example.com"}`,
	}))
	machine, err := session.New(f.gw, f.store, f.hub)
	require.NoError(t, err)
	t.Cleanup(machine.Close)
	syncer, err := calendar.New(f.gw, machine, f.hub)
	require.NoError(t, err)
	t.Cleanup(syncer.Close)

	events, err := syncer.FetchAll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, events)
	require.Empty(t, events)

	_, err = f.store.Get(storage.KeyToken)
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.False(t, machine.IsAuthenticated())

	events, err = syncer.FetchAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestDeleteAbsentIsNotFound(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)
	kept := f.create(t, "kept", nine)

	err := f.sync.Delete(context.Background(), "does-not-exist")
	require.True(t, apierr.IsKind(err, apierr.NotFound))
	require.Equal(t, "Event not found", err.Error())
	require.Equal(t, []string{kept.ID}, ids(f.sync.Events()))
	require.True(t, f.machine.IsAuthenticated())
}

func TestUpdateReplacesRecord(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)
	e := f.create(t, "Standup", nine)
	require.NoError(t, f.sync.SetActive(e.ID))

	updated, err := f.sync.Update(context.Background(), e.ID, calendar.Patch{Title: utils.Ptr("Retro"), End: utils.Ptr(nine.Add(2 * time.Hour))})
	require.NoError(t, err)
	require.Equal(t, "Retro", updated.Title)
	require.Equal(t, 2*time.Hour, updated.Duration())

	active, ok := f.sync.Active()
	require.True(t, ok)
	require.Equal(t, "Retro", active.Title)

	_, err = f.sync.Update(context.Background(), e.ID, calendar.Patch{End: utils.Ptr(nine.Add(-time.Hour))})
	require.True(t, apierr.IsKind(err, apierr.ValidationFailure))
	require.Equal(t, 1, f.count("PUT /api/events/"+e.ID))
}

func TestUpdateSettlingAfterDeleteDoesNotResurrect(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)
	e := f.create(t, "Standup", nine)

	release := f.hold("PUT /api/events/" + e.ID)
	defer release()
	done := make(chan error, 1)
	go func() {
		_, err := f.sync.Update(context.Background(), e.ID, calendar.Patch{Title: utils.Ptr("Renamed")})
		done <- err
	}()
	<-f.arrived

	require.NoError(t, f.sync.Delete(context.Background(), e.ID))
	release()
	require.NoError(t, <-done)

	_, ok := f.sync.Get(e.ID)
	require.False(t, ok)
	events, err := f.sync.FetchAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestUpdateAfterServerDeleteIsNotFound(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)
	e := f.create(t, "Standup", nine)

	release := f.hold("DELETE /api/events/" + e.ID)
	defer release()
	done := make(chan error, 1)
	go func() { done <- f.sync.Delete(context.Background(), e.ID) }()
	<-f.arrived

	_, err := f.sync.Update(context.Background(), e.ID, calendar.Patch{Title: utils.Ptr("Renamed")})
	require.True(t, apierr.IsKind(err, apierr.NotFound))
	release()
	require.NoError(t, <-done)

	_, ok := f.sync.Get(e.ID)
	require.False(t, ok)
}

func TestLogoutDuringFetchDiscardsResult(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)
	f.create(t, "Standup", nine)

	release := f.hold("GET /api/events")
	defer release()
	done := make(chan []calendar.Event, 1)
	go func() {
		events, err := f.sync.FetchAll(context.Background())
		if err != nil {
			events = nil
		}
		done <- events
	}()
	<-f.arrived

	f.machine.Logout()
	_, err := f.store.Get(storage.KeyToken)
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.Empty(t, f.sync.Events())

	release()
	events := <-done
	require.NotNil(t, events)
	require.Empty(t, events)
	require.Empty(t, f.sync.Events())
}

func TestLogoutDuringCreateDiscardsResult(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)

	release := f.hold("POST /api/events")
	defer release()
	done := make(chan error, 1)
	go func() {
		_, err := f.sync.Create(context.Background(), calendar.Draft{Title: "Standup", Start: nine, End: nine.Add(time.Hour)})
		done <- err
	}()
	<-f.arrived

	f.machine.Logout()
	_, err := f.store.Get(storage.KeyToken)
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = f.store.Get(storage.KeyUser)
	require.ErrorIs(t, err, storage.ErrNotFound)

	release()
	require.True(t, apierr.IsKind(<-done, apierr.AuthFailure))
	require.Empty(t, f.sync.Events())
	require.False(t, f.machine.IsAuthenticated())
}

func TestRenewalDuringFetchKeepsResult(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)
	e := f.create(t, "Standup", nine)
	f.sync.Clear()

	release := f.hold("GET /api/events")
	defer release()
	done := make(chan error, 1)
	go func() {
		_, err := f.sync.FetchAll(context.Background())
		done <- err
	}()
	<-f.arrived

	require.NoError(t, f.machine.Renew(context.Background()))
	release()
	require.NoError(t, <-done)
	require.Equal(t, []string{e.ID}, ids(f.sync.Events()))
}

func TestInvalidationClearsCollection(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)
	e := f.create(t, "Standup", nine)
	require.NoError(t, f.sync.SetActive(e.ID))

	f.machine.Logout()
	require.Empty(t, f.sync.Events())
	_, ok := f.sync.Active()
	require.False(t, ok)
}

func TestActiveSelection(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)

	err := f.sync.SetActive("missing")
	require.True(t, apierr.IsKind(err, apierr.NotFound))

	e := f.create(t, "Standup", nine)
	require.NoError(t, f.sync.SetActive(e.ID))
	f.sync.ClearActive()
	_, ok := f.sync.Active()
	require.False(t, ok)

	require.NoError(t, f.sync.SetActive(e.ID))
	require.NoError(t, f.sync.Delete(context.Background(), e.ID))
	_, ok = f.sync.Active()
	require.False(t, ok)
}

func TestSubscribeReceivesCollection(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)

	var (
		lock  sync.Mutex
		sizes []int
	)
	unsubscribe := f.sync.Subscribe(func(events []calendar.Event) {
		lock.Lock()
		sizes = append(sizes, len(events))
		lock.Unlock()
	})
	e := f.create(t, "Standup", nine)
	require.NoError(t, f.sync.Delete(context.Background(), e.ID))
	unsubscribe()
	f.create(t, "After", nine)

	lock.Lock()
	defer lock.Unlock()
	require.Equal(t, []int{1, 0}, sizes)
}
