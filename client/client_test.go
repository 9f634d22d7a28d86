package client_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-calendar-sync/client"
	"github.com/jrsteele09/go-calendar-sync/client/calendar"
	"github.com/jrsteele09/go-calendar-sync/client/preferences"
	"github.com/jrsteele09/go-calendar-sync/client/session"
	"github.com/jrsteele09/go-calendar-sync/client/storage"
	"github.com/jrsteele09/go-calendar-sync/client/storage/memstore"
	fakeeventrepo "github.com/jrsteele09/go-calendar-sync/events/repofake"
	"github.com/jrsteele09/go-calendar-sync/internal/config"
	"github.com/jrsteele09/go-calendar-sync/server"
	fakeuserrepo "github.com/jrsteele09/go-calendar-sync/users/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func startService(t *testing.T) {
	t.Helper()
	api, err := server.New(config.New(), server.Repos{
		Users:  fakeuserrepo.NewFakeUserRepo(),
		Events: fakeeventrepo.NewFakeEventRepo(),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	t.Setenv("CALENDAR_API_URL", srv.URL)
	t.Setenv("CALENDAR_STATE_FILE", filepath.Join(t.TempDir(), "state.yaml"))
	t.Setenv("CALENDAR_RENEW_SCHEDULE", "@every 1h")
}

func TestAppEndToEnd(t *testing.T) {
	startService(t)
	store := memstore.New()

	app, err := client.New(config.NewClient(), client.WithStore(store))
	require.NoError(t, err)
	defer app.Close()
	app.StartRenewal()

	ctx := context.Background()
	require.NoError(t, app.Session.Register(ctx, session.Profile{Name: "Ada", Email: "ada@example.com", Password: "secret1"}))

	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	_, err = app.Calendar.Create(ctx, calendar.Draft{Title: "Standup", Start: start, End: start.Add(15 * time.Minute)})
	require.NoError(t, err)

	events, err := app.Calendar.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.NoError(t, app.Preferences.SetTheme(preferences.ThemeDark))

	app.Session.Logout()
	require.Empty(t, app.Calendar.Events())
	_, err = store.Get(storage.KeyToken)
	require.ErrorIs(t, err, storage.ErrNotFound)

	theme, err := app.Preferences.Theme()
	require.NoError(t, err)
	require.Equal(t, preferences.ThemeDark, theme)
}

func TestAppPersistsSessionToStateFile(t *testing.T) {
	startService(t)
	ctx := context.Background()

	first, err := client.New(config.NewClient(), client.WithoutRenewal())
	require.NoError(t, err)
	require.NoError(t, first.Session.Register(ctx, session.Profile{Name: "Ada", Email: "ada@example.com", Password: "secret1"}))
	first.Close()

	second, err := client.New(config.NewClient(), client.WithoutRenewal())
	require.NoError(t, err)
	defer second.Close()
	require.True(t, second.Session.IsAuthenticated())
	require.Equal(t, "ada@example.com", second.Session.Identity().Email)
}

func TestAppRejectsBadSchedule(t *testing.T) {
	startService(t)
	t.Setenv("CALENDAR_RENEW_SCHEDULE", "every so often")
	_, err := client.New(config.NewClient(), client.WithStore(memstore.New()))
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, client.ParseLevel("debug"))
	require.Equal(t, zerolog.WarnLevel, client.ParseLevel(""))
	require.Equal(t, zerolog.WarnLevel, client.ParseLevel("loud"))
}
