package preferences_test

import (
	"testing"

	"github.com/jrsteele09/go-calendar-sync/client/preferences"
	"github.com/jrsteele09/go-calendar-sync/client/storage"
	"github.com/jrsteele09/go-calendar-sync/client/storage/memstore"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestLocale(t *testing.T) {
	store := memstore.New()
	prefs := preferences.New(store)

	tag, err := prefs.Locale()
	require.NoError(t, err)
	require.Equal(t, language.English, tag)

	tag, err = prefs.SetLocale("fr")
	require.NoError(t, err)
	require.Equal(t, language.French, tag)

	stored, err := store.Get(storage.KeyLocale)
	require.NoError(t, err)
	require.Equal(t, "fr", stored)

	tag, err = prefs.Locale()
	require.NoError(t, err)
	require.Equal(t, language.French, tag)

	_, err = prefs.SetLocale("not a locale!")
	require.Error(t, err)
}

func TestTheme(t *testing.T) {
	store := memstore.New()
	prefs := preferences.New(store)

	theme, err := prefs.Theme()
	require.NoError(t, err)
	require.Equal(t, preferences.ThemeSystem, theme)

	err = prefs.SetTheme("neon")
	require.ErrorIs(t, err, preferences.ErrUnknownTheme)
	require.Contains(t, err.Error(), "[Preferences.SetTheme]")

	next, err := prefs.ToggleTheme()
	require.NoError(t, err)
	require.Equal(t, preferences.ThemeDark, next)

	next, err = prefs.ToggleTheme()
	require.NoError(t, err)
	require.Equal(t, preferences.ThemeLight, next)

	require.NoError(t, store.Set(map[string]string{storage.KeyTheme: "garbage"}))
	theme, err = prefs.Theme()
	require.NoError(t, err)
	require.Equal(t, preferences.ThemeSystem, theme)
}
