// Package preferences persists the locale and theme choices of the client in
// durable storage alongside the session.
package preferences

import (
	"github.com/jrsteele09/go-calendar-sync/client/storage"
	"github.com/pkg/errors"
	"golang.org/x/text/language"
)

// Theme is the colour scheme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// DefaultLocale is used when nothing was stored.
var DefaultLocale = language.English

// Supported lists the locales the client ships translations for.
var Supported = []language.Tag{
	language.English,
	language.Spanish,
	language.Portuguese,
	language.French,
	language.Italian,
}

var matcher = language.NewMatcher(Supported)

// ErrUnknownTheme is returned by SetTheme for unsupported values.
var ErrUnknownTheme = errors.New("unknown theme")

// Preferences reads and writes preference keys of a storage.Store.
type Preferences struct {
	store storage.Store
}

func New(store storage.Store) *Preferences {
	return &Preferences{store: store}
}

// Locale returns the stored locale, or DefaultLocale.
func (p *Preferences) Locale() (language.Tag, error) {
	raw, err := storage.Lookup(p.store, storage.KeyLocale)
	if err != nil {
		return DefaultLocale, err
	}
	if raw == "" {
		return DefaultLocale, nil
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return DefaultLocale, nil
	}
	return tag, nil
}

// SetLocale stores the closest supported match for value (e.g. "pt-BR" -> "pt").
func (p *Preferences) SetLocale(value string) (language.Tag, error) {
	requested, err := language.Parse(value)
	if err != nil {
		return DefaultLocale, errors.Wrapf(err, "[Preferences.SetLocale] invalid locale %q", value)
	}

	_, index, confidence := matcher.Match(requested)
	if confidence == language.No {
		return DefaultLocale, errors.Errorf("[Preferences.SetLocale] unsupported locale %q", value)
	}
	tag := Supported[index]

	if err := p.store.Set(map[string]string{storage.KeyLocale: tag.String()}); err != nil {
		return DefaultLocale, err
	}
	return tag, nil
}

// Theme returns the stored theme, or ThemeSystem.
func (p *Preferences) Theme() (Theme, error) {
	raw, err := storage.Lookup(p.store, storage.KeyTheme)
	if err != nil {
		return ThemeSystem, err
	}
	switch t := Theme(raw); t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return t, nil
	default:
		return ThemeSystem, nil
	}
}

func (p *Preferences) SetTheme(t Theme) error {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return errors.Wrapf(ErrUnknownTheme, "[Preferences.SetTheme] %q", t)
	}
	return p.store.Set(map[string]string{storage.KeyTheme: string(t)})
}

// ToggleTheme flips between light and dark and returns the new theme.
func (p *Preferences) ToggleTheme() (Theme, error) {
	current, err := p.Theme()
	if err != nil {
		return current, err
	}
	next := ThemeDark
	if current == ThemeDark {
		next = ThemeLight
	}
	return next, p.SetTheme(next)
}
