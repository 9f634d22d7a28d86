// Package storage defines the durable key/value port shared by the client
// components. Session and preference state is read at startup and written on
// every session or preference transition.
package storage

import "github.com/pkg/errors"

// Well known keys held in durable storage.
const (
	KeyToken  = "token"
	KeyUser   = "user"
	KeyLocale = "locale"
	KeyTheme  = "theme"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("storage: key not found")

// Store is the durable storage port. Set and Clear apply all of their keys
// atomically with respect to any concurrent Get.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(key string) (string, error)

	// Set writes every key/value pair in values.
	Set(values map[string]string) error

	// Clear removes the given keys. Missing keys are ignored.
	Clear(keys ...string) error
}

// SessionKeys are the keys owned by the session lifecycle.
var SessionKeys = []string{KeyToken, KeyUser}

// Lookup returns the value for key, treating a missing key as empty.
func Lookup(s Store, key string) (string, error) {
	v, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}
