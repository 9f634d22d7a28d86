package memstore_test

import (
	"testing"

	"github.com/jrsteele09/go-calendar-sync/client/storage"
	"github.com/jrsteele09/go-calendar-sync/client/storage/memstore"
	"github.com/stretchr/testify/require"
)

func TestMemStore(t *testing.T) {
	s := memstore.NewWith(map[string]string{storage.KeyTheme: "light"})

	v, err := storage.Lookup(s, storage.KeyToken)
	require.NoError(t, err)
	require.Empty(t, v)

	require.NoError(t, s.Set(map[string]string{storage.KeyToken: "abc", storage.KeyUser: "{}"}))
	require.Equal(t, 3, s.Len())

	require.NoError(t, s.Clear(storage.SessionKeys...))
	require.Equal(t, 1, s.Len())

	theme, err := s.Get(storage.KeyTheme)
	require.NoError(t, err)
	require.Equal(t, "light", theme)
}
