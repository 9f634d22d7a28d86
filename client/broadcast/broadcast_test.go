package broadcast_test

import (
	"bytes"
	"testing"

	"github.com/jrsteele09/go-calendar-sync/client/broadcast"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastReachesCurrentSubscribers(t *testing.T) {
	hub := broadcast.NewHub()

	var first, second []broadcast.Invalidation
	unsubFirst := hub.Subscribe(func(m broadcast.Invalidation) { first = append(first, m) })
	hub.Subscribe(func(m broadcast.Invalidation) { second = append(second, m) })
	require.Equal(t, 2, hub.Len())

	hub.Broadcast(broadcast.Invalidation{Reason: broadcast.ReasonRejected, Status: 401})
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	require.Equal(t, 401, first[0].Status)
	require.False(t, first[0].At.IsZero())

	unsubFirst()
	unsubFirst()
	require.Equal(t, 1, hub.Len())

	hub.Broadcast(broadcast.Invalidation{Reason: broadcast.ReasonLogout})
	require.Len(t, first, 1)
	require.Len(t, second, 2)
}

func TestHub_NoSubscribers(t *testing.T) {
	hub := broadcast.NewHub()
	require.NotPanics(t, func() {
		hub.Broadcast(broadcast.Invalidation{Reason: broadcast.ReasonRejected})
	})
}

func TestHub_PanickingListenerDoesNotStopOthers(t *testing.T) {
	var out bytes.Buffer
	hub := broadcast.NewHub(broadcast.WithLogger(zerolog.New(&out)))

	called := false
	hub.Subscribe(func(broadcast.Invalidation) { panic("boom") })
	hub.Subscribe(func(broadcast.Invalidation) { called = true })

	require.NotPanics(t, func() {
		hub.Broadcast(broadcast.Invalidation{Reason: broadcast.ReasonRejected})
	})
	require.True(t, called)
	require.Contains(t, out.String(), "invalidation listener panicked")
	require.Contains(t, out.String(), "boom")
}

func TestHub_ListenerMayUnsubscribeItself(t *testing.T) {
	hub := broadcast.NewHub()

	calls := 0
	var unsub func()
	unsub = hub.Subscribe(func(broadcast.Invalidation) {
		calls++
		unsub()
	})

	hub.Broadcast(broadcast.Invalidation{})
	hub.Broadcast(broadcast.Invalidation{})
	require.Equal(t, 1, calls)
	require.Zero(t, hub.Len())
}
