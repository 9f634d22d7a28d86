package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseUpdateFlags(t *testing.T) {
	id, patch, err := parseUpdateFlags([]string{"-id", "e1", "-title", "Retro", "-start", "2024-05-01T09:00:00Z"})
	require.NoError(t, err)
	require.Equal(t, "e1", id)
	require.Equal(t, "Retro", *patch.Title)
	require.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), patch.Start.UTC())
	require.Nil(t, patch.End)
	require.Nil(t, patch.Notes)

	_, patch, err = parseUpdateFlags([]string{"-id", "e1", "-notes", ""})
	require.NoError(t, err)
	require.NotNil(t, patch.Notes)
	require.Empty(t, *patch.Notes)
	require.False(t, patch.Empty())

	_, patch, err = parseUpdateFlags([]string{"-id", "e1", "-title", ""})
	require.NoError(t, err)
	require.True(t, patch.Empty())

	_, _, err = parseUpdateFlags([]string{"-id", "e1", "-end", "tomorrow"})
	require.Error(t, err)
}
