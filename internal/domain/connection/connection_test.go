package connection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"recipehub/internal/domain/user"
)

func TestPairIsOrderIndependent(t *testing.T) {
	ab := NewPair("alice", "bob")
	ba := NewPair("bob", "alice")

	require.Equal(t, ab, ba)
	require.Equal(t, ab.Key(), ba.Key())
	require.Equal(t, "alice|bob", ab.Key())

	other, ok := ab.Other("bob")
	require.True(t, ok)
	require.Equal(t, user.ID("alice"), other)
	_, ok = ab.Other("carol")
	require.False(t, ok)
}

func TestNewDefaultsToPending(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	c, err := New(CreateParams{ID: "c1", RequestedBy: "zoe", Other: "adam", CreatedAt: now})
	require.NoError(t, err)
	require.Equal(t, StatusPending, c.Status)
	require.Equal(t, user.ID("zoe"), c.RequestedBy)
	require.Equal(t, Pair{A: "adam", B: "zoe"}, c.Pair)
	require.Len(t, c.PendingEvents(), 1)
	require.Equal(t, "connection.created", c.PendingEvents()[0].EventName())
}

func TestNewRejectsInvalidInput(t *testing.T) {
	_, err := New(CreateParams{ID: "c1", RequestedBy: "alice", Other: "alice"})
	require.ErrorIs(t, err, ErrSelfConnection)

	_, err = New(CreateParams{ID: "c1", RequestedBy: "alice"})
	require.ErrorIs(t, err, ErrAccountRequired)

	_, err = New(CreateParams{RequestedBy: "alice", Other: "bob"})
	require.ErrorIs(t, err, ErrIDRequired)

	_, err = New(CreateParams{ID: "c1", RequestedBy: "alice", Other: "bob", Status: "BLOCKED"})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateStatusRecordsChangeOnce(t *testing.T) {
	c, err := New(CreateParams{ID: "c1", RequestedBy: "alice", Other: "bob"})
	require.NoError(t, err)
	require.Len(t, c.PullEvents(), 1)

	require.NoError(t, c.UpdateStatus(StatusFavourite, time.Now()))
	require.NoError(t, c.UpdateStatus(StatusFavourite, time.Now()))
	require.Equal(t, StatusFavourite, c.Status)
	require.Len(t, c.PendingEvents(), 1)

	require.ErrorIs(t, c.UpdateStatus("nope", time.Now()), ErrInvalidStatus)
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"pending":   StatusPending,
		"Connected": StatusConnected,
		"favorite":  StatusFavourite,
		"FAVOURITE": StatusFavourite,
	}
	for raw, want := range cases {
		got, err := ParseStatus(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}
	_, err := ParseStatus("blocked")
	require.ErrorIs(t, err, ErrInvalidStatus)
}
