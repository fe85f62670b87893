package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type renameCommand struct{ Name string }

func (renameCommand) Key() string { return "test.rename" }

type otherCommand struct{}

func (otherCommand) Key() string { return "test.other" }

type named struct{ Name string }

func TestDispatchRoutesByKey(t *testing.T) {
	bus := NewInMemoryBus()
	RegisterHandler(bus, "test.rename", HandlerFunc[renameCommand, named](func(_ context.Context, cmd renameCommand) (named, error) {
		return named{Name: cmd.Name}, nil
	}))

	got, err := Dispatch[renameCommand, named](context.Background(), bus, renameCommand{Name: "soup"})
	require.NoError(t, err)
	require.Equal(t, "soup", got.Name)

	_, err = Dispatch[otherCommand, named](context.Background(), bus, otherCommand{})
	require.ErrorIs(t, err, ErrHandlerNotFound)

	_, err = Dispatch[renameCommand, string](context.Background(), bus, renameCommand{Name: "x"})
	require.ErrorIs(t, err, ErrResultType)

	_, err = Dispatch[renameCommand, named](context.Background(), nil, renameCommand{})
	require.ErrorIs(t, err, ErrNilBus)
}

type pointerBus struct{ res any }

func (b pointerBus) Dispatch(context.Context, Command) (any, error) { return b.res, nil }

func TestDispatchDereferencesReplayedPointers(t *testing.T) {
	got, err := Dispatch[renameCommand, named](context.Background(), pointerBus{res: &named{Name: "replayed"}}, renameCommand{})
	require.NoError(t, err)
	require.Equal(t, "replayed", got.Name)

	var nilNamed *named
	got, err = Dispatch[renameCommand, named](context.Background(), pointerBus{res: nilNamed}, renameCommand{})
	require.NoError(t, err)
	require.Empty(t, got.Name)
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	bus := NewInMemoryBus()
	h := HandlerFunc[renameCommand, named](func(context.Context, renameCommand) (named, error) {
		return named{}, errors.New("unused")
	})
	RegisterHandler(bus, "test.rename", h)
	require.Panics(t, func() { RegisterHandler(bus, "test.rename", h) })
	require.Equal(t, []string{"test.rename"}, bus.Keys())
}
