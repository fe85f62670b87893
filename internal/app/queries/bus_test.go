package queries

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type countQuery struct{ N int }

func (countQuery) Key() string { return "test.count" }

type unknownQuery struct{}

func (unknownQuery) Key() string { return "test.unknown" }

func TestAskRoutesByKey(t *testing.T) {
	bus := NewInMemoryBus()
	RegisterHandler(bus, "test.count", HandlerFunc[countQuery, int](func(_ context.Context, q countQuery) (int, error) {
		return q.N * 2, nil
	}))

	got, err := Ask[countQuery, int](context.Background(), bus, countQuery{N: 21})
	require.NoError(t, err)
	require.Equal(t, 42, got)

	_, err = Ask[unknownQuery, int](context.Background(), bus, unknownQuery{})
	require.ErrorIs(t, err, ErrHandlerNotFound)

	_, err = Ask[countQuery, string](context.Background(), bus, countQuery{})
	require.ErrorIs(t, err, ErrResultType)

	_, err = Ask[countQuery, int](context.Background(), nil, countQuery{})
	require.ErrorIs(t, err, ErrNilBus)
	require.Equal(t, []string{"test.count"}, bus.Keys())
}
