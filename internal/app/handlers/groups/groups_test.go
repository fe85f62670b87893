package groups

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handlersupport "recipehub/internal/app/handlers/support"
	domaingroup "recipehub/internal/domain/group"
	domainuser "recipehub/internal/domain/user"
	"recipehub/internal/infra/storage/memory"
)

func TestGroupLifecycle(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	for _, id := range []string{"alice", "bob", "carol"} {
		u, err := domainuser.NewUser(domainuser.CreateParams{ID: domainuser.ID(id), Handle: id})
		require.NoError(t, err)
		require.NoError(t, store.Users.Save(ctx, u))
	}
	h := &Handler{UoWFactory: store.Factory(), Outbox: memory.NewOutbox()}

	g, err := h.Create(ctx, CreateCommand{ActorID: "alice", Name: " Bakers ", MemberIDs: []string{"bob", "alice"}})
	require.NoError(t, err)
	assert.Equal(t, "Bakers", g.Name)
	assert.ElementsMatch(t, []string{"alice", "bob"}, g.Members)

	_, err = h.Create(ctx, CreateCommand{ActorID: "alice", Name: "x", MemberIDs: []string{"ghost"}})
	require.ErrorIs(t, err, domainuser.ErrNotFound)

	_, err = h.Create(ctx, CreateCommand{ActorID: "alice", Name: "  "})
	require.ErrorIs(t, err, domaingroup.ErrNameRequired)

	got, err := h.Get(ctx, GetQuery{ActorID: "bob", GroupID: g.ID})
	require.NoError(t, err)
	assert.Equal(t, g.ID, got.ID)

	_, err = h.Get(ctx, GetQuery{ActorID: "carol", GroupID: g.ID})
	require.ErrorIs(t, err, handlersupport.ErrForbidden)

	list, err := h.List(ctx, ListQuery{ActorID: "carol"})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
}
