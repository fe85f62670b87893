package recipes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainconversation "recipehub/internal/domain/conversation"
	domainmessage "recipehub/internal/domain/message"
	domainrecipe "recipehub/internal/domain/recipe"
	"recipehub/internal/infra/storage/memory"
)

func TestRecipeDeletionStripsAndDeletesMessages(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	at := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)

	store.Messages.Put(domainmessage.Record{ID: "only", ConversationID: "c1", SenderID: "alice", Kind: domainmessage.KindRecipe, RecipeIDs: []domainrecipe.ID{"r1"}, SentAt: at})
	store.Messages.Put(domainmessage.Record{ID: "both", ConversationID: "c1", SenderID: "alice", Kind: domainmessage.KindRecipe, RecipeIDs: []domainrecipe.ID{"r1", "r2"}, SentAt: at})
	store.Messages.Put(domainmessage.Record{ID: "captioned", ConversationID: "c1", SenderID: "bob", Kind: domainmessage.KindRecipe, Text: "so good", RecipeIDs: []domainrecipe.ID{"r1"}, SentAt: at})
	store.Messages.Put(domainmessage.Record{ID: "plain", ConversationID: "c1", SenderID: "bob", Kind: domainmessage.KindText, Text: "hi", SentAt: at})
	store.Conversations.Put(&domainconversation.Conversation{
		ID:         "c1",
		Backing:    domainconversation.ConnectionBacking{ConnectionID: "k1"},
		MessageIDs: []domainmessage.ID{"only", "both", "captioned", "plain"},
		CreatedAt:  at,
		Version:    1,
	})
	preview, err := domainrecipe.NewPreview("r1", "Soup", "", "carol")
	require.NoError(t, err)
	require.NoError(t, store.Recipes.Save(ctx, preview))

	h := &Handler{UoWFactory: store.Factory(), Outbox: memory.NewOutbox(), Previews: store.Recipes, RetryBackoff: time.Millisecond}
	res, err := h.Handle(ctx, RecipeDeletedCommand{RecipeID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, RecipeDeletedResult{Updated: 2, Deleted: 1}, res)

	_, err = store.Messages.ByID(ctx, "only")
	require.ErrorIs(t, err, domainmessage.ErrNotFound)

	both, err := store.Messages.ByID(ctx, "both")
	require.NoError(t, err)
	assert.Equal(t, []domainrecipe.ID{"r2"}, both.RecipeIDs)

	captioned, err := store.Messages.ByID(ctx, "captioned")
	require.NoError(t, err)
	assert.Equal(t, domainmessage.KindText, captioned.Kind)
	assert.Equal(t, "so good", captioned.Text)

	conv, err := store.Conversations.ByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []domainmessage.ID{"both", "captioned", "plain"}, conv.MessageIDs)

	_, err = store.Recipes.ByID(ctx, "r1")
	require.ErrorIs(t, err, domainrecipe.ErrNotFound)

	again, err := h.Handle(ctx, RecipeDeletedCommand{RecipeID: "r1"})
	require.NoError(t, err)
	assert.Zero(t, again.Updated+again.Deleted)
}
