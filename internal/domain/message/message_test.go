package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"recipehub/internal/domain/recipe"
	"recipehub/internal/domain/user"
)

func TestNewPicksVariantFromPayload(t *testing.T) {
	text, err := New(CreateParams{ID: "m1", SenderID: "alice", Text: "hello"})
	require.NoError(t, err)
	require.Equal(t, KindText, text.Kind())
	require.Equal(t, "hello", text.Content.Text())

	image, err := New(CreateParams{ID: "m2", SenderID: "alice", ImageURLs: []string{"https://img/1.png"}})
	require.NoError(t, err)
	require.Equal(t, KindImage, image.Kind())
	require.Equal(t, "", image.Content.Text())

	captioned, err := New(CreateParams{ID: "m3", SenderID: "alice", Text: "look", ImageURLs: []string{"https://img/1.png"}})
	require.NoError(t, err)
	require.Equal(t, KindImage, captioned.Kind())
	require.Equal(t, "look", captioned.Content.Text())

	shared, err := New(CreateParams{
		ID:        "m4",
		SenderID:  "alice",
		Text:      "try this",
		ImageURLs: []string{"https://img/1.png"},
		RecipeIDs: []recipe.ID{"r1"},
	})
	require.NoError(t, err)
	require.Equal(t, KindRecipe, shared.Kind())
	content, ok := shared.Content.(RecipeContent)
	require.True(t, ok)
	require.Equal(t, []recipe.ID{"r1"}, content.RecipeIDs)
}

func TestNewRejectsEmptyContent(t *testing.T) {
	_, err := New(CreateParams{ID: "m1", SenderID: "alice", Text: "   ", ImageURLs: []string{""}, RecipeIDs: []recipe.ID{}})
	require.ErrorIs(t, err, ErrEmptyContent)

	_, err = New(CreateParams{ID: "m1", Text: "hi"})
	require.ErrorIs(t, err, ErrSenderRequired)
}

func TestUpdatePreservesIdentity(t *testing.T) {
	sent := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	m, err := New(CreateParams{ID: "m1", SenderID: "alice", Text: "first", SentAt: sent, RepliedToID: "m0"})
	require.NoError(t, err)

	edited := "second"
	now := sent.Add(time.Hour)
	require.NoError(t, m.Update(UpdateParams{Text: &edited, ImageURLs: []string{"ignored"}, Now: now}))

	require.Equal(t, ID("m1"), m.ID)
	require.Equal(t, user.ID("alice"), m.SenderID)
	require.Equal(t, sent, m.SentAt)
	require.Equal(t, ID("m0"), m.RepliedToID)
	require.Equal(t, KindText, m.Kind())
	require.Equal(t, "second", m.Content.Text())
	require.NotNil(t, m.UpdatedAt)
	require.Equal(t, now, *m.UpdatedAt)
}

func TestUpdateRejectsEmptiedPayload(t *testing.T) {
	m, err := New(CreateParams{ID: "m1", SenderID: "alice", Text: "caption", ImageURLs: []string{"a"}})
	require.NoError(t, err)
	require.ErrorIs(t, m.Update(UpdateParams{ImageURLs: []string{}}), ErrEmptyContent)
	require.Nil(t, m.UpdatedAt)

	r, err := New(CreateParams{ID: "m2", SenderID: "alice", RecipeIDs: []recipe.ID{"r1"}})
	require.NoError(t, err)
	require.NoError(t, r.Update(UpdateParams{RecipeIDs: []recipe.ID{"r2", "r3"}}))
	require.Equal(t, []recipe.ID{"r2", "r3"}, r.Content.(RecipeContent).RecipeIDs)

	blank := ""
	tm, err := New(CreateParams{ID: "m3", SenderID: "alice", Text: "x"})
	require.NoError(t, err)
	require.ErrorIs(t, tm.Update(UpdateParams{Text: &blank}), ErrEmptyContent)
}

type unknownContent struct{}

func (unknownContent) Kind() Kind   { return "VOICE" }
func (unknownContent) Text() string { return "" }
func (unknownContent) isContent()   {}

func TestUpdateRejectsUnknownVariant(t *testing.T) {
	m := &Message{ID: "m1", SenderID: "alice", Content: unknownContent{}}
	require.ErrorIs(t, m.Update(UpdateParams{}), ErrInvalidType)

	m.Content = nil
	require.ErrorIs(t, m.Update(UpdateParams{}), ErrInvalidType)
}

func TestMarkSeenByIsIdempotent(t *testing.T) {
	m, err := New(CreateParams{ID: "m1", SenderID: "alice", Text: "hi"})
	require.NoError(t, err)

	require.True(t, m.MarkSeenBy("bob"))
	require.False(t, m.MarkSeenBy("bob"))
	require.False(t, m.MarkSeenBy(""))
	require.Equal(t, []user.ID{"bob"}, m.SeenBy)
}

func TestRecordRoundTripKeepsVariant(t *testing.T) {
	m, err := New(CreateParams{ID: "m1", SenderID: "alice", Text: "dinner?", RecipeIDs: []recipe.ID{"r1", "r2"}, RepliedToID: "m0"})
	require.NoError(t, err)
	m.MarkSeenBy("bob")

	restored, err := Restore(m.ToRecord())
	require.NoError(t, err)
	require.Equal(t, m.Content, restored.Content)
	require.Equal(t, m.SeenBy, restored.SeenBy)
	require.Equal(t, ID("m0"), restored.RepliedToID)
	require.Nil(t, restored.RepliedTo)

	_, err = Restore(Record{ID: "x", Kind: "STICKER"})
	require.ErrorIs(t, err, ErrInvalidType)
}

func TestDropRecipe(t *testing.T) {
	m, err := New(CreateParams{ID: "m1", SenderID: "alice", RecipeIDs: []recipe.ID{"r1", "r2"}})
	require.NoError(t, err)

	keep, err := m.DropRecipe("r1", time.Now())
	require.NoError(t, err)
	require.True(t, keep)
	require.Equal(t, []recipe.ID{"r2"}, m.Content.(RecipeContent).RecipeIDs)

	keep, err = m.DropRecipe("r2", time.Now())
	require.NoError(t, err)
	require.False(t, keep)

	captioned, err := New(CreateParams{ID: "m2", SenderID: "alice", Text: "so good", RecipeIDs: []recipe.ID{"r1"}})
	require.NoError(t, err)
	keep, err = captioned.DropRecipe("r1", time.Now())
	require.NoError(t, err)
	require.True(t, keep)
	require.Equal(t, KindText, captioned.Kind())
}
