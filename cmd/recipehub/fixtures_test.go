package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	domainrecipe "recipehub/internal/domain/recipe"
	domainuser "recipehub/internal/domain/user"
	"recipehub/internal/infra/storage/memory"
)

func TestLoadFixtures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"), []byte(`[
		{"id":"alice","handle":"alice","blocked_connections":["c-1"]},
		{"id":"","handle":"broken"}
	]`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recipes.json"), []byte(`[{"id":"r-1","title":"Focaccia","author_id":"alice"}]`), 0o600))

	store := memory.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, loadFixtures(context.Background(), dir, store.Users, store.Recipes, logger))

	u, err := store.Users.ByID(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, u.HasBlocked("c-1"))
	_, err = store.Users.ByID(context.Background(), "")
	require.ErrorIs(t, err, domainuser.ErrNotFound)

	p, err := store.Recipes.ByID(context.Background(), "r-1")
	require.NoError(t, err)
	require.Equal(t, "Focaccia", p.Title)
	_, err = store.Recipes.ByID(context.Background(), domainrecipe.ID("r-2"))
	require.ErrorIs(t, err, domainrecipe.ErrNotFound)
}

func TestLoadFixturesMissingDir(t *testing.T) {
	store := memory.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, loadFixtures(context.Background(), filepath.Join(t.TempDir(), "absent"), store.Users, store.Recipes, logger))
}

func TestLoadFixturesRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"), []byte(`{not json`), 0o600))
	store := memory.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.Error(t, loadFixtures(context.Background(), dir, store.Users, store.Recipes, logger))
}
