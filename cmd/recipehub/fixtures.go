package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	domainrecipe "recipehub/internal/domain/recipe"
	domainuser "recipehub/internal/domain/user"
)

type userFixture struct {
	ID                  string   `json:"id"`
	Handle              string   `json:"handle"`
	DisplayName         string   `json:"display_name"`
	ProfileImageURL     string   `json:"profile_image_url"`
	BlockedConnections  []string `json:"blocked_connections"`
	PinnedConversations []string `json:"pinned_conversations"`
}

type recipeFixture struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
	AuthorID string `json:"author_id"`
}

// loadFixtures seeds the user and recipe directories from dir/users.json
// and dir/recipes.json. Missing files are skipped.
func loadFixtures(ctx context.Context, dir string, users domainuser.Repository, recipes domainrecipe.Repository, logger *slog.Logger) error {
	var userFixtures []userFixture
	if err := readFixtureFile(filepath.Join(dir, "users.json"), &userFixtures, logger); err != nil {
		return err
	}
	for _, fx := range userFixtures {
		u, err := domainuser.NewUser(domainuser.CreateParams{
			ID:                  domainuser.ID(fx.ID),
			Handle:              fx.Handle,
			DisplayName:         fx.DisplayName,
			ProfileImageURL:     fx.ProfileImageURL,
			BlockedConnections:  fx.BlockedConnections,
			PinnedConversations: fx.PinnedConversations,
		})
		if err != nil {
			logger.Error("fixture invalid", "user_id", fx.ID, "error", err)
			continue
		}
		if err := users.Save(ctx, u); err != nil {
			logger.Error("cannot store fixture user", "user_id", fx.ID, "error", err)
			continue
		}
	}

	var recipeFixtures []recipeFixture
	if err := readFixtureFile(filepath.Join(dir, "recipes.json"), &recipeFixtures, logger); err != nil {
		return err
	}
	for _, fx := range recipeFixtures {
		p, err := domainrecipe.NewPreview(domainrecipe.ID(fx.ID), fx.Title, fx.ImageURL, fx.AuthorID)
		if err != nil {
			logger.Error("fixture invalid", "recipe_id", fx.ID, "error", err)
			continue
		}
		if err := recipes.Save(ctx, p); err != nil {
			logger.Error("cannot store fixture recipe", "recipe_id", fx.ID, "error", err)
			continue
		}
	}
	logger.Info("fixtures imported", "users", len(userFixtures), "recipes", len(recipeFixtures))
	return nil
}

func readFixtureFile(path string, dst any, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("fixtures file empty", "path", path)
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode fixtures %s: %w", path, err)
	}
	return nil
}
