// Package recipes reacts to recipe lifecycle events published by the recipe
// service.
package recipes

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"recipehub/internal/app/commands"
	handlersupport "recipehub/internal/app/handlers/support"
	"recipehub/internal/app/middleware"
	"recipehub/internal/app/outbox"
	"recipehub/internal/app/uow"
	domainconversation "recipehub/internal/domain/conversation"
	domainmessage "recipehub/internal/domain/message"
	domainrecipe "recipehub/internal/domain/recipe"
)

const recipeDeletedKey = "recipes.deleted"

// RecipeDeletedCommand strips a deleted recipe from every message sharing
// it. Messages left without any payload are deleted.
type RecipeDeletedCommand struct {
	RecipeID string `validate:"required"`
}

func (c RecipeDeletedCommand) Key() string          { return recipeDeletedKey }
func (c RecipeDeletedCommand) ManagesOwnUnit() bool { return true }

type RecipeDeletedResult struct {
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// PreviewRemover drops the cached preview of a deleted recipe.
type PreviewRemover interface {
	Delete(ctx context.Context, id domainrecipe.ID) error
}

type Handler struct {
	UoWFactory   uow.UoWFactory
	Outbox       outbox.Outbox
	Encoder      outbox.EventEncoder
	Previews     PreviewRemover
	Logger       *slog.Logger
	Now          func() time.Time
	Retries      int
	RetryBackoff time.Duration
}

func (h *Handler) Handle(ctx context.Context, cmd RecipeDeletedCommand) (RecipeDeletedResult, error) {
	recipeID := domainrecipe.ID(cmd.RecipeID)
	var affected []*domainmessage.Record
	err := handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		affected, err = unit.Messages().ListWithRecipe(ctx, recipeID)
		return err
	})
	if err != nil {
		return RecipeDeletedResult{}, err
	}

	var res RecipeDeletedResult
	for _, rec := range affected {
		deleted, err := h.dropFrom(ctx, rec.ID, recipeID)
		if err != nil {
			if errors.Is(err, domainmessage.ErrNotFound) {
				continue
			}
			return res, err
		}
		if deleted {
			res.Deleted++
		} else {
			res.Updated++
		}
	}
	if h.Previews != nil {
		if err := h.Previews.Delete(ctx, recipeID); err != nil {
			h.logger().Warn("recipe preview removal failed", "recipe_id", recipeID, "error", err)
		}
	}
	h.logger().Info("recipe removed from messages", "recipe_id", recipeID, "updated", res.Updated, "deleted", res.Deleted)
	return res, nil
}

// dropFrom removes the recipe from one message in its own unit and reports
// whether the message had to be deleted.
func (h *Handler) dropFrom(ctx context.Context, msgID domainmessage.ID, recipeID domainrecipe.ID) (bool, error) {
	var deleted bool
	attempts := h.Retries
	if attempts <= 0 {
		attempts = 3
	}
	err := handlersupport.Retry(ctx, attempts, h.RetryBackoff, domainconversation.ErrConcurrentUpdate, func() error {
		return handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
			rec, err := unit.Messages().ByID(ctx, msgID)
			if err != nil {
				return err
			}
			m, err := domainmessage.Restore(*rec)
			if err != nil {
				return err
			}
			now := h.now()
			keep, err := m.DropRecipe(recipeID, now)
			if err != nil {
				return err
			}
			if keep {
				deleted = false
				if err := unit.Messages().Update(ctx, m); err != nil {
					return err
				}
				return outbox.Drain(ctx, h.Outbox, h.Encoder, m)
			}

			deleted = true
			if m.ConversationID != "" {
				conv, err := unit.Conversations().ByID(ctx, domainconversation.ID(m.ConversationID))
				switch {
				case err == nil:
					if conv.RemoveMessage(m.ID) {
						if err := unit.Conversations().Update(ctx, conv); err != nil {
							return err
						}
					}
				case !errors.Is(err, domainconversation.ErrNotFound):
					return err
				}
			}
			if err := unit.Messages().Delete(ctx, m.ID); err != nil {
				return err
			}
			m.Record(domainmessage.MessageDeleted{MessageID: m.ID, ConversationID: m.ConversationID, At: now})
			return outbox.Drain(ctx, h.Outbox, h.Encoder, m)
		})
	})
	return deleted, err
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *Handler) Register(bus *commands.InMemoryBus) {
	commands.RegisterHandler(bus, recipeDeletedKey, commands.Handler[RecipeDeletedCommand, RecipeDeletedResult](h))
}

var _ middleware.SelfManagedCommand = RecipeDeletedCommand{}
