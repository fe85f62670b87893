package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"

	"recipehub/internal/app/commands"
	"recipehub/internal/app/handlers/recipes"
)

const recipeDeletedType = "recipe.deleted"

// Inbox deduplicates deliveries by event id.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// RecipeEvents turns recipe lifecycle CloudEvents into bus commands.
type RecipeEvents struct {
	Commands    commands.Bus
	Inbox       Inbox
	Logger      *slog.Logger
	OnProcessed func(outcome string)
}

type cloudEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type recipeEventData struct {
	RecipeID string `json:"recipe_id"`
	ID       string `json:"id"`
}

func (h *RecipeEvents) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt cloudEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		h.logger().Warn("recipe event malformed", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		h.report("malformed")
		return nil
	}
	if !strings.HasPrefix(evt.Type, recipeDeletedType) {
		h.report("ignored")
		return nil
	}
	var data recipeEventData
	if len(evt.Data) > 0 {
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			h.logger().Warn("recipe event data malformed", "event_id", evt.ID, "error", err)
			h.report("malformed")
			return nil
		}
	}
	recipeID := strings.TrimSpace(data.RecipeID)
	if recipeID == "" {
		recipeID = strings.TrimSpace(data.ID)
	}
	if recipeID == "" {
		h.logger().Warn("recipe event without recipe id", "event_id", evt.ID)
		h.report("malformed")
		return nil
	}

	eventID := evt.ID
	if eventID == "" {
		eventID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	if h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, eventID)
		if err != nil {
			return err
		}
		if seen {
			h.report("duplicate")
			return nil
		}
	}

	res, err := commands.Dispatch[recipes.RecipeDeletedCommand, recipes.RecipeDeletedResult](ctx, h.Commands, recipes.RecipeDeletedCommand{RecipeID: recipeID})
	if err != nil {
		if h.Inbox != nil {
			if ferr := h.Inbox.Forget(ctx, eventID); ferr != nil {
				h.logger().Error("inbox forget failed", "event_id", eventID, "error", ferr)
			}
		}
		h.report("error")
		return err
	}
	h.logger().Info("recipe deletion applied", "recipe_id", recipeID, "updated", res.Updated, "deleted", res.Deleted)
	h.report("ok")
	return nil
}

func (h *RecipeEvents) report(outcome string) {
	if h.OnProcessed != nil {
		h.OnProcessed(outcome)
	}
}

func (h *RecipeEvents) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
