package conversations

import (
	"context"
	"errors"

	"recipehub/internal/app/dto"
	handlersupport "recipehub/internal/app/handlers/support"
	"recipehub/internal/app/middleware"
	"recipehub/internal/app/outbox"
	"recipehub/internal/app/uow"
	domainconversation "recipehub/internal/domain/conversation"
	domainmessage "recipehub/internal/domain/message"
	domainrecipe "recipehub/internal/domain/recipe"
	domainuser "recipehub/internal/domain/user"
)

const sendKey = "conversations.messages.send"

// SendMessageCommand appends a message. ConnectionID or GroupID, when set,
// must name the context backing the conversation.
type SendMessageCommand struct {
	ActorID         string   `validate:"required"`
	ConversationID  string   `validate:"required"`
	Text            string   `validate:"max=8000"`
	ImageURLs       []string `validate:"max=20,dive,url"`
	RecipeIDs       []string `validate:"max=20,dive,required"`
	RepliedToID     string
	ConnectionID    string
	GroupID         string
	IdempotencyKeyV string
}

func (c SendMessageCommand) Key() string            { return sendKey }
func (c SendMessageCommand) Actor() string          { return c.ActorID }
func (c SendMessageCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c SendMessageCommand) ResultPrototype() any   { return &SendMessageResult{} }
func (c SendMessageCommand) ManagesOwnUnit() bool   { return true }

type SendMessageResult struct {
	ConversationID string      `json:"conversation_id"`
	Message        dto.Message `json:"message"`
}

func (h *Handler) SendMessage(ctx context.Context, cmd SendMessageCommand) (*SendMessageResult, error) {
	msgID := domainmessage.ID(handlersupport.NewID())
	recipeIDs := make([]domainrecipe.ID, 0, len(cmd.RecipeIDs))
	for _, id := range cmd.RecipeIDs {
		recipeIDs = append(recipeIDs, domainrecipe.ID(id))
	}
	var result *SendMessageResult
	err := h.retry(ctx, func() error {
		return handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
			sc, err := h.load(ctx, unit, domainconversation.ID(cmd.ConversationID), domainuser.ID(cmd.ActorID))
			if err != nil {
				return err
			}
			uc, err := suppliedContext(ctx, unit, sc, cmd.ConnectionID, cmd.GroupID)
			if err != nil {
				return err
			}
			policy := domainconversation.ConsistencyPolicy{Connections: unit.Connections()}
			if err := policy.Check(ctx, sc.conv, uc); err != nil {
				return err
			}
			if err := (domainconversation.SendGuard{}).CanSend(sc.conv, sc.actor, sc.peers...); err != nil {
				return err
			}
			replied := domainmessage.ID(cmd.RepliedToID)
			if replied != "" && !sc.conv.HasMessage(replied) {
				return ErrReplyNotInConversation
			}

			m, err := domainmessage.New(domainmessage.CreateParams{
				ID:             msgID,
				ConversationID: string(sc.conv.ID),
				SenderID:       sc.actor.ID,
				Text:           cmd.Text,
				ImageURLs:      cmd.ImageURLs,
				RecipeIDs:      recipeIDs,
				SentAt:         h.now(),
				RepliedToID:    replied,
			})
			if err != nil {
				return err
			}
			if err := unit.Messages().Create(ctx, m); err != nil {
				return err
			}
			sc.conv.SendMessage(m)
			if err := unit.Conversations().Update(ctx, sc.conv); err != nil {
				h.discardMessage(ctx, unit, m.ID)
				return err
			}
			if err := outbox.Drain(ctx, h.Outbox, h.Encoder, m, sc.conv); err != nil {
				return err
			}

			rec := m.ToRecord()
			assembled, err := h.messageAssembler(unit).Assemble(ctx, &rec)
			if err != nil {
				return err
			}
			result = &SendMessageResult{ConversationID: string(sc.conv.ID), Message: dto.MapMessage(assembled)}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	h.logger().Info("message sent", "conversation_id", cmd.ConversationID, "message_id", msgID, "sender_id", cmd.ActorID)
	return result, nil
}

// discardMessage removes a message the conversation never took, so stores
// without transactions keep no orphan.
func (h *Handler) discardMessage(ctx context.Context, unit uow.UnitOfWork, id domainmessage.ID) {
	if err := unit.Messages().Delete(ctx, id); err != nil && !errors.Is(err, domainmessage.ErrNotFound) {
		h.logger().Warn("orphan message not removed", "message_id", id, "error", err)
	}
}

var (
	_ middleware.IdempotentCommand  = SendMessageCommand{}
	_ middleware.SelfManagedCommand = SendMessageCommand{}
)
