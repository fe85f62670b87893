package conversations

import (
	"context"

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

const (
	updateKey = "conversations.messages.update"
	deleteKey = "conversations.messages.delete"
)

// UpdateMessageCommand replaces message payloads. Nil fields keep the
// current value.
type UpdateMessageCommand struct {
	ActorID        string   `validate:"required"`
	ConversationID string   `validate:"required"`
	MessageID      string   `validate:"required"`
	Text           *string  `validate:"omitempty,max=8000"`
	ImageURLs      []string `validate:"omitempty,max=20,dive,url"`
	RecipeIDs      []string `validate:"omitempty,max=20,dive,required"`
	ConnectionID   string
	GroupID        string
}

func (c UpdateMessageCommand) Key() string   { return updateKey }
func (c UpdateMessageCommand) Actor() string { return c.ActorID }

type DeleteMessageCommand struct {
	ActorID        string `validate:"required"`
	ConversationID string `validate:"required"`
	MessageID      string `validate:"required"`
	ConnectionID   string
	GroupID        string
}

func (c DeleteMessageCommand) Key() string          { return deleteKey }
func (c DeleteMessageCommand) Actor() string        { return c.ActorID }
func (c DeleteMessageCommand) ManagesOwnUnit() bool { return true }

type DeleteMessageResult struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// editable loads the message for a write by its author and runs the
// consistency policy on the supplied context.
func (h *Handler) editable(ctx context.Context, unit uow.UnitOfWork, actor, convID, msgID, connID, groupID string) (*scope, *domainmessage.Message, error) {
	sc, err := h.load(ctx, unit, domainconversation.ID(convID), domainuser.ID(actor))
	if err != nil {
		return nil, nil, err
	}
	uc, err := suppliedContext(ctx, unit, sc, connID, groupID)
	if err != nil {
		return nil, nil, err
	}
	policy := domainconversation.ConsistencyPolicy{Connections: unit.Connections()}
	if err := policy.Check(ctx, sc.conv, uc); err != nil {
		return nil, nil, err
	}
	id := domainmessage.ID(msgID)
	if !sc.conv.HasMessage(id) {
		return nil, nil, domainmessage.ErrNotFound
	}
	rec, err := unit.Messages().ByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	m, err := domainmessage.Restore(*rec)
	if err != nil {
		return nil, nil, err
	}
	if m.SenderID != domainuser.ID(actor) {
		return nil, nil, handlersupport.ErrForbidden
	}
	return sc, m, nil
}

func (h *Handler) UpdateMessage(ctx context.Context, cmd UpdateMessageCommand) (dto.Message, error) {
	var out dto.Message
	err := handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		_, m, err := h.editable(ctx, unit, cmd.ActorID, cmd.ConversationID, cmd.MessageID, cmd.ConnectionID, cmd.GroupID)
		if err != nil {
			return err
		}
		params := domainmessage.UpdateParams{Text: cmd.Text, ImageURLs: cmd.ImageURLs, Now: h.now()}
		for _, id := range cmd.RecipeIDs {
			params.RecipeIDs = append(params.RecipeIDs, domainrecipe.ID(id))
		}
		if err := m.Update(params); err != nil {
			return err
		}
		if err := unit.Messages().Update(ctx, m); err != nil {
			return err
		}
		if err := outbox.Drain(ctx, h.Outbox, h.Encoder, m); err != nil {
			return err
		}
		rec := m.ToRecord()
		assembled, err := h.messageAssembler(unit).Assemble(ctx, &rec)
		if err != nil {
			return err
		}
		out = dto.MapMessage(assembled)
		return nil
	})
	if err != nil {
		return dto.Message{}, err
	}
	return out, nil
}

func (h *Handler) DeleteMessage(ctx context.Context, cmd DeleteMessageCommand) (DeleteMessageResult, error) {
	err := h.retry(ctx, func() error {
		return handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
			sc, m, err := h.editable(ctx, unit, cmd.ActorID, cmd.ConversationID, cmd.MessageID, cmd.ConnectionID, cmd.GroupID)
			if err != nil {
				return err
			}
			sc.conv.RemoveMessage(m.ID)
			if err := unit.Conversations().Update(ctx, sc.conv); err != nil {
				return err
			}
			if err := unit.Messages().Delete(ctx, m.ID); err != nil {
				return err
			}
			m.Record(domainmessage.MessageDeleted{MessageID: m.ID, ConversationID: string(sc.conv.ID), At: h.now()})
			return outbox.Drain(ctx, h.Outbox, h.Encoder, m)
		})
	})
	if err != nil {
		return DeleteMessageResult{}, err
	}
	h.logger().Info("message deleted", "conversation_id", cmd.ConversationID, "message_id", cmd.MessageID)
	return DeleteMessageResult{ConversationID: cmd.ConversationID, MessageID: cmd.MessageID}, nil
}

var _ middleware.SelfManagedCommand = DeleteMessageCommand{}
