package conversations

import (
	"context"

	handlersupport "recipehub/internal/app/handlers/support"
	"recipehub/internal/app/outbox"
	"recipehub/internal/app/uow"
	domainconversation "recipehub/internal/domain/conversation"
	domainmessage "recipehub/internal/domain/message"
	domainuser "recipehub/internal/domain/user"
)

const readKey = "conversations.read"

// MarkAsReadCommand adds the actor to the seen-by set of every message in
// the conversation, their own messages included.
type MarkAsReadCommand struct {
	ActorID        string `validate:"required"`
	ConversationID string `validate:"required"`
}

func (c MarkAsReadCommand) Key() string   { return readKey }
func (c MarkAsReadCommand) Actor() string { return c.ActorID }

type MarkAsReadResult struct {
	ConversationID string `json:"conversation_id"`
	Marked         int    `json:"marked"`
}

func (h *Handler) MarkAsRead(ctx context.Context, cmd MarkAsReadCommand) (MarkAsReadResult, error) {
	var out MarkAsReadResult
	err := handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		actor := domainuser.ID(cmd.ActorID)
		sc, err := h.load(ctx, unit, domainconversation.ID(cmd.ConversationID), actor)
		if err != nil {
			return err
		}
		if err := h.hydrate(ctx, unit, sc.conv); err != nil {
			return err
		}
		changed := sc.conv.MarkAsRead(actor, h.now())
		if len(changed) > 0 {
			ids := make([]domainmessage.ID, 0, len(changed))
			for _, m := range changed {
				ids = append(ids, m.ID)
			}
			// set-add at the storage level keeps concurrent marks idempotent
			if err := unit.Messages().MarkSeen(ctx, ids, actor); err != nil {
				return err
			}
		}
		if err := outbox.Drain(ctx, h.Outbox, h.Encoder, sc.conv); err != nil {
			return err
		}
		out = MarkAsReadResult{ConversationID: string(sc.conv.ID), Marked: len(changed)}
		return nil
	})
	return out, err
}
