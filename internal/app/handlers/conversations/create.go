package conversations

import (
	"context"
	"errors"
	"strings"

	"recipehub/internal/app/dto"
	handlersupport "recipehub/internal/app/handlers/support"
	"recipehub/internal/app/outbox"
	"recipehub/internal/app/uow"
	domainconnection "recipehub/internal/domain/connection"
	domainconversation "recipehub/internal/domain/conversation"
	domaingroup "recipehub/internal/domain/group"
	domainuser "recipehub/internal/domain/user"
)

const createKey = "conversations.create"

// CreateCommand opens the conversation of a connection or a group. When the
// backing already has one, that conversation is returned unchanged.
type CreateCommand struct {
	ActorID      string `validate:"required"`
	ConnectionID string
	GroupID      string
}

func (c CreateCommand) Key() string   { return createKey }
func (c CreateCommand) Actor() string { return c.ActorID }

func (h *Handler) Create(ctx context.Context, cmd CreateCommand) (dto.Conversation, error) {
	connID := strings.TrimSpace(cmd.ConnectionID)
	groupID := strings.TrimSpace(cmd.GroupID)
	if (connID == "") == (groupID == "") {
		return dto.Conversation{}, ErrBackingRequired
	}
	actor := domainuser.ID(cmd.ActorID)
	var out dto.Conversation
	err := handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		var (
			conv *domainconversation.Conversation
			err  error
		)
		if connID != "" {
			conv, err = h.createForConnection(ctx, unit, domainconnection.ID(connID), actor)
		} else {
			conv, err = h.createForGroup(ctx, unit, domaingroup.ID(groupID), actor)
		}
		if err != nil {
			return err
		}
		if err := outbox.Drain(ctx, h.Outbox, h.Encoder, conv); err != nil {
			return err
		}
		if err := h.conversationAssembler(unit).Assemble(ctx, conv); err != nil {
			return err
		}
		viewer, err := unit.Users().ByID(ctx, actor)
		if err != nil {
			return err
		}
		out = dto.MapConversation(conv, viewer)
		return nil
	})
	if err != nil {
		return dto.Conversation{}, err
	}
	return out, nil
}

func (h *Handler) createForConnection(ctx context.Context, unit uow.UnitOfWork, id domainconnection.ID, actor domainuser.ID) (*domainconversation.Conversation, error) {
	conn, err := unit.Connections().ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conn.Involves(actor) {
		return nil, handlersupport.ErrForbidden
	}
	if existing, err := unit.Conversations().ByConnection(ctx, id); err == nil {
		return existing, nil
	} else if !errors.Is(err, domainconversation.ErrNotFound) {
		return nil, err
	}
	conv, err := domainconversation.NewForConnection(domainconversation.CreateParams{
		ID:        domainconversation.ID(handlersupport.NewID()),
		CreatedAt: h.now(),
	}, conn)
	if err != nil {
		return nil, err
	}
	if err := unit.Conversations().Create(ctx, conv); err != nil {
		if errors.Is(err, domainconversation.ErrAlreadyExists) {
			return unit.Conversations().ByConnection(ctx, id)
		}
		return nil, err
	}
	h.logger().Info("conversation created", "conversation_id", conv.ID, "connection_id", id)
	return conv, nil
}

func (h *Handler) createForGroup(ctx context.Context, unit uow.UnitOfWork, id domaingroup.ID, actor domainuser.ID) (*domainconversation.Conversation, error) {
	g, err := unit.Groups().ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(actor) {
		return nil, handlersupport.ErrForbidden
	}
	if existing, err := unit.Conversations().ByGroup(ctx, id); err == nil {
		return existing, nil
	} else if !errors.Is(err, domainconversation.ErrNotFound) {
		return nil, err
	}
	conv, err := domainconversation.NewForGroup(domainconversation.CreateParams{
		ID:        domainconversation.ID(handlersupport.NewID()),
		CreatedAt: h.now(),
	}, g)
	if err != nil {
		return nil, err
	}
	if err := unit.Conversations().Create(ctx, conv); err != nil {
		if errors.Is(err, domainconversation.ErrAlreadyExists) {
			return unit.Conversations().ByGroup(ctx, id)
		}
		return nil, err
	}
	h.logger().Info("conversation created", "conversation_id", conv.ID, "group_id", id)
	return conv, nil
}
