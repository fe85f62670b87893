package conversations

import (
	"context"
	"errors"
	"sort"
	"time"

	"recipehub/internal/app/commands"
	"recipehub/internal/app/dto"
	handlersupport "recipehub/internal/app/handlers/support"
	"recipehub/internal/app/queries"
	"recipehub/internal/app/uow"
	domainconnection "recipehub/internal/domain/connection"
	domainconversation "recipehub/internal/domain/conversation"
	domaingroup "recipehub/internal/domain/group"
	domainmessage "recipehub/internal/domain/message"
	domainuser "recipehub/internal/domain/user"
)

const (
	getKey          = "conversations.get"
	byConnectionKey = "conversations.by_connection"
	byGroupKey      = "conversations.by_group"
	listKey         = "conversations.list"
	getMessageKey   = "conversations.messages.get"
)

type GetQuery struct {
	ActorID        string `validate:"required"`
	ConversationID string `validate:"required"`
}

func (q GetQuery) Key() string   { return getKey }
func (q GetQuery) Actor() string { return q.ActorID }

type ByConnectionQuery struct {
	ActorID      string `validate:"required"`
	ConnectionID string `validate:"required"`
}

func (q ByConnectionQuery) Key() string   { return byConnectionKey }
func (q ByConnectionQuery) Actor() string { return q.ActorID }

type ByGroupQuery struct {
	ActorID string `validate:"required"`
	GroupID string `validate:"required"`
}

func (q ByGroupQuery) Key() string   { return byGroupKey }
func (q ByGroupQuery) Actor() string { return q.ActorID }

// ListQuery returns every conversation the actor takes part in, pinned
// ones first, then by latest activity.
type ListQuery struct {
	ActorID string `validate:"required"`
}

func (q ListQuery) Key() string   { return listKey }
func (q ListQuery) Actor() string { return q.ActorID }

type GetMessageQuery struct {
	ActorID   string `validate:"required"`
	MessageID string `validate:"required"`
}

func (q GetMessageQuery) Key() string   { return getMessageKey }
func (q GetMessageQuery) Actor() string { return q.ActorID }

func (h *Handler) Get(ctx context.Context, q GetQuery) (dto.Conversation, error) {
	return h.readConversation(ctx, q.ActorID, func(ctx context.Context, unit uow.UnitOfWork) (domainconversation.ID, error) {
		return domainconversation.ID(q.ConversationID), nil
	})
}

func (h *Handler) ByConnection(ctx context.Context, q ByConnectionQuery) (dto.Conversation, error) {
	return h.readConversation(ctx, q.ActorID, func(ctx context.Context, unit uow.UnitOfWork) (domainconversation.ID, error) {
		conv, err := unit.Conversations().ByConnection(ctx, domainconnection.ID(q.ConnectionID))
		if err != nil {
			return "", err
		}
		return conv.ID, nil
	})
}

func (h *Handler) ByGroup(ctx context.Context, q ByGroupQuery) (dto.Conversation, error) {
	return h.readConversation(ctx, q.ActorID, func(ctx context.Context, unit uow.UnitOfWork) (domainconversation.ID, error) {
		conv, err := unit.Conversations().ByGroup(ctx, domaingroup.ID(q.GroupID))
		if err != nil {
			return "", err
		}
		return conv.ID, nil
	})
}

func (h *Handler) readConversation(ctx context.Context, actorID string, resolve func(context.Context, uow.UnitOfWork) (domainconversation.ID, error)) (dto.Conversation, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Conversation{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	id, err := resolve(execCtx, unit)
	if err != nil {
		return dto.Conversation{}, err
	}
	sc, err := h.load(execCtx, unit, id, domainuser.ID(actorID))
	if err != nil {
		return dto.Conversation{}, err
	}
	if err := h.conversationAssembler(unit).Assemble(execCtx, sc.conv); err != nil {
		return dto.Conversation{}, err
	}
	return dto.MapConversation(sc.conv, sc.actor), nil
}

func (h *Handler) List(ctx context.Context, q ListQuery) (dto.ConversationList, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ConversationList{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	actor := domainuser.ID(q.ActorID)
	viewer, err := unit.Users().ByID(execCtx, actor)
	if err != nil {
		return dto.ConversationList{}, err
	}
	conns, err := unit.Connections().ListForUser(execCtx, actor)
	if err != nil {
		return dto.ConversationList{}, err
	}
	groups, err := unit.Groups().ListForUser(execCtx, actor)
	if err != nil {
		return dto.ConversationList{}, err
	}
	connIDs := make([]domainconnection.ID, 0, len(conns))
	for _, c := range conns {
		connIDs = append(connIDs, c.ID)
	}
	groupIDs := make([]domaingroup.ID, 0, len(groups))
	for _, g := range groups {
		groupIDs = append(groupIDs, g.ID)
	}
	convs, err := unit.Conversations().ListByBackings(execCtx, connIDs, groupIDs)
	if err != nil {
		return dto.ConversationList{}, err
	}
	assembled, err := h.conversationAssembler(unit).AssembleAll(execCtx, convs)
	if err != nil {
		return dto.ConversationList{}, err
	}
	items := make([]dto.ConversationSummary, 0, len(assembled))
	for _, c := range assembled {
		items = append(items, dto.MapConversationSummary(c, viewer))
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Pinned != items[j].Pinned {
			return items[i].Pinned
		}
		return activity(items[i]).After(activity(items[j]))
	})
	return dto.ConversationList{Items: items}, nil
}

func activity(s dto.ConversationSummary) time.Time {
	if s.LastMessage != nil {
		return s.LastMessage.SentAt
	}
	return s.CreatedAt
}

// GetMessage reads one message. A sender that no longer resolves surfaces
// as not found.
func (h *Handler) GetMessage(ctx context.Context, q GetMessageQuery) (dto.Message, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Message{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	rec, err := unit.Messages().ByID(execCtx, domainmessage.ID(q.MessageID))
	if err != nil {
		return dto.Message{}, err
	}
	if rec.ConversationID != "" {
		if _, err := h.load(execCtx, unit, domainconversation.ID(rec.ConversationID), domainuser.ID(q.ActorID)); err != nil {
			if errors.Is(err, domainconversation.ErrNotFound) {
				return dto.Message{}, domainmessage.ErrNotFound
			}
			return dto.Message{}, err
		}
	}
	m, err := h.messageAssembler(unit).Assemble(execCtx, rec)
	if err != nil {
		return dto.Message{}, err
	}
	return dto.MapMessage(m), nil
}

// Register wires every conversation command and query onto the buses.
func (h *Handler) Register(cmds *commands.InMemoryBus, qs *queries.InMemoryBus) {
	commands.RegisterHandler(cmds, createKey, commands.HandlerFunc[CreateCommand, dto.Conversation](h.Create))
	commands.RegisterHandler(cmds, sendKey, commands.HandlerFunc[SendMessageCommand, *SendMessageResult](h.SendMessage))
	commands.RegisterHandler(cmds, updateKey, commands.HandlerFunc[UpdateMessageCommand, dto.Message](h.UpdateMessage))
	commands.RegisterHandler(cmds, deleteKey, commands.HandlerFunc[DeleteMessageCommand, DeleteMessageResult](h.DeleteMessage))
	commands.RegisterHandler(cmds, readKey, commands.HandlerFunc[MarkAsReadCommand, MarkAsReadResult](h.MarkAsRead))

	queries.RegisterHandler(qs, getKey, queries.HandlerFunc[GetQuery, dto.Conversation](h.Get))
	queries.RegisterHandler(qs, byConnectionKey, queries.HandlerFunc[ByConnectionQuery, dto.Conversation](h.ByConnection))
	queries.RegisterHandler(qs, byGroupKey, queries.HandlerFunc[ByGroupQuery, dto.Conversation](h.ByGroup))
	queries.RegisterHandler(qs, listKey, queries.HandlerFunc[ListQuery, dto.ConversationList](h.List))
	queries.RegisterHandler(qs, getMessageKey, queries.HandlerFunc[GetMessageQuery, dto.Message](h.GetMessage))
}
