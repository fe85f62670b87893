package groups

import (
	"context"
	"log/slog"
	"time"

	"recipehub/internal/app/commands"
	"recipehub/internal/app/dto"
	handlersupport "recipehub/internal/app/handlers/support"
	"recipehub/internal/app/outbox"
	"recipehub/internal/app/queries"
	"recipehub/internal/app/uow"
	domaingroup "recipehub/internal/domain/group"
	domainuser "recipehub/internal/domain/user"
)

const (
	createKey = "groups.create"
	getKey    = "groups.get"
	listKey   = "groups.list"
)

// CreateCommand creates a group. The actor is always a member.
type CreateCommand struct {
	ActorID     string   `validate:"required"`
	Name        string   `validate:"required,max=120"`
	Description string   `validate:"max=2000"`
	MemberIDs   []string `validate:"dive,required"`
}

func (c CreateCommand) Key() string   { return createKey }
func (c CreateCommand) Actor() string { return c.ActorID }

type GetQuery struct {
	ActorID string `validate:"required"`
	GroupID string `validate:"required"`
}

func (q GetQuery) Key() string   { return getKey }
func (q GetQuery) Actor() string { return q.ActorID }

type ListQuery struct {
	ActorID string `validate:"required"`
}

func (q ListQuery) Key() string   { return listKey }
func (q ListQuery) Actor() string { return q.ActorID }

type Handler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *Handler) Create(ctx context.Context, cmd CreateCommand) (dto.Group, error) {
	var out dto.Group
	err := handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		members := make([]domainuser.ID, 0, len(cmd.MemberIDs)+1)
		members = append(members, domainuser.ID(cmd.ActorID))
		for _, id := range cmd.MemberIDs {
			members = append(members, domainuser.ID(id))
		}
		for _, id := range members {
			if _, err := unit.Users().ByID(ctx, id); err != nil {
				return err
			}
		}
		now := time.Now()
		if h.Now != nil {
			now = h.Now()
		}
		g, err := domaingroup.New(domaingroup.CreateParams{
			ID:          domaingroup.ID(handlersupport.NewID()),
			Name:        cmd.Name,
			Description: cmd.Description,
			Members:     members,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		if err := unit.Groups().Create(ctx, g); err != nil {
			return err
		}
		if err := outbox.Drain(ctx, h.Outbox, h.Encoder, g); err != nil {
			return err
		}
		out = dto.MapGroup(g)
		return nil
	})
	if err != nil {
		return dto.Group{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("group created", "group_id", out.ID, "members", len(out.Members))
	}
	return out, nil
}

func (h *Handler) Get(ctx context.Context, q GetQuery) (dto.Group, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Group{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	g, err := unit.Groups().ByID(execCtx, domaingroup.ID(q.GroupID))
	if err != nil {
		return dto.Group{}, err
	}
	if !g.HasMember(domainuser.ID(q.ActorID)) {
		return dto.Group{}, handlersupport.ErrForbidden
	}
	return dto.MapGroup(g), nil
}

func (h *Handler) List(ctx context.Context, q ListQuery) (dto.GroupList, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.GroupList{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	groups, err := unit.Groups().ListForUser(execCtx, domainuser.ID(q.ActorID))
	if err != nil {
		return dto.GroupList{}, err
	}
	items := make([]dto.Group, 0, len(groups))
	for _, g := range groups {
		items = append(items, dto.MapGroup(g))
	}
	return dto.GroupList{Items: items}, nil
}

func (h *Handler) Register(cmds *commands.InMemoryBus, qs *queries.InMemoryBus) {
	commands.RegisterHandler(cmds, createKey, commands.HandlerFunc[CreateCommand, dto.Group](h.Create))
	queries.RegisterHandler(qs, getKey, queries.HandlerFunc[GetQuery, dto.Group](h.Get))
	queries.RegisterHandler(qs, listKey, queries.HandlerFunc[ListQuery, dto.GroupList](h.List))
}
