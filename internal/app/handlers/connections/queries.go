package connections

import (
	"context"

	"recipehub/internal/app/dto"
	handlersupport "recipehub/internal/app/handlers/support"
	"recipehub/internal/app/queries"
	"recipehub/internal/app/uow"
	domainconnection "recipehub/internal/domain/connection"
	domainuser "recipehub/internal/domain/user"
)

const (
	getKey  = "connections.get"
	withKey = "connections.with"
	listKey = "connections.list"
)

type GetQuery struct {
	ActorID      string `validate:"required"`
	ConnectionID string `validate:"required"`
}

func (q GetQuery) Key() string   { return getKey }
func (q GetQuery) Actor() string { return q.ActorID }

// WithQuery finds the connection between the actor and another account.
// Argument order does not matter.
type WithQuery struct {
	ActorID     string `validate:"required"`
	OtherUserID string `validate:"required"`
}

func (q WithQuery) Key() string   { return withKey }
func (q WithQuery) Actor() string { return q.ActorID }

type ListQuery struct {
	ActorID string `validate:"required"`
}

func (q ListQuery) Key() string   { return listKey }
func (q ListQuery) Actor() string { return q.ActorID }

type QueryHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *QueryHandler) Get(ctx context.Context, q GetQuery) (dto.Connection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Connection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	conn, err := unit.Connections().ByID(execCtx, domainconnection.ID(q.ConnectionID))
	if err != nil {
		return dto.Connection{}, err
	}
	if !conn.Involves(domainuser.ID(q.ActorID)) {
		return dto.Connection{}, handlersupport.ErrForbidden
	}
	return dto.MapConnection(conn), nil
}

func (h *QueryHandler) With(ctx context.Context, q WithQuery) (dto.Connection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Connection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	conn, err := unit.Connections().ByPair(execCtx, domainuser.ID(q.ActorID), domainuser.ID(q.OtherUserID))
	if err != nil {
		return dto.Connection{}, err
	}
	return dto.MapConnection(conn), nil
}

func (h *QueryHandler) List(ctx context.Context, q ListQuery) (dto.ConnectionList, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ConnectionList{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	conns, err := unit.Connections().ListForUser(execCtx, domainuser.ID(q.ActorID))
	if err != nil {
		return dto.ConnectionList{}, err
	}
	items := make([]dto.Connection, 0, len(conns))
	for _, c := range conns {
		items = append(items, dto.MapConnection(c))
	}
	return dto.ConnectionList{Items: items}, nil
}

func (h *QueryHandler) Register(bus *queries.InMemoryBus) {
	queries.RegisterHandler(bus, getKey, queries.HandlerFunc[GetQuery, dto.Connection](h.Get))
	queries.RegisterHandler(bus, withKey, queries.HandlerFunc[WithQuery, dto.Connection](h.With))
	queries.RegisterHandler(bus, listKey, queries.HandlerFunc[ListQuery, dto.ConnectionList](h.List))
}
