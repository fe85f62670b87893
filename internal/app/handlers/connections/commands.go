package connections

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"recipehub/internal/app/commands"
	"recipehub/internal/app/dto"
	handlersupport "recipehub/internal/app/handlers/support"
	"recipehub/internal/app/outbox"
	"recipehub/internal/app/uow"
	domainconnection "recipehub/internal/domain/connection"
	domainuser "recipehub/internal/domain/user"
)

const (
	createKey       = "connections.create"
	updateStatusKey = "connections.status.update"
	deleteKey       = "connections.delete"
)

var ErrTargetRequired = errors.New("connections: connection id or other user id is required")

type CreateCommand struct {
	ActorID     string `validate:"required"`
	OtherUserID string `validate:"required"`
	Status      string
}

func (c CreateCommand) Key() string   { return createKey }
func (c CreateCommand) Actor() string { return c.ActorID }

type UpdateStatusCommand struct {
	ActorID      string `validate:"required"`
	ConnectionID string `validate:"required"`
	Status       string `validate:"required"`
}

func (c UpdateStatusCommand) Key() string   { return updateStatusKey }
func (c UpdateStatusCommand) Actor() string { return c.ActorID }

// DeleteCommand removes a connection by id, or by the other account of the
// pair when ConnectionID is empty.
type DeleteCommand struct {
	ActorID      string `validate:"required"`
	ConnectionID string
	OtherUserID  string
}

func (c DeleteCommand) Key() string   { return deleteKey }
func (c DeleteCommand) Actor() string { return c.ActorID }

type CommandHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *CommandHandler) Create(ctx context.Context, cmd CreateCommand) (dto.Connection, error) {
	status := domainconnection.StatusPending
	if strings.TrimSpace(cmd.Status) != "" {
		parsed, err := domainconnection.ParseStatus(cmd.Status)
		if err != nil {
			return dto.Connection{}, err
		}
		status = parsed
	}
	var out dto.Connection
	err := handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		other := domainuser.ID(strings.TrimSpace(cmd.OtherUserID))
		if _, err := unit.Users().ByID(ctx, other); err != nil {
			return err
		}
		actor := domainuser.ID(cmd.ActorID)
		if _, err := unit.Connections().ByPair(ctx, actor, other); err == nil {
			return domainconnection.ErrAlreadyExists
		} else if !errors.Is(err, domainconnection.ErrNotFound) {
			return err
		}
		conn, err := domainconnection.New(domainconnection.CreateParams{
			ID:          domainconnection.ID(handlersupport.NewID()),
			RequestedBy: actor,
			Other:       other,
			Status:      status,
			CreatedAt:   h.now(),
		})
		if err != nil {
			return err
		}
		if err := unit.Connections().Create(ctx, conn); err != nil {
			return err
		}
		if err := outbox.Drain(ctx, h.Outbox, h.Encoder, conn); err != nil {
			return err
		}
		out = dto.MapConnection(conn)
		return nil
	})
	if err != nil {
		return dto.Connection{}, err
	}
	h.logger().Info("connection created", "connection_id", out.ID, "requested_by", cmd.ActorID)
	return out, nil
}

func (h *CommandHandler) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (dto.Connection, error) {
	status, err := domainconnection.ParseStatus(cmd.Status)
	if err != nil {
		return dto.Connection{}, err
	}
	var out dto.Connection
	err = handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		conn, err := unit.Connections().ByID(ctx, domainconnection.ID(cmd.ConnectionID))
		if err != nil {
			return err
		}
		if !conn.Involves(domainuser.ID(cmd.ActorID)) {
			return handlersupport.ErrForbidden
		}
		if err := conn.UpdateStatus(status, h.now()); err != nil {
			return err
		}
		if err := unit.Connections().UpdateStatus(ctx, conn.ID, conn.Status, conn.UpdatedAt); err != nil {
			return err
		}
		if err := outbox.Drain(ctx, h.Outbox, h.Encoder, conn); err != nil {
			return err
		}
		out = dto.MapConnection(conn)
		return nil
	})
	if err != nil {
		return dto.Connection{}, err
	}
	return out, nil
}

type DeleteResult struct {
	ConnectionID string `json:"connection_id"`
}

func (h *CommandHandler) Delete(ctx context.Context, cmd DeleteCommand) (DeleteResult, error) {
	if strings.TrimSpace(cmd.ConnectionID) == "" && strings.TrimSpace(cmd.OtherUserID) == "" {
		return DeleteResult{}, ErrTargetRequired
	}
	var out DeleteResult
	err := handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		actor := domainuser.ID(cmd.ActorID)
		var (
			conn *domainconnection.Connection
			err  error
		)
		if cmd.ConnectionID != "" {
			conn, err = unit.Connections().ByID(ctx, domainconnection.ID(cmd.ConnectionID))
		} else {
			conn, err = unit.Connections().ByPair(ctx, actor, domainuser.ID(cmd.OtherUserID))
		}
		if err != nil {
			return err
		}
		if !conn.Involves(actor) {
			return handlersupport.ErrForbidden
		}
		if cmd.ConnectionID != "" {
			err = unit.Connections().Delete(ctx, conn.ID)
		} else {
			err = unit.Connections().DeleteByPair(ctx, conn.Pair.A, conn.Pair.B)
		}
		if err != nil {
			return fmt.Errorf("delete connection %s: %w", conn.ID, err)
		}
		conn.Record(domainconnection.ConnectionDeleted{ConnectionID: conn.ID, Pair: conn.Pair, At: h.now()})
		if err := outbox.Drain(ctx, h.Outbox, h.Encoder, conn); err != nil {
			return err
		}
		out.ConnectionID = string(conn.ID)
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}
	h.logger().Info("connection deleted", "connection_id", out.ConnectionID, "actor", cmd.ActorID)
	return out, nil
}

func (h *CommandHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *CommandHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Register wires the command handlers onto bus.
func (h *CommandHandler) Register(bus *commands.InMemoryBus) {
	commands.RegisterHandler(bus, createKey, commands.HandlerFunc[CreateCommand, dto.Connection](h.Create))
	commands.RegisterHandler(bus, updateStatusKey, commands.HandlerFunc[UpdateStatusCommand, dto.Connection](h.UpdateStatus))
	commands.RegisterHandler(bus, deleteKey, commands.HandlerFunc[DeleteCommand, DeleteResult](h.Delete))
}
