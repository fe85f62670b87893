// Package conversations holds the use cases that create conversations and
// send, edit, delete and read their messages.
package conversations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"recipehub/internal/app/assembly"
	handlersupport "recipehub/internal/app/handlers/support"
	"recipehub/internal/app/outbox"
	"recipehub/internal/app/uow"
	domainconnection "recipehub/internal/domain/connection"
	domainconversation "recipehub/internal/domain/conversation"
	domaingroup "recipehub/internal/domain/group"
	domainmessage "recipehub/internal/domain/message"
	domainuser "recipehub/internal/domain/user"
)

var (
	ErrBackingRequired        = errors.New("conversations: exactly one of connection id or group id is required")
	ErrReplyNotInConversation = errors.New("conversations: replied-to message is not part of this conversation")
)

const (
	defaultRetries = 3
	defaultBackoff = 20 * time.Millisecond
)

// Handler implements every conversation command and query. Write commands
// that append to or remove from the message list retry on optimistic
// conflicts, reloading the conversation each attempt.
type Handler struct {
	UoWFactory   uow.UoWFactory
	Outbox       outbox.Outbox
	Encoder      outbox.EventEncoder
	Assembly     assembly.Options
	Logger       *slog.Logger
	Now          func() time.Time
	Retries      int
	RetryBackoff time.Duration
}

// scope is what a write or read needs after loading a conversation: the
// backing context, the caller and the other participants.
type scope struct {
	conv   *domainconversation.Conversation
	update domainconversation.UpdateContext
	actor  *domainuser.User
	peers  []*domainuser.User
}

// load fetches the conversation with its backing entity and checks that
// actor participates in it.
func (h *Handler) load(ctx context.Context, unit uow.UnitOfWork, id domainconversation.ID, actor domainuser.ID) (*scope, error) {
	conv, err := unit.Conversations().ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sc := &scope{conv: conv}
	var participants []domainuser.ID
	switch b := conv.Backing.(type) {
	case domainconversation.ConnectionBacking:
		conn, err := unit.Connections().ByID(ctx, b.ConnectionID)
		if err != nil {
			if errors.Is(err, domainconnection.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", domainconversation.ErrConnectionNotFound, b.ConnectionID)
			}
			return nil, err
		}
		sc.update.Connection = conn
		participants = []domainuser.ID{conn.Pair.A, conn.Pair.B}
	case domainconversation.GroupBacking:
		g, err := unit.Groups().ByID(ctx, b.GroupID)
		if err != nil {
			return nil, err
		}
		sc.update.Group = g
		participants = g.Members
	default:
		return nil, domainconversation.ErrInvalidType
	}
	member := false
	for _, p := range participants {
		if p == actor {
			member = true
			continue
		}
		if conv.Kind() == domainconversation.KindConnection {
			peer, err := unit.Users().ByID(ctx, p)
			if err != nil {
				if errors.Is(err, domainuser.ErrNotFound) {
					continue
				}
				return nil, err
			}
			sc.peers = append(sc.peers, peer)
		}
	}
	if !member {
		return nil, handlersupport.ErrForbidden
	}
	sc.actor, err = unit.Users().ByID(ctx, actor)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// suppliedContext builds the update context from ids a caller sent along
// with a write. With no ids the context loaded from the conversation is used.
func suppliedContext(ctx context.Context, unit uow.UnitOfWork, sc *scope, connectionID, groupID string) (domainconversation.UpdateContext, error) {
	if connectionID == "" && groupID == "" {
		return sc.update, nil
	}
	var uc domainconversation.UpdateContext
	if connectionID != "" {
		conn, err := unit.Connections().ByID(ctx, domainconnection.ID(connectionID))
		if err != nil {
			if errors.Is(err, domainconnection.ErrNotFound) {
				return uc, fmt.Errorf("%w: %s", domainconversation.ErrConnectionNotFound, connectionID)
			}
			return uc, err
		}
		uc.Connection = conn
	}
	if groupID != "" {
		g, err := unit.Groups().ByID(ctx, domaingroup.ID(groupID))
		if err != nil {
			return uc, err
		}
		uc.Group = g
	}
	return uc, nil
}

// hydrate attaches the stored messages to conv without resolving senders.
func (h *Handler) hydrate(ctx context.Context, unit uow.UnitOfWork, conv *domainconversation.Conversation) error {
	recs, err := unit.Messages().ByIDs(ctx, conv.MessageIDs)
	if err != nil {
		return err
	}
	msgs := make([]*domainmessage.Message, 0, len(recs))
	for _, rec := range recs {
		m, err := domainmessage.Restore(*rec)
		if err != nil {
			h.logger().Warn("message unmappable, skipped", "conversation_id", conv.ID, "message_id", rec.ID, "error", err)
			continue
		}
		msgs = append(msgs, m)
	}
	conv.Attach(msgs)
	return nil
}

func (h *Handler) messageAssembler(unit uow.UnitOfWork) *assembly.MessageAssembler {
	opts := h.Assembly
	if opts.Logger == nil {
		opts.Logger = h.logger()
	}
	return assembly.NewMessageAssembler(unit.Users(), unit.Recipes(), unit.Messages(), opts)
}

func (h *Handler) conversationAssembler(unit uow.UnitOfWork) *assembly.ConversationAssembler {
	opts := h.Assembly
	if opts.Logger == nil {
		opts.Logger = h.logger()
	}
	return assembly.NewConversationAssembler(unit.Messages(), h.messageAssembler(unit), opts)
}

func (h *Handler) retry(ctx context.Context, fn func() error) error {
	attempts := h.Retries
	if attempts <= 0 {
		attempts = defaultRetries
	}
	backoff := h.RetryBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return handlersupport.Retry(ctx, attempts, backoff, domainconversation.ErrConcurrentUpdate, fn)
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
