package conversation

import (
	"context"
	"errors"
	"fmt"

	"recipehub/internal/domain/connection"
	"recipehub/internal/domain/group"
	"recipehub/internal/domain/user"
)

var (
	ErrNoConnectionProvided = errors.New("conversation: no connection provided")
	ErrNoGroupProvided      = errors.New("conversation: no group provided")
	ErrConnectionNotFound   = errors.New("conversation: connection not found")
	ErrBackingMismatch      = errors.New("conversation: supplied context does not back this conversation")
	ErrInvalidType          = errors.New("conversation: invalid conversation type")
	ErrConnectionBlocked    = errors.New("conversation: connection is blocked")
	ErrSenderRequired       = errors.New("conversation: sender is required")
)

// ConnectionFinder is the narrow read port the consistency policy needs.
type ConnectionFinder interface {
	ByID(ctx context.Context, id connection.ID) (*connection.Connection, error)
}

// UpdateContext carries the backing entity a caller supplies with an update.
type UpdateContext struct {
	Connection *connection.Connection
	Group      *group.Group
}

// ConsistencyPolicy verifies that an update comes with the backing context
// matching the conversation's stored kind.
type ConsistencyPolicy struct {
	Connections ConnectionFinder
}

func (p ConsistencyPolicy) Check(ctx context.Context, c *Conversation, uc UpdateContext) error {
	if c == nil {
		return ErrNotFound
	}
	switch b := c.Backing.(type) {
	case ConnectionBacking:
		if uc.Connection == nil {
			return ErrNoConnectionProvided
		}
		if uc.Connection.ID != b.ConnectionID {
			return ErrBackingMismatch
		}
		if p.Connections == nil {
			return nil
		}
		if _, err := p.Connections.ByID(ctx, uc.Connection.ID); err != nil {
			if errors.Is(err, connection.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrConnectionNotFound, uc.Connection.ID)
			}
			return err
		}
		return nil
	case GroupBacking:
		if uc.Group == nil {
			return ErrNoGroupProvided
		}
		if uc.Group.ID != b.GroupID {
			return ErrBackingMismatch
		}
		return nil
	default:
		return ErrInvalidType
	}
}

// SendGuard gates sending on connection conversations. A send is rejected
// when the sender, or any supplied peer, blocked the backing connection.
// Group conversations are never blocked.
type SendGuard struct{}

func (SendGuard) CanSend(c *Conversation, sender *user.User, peers ...*user.User) error {
	if c == nil {
		return ErrNotFound
	}
	if sender == nil {
		return ErrSenderRequired
	}
	switch b := c.Backing.(type) {
	case ConnectionBacking:
		if sender.HasBlocked(string(b.ConnectionID)) {
			return ErrConnectionBlocked
		}
		for _, peer := range peers {
			if peer != nil && peer.HasBlocked(string(b.ConnectionID)) {
				return ErrConnectionBlocked
			}
		}
		return nil
	case GroupBacking:
		return nil
	default:
		return ErrInvalidType
	}
}
