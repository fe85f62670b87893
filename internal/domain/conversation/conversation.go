package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"recipehub/internal/domain/connection"
	"recipehub/internal/domain/group"
	"recipehub/internal/domain/message"
	"recipehub/internal/domain/shared/events"
	"recipehub/internal/domain/user"
)

var (
	ErrIDRequired       = errors.New("conversation: id is required")
	ErrBackingRequired  = errors.New("conversation: connection or group is required")
	ErrAlreadyExists    = errors.New("conversation: already exists for this context")
	ErrNotFound         = errors.New("conversation: not found")
	ErrConcurrentUpdate = errors.New("conversation: concurrent update detected")
)

type ID string

type Conversation struct {
	ID         ID
	Backing    Backing
	MessageIDs []message.ID
	CreatedAt  time.Time
	Version    int64

	messages []*message.Message
	events.EventRecorder
}

type Repository interface {
	Create(ctx context.Context, c *Conversation) error
	ByID(ctx context.Context, id ID) (*Conversation, error)
	ByConnection(ctx context.Context, id connection.ID) (*Conversation, error)
	ByGroup(ctx context.Context, id group.ID) (*Conversation, error)
	ListByBackings(ctx context.Context, connections []connection.ID, groups []group.ID) ([]*Conversation, error)
	Update(ctx context.Context, c *Conversation) error
}

type CreateParams struct {
	ID        ID
	CreatedAt time.Time
}

func NewForConnection(params CreateParams, c *connection.Connection) (*Conversation, error) {
	if c == nil || c.ID == "" {
		return nil, ErrBackingRequired
	}
	return newConversation(params, ConnectionBacking{ConnectionID: c.ID})
}

func NewForGroup(params CreateParams, g *group.Group) (*Conversation, error) {
	if g == nil || g.ID == "" {
		return nil, ErrBackingRequired
	}
	return newConversation(params, GroupBacking{GroupID: g.ID})
}

func newConversation(params CreateParams, backing Backing) (*Conversation, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	c := &Conversation{
		ID:        ID(id),
		Backing:   backing,
		CreatedAt: now.UTC(),
	}
	c.Record(ConversationCreated{ConversationID: c.ID, Kind: backing.Kind(), RefID: backing.RefID(), At: c.CreatedAt})
	return c, nil
}

// Attach replaces the hydrated messages, typically with the result of a
// storage read in MessageIDs order.
func (c *Conversation) Attach(messages []*message.Message) {
	c.messages = append([]*message.Message(nil), messages...)
}

// SendMessage appends m. Appending an id already present is a no-op, which
// keeps retried writes from duplicating history.
func (c *Conversation) SendMessage(m *message.Message) bool {
	if m == nil || c.HasMessage(m.ID) {
		return false
	}
	c.MessageIDs = append(c.MessageIDs, m.ID)
	c.messages = append(c.messages, m)
	return true
}

func (c *Conversation) RemoveMessage(id message.ID) bool {
	idx := -1
	for i, existing := range c.MessageIDs {
		if existing == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	c.MessageIDs = append(c.MessageIDs[:idx:idx], c.MessageIDs[idx+1:]...)
	kept := c.messages[:0:0]
	for _, m := range c.messages {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	c.messages = kept
	return true
}

func (c *Conversation) HasMessage(id message.ID) bool {
	for _, existing := range c.MessageIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// Messages returns the hydrated messages in insertion order.
func (c *Conversation) Messages() []*message.Message {
	return append([]*message.Message(nil), c.messages...)
}

// LastMessage is the message with the greatest SentAt. On equal timestamps
// the one inserted later wins.
func (c *Conversation) LastMessage() (*message.Message, bool) {
	var last *message.Message
	for _, m := range c.messages {
		if last == nil || !m.SentAt.Before(last.SentAt) {
			last = m
		}
	}
	return last, last != nil
}

// MarkAsRead adds userID to the seen-by set of every hydrated message and
// returns the messages that changed.
func (c *Conversation) MarkAsRead(userID user.ID, now time.Time) []*message.Message {
	changed := make([]*message.Message, 0)
	for _, m := range c.messages {
		if m.MarkSeenBy(userID) {
			changed = append(changed, m)
		}
	}
	if len(changed) > 0 {
		if now.IsZero() {
			now = time.Now()
		}
		c.Record(ConversationRead{ConversationID: c.ID, UserID: userID, Messages: len(changed), At: now.UTC()})
	}
	return changed
}

// UnreadCount counts hydrated messages not seen by userID and not sent by them.
func (c *Conversation) UnreadCount(userID user.ID) int {
	count := 0
	for _, m := range c.messages {
		if m.SenderID != userID && !m.HasSeen(userID) {
			count++
		}
	}
	return count
}

func (c *Conversation) Kind() Kind {
	if c.Backing == nil {
		return ""
	}
	return c.Backing.Kind()
}
