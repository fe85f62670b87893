package message

import (
	"time"

	"recipehub/internal/domain/user"
)

type MessageSent struct {
	MessageID      ID
	ConversationID string
	SenderID       user.ID
	Kind           Kind
	RepliedToID    ID `json:",omitempty"`
	At             time.Time
}

func (e MessageSent) EventName() string     { return "message.sent" }
func (e MessageSent) AggregateID() string   { return string(e.MessageID) }
func (e MessageSent) OccurredAt() time.Time { return e.At }

type MessageUpdated struct {
	MessageID      ID
	ConversationID string
	At             time.Time
}

func (e MessageUpdated) EventName() string     { return "message.updated" }
func (e MessageUpdated) AggregateID() string   { return string(e.MessageID) }
func (e MessageUpdated) OccurredAt() time.Time { return e.At }

type MessageDeleted struct {
	MessageID      ID
	ConversationID string
	At             time.Time
}

func (e MessageDeleted) EventName() string     { return "message.deleted" }
func (e MessageDeleted) AggregateID() string   { return string(e.MessageID) }
func (e MessageDeleted) OccurredAt() time.Time { return e.At }
