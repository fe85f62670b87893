package conversation

import (
	"time"

	"recipehub/internal/domain/user"
)

type ConversationCreated struct {
	ConversationID ID
	Kind           Kind
	RefID          string
	At             time.Time
}

func (e ConversationCreated) EventName() string     { return "conversation.created" }
func (e ConversationCreated) AggregateID() string   { return string(e.ConversationID) }
func (e ConversationCreated) OccurredAt() time.Time { return e.At }

type ConversationRead struct {
	ConversationID ID
	UserID         user.ID
	Messages       int
	At             time.Time
}

func (e ConversationRead) EventName() string     { return "conversation.read" }
func (e ConversationRead) AggregateID() string   { return string(e.ConversationID) }
func (e ConversationRead) OccurredAt() time.Time { return e.At }
