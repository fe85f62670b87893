package conversation

import (
	"recipehub/internal/domain/connection"
	"recipehub/internal/domain/group"
)

type Kind string

const (
	KindConnection Kind = "CONNECTION"
	KindGroup      Kind = "GROUP"
)

// Backing is the context a conversation is anchored to: exactly one
// connection or exactly one group.
type Backing interface {
	Kind() Kind
	RefID() string
	isBacking()
}

type ConnectionBacking struct {
	ConnectionID connection.ID
}

func (ConnectionBacking) Kind() Kind      { return KindConnection }
func (b ConnectionBacking) RefID() string { return string(b.ConnectionID) }
func (ConnectionBacking) isBacking()      {}

type GroupBacking struct {
	GroupID group.ID
}

func (GroupBacking) Kind() Kind      { return KindGroup }
func (b GroupBacking) RefID() string { return string(b.GroupID) }
func (GroupBacking) isBacking()      {}

// BackingFor rebuilds a backing from its stored kind and reference.
func BackingFor(kind Kind, refID string) (Backing, error) {
	if refID == "" {
		return nil, ErrInvalidType
	}
	switch kind {
	case KindConnection:
		return ConnectionBacking{ConnectionID: connection.ID(refID)}, nil
	case KindGroup:
		return GroupBacking{GroupID: group.ID(refID)}, nil
	default:
		return nil, ErrInvalidType
	}
}
