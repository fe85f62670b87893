package group

import (
	"context"
	"errors"
	"strings"
	"time"

	"recipehub/internal/domain/shared/events"
	"recipehub/internal/domain/user"
)

var (
	ErrIDRequired      = errors.New("group: id is required")
	ErrNameRequired    = errors.New("group: name is required")
	ErrMembersRequired = errors.New("group: at least one member is required")
	ErrNotFound        = errors.New("group: not found")
)

type ID string

// Group is a named roster backing a group conversation. Membership is fixed
// at creation.
type Group struct {
	ID          ID
	Name        string
	Description string
	Members     []user.ID
	CreatedAt   time.Time
	events.EventRecorder
}

type Repository interface {
	Create(ctx context.Context, g *Group) error
	ByID(ctx context.Context, id ID) (*Group, error)
	ListForUser(ctx context.Context, userID user.ID) ([]*Group, error)
}

type CreateParams struct {
	ID          ID
	Name        string
	Description string
	Members     []user.ID
	CreatedAt   time.Time
}

func New(params CreateParams) (*Group, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	members := normalizeMembers(params.Members)
	if len(members) == 0 {
		return nil, ErrMembersRequired
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	g := &Group{
		ID:          ID(id),
		Name:        name,
		Description: strings.TrimSpace(params.Description),
		Members:     members,
		CreatedAt:   now.UTC(),
	}
	g.Record(GroupCreated{GroupID: g.ID, Members: append([]user.ID(nil), members...), At: g.CreatedAt})
	return g, nil
}

func (g *Group) HasMember(id user.ID) bool {
	if id == "" {
		return false
	}
	for _, member := range g.Members {
		if member == id {
			return true
		}
	}
	return false
}

func normalizeMembers(ids []user.ID) []user.ID {
	seen := make(map[user.ID]struct{}, len(ids))
	out := make([]user.ID, 0, len(ids))
	for _, id := range ids {
		id = user.ID(strings.TrimSpace(string(id)))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type GroupCreated struct {
	GroupID ID
	Members []user.ID
	At      time.Time
}

func (e GroupCreated) EventName() string     { return "group.created" }
func (e GroupCreated) AggregateID() string   { return string(e.GroupID) }
func (e GroupCreated) OccurredAt() time.Time { return e.At }
