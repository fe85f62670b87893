package user

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrIDRequired     = errors.New("user: id is required")
	ErrHandleRequired = errors.New("user: handle is required")
	ErrNotFound       = errors.New("user: not found")
)

type ID string

// User is the slice of an account the messaging core reads. Profiles are
// owned by the account service; this package never mutates them.
type User struct {
	ID                  ID
	Handle              string
	DisplayName         string
	ProfileImageURL     string
	BlockedConnections  []string
	PinnedConversations []string
}

// Ref is the public projection embedded in messages and groups.
type Ref struct {
	ID              ID
	Handle          string
	DisplayName     string
	ProfileImageURL string
}

// Lookup resolves account references at read time.
type Lookup interface {
	ByID(ctx context.Context, id ID) (*User, error)
}

// Repository adds the write side used for fixtures and tests.
type Repository interface {
	Lookup
	Save(ctx context.Context, u *User) error
}

type CreateParams struct {
	ID                  ID
	Handle              string
	DisplayName         string
	ProfileImageURL     string
	BlockedConnections  []string
	PinnedConversations []string
}

func NewUser(params CreateParams) (*User, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	handle := strings.TrimSpace(params.Handle)
	if handle == "" {
		return nil, ErrHandleRequired
	}
	display := strings.TrimSpace(params.DisplayName)
	if display == "" {
		display = handle
	}
	return &User{
		ID:                  ID(id),
		Handle:              handle,
		DisplayName:         display,
		ProfileImageURL:     strings.TrimSpace(params.ProfileImageURL),
		BlockedConnections:  normalizeIDs(params.BlockedConnections),
		PinnedConversations: normalizeIDs(params.PinnedConversations),
	}, nil
}

func (u *User) Ref() Ref {
	return Ref{
		ID:              u.ID,
		Handle:          u.Handle,
		DisplayName:     u.DisplayName,
		ProfileImageURL: u.ProfileImageURL,
	}
}

// HasBlocked reports whether the account blocked the given connection.
func (u *User) HasBlocked(connectionID string) bool {
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return false
	}
	for _, blocked := range u.BlockedConnections {
		if blocked == connectionID {
			return true
		}
	}
	return false
}

func (u *User) HasPinned(conversationID string) bool {
	for _, pinned := range u.PinnedConversations {
		if pinned == conversationID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so stores can hand out values safely.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.BlockedConnections = append([]string(nil), u.BlockedConnections...)
	out.PinnedConversations = append([]string(nil), u.PinnedConversations...)
	return &out
}

func normalizeIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
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
