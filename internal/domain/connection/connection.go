package connection

import (
	"context"
	"errors"
	"strings"
	"time"

	"recipehub/internal/domain/shared/events"
	"recipehub/internal/domain/user"
)

var (
	ErrIDRequired      = errors.New("connection: id is required")
	ErrAccountRequired = errors.New("connection: both accounts are required")
	ErrSelfConnection  = errors.New("connection: cannot connect an account to itself")
	ErrInvalidStatus   = errors.New("connection: invalid status")
	ErrAlreadyExists   = errors.New("connection: already exists for this pair")
	ErrNotFound        = errors.New("connection: not found")
)

type ID string

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConnected Status = "CONNECTED"
	StatusFavourite Status = "FAVOURITE"
)

// ParseStatus accepts any casing and the american spelling of favourite.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PENDING":
		return StatusPending, nil
	case "CONNECTED":
		return StatusConnected, nil
	case "FAVOURITE", "FAVORITE":
		return StatusFavourite, nil
	default:
		return "", ErrInvalidStatus
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConnected, StatusFavourite:
		return true
	default:
		return false
	}
}

// Pair is an unordered couple of accounts. A and B are kept sorted so that
// the arguments order never changes identity.
type Pair struct {
	A user.ID
	B user.ID
}

func NewPair(first, second user.ID) Pair {
	a := user.ID(strings.TrimSpace(string(first)))
	b := user.ID(strings.TrimSpace(string(second)))
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Key is the canonical storage key of the pair.
func (p Pair) Key() string {
	return string(p.A) + "|" + string(p.B)
}

func (p Pair) Contains(id user.ID) bool {
	return id != "" && (p.A == id || p.B == id)
}

// Other returns the account on the opposite side of id.
func (p Pair) Other(id user.ID) (user.ID, bool) {
	switch id {
	case p.A:
		return p.B, true
	case p.B:
		return p.A, true
	default:
		return "", false
	}
}

type Connection struct {
	ID          ID
	Pair        Pair
	Status      Status
	RequestedBy user.ID
	CreatedAt   time.Time
	UpdatedAt   time.Time
	events.EventRecorder
}

type Repository interface {
	Create(ctx context.Context, c *Connection) error
	ByID(ctx context.Context, id ID) (*Connection, error)
	ByPair(ctx context.Context, a, b user.ID) (*Connection, error)
	ListForUser(ctx context.Context, userID user.ID) ([]*Connection, error)
	UpdateStatus(ctx context.Context, id ID, status Status, at time.Time) error
	Delete(ctx context.Context, id ID) error
	DeleteByPair(ctx context.Context, a, b user.ID) error
}

type CreateParams struct {
	ID          ID
	RequestedBy user.ID
	Other       user.ID
	Status      Status
	CreatedAt   time.Time
}

func New(params CreateParams) (*Connection, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	pair := NewPair(params.RequestedBy, params.Other)
	if pair.A == "" || pair.B == "" {
		return nil, ErrAccountRequired
	}
	if pair.A == pair.B {
		return nil, ErrSelfConnection
	}
	status := params.Status
	if status == "" {
		status = StatusPending
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	c := &Connection{
		ID:          ID(id),
		Pair:        pair,
		Status:      status,
		RequestedBy: user.ID(strings.TrimSpace(string(params.RequestedBy))),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c.Record(ConnectionCreated{ConnectionID: c.ID, Pair: c.Pair, Status: c.Status, At: now})
	return c, nil
}

func (c *Connection) UpdateStatus(status Status, now time.Time) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	if now.IsZero() {
		now = time.Now()
	}
	previous := c.Status
	c.Status = status
	c.UpdatedAt = now.UTC()
	if previous != status {
		c.Record(ConnectionStatusChanged{ConnectionID: c.ID, From: previous, To: status, At: c.UpdatedAt})
	}
	return nil
}

func (c *Connection) Involves(id user.ID) bool {
	return c.Pair.Contains(id)
}
