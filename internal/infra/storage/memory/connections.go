package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainconnection "recipehub/internal/domain/connection"
	domainuser "recipehub/internal/domain/user"
)

// ConnectionRepository indexes connections by id and by normalized pair key,
// so a lookup for (a, b) and (b, a) lands on the same record.
type ConnectionRepository struct {
	mu     sync.RWMutex
	byID   map[domainconnection.ID]*domainconnection.Connection
	byPair map[string]domainconnection.ID
}

func NewConnectionRepository() *ConnectionRepository {
	return &ConnectionRepository{
		byID:   make(map[domainconnection.ID]*domainconnection.Connection),
		byPair: make(map[string]domainconnection.ID),
	}
}

func (r *ConnectionRepository) Create(ctx context.Context, c *domainconnection.Connection) error {
	if c == nil || c.ID == "" {
		return domainconnection.ErrIDRequired
	}
	key := c.Pair.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byPair[key]; ok {
		return domainconnection.ErrAlreadyExists
	}
	if _, ok := r.byID[c.ID]; ok {
		return domainconnection.ErrAlreadyExists
	}
	r.byID[c.ID] = cloneConnection(c)
	r.byPair[key] = c.ID
	return nil
}

func (r *ConnectionRepository) ByID(ctx context.Context, id domainconnection.ID) (*domainconnection.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, domainconnection.ErrNotFound
	}
	return cloneConnection(c), nil
}

func (r *ConnectionRepository) ByPair(ctx context.Context, a, b domainuser.ID) (*domainconnection.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPair[domainconnection.NewPair(a, b).Key()]
	if !ok {
		return nil, domainconnection.ErrNotFound
	}
	return cloneConnection(r.byID[id]), nil
}

func (r *ConnectionRepository) ListForUser(ctx context.Context, userID domainuser.ID) ([]*domainconnection.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainconnection.Connection, 0)
	for _, c := range r.byID {
		if c.Involves(userID) {
			out = append(out, cloneConnection(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *ConnectionRepository) UpdateStatus(ctx context.Context, id domainconnection.ID, status domainconnection.Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return domainconnection.ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = at.UTC()
	return nil
}

func (r *ConnectionRepository) Delete(ctx context.Context, id domainconnection.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return domainconnection.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byPair, c.Pair.Key())
	return nil
}

func (r *ConnectionRepository) DeleteByPair(ctx context.Context, a, b domainuser.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := domainconnection.NewPair(a, b).Key()
	id, ok := r.byPair[key]
	if !ok {
		return domainconnection.ErrNotFound
	}
	delete(r.byPair, key)
	delete(r.byID, id)
	return nil
}

func cloneConnection(c *domainconnection.Connection) *domainconnection.Connection {
	return &domainconnection.Connection{
		ID:          c.ID,
		Pair:        c.Pair,
		Status:      c.Status,
		RequestedBy: c.RequestedBy,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

var _ domainconnection.Repository = (*ConnectionRepository)(nil)
