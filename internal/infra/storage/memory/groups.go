package memory

import (
	"context"
	"sort"
	"sync"

	domaingroup "recipehub/internal/domain/group"
	domainuser "recipehub/internal/domain/user"
)

type GroupRepository struct {
	mu    sync.RWMutex
	items map[domaingroup.ID]*domaingroup.Group
}

func NewGroupRepository() *GroupRepository {
	return &GroupRepository{items: make(map[domaingroup.ID]*domaingroup.Group)}
}

func (r *GroupRepository) Create(ctx context.Context, g *domaingroup.Group) error {
	if g == nil || g.ID == "" {
		return domaingroup.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[g.ID] = cloneGroup(g)
	return nil
}

func (r *GroupRepository) ByID(ctx context.Context, id domaingroup.ID) (*domaingroup.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.items[id]
	if !ok {
		return nil, domaingroup.ErrNotFound
	}
	return cloneGroup(g), nil
}

func (r *GroupRepository) ListForUser(ctx context.Context, userID domainuser.ID) ([]*domaingroup.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domaingroup.Group, 0)
	for _, g := range r.items {
		if g.HasMember(userID) {
			out = append(out, cloneGroup(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func cloneGroup(g *domaingroup.Group) *domaingroup.Group {
	return &domaingroup.Group{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Members:     append([]domainuser.ID(nil), g.Members...),
		CreatedAt:   g.CreatedAt,
	}
}

var _ domaingroup.Repository = (*GroupRepository)(nil)
