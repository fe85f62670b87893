package memory

import (
	"context"
	"strings"
	"sync"

	domainrecipe "recipehub/internal/domain/recipe"
	domainuser "recipehub/internal/domain/user"
)

// UserRepository keeps account projections in memory. Not suitable for production.
type UserRepository struct {
	mu   sync.RWMutex
	byID map[domainuser.ID]*domainuser.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{byID: make(map[domainuser.ID]*domainuser.User)}
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.byID[id]; ok {
		return u.Clone(), nil
	}
	return nil, domainuser.ErrNotFound
}

func (r *UserRepository) Save(ctx context.Context, u *domainuser.User) error {
	if u == nil || strings.TrimSpace(string(u.ID)) == "" {
		return domainuser.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = u.Clone()
	return nil
}

// RecipeRepository keeps recipe previews in memory.
type RecipeRepository struct {
	mu    sync.RWMutex
	items map[domainrecipe.ID]domainrecipe.Preview
}

func NewRecipeRepository() *RecipeRepository {
	return &RecipeRepository{items: make(map[domainrecipe.ID]domainrecipe.Preview)}
}

func (r *RecipeRepository) ByID(ctx context.Context, id domainrecipe.ID) (*domainrecipe.Preview, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, domainrecipe.ErrNotFound
	}
	return &p, nil
}

func (r *RecipeRepository) Save(ctx context.Context, p *domainrecipe.Preview) error {
	if p == nil || strings.TrimSpace(string(p.ID)) == "" {
		return domainrecipe.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.ID] = *p
	return nil
}

// Delete removes a preview; the recipe lifecycle consumer calls it when a
// recipe is deleted upstream.
func (r *RecipeRepository) Delete(ctx context.Context, id domainrecipe.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

var (
	_ domainuser.Repository   = (*UserRepository)(nil)
	_ domainrecipe.Repository = (*RecipeRepository)(nil)
)
