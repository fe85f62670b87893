package memory

import (
	"context"
	"sort"
	"sync"

	domainmessage "recipehub/internal/domain/message"
	domainrecipe "recipehub/internal/domain/recipe"
	domainuser "recipehub/internal/domain/user"
)

// MessageRepository stores flat message records.
type MessageRepository struct {
	mu    sync.RWMutex
	items map[domainmessage.ID]domainmessage.Record
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{items: make(map[domainmessage.ID]domainmessage.Record)}
}

// Create writes the record. Writing an id that already exists replaces it,
// so a retried send lands once.
func (r *MessageRepository) Create(ctx context.Context, m *domainmessage.Message) error {
	if m == nil || m.ID == "" {
		return domainmessage.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[m.ID] = m.ToRecord()
	return nil
}

// Put stores a raw record as-is. Tests use it to seed malformed data.
func (r *MessageRepository) Put(rec domainmessage.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[rec.ID] = cloneRecord(rec)
}

func (r *MessageRepository) ByID(ctx context.Context, id domainmessage.ID) (*domainmessage.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.items[id]
	if !ok {
		return nil, domainmessage.ErrNotFound
	}
	out := cloneRecord(rec)
	return &out, nil
}

// ByIDs returns the records found, in the order requested.
func (r *MessageRepository) ByIDs(ctx context.Context, ids []domainmessage.ID) ([]*domainmessage.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainmessage.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := r.items[id]; ok {
			c := cloneRecord(rec)
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *MessageRepository) Update(ctx context.Context, m *domainmessage.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[m.ID]; !ok {
		return domainmessage.ErrNotFound
	}
	r.items[m.ID] = m.ToRecord()
	return nil
}

func (r *MessageRepository) Delete(ctx context.Context, id domainmessage.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domainmessage.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *MessageRepository) ListWithRecipe(ctx context.Context, recipeID domainrecipe.ID) ([]*domainmessage.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainmessage.Record, 0)
	for _, rec := range r.items {
		for _, id := range rec.RecipeIDs {
			if id == recipeID {
				c := cloneRecord(rec)
				out = append(out, &c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

// MarkSeen adds userID to the seen-by set of every listed record.
func (r *MessageRepository) MarkSeen(ctx context.Context, ids []domainmessage.ID, userID domainuser.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		rec, ok := r.items[id]
		if !ok {
			continue
		}
		seen := false
		for _, s := range rec.SeenBy {
			if s == userID {
				seen = true
				break
			}
		}
		if !seen {
			rec.SeenBy = append(rec.SeenBy, userID)
			r.items[id] = rec
		}
	}
	return nil
}

func cloneRecord(rec domainmessage.Record) domainmessage.Record {
	out := rec
	out.ImageURLs = append([]string(nil), rec.ImageURLs...)
	out.RecipeIDs = append([]domainrecipe.ID(nil), rec.RecipeIDs...)
	out.SeenBy = append([]domainuser.ID(nil), rec.SeenBy...)
	if rec.UpdatedAt != nil {
		at := *rec.UpdatedAt
		out.UpdatedAt = &at
	}
	return out
}

var _ domainmessage.Repository = (*MessageRepository)(nil)
