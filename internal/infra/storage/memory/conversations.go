package memory

import (
	"context"
	"sort"
	"sync"

	domainconnection "recipehub/internal/domain/connection"
	domainconversation "recipehub/internal/domain/conversation"
	domaingroup "recipehub/internal/domain/group"
	domainmessage "recipehub/internal/domain/message"
)

// ConversationRepository keeps one conversation per backing and enforces
// optimistic versioning on update.
type ConversationRepository struct {
	mu      sync.RWMutex
	byID    map[domainconversation.ID]*domainconversation.Conversation
	byConn  map[domainconnection.ID]domainconversation.ID
	byGroup map[domaingroup.ID]domainconversation.ID
}

func NewConversationRepository() *ConversationRepository {
	return &ConversationRepository{
		byID:    make(map[domainconversation.ID]*domainconversation.Conversation),
		byConn:  make(map[domainconnection.ID]domainconversation.ID),
		byGroup: make(map[domaingroup.ID]domainconversation.ID),
	}
}

func (r *ConversationRepository) Create(ctx context.Context, c *domainconversation.Conversation) error {
	if c == nil || c.ID == "" {
		return domainconversation.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[c.ID]; ok {
		return domainconversation.ErrAlreadyExists
	}
	switch b := c.Backing.(type) {
	case domainconversation.ConnectionBacking:
		if _, ok := r.byConn[b.ConnectionID]; ok {
			return domainconversation.ErrAlreadyExists
		}
		r.byConn[b.ConnectionID] = c.ID
	case domainconversation.GroupBacking:
		if _, ok := r.byGroup[b.GroupID]; ok {
			return domainconversation.ErrAlreadyExists
		}
		r.byGroup[b.GroupID] = c.ID
	default:
		return domainconversation.ErrInvalidType
	}
	c.Version = 1
	r.byID[c.ID] = cloneConversation(c)
	return nil
}

// Put stores c without backing checks, for seeding malformed data in tests.
func (r *ConversationRepository) Put(c *domainconversation.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.ID] = cloneConversation(c)
	switch b := c.Backing.(type) {
	case domainconversation.ConnectionBacking:
		r.byConn[b.ConnectionID] = c.ID
	case domainconversation.GroupBacking:
		r.byGroup[b.GroupID] = c.ID
	}
}

func (r *ConversationRepository) ByID(ctx context.Context, id domainconversation.ID) (*domainconversation.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, domainconversation.ErrNotFound
	}
	return cloneConversation(c), nil
}

func (r *ConversationRepository) ByConnection(ctx context.Context, id domainconnection.ID) (*domainconversation.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	convID, ok := r.byConn[id]
	if !ok {
		return nil, domainconversation.ErrNotFound
	}
	return cloneConversation(r.byID[convID]), nil
}

func (r *ConversationRepository) ByGroup(ctx context.Context, id domaingroup.ID) (*domainconversation.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	convID, ok := r.byGroup[id]
	if !ok {
		return nil, domainconversation.ErrNotFound
	}
	return cloneConversation(r.byID[convID]), nil
}

func (r *ConversationRepository) ListByBackings(ctx context.Context, connections []domainconnection.ID, groups []domaingroup.ID) ([]*domainconversation.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainconversation.Conversation, 0, len(connections)+len(groups))
	for _, id := range connections {
		if convID, ok := r.byConn[id]; ok {
			out = append(out, cloneConversation(r.byID[convID]))
		}
	}
	for _, id := range groups {
		if convID, ok := r.byGroup[id]; ok {
			out = append(out, cloneConversation(r.byID[convID]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Update replaces the stored message list when c.Version matches the stored
// version, then bumps both.
func (r *ConversationRepository) Update(ctx context.Context, c *domainconversation.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[c.ID]
	if !ok {
		return domainconversation.ErrNotFound
	}
	if stored.Version != c.Version {
		return domainconversation.ErrConcurrentUpdate
	}
	next := cloneConversation(c)
	next.Version = c.Version + 1
	r.byID[c.ID] = next
	c.Version = next.Version
	return nil
}

func cloneConversation(c *domainconversation.Conversation) *domainconversation.Conversation {
	return &domainconversation.Conversation{
		ID:         c.ID,
		Backing:    c.Backing,
		MessageIDs: append([]domainmessage.ID(nil), c.MessageIDs...),
		CreatedAt:  c.CreatedAt,
		Version:    c.Version,
	}
}

var _ domainconversation.Repository = (*ConversationRepository)(nil)
