package recipe

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrIDRequired = errors.New("recipe: id is required")
	ErrNotFound   = errors.New("recipe: not found")
)

type ID string

// Preview is the card shown when a recipe is shared inside a conversation.
type Preview struct {
	ID       ID
	Title    string
	ImageURL string
	AuthorID string
}

// Lookup resolves recipe references attached to recipe messages.
type Lookup interface {
	ByID(ctx context.Context, id ID) (*Preview, error)
}

// Repository adds the write side used by fixtures and the memory adapter.
type Repository interface {
	Lookup
	Save(ctx context.Context, preview *Preview) error
}

func NewPreview(id ID, title, imageURL, authorID string) (*Preview, error) {
	trimmed := strings.TrimSpace(string(id))
	if trimmed == "" {
		return nil, ErrIDRequired
	}
	return &Preview{
		ID:       ID(trimmed),
		Title:    strings.TrimSpace(title),
		ImageURL: strings.TrimSpace(imageURL),
		AuthorID: strings.TrimSpace(authorID),
	}, nil
}

// NormalizeIDs trims, drops blanks and deduplicates while keeping order.
func NormalizeIDs(ids []ID) []ID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[ID]struct{}, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		id = ID(strings.TrimSpace(string(id)))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
