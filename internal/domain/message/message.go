package message

import (
	"context"
	"errors"
	"strings"
	"time"

	"recipehub/internal/domain/recipe"
	"recipehub/internal/domain/shared/events"
	"recipehub/internal/domain/user"
)

var (
	ErrIDRequired     = errors.New("message: id is required")
	ErrSenderRequired = errors.New("message: sender is required")
	ErrEmptyContent   = errors.New("message: text, images or recipes are required")
	ErrInvalidType    = errors.New("message: invalid message type")
	ErrNotFound       = errors.New("message: not found")
)

type ID string

type Message struct {
	ID             ID
	ConversationID string
	SenderID       user.ID
	Content        Content
	SentAt         time.Time
	UpdatedAt      *time.Time
	RepliedToID    ID
	SeenBy         []user.ID

	// Resolved at read time by the assembler; never persisted.
	Sender    *user.Ref
	Recipes   []recipe.Preview
	RepliedTo *Message

	events.EventRecorder
}

type Repository interface {
	Create(ctx context.Context, m *Message) error
	ByID(ctx context.Context, id ID) (*Record, error)
	ByIDs(ctx context.Context, ids []ID) ([]*Record, error)
	Update(ctx context.Context, m *Message) error
	Delete(ctx context.Context, id ID) error
	ListWithRecipe(ctx context.Context, recipeID recipe.ID) ([]*Record, error)
	MarkSeen(ctx context.Context, ids []ID, userID user.ID) error
}

type CreateParams struct {
	ID             ID
	ConversationID string
	SenderID       user.ID
	Text           string
	ImageURLs      []string
	RecipeIDs      []recipe.ID
	SentAt         time.Time
	RepliedToID    ID
}

func New(params CreateParams) (*Message, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	sender := user.ID(strings.TrimSpace(string(params.SenderID)))
	if sender == "" {
		return nil, ErrSenderRequired
	}
	content, err := buildContent(params.Text, params.ImageURLs, params.RecipeIDs)
	if err != nil {
		return nil, err
	}
	sentAt := params.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	m := &Message{
		ID:             ID(id),
		ConversationID: strings.TrimSpace(params.ConversationID),
		SenderID:       sender,
		Content:        content,
		SentAt:         sentAt.UTC(),
		RepliedToID:    ID(strings.TrimSpace(string(params.RepliedToID))),
	}
	m.Record(MessageSent{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Kind:           content.Kind(),
		RepliedToID:    m.RepliedToID,
		At:             m.SentAt,
	})
	return m, nil
}

// UpdateParams carries the replacement payloads. A nil field leaves the
// current value untouched; payloads foreign to the message kind are ignored.
type UpdateParams struct {
	Text      *string
	ImageURLs []string
	RecipeIDs []recipe.ID
	Now       time.Time
}

func (m *Message) Update(params UpdateParams) error {
	var next Content
	switch c := m.Content.(type) {
	case TextContent:
		if params.Text != nil {
			c.Body = strings.TrimSpace(*params.Text)
		}
		if c.Body == "" {
			return ErrEmptyContent
		}
		next = c
	case ImageContent:
		if params.Text != nil {
			c.Caption = strings.TrimSpace(*params.Text)
		}
		if params.ImageURLs != nil {
			c.URLs = normalizeURLs(params.ImageURLs)
		}
		if len(c.URLs) == 0 {
			return ErrEmptyContent
		}
		next = c
	case RecipeContent:
		if params.Text != nil {
			c.Caption = strings.TrimSpace(*params.Text)
		}
		if params.RecipeIDs != nil {
			c.RecipeIDs = recipe.NormalizeIDs(params.RecipeIDs)
		}
		if len(c.RecipeIDs) == 0 {
			return ErrEmptyContent
		}
		next = c
	default:
		return ErrInvalidType
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	m.Content = next
	m.UpdatedAt = &now
	m.Record(MessageUpdated{MessageID: m.ID, ConversationID: m.ConversationID, At: now})
	return nil
}

// DropRecipe removes a recipe reference. It reports whether the message still
// carries content afterwards.
func (m *Message) DropRecipe(id recipe.ID, now time.Time) (bool, error) {
	c, ok := m.Content.(RecipeContent)
	if !ok {
		return true, nil
	}
	kept := make([]recipe.ID, 0, len(c.RecipeIDs))
	for _, existing := range c.RecipeIDs {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(c.RecipeIDs) {
		return true, nil
	}
	if len(kept) == 0 {
		if c.Caption == "" {
			return false, nil
		}
		// A captioned share with nothing left degrades to plain text.
		m.Content = TextContent{Body: c.Caption}
		m.touch(now)
		return true, nil
	}
	return true, m.Update(UpdateParams{RecipeIDs: kept, Now: now})
}

func (m *Message) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	m.UpdatedAt = &now
	m.Record(MessageUpdated{MessageID: m.ID, ConversationID: m.ConversationID, At: now})
}

// MarkSeenBy adds the user to SeenBy. It returns false when already present.
func (m *Message) MarkSeenBy(id user.ID) bool {
	if id == "" || m.HasSeen(id) {
		return false
	}
	m.SeenBy = append(m.SeenBy, id)
	return true
}

func (m *Message) HasSeen(id user.ID) bool {
	for _, seen := range m.SeenBy {
		if seen == id {
			return true
		}
	}
	return false
}

func (m *Message) Kind() Kind {
	if m.Content == nil {
		return ""
	}
	return m.Content.Kind()
}

// ReplyDepth counts the resolved replied-to hops.
func (m *Message) ReplyDepth() int {
	depth := 0
	for cur := m.RepliedTo; cur != nil; cur = cur.RepliedTo {
		depth++
	}
	return depth
}
