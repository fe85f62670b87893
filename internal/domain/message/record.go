package message

import (
	"time"

	"recipehub/internal/domain/recipe"
	"recipehub/internal/domain/user"
)

// Record is the flat shape a message is stored in. References to other
// entities are ids only.
type Record struct {
	ID             ID
	ConversationID string
	SenderID       user.ID
	Kind           Kind
	Text           string
	ImageURLs      []string
	RecipeIDs      []recipe.ID
	SentAt         time.Time
	UpdatedAt      *time.Time
	RepliedToID    ID
	SeenBy         []user.ID
}

func (m *Message) ToRecord() Record {
	rec := Record{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SentAt:         m.SentAt,
		RepliedToID:    m.RepliedToID,
		SeenBy:         append([]user.ID(nil), m.SeenBy...),
	}
	if m.UpdatedAt != nil {
		at := *m.UpdatedAt
		rec.UpdatedAt = &at
	}
	switch c := m.Content.(type) {
	case TextContent:
		rec.Kind = KindText
		rec.Text = c.Body
	case ImageContent:
		rec.Kind = KindImage
		rec.Text = c.Caption
		rec.ImageURLs = append([]string(nil), c.URLs...)
	case RecipeContent:
		rec.Kind = KindRecipe
		rec.Text = c.Caption
		rec.RecipeIDs = append([]recipe.ID(nil), c.RecipeIDs...)
	}
	return rec
}

// Restore rebuilds a message from storage without the creation checks. The
// sender, recipes and reply chain are left unresolved.
func Restore(rec Record) (*Message, error) {
	if rec.ID == "" {
		return nil, ErrIDRequired
	}
	var content Content
	switch rec.Kind {
	case KindText:
		content = TextContent{Body: rec.Text}
	case KindImage:
		content = ImageContent{Caption: rec.Text, URLs: append([]string(nil), rec.ImageURLs...)}
	case KindRecipe:
		content = RecipeContent{Caption: rec.Text, RecipeIDs: append([]recipe.ID(nil), rec.RecipeIDs...)}
	default:
		return nil, ErrInvalidType
	}
	m := &Message{
		ID:             rec.ID,
		ConversationID: rec.ConversationID,
		SenderID:       rec.SenderID,
		Content:        content,
		SentAt:         rec.SentAt.UTC(),
		RepliedToID:    rec.RepliedToID,
		SeenBy:         append([]user.ID(nil), rec.SeenBy...),
	}
	if rec.UpdatedAt != nil {
		at := rec.UpdatedAt.UTC()
		m.UpdatedAt = &at
	}
	return m, nil
}
