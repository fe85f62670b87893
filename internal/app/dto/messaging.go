package dto

import (
	"time"

	domainconnection "recipehub/internal/domain/connection"
	domainconversation "recipehub/internal/domain/conversation"
	domaingroup "recipehub/internal/domain/group"
	domainmessage "recipehub/internal/domain/message"
	domainrecipe "recipehub/internal/domain/recipe"
	domainuser "recipehub/internal/domain/user"
)

type UserRef struct {
	ID              string `json:"id"`
	Handle          string `json:"handle"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

type RecipePreview struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url,omitempty"`
	AuthorID string `json:"author_id,omitempty"`
}

// Message is a reconstructed message. RepliedTo nests the resolved chain.
type Message struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Kind           string          `json:"kind"`
	Text           string          `json:"text,omitempty"`
	ImageURLs      []string        `json:"image_urls,omitempty"`
	RecipeIDs      []string        `json:"recipe_ids,omitempty"`
	Recipes        []RecipePreview `json:"recipes,omitempty"`
	Sender         *UserRef        `json:"sender,omitempty"`
	SenderID       string          `json:"sender_id"`
	SentAt         time.Time       `json:"sent_at"`
	UpdatedAt      *time.Time      `json:"updated_at,omitempty"`
	RepliedToID    string          `json:"replied_to_id,omitempty"`
	RepliedTo      *Message        `json:"replied_to,omitempty"`
	SeenBy         []string        `json:"seen_by"`
}

type Connection struct {
	ID          string    `json:"id"`
	Users       [2]string `json:"users"`
	Status      string    `json:"status"`
	RequestedBy string    `json:"requested_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ConnectionList struct {
	Items []Connection `json:"items"`
}

type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Members     []string  `json:"members"`
	CreatedAt   time.Time `json:"created_at"`
}

type GroupList struct {
	Items []Group `json:"items"`
}

// Conversation carries the full message history in stored order.
type Conversation struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	ConnectionID string    `json:"connection_id,omitempty"`
	GroupID      string    `json:"group_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Messages     []Message `json:"messages"`
	LastMessage  *Message  `json:"last_message,omitempty"`
	UnreadCount  int       `json:"unread_count"`
	Pinned       bool      `json:"pinned,omitempty"`
}

// ConversationSummary is the list view with only the latest message.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	ConnectionID string    `json:"connection_id,omitempty"`
	GroupID      string    `json:"group_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastMessage  *Message  `json:"last_message,omitempty"`
	UnreadCount  int       `json:"unread_count"`
	Pinned       bool      `json:"pinned,omitempty"`
}

type ConversationList struct {
	Items []ConversationSummary `json:"items"`
}

func MapUserRef(ref domainuser.Ref) UserRef {
	return UserRef{
		ID:              string(ref.ID),
		Handle:          ref.Handle,
		DisplayName:     ref.DisplayName,
		ProfileImageURL: ref.ProfileImageURL,
	}
}

func MapRecipePreview(p domainrecipe.Preview) RecipePreview {
	return RecipePreview{ID: string(p.ID), Title: p.Title, ImageURL: p.ImageURL, AuthorID: p.AuthorID}
}

// MapMessage walks the reply chain iteratively; the chain is already bounded
// by the assembler.
func MapMessage(m *domainmessage.Message) Message {
	if m == nil {
		return Message{}
	}
	root := mapMessageFlat(m)
	cur := &root
	for next := m.RepliedTo; next != nil; next = next.RepliedTo {
		mapped := mapMessageFlat(next)
		cur.RepliedTo = &mapped
		cur = cur.RepliedTo
	}
	return root
}

func mapMessageFlat(m *domainmessage.Message) Message {
	out := Message{
		ID:             string(m.ID),
		ConversationID: m.ConversationID,
		Kind:           string(m.Kind()),
		SenderID:       string(m.SenderID),
		SentAt:         m.SentAt,
		UpdatedAt:      m.UpdatedAt,
		RepliedToID:    string(m.RepliedToID),
		SeenBy:         make([]string, 0, len(m.SeenBy)),
	}
	switch c := m.Content.(type) {
	case domainmessage.TextContent:
		out.Text = c.Body
	case domainmessage.ImageContent:
		out.Text = c.Caption
		out.ImageURLs = append([]string(nil), c.URLs...)
	case domainmessage.RecipeContent:
		out.Text = c.Caption
		for _, id := range c.RecipeIDs {
			out.RecipeIDs = append(out.RecipeIDs, string(id))
		}
	}
	if m.Sender != nil {
		ref := MapUserRef(*m.Sender)
		out.Sender = &ref
	}
	for _, p := range m.Recipes {
		out.Recipes = append(out.Recipes, MapRecipePreview(p))
	}
	for _, id := range m.SeenBy {
		out.SeenBy = append(out.SeenBy, string(id))
	}
	return out
}

func MapConnection(c *domainconnection.Connection) Connection {
	return Connection{
		ID:          string(c.ID),
		Users:       [2]string{string(c.Pair.A), string(c.Pair.B)},
		Status:      string(c.Status),
		RequestedBy: string(c.RequestedBy),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func MapGroup(g *domaingroup.Group) Group {
	members := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		members = append(members, string(m))
	}
	return Group{ID: string(g.ID), Name: g.Name, Description: g.Description, Members: members, CreatedAt: g.CreatedAt}
}

// MapConversation renders c for viewer, who drives the unread count and
// the pinned flag.
func MapConversation(c *domainconversation.Conversation, viewer *domainuser.User) Conversation {
	out := Conversation{
		ID:        string(c.ID),
		Kind:      string(c.Kind()),
		CreatedAt: c.CreatedAt,
		Messages:  make([]Message, 0, len(c.MessageIDs)),
	}
	out.ConnectionID, out.GroupID = backingIDs(c.Backing)
	for _, m := range c.Messages() {
		out.Messages = append(out.Messages, MapMessage(m))
	}
	if last, ok := c.LastMessage(); ok {
		mapped := MapMessage(last)
		out.LastMessage = &mapped
	}
	if viewer != nil {
		out.UnreadCount = c.UnreadCount(viewer.ID)
		out.Pinned = viewer.HasPinned(string(c.ID))
	}
	return out
}

func MapConversationSummary(c *domainconversation.Conversation, viewer *domainuser.User) ConversationSummary {
	out := ConversationSummary{
		ID:        string(c.ID),
		Kind:      string(c.Kind()),
		CreatedAt: c.CreatedAt,
	}
	out.ConnectionID, out.GroupID = backingIDs(c.Backing)
	if last, ok := c.LastMessage(); ok {
		mapped := MapMessage(last)
		out.LastMessage = &mapped
	}
	if viewer != nil {
		out.UnreadCount = c.UnreadCount(viewer.ID)
		out.Pinned = viewer.HasPinned(string(c.ID))
	}
	return out
}

func backingIDs(b domainconversation.Backing) (connectionID, groupID string) {
	switch v := b.(type) {
	case domainconversation.ConnectionBacking:
		return string(v.ConnectionID), ""
	case domainconversation.GroupBacking:
		return "", string(v.GroupID)
	}
	return "", ""
}
