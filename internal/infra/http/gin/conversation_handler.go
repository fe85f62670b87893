package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"recipehub/internal/app/commands"
	"recipehub/internal/app/dto"
	conversationsapp "recipehub/internal/app/handlers/conversations"
	"recipehub/internal/app/queries"
)

type ConversationHTTP interface {
	Create(c *gin.Context)
	List(c *gin.Context)
	Get(c *gin.Context)
	SendMessage(c *gin.Context)
	UpdateMessage(c *gin.Context)
	DeleteMessage(c *gin.Context)
	MarkRead(c *gin.Context)
	GetMessage(c *gin.Context)
}

type ConversationHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createConversationRequest struct {
	ConnectionID string `json:"connection_id"`
	GroupID      string `json:"group_id"`
}

// backingContext lets a writer state which connection or group it believes backs the conversation.
type backingContext struct {
	ConnectionID string `json:"connection_id" form:"connection_id"`
	GroupID      string `json:"group_id" form:"group_id"`
}

type sendMessageRequest struct {
	Text        string   `json:"text"`
	ImageURLs   []string `json:"image_urls"`
	RecipeIDs   []string `json:"recipe_ids"`
	RepliedToID string   `json:"replied_to_id"`
	backingContext
}

type updateMessageRequest struct {
	Text      *string  `json:"text"`
	ImageURLs []string `json:"image_urls"`
	RecipeIDs []string `json:"recipe_ids"`
	backingContext
}

func (h ConversationHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req createConversationRequest
	if !bindJSON(c, &req) {
		return
	}
	cmd := conversationsapp.CreateCommand{ActorID: user.ID, ConnectionID: req.ConnectionID, GroupID: req.GroupID}
	result, err := commands.Dispatch[conversationsapp.CreateCommand, dto.Conversation](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "create conversation", "connection_id", req.ConnectionID, "group_id", req.GroupID)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ConversationHandler) List(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	result, err := queries.Ask[conversationsapp.ListQuery, dto.ConversationList](c.Request.Context(), h.Queries, conversationsapp.ListQuery{ActorID: user.ID})
	if err != nil {
		respondError(c, h.Logger, err, "list conversations", "user_id", user.ID)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ConversationHandler) Get(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	q := conversationsapp.GetQuery{ActorID: user.ID, ConversationID: c.Param("id")}
	result, err := queries.Ask[conversationsapp.GetQuery, dto.Conversation](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err, "get conversation", "conversation_id", q.ConversationID)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ConversationHandler) SendMessage(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	cmd := conversationsapp.SendMessageCommand{
		ActorID:         user.ID,
		ConversationID:  c.Param("id"),
		Text:            req.Text,
		ImageURLs:       req.ImageURLs,
		RecipeIDs:       req.RecipeIDs,
		RepliedToID:     req.RepliedToID,
		ConnectionID:    req.ConnectionID,
		GroupID:         req.GroupID,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[conversationsapp.SendMessageCommand, *conversationsapp.SendMessageResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "send message", "conversation_id", cmd.ConversationID, "user_id", user.ID)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h ConversationHandler) UpdateMessage(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req updateMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	cmd := conversationsapp.UpdateMessageCommand{
		ActorID:        user.ID,
		ConversationID: c.Param("id"),
		MessageID:      c.Param("messageId"),
		Text:           req.Text,
		ImageURLs:      req.ImageURLs,
		RecipeIDs:      req.RecipeIDs,
		ConnectionID:   req.ConnectionID,
		GroupID:        req.GroupID,
	}
	result, err := commands.Dispatch[conversationsapp.UpdateMessageCommand, dto.Message](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "update message", "conversation_id", cmd.ConversationID, "message_id", cmd.MessageID)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ConversationHandler) DeleteMessage(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var supplied backingContext
	if err := c.ShouldBindQuery(&supplied); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := conversationsapp.DeleteMessageCommand{
		ActorID:        user.ID,
		ConversationID: c.Param("id"),
		MessageID:      c.Param("messageId"),
		ConnectionID:   supplied.ConnectionID,
		GroupID:        supplied.GroupID,
	}
	result, err := commands.Dispatch[conversationsapp.DeleteMessageCommand, conversationsapp.DeleteMessageResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "delete message", "conversation_id", cmd.ConversationID, "message_id", cmd.MessageID)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ConversationHandler) MarkRead(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	cmd := conversationsapp.MarkAsReadCommand{ActorID: user.ID, ConversationID: c.Param("id")}
	result, err := commands.Dispatch[conversationsapp.MarkAsReadCommand, conversationsapp.MarkAsReadResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "mark conversation read", "conversation_id", cmd.ConversationID)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ConversationHandler) GetMessage(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	q := conversationsapp.GetMessageQuery{ActorID: user.ID, MessageID: c.Param("id")}
	result, err := queries.Ask[conversationsapp.GetMessageQuery, dto.Message](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err, "get message", "message_id", q.MessageID)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ ConversationHTTP = ConversationHandler{}
