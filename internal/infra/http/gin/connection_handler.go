package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"recipehub/internal/app/commands"
	"recipehub/internal/app/dto"
	connectionsapp "recipehub/internal/app/handlers/connections"
	conversationsapp "recipehub/internal/app/handlers/conversations"
	"recipehub/internal/app/queries"
)

type ConnectionHTTP interface {
	Create(c *gin.Context)
	List(c *gin.Context)
	Get(c *gin.Context)
	With(c *gin.Context)
	UpdateStatus(c *gin.Context)
	Delete(c *gin.Context)
	DeleteWith(c *gin.Context)
	Conversation(c *gin.Context)
}

type ConnectionHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createConnectionRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Status string `json:"status"`
}

type updateConnectionRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h ConnectionHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req createConnectionRequest
	if !bindJSON(c, &req) {
		return
	}
	cmd := connectionsapp.CreateCommand{ActorID: user.ID, OtherUserID: req.UserID, Status: req.Status}
	result, err := commands.Dispatch[connectionsapp.CreateCommand, dto.Connection](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "create connection", "user_id", user.ID)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h ConnectionHandler) List(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	result, err := queries.Ask[connectionsapp.ListQuery, dto.ConnectionList](c.Request.Context(), h.Queries, connectionsapp.ListQuery{ActorID: user.ID})
	if err != nil {
		respondError(c, h.Logger, err, "list connections", "user_id", user.ID)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ConnectionHandler) Get(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	q := connectionsapp.GetQuery{ActorID: user.ID, ConnectionID: c.Param("id")}
	result, err := queries.Ask[connectionsapp.GetQuery, dto.Connection](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err, "get connection", "connection_id", q.ConnectionID)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ConnectionHandler) With(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	q := connectionsapp.WithQuery{ActorID: user.ID, OtherUserID: c.Param("userId")}
	result, err := queries.Ask[connectionsapp.WithQuery, dto.Connection](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err, "get connection by pair", "other_user_id", q.OtherUserID)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ConnectionHandler) UpdateStatus(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req updateConnectionRequest
	if !bindJSON(c, &req) {
		return
	}
	cmd := connectionsapp.UpdateStatusCommand{ActorID: user.ID, ConnectionID: c.Param("id"), Status: req.Status}
	result, err := commands.Dispatch[connectionsapp.UpdateStatusCommand, dto.Connection](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "update connection status", "connection_id", cmd.ConnectionID)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ConnectionHandler) Delete(c *gin.Context) {
	h.delete(c, connectionsapp.DeleteCommand{ConnectionID: c.Param("id")})
}

func (h ConnectionHandler) DeleteWith(c *gin.Context) {
	h.delete(c, connectionsapp.DeleteCommand{OtherUserID: c.Param("userId")})
}

func (h ConnectionHandler) delete(c *gin.Context, cmd connectionsapp.DeleteCommand) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	cmd.ActorID = user.ID
	result, err := commands.Dispatch[connectionsapp.DeleteCommand, connectionsapp.DeleteResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "delete connection", "connection_id", cmd.ConnectionID, "other_user_id", cmd.OtherUserID)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Conversation answers GET /connections/:id/conversation.
func (h ConnectionHandler) Conversation(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	q := conversationsapp.ByConnectionQuery{ActorID: user.ID, ConnectionID: c.Param("id")}
	result, err := queries.Ask[conversationsapp.ByConnectionQuery, dto.Conversation](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err, "get connection conversation", "connection_id", q.ConnectionID)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ ConnectionHTTP = ConnectionHandler{}
