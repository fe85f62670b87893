package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"recipehub/internal/app/commands"
	"recipehub/internal/app/dto"
	conversationsapp "recipehub/internal/app/handlers/conversations"
	groupsapp "recipehub/internal/app/handlers/groups"
	"recipehub/internal/app/queries"
)

type GroupHTTP interface {
	Create(c *gin.Context)
	List(c *gin.Context)
	Get(c *gin.Context)
	Conversation(c *gin.Context)
}

type GroupHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createGroupRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	MemberIDs   []string `json:"member_ids"`
}

func (h GroupHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req createGroupRequest
	if !bindJSON(c, &req) {
		return
	}
	cmd := groupsapp.CreateCommand{ActorID: user.ID, Name: req.Name, Description: req.Description, MemberIDs: req.MemberIDs}
	result, err := commands.Dispatch[groupsapp.CreateCommand, dto.Group](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "create group", "user_id", user.ID)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h GroupHandler) List(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	result, err := queries.Ask[groupsapp.ListQuery, dto.GroupList](c.Request.Context(), h.Queries, groupsapp.ListQuery{ActorID: user.ID})
	if err != nil {
		respondError(c, h.Logger, err, "list groups", "user_id", user.ID)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h GroupHandler) Get(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	q := groupsapp.GetQuery{ActorID: user.ID, GroupID: c.Param("id")}
	result, err := queries.Ask[groupsapp.GetQuery, dto.Group](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err, "get group", "group_id", q.GroupID)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Conversation answers GET /groups/:id/conversation.
func (h GroupHandler) Conversation(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	q := conversationsapp.ByGroupQuery{ActorID: user.ID, GroupID: c.Param("id")}
	result, err := queries.Ask[conversationsapp.ByGroupQuery, dto.Conversation](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err, "get group conversation", "group_id", q.GroupID)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ GroupHTTP = GroupHandler{}
