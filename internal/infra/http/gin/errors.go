package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"recipehub/internal/app/commands"
	"recipehub/internal/app/handlers/connections"
	"recipehub/internal/app/handlers/conversations"
	handlersupport "recipehub/internal/app/handlers/support"
	"recipehub/internal/app/middleware"
	"recipehub/internal/app/queries"
	"recipehub/internal/app/uow"
	domainconnection "recipehub/internal/domain/connection"
	domainconversation "recipehub/internal/domain/conversation"
	domaingroup "recipehub/internal/domain/group"
	domainmessage "recipehub/internal/domain/message"
	domainrecipe "recipehub/internal/domain/recipe"
	domainuser "recipehub/internal/domain/user"
	"recipehub/internal/infra/storage/s3"
)

type statusRule struct {
	status int
	errs   []error
}

// statusRules are checked in order; the first rule with a matching sentinel wins.
var statusRules = []statusRule{
	{http.StatusUnauthorized, []error{middleware.ErrUnauthenticated}},
	{http.StatusBadRequest, []error{
		middleware.ErrValidation,
		connections.ErrTargetRequired,
		conversations.ErrBackingRequired,
		conversations.ErrReplyNotInConversation,
		domainconnection.ErrSelfConnection,
		domainconnection.ErrInvalidStatus,
		domainconnection.ErrAccountRequired,
		domaingroup.ErrNameRequired,
		domaingroup.ErrMembersRequired,
		domainmessage.ErrEmptyContent,
		domainmessage.ErrInvalidType,
		domainconversation.ErrConnectionBlocked,
	}},
	{http.StatusForbidden, []error{handlersupport.ErrForbidden}},
	{http.StatusNotFound, []error{
		domainconnection.ErrNotFound,
		domainconversation.ErrConnectionNotFound,
		domaingroup.ErrNotFound,
		domainmessage.ErrNotFound,
		domainconversation.ErrNotFound,
		domainuser.ErrNotFound,
		domainrecipe.ErrNotFound,
	}},
	{http.StatusConflict, []error{
		domainconnection.ErrAlreadyExists,
		domainconversation.ErrAlreadyExists,
		domainconversation.ErrConcurrentUpdate,
		domainconversation.ErrNoConnectionProvided,
		domainconversation.ErrNoGroupProvided,
		domainconversation.ErrBackingMismatch,
		domainconversation.ErrInvalidType,
	}},
	{http.StatusUnsupportedMediaType, []error{s3.ErrUnsupportedContent}},
	{http.StatusServiceUnavailable, []error{uow.ErrUnitOfWorkMissing, s3.ErrNotConfigured, commands.ErrNilBus, queries.ErrNilBus}},
}

func statusFor(err error) int {
	for _, rule := range statusRules {
		for _, target := range rule.errs {
			if errors.Is(err, target) {
				return rule.status
			}
		}
	}
	return http.StatusInternalServerError
}

// respondError writes the mapped status. Server-side failures are logged and
// their detail is withheld from the caller.
func respondError(c *gin.Context, logger *slog.Logger, err error, op string, attrs ...any) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		if logger != nil {
			logger.Error(op+" failed", append(attrs, "error", err, "request_id", c.GetString("request_id"))...)
		}
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": http.StatusText(status)})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
