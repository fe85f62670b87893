package memory

import (
	"context"
	"errors"

	"recipehub/internal/app/uow"
	domainconnection "recipehub/internal/domain/connection"
	domainconversation "recipehub/internal/domain/conversation"
	domaingroup "recipehub/internal/domain/group"
	domainmessage "recipehub/internal/domain/message"
	domainrecipe "recipehub/internal/domain/recipe"
	domainuser "recipehub/internal/domain/user"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	ConnectionsRepo   domainconnection.Repository
	GroupsRepo        domaingroup.Repository
	MessagesRepo      domainmessage.Repository
	ConversationsRepo domainconversation.Repository
	UsersLookup       domainuser.Lookup
	RecipesLookup     domainrecipe.Lookup
}

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Store bundles a fresh set of repositories, useful for tests and dev mode.
type Store struct {
	Connections   *ConnectionRepository
	Groups        *GroupRepository
	Messages      *MessageRepository
	Conversations *ConversationRepository
	Users         *UserRepository
	Recipes       *RecipeRepository
}

func NewStore() *Store {
	return &Store{
		Connections:   NewConnectionRepository(),
		Groups:        NewGroupRepository(),
		Messages:      NewMessageRepository(),
		Conversations: NewConversationRepository(),
		Users:         NewUserRepository(),
		Recipes:       NewRecipeRepository(),
	}
}

func (s *Store) Factory() Factory {
	return Factory{
		ConnectionsRepo:   s.Connections,
		GroupsRepo:        s.Groups,
		MessagesRepo:      s.Messages,
		ConversationsRepo: s.Conversations,
		UsersLookup:       s.Users,
		RecipesLookup:     s.Recipes,
	}
}

// Begin starts a lightweight boundary. No isolation is provided; writes are
// visible immediately and Rollback does not undo them.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.ConnectionsRepo == nil || f.GroupsRepo == nil || f.MessagesRepo == nil || f.ConversationsRepo == nil || f.UsersLookup == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{f: f}, nil
}

type Unit struct {
	f Factory
}

func (u *Unit) Connections() domainconnection.Repository     { return u.f.ConnectionsRepo }
func (u *Unit) Groups() domaingroup.Repository               { return u.f.GroupsRepo }
func (u *Unit) Messages() domainmessage.Repository           { return u.f.MessagesRepo }
func (u *Unit) Conversations() domainconversation.Repository { return u.f.ConversationsRepo }
func (u *Unit) Users() domainuser.Lookup                     { return u.f.UsersLookup }
func (u *Unit) Recipes() domainrecipe.Lookup                 { return u.f.RecipesLookup }

func (u *Unit) Commit(ctx context.Context) error {
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	return nil
}
