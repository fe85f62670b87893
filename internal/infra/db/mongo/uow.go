package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"recipehub/internal/app/uow"
	domainconnection "recipehub/internal/domain/connection"
	domainconversation "recipehub/internal/domain/conversation"
	domaingroup "recipehub/internal/domain/group"
	domainmessage "recipehub/internal/domain/message"
	domainrecipe "recipehub/internal/domain/recipe"
	domainuser "recipehub/internal/domain/user"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	ConnectionsRepo   domainconnection.Repository
	GroupsRepo        domaingroup.Repository
	MessagesRepo      domainmessage.Repository
	ConversationsRepo domainconversation.Repository
	UsersLookup       domainuser.Lookup
	RecipesLookup     domainrecipe.Lookup
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// NewFactory builds every repository over db.
func NewFactory(db *mongo.Database) Factory {
	return Factory{
		DB:                db,
		ConnectionsRepo:   NewConnectionRepository(db),
		GroupsRepo:        NewGroupRepository(db),
		MessagesRepo:      NewMessageRepository(db),
		ConversationsRepo: NewConversationRepository(db),
		UsersLookup:       NewUserRepository(db),
		RecipesLookup:     NewRecipeRepository(db),
	}
}

// Begin starts a MongoDB session. Writable units also open a transaction;
// read-only units read through the session without one.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	if !opts.ReadOnly {
		txnOpts := options.Transaction().SetReadConcern(f.DB.ReadConcern()).SetWriteConcern(f.DB.WriteConcern())
		if err := session.StartTransaction(txnOpts); err != nil {
			session.EndSession(ctx)
			return nil, err
		}
	}
	return &Unit{f: f, session: session, readOnly: opts.ReadOnly}, nil
}

type Unit struct {
	f        Factory
	session  mongo.Session
	readOnly bool
}

func (u *Unit) Connections() domainconnection.Repository     { return u.f.ConnectionsRepo }
func (u *Unit) Groups() domaingroup.Repository               { return u.f.GroupsRepo }
func (u *Unit) Messages() domainmessage.Repository           { return u.f.MessagesRepo }
func (u *Unit) Conversations() domainconversation.Repository { return u.f.ConversationsRepo }
func (u *Unit) Users() domainuser.Lookup                     { return u.f.UsersLookup }
func (u *Unit) Recipes() domainrecipe.Lookup                 { return u.f.RecipesLookup }

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if u.readOnly {
		return nil
	}
	return commitError(u.session.CommitTransaction(ctx))
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if u.readOnly {
		return nil
	}
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}
