package mongo

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainrecipe "recipehub/internal/domain/recipe"
	domainuser "recipehub/internal/domain/user"
)

// UserRepository reads the account projection owned by the accounts service.
type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection("users")}
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	var doc userDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainuser.ErrNotFound
		}
		return nil, err
	}
	return doc.toUser(), nil
}

func (r *UserRepository) Save(ctx context.Context, u *domainuser.User) error {
	if u == nil || strings.TrimSpace(string(u.ID)) == "" {
		return domainuser.ErrIDRequired
	}
	doc := newUserDocument(u)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

type userDocument struct {
	ID                  string   `bson:"_id"`
	Handle              string   `bson:"handle"`
	DisplayName         string   `bson:"display_name"`
	ProfileImageURL     string   `bson:"profile_image_url,omitempty"`
	BlockedConnections  []string `bson:"blocked_connections,omitempty"`
	PinnedConversations []string `bson:"pinned_conversations,omitempty"`
}

func newUserDocument(u *domainuser.User) userDocument {
	return userDocument{
		ID:                  string(u.ID),
		Handle:              u.Handle,
		DisplayName:         u.DisplayName,
		ProfileImageURL:     u.ProfileImageURL,
		BlockedConnections:  append([]string(nil), u.BlockedConnections...),
		PinnedConversations: append([]string(nil), u.PinnedConversations...),
	}
}

func (d userDocument) toUser() *domainuser.User {
	return &domainuser.User{
		ID:                  domainuser.ID(d.ID),
		Handle:              d.Handle,
		DisplayName:         d.DisplayName,
		ProfileImageURL:     d.ProfileImageURL,
		BlockedConnections:  append([]string(nil), d.BlockedConnections...),
		PinnedConversations: append([]string(nil), d.PinnedConversations...),
	}
}

// RecipeRepository keeps the recipe previews rendered inside messages.
type RecipeRepository struct {
	col *mongo.Collection
}

func NewRecipeRepository(db *mongo.Database) *RecipeRepository {
	return &RecipeRepository{col: db.Collection("recipe_previews")}
}

func (r *RecipeRepository) ByID(ctx context.Context, id domainrecipe.ID) (*domainrecipe.Preview, error) {
	var doc recipeDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainrecipe.ErrNotFound
		}
		return nil, err
	}
	return doc.toPreview(), nil
}

func (r *RecipeRepository) Save(ctx context.Context, p *domainrecipe.Preview) error {
	if p == nil || strings.TrimSpace(string(p.ID)) == "" {
		return domainrecipe.ErrIDRequired
	}
	doc := recipeDocument{ID: string(p.ID), Title: p.Title, ImageURL: p.ImageURL, AuthorID: p.AuthorID}
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *RecipeRepository) Delete(ctx context.Context, id domainrecipe.ID) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	return err
}

type recipeDocument struct {
	ID       string `bson:"_id"`
	Title    string `bson:"title"`
	ImageURL string `bson:"image_url,omitempty"`
	AuthorID string `bson:"author_id,omitempty"`
}

func (d recipeDocument) toPreview() *domainrecipe.Preview {
	return &domainrecipe.Preview{
		ID:       domainrecipe.ID(d.ID),
		Title:    d.Title,
		ImageURL: d.ImageURL,
		AuthorID: d.AuthorID,
	}
}

var (
	_ domainuser.Repository   = (*UserRepository)(nil)
	_ domainrecipe.Repository = (*RecipeRepository)(nil)
)
